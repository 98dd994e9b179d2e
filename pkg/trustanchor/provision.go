// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-trustanchor.
//
// go-trustanchor is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package trustanchor

import (
	"fmt"

	"github.com/jeremyhahn/go-trustanchor/pkg/types"
)

// provisioner installs trust anchor state for one backend type.
type provisioner func(*Config, [types.KeySlotCount]types.SlotKey) (*ProvisionResult, error)

// provisioners is populated by the per-backend registration files for
// backends that have a provisioning workflow. The simulation needs none,
// so it does not register here.
var provisioners = map[types.BackendType]provisioner{}

// ProvisionResult reports what provisioning installed.
type ProvisionResult struct {
	// Commitments holds a binding digest per key slot for imported key
	// material, nil for keys generated inside the module.
	Commitments [types.KeySlotCount][]byte
}

// Provision prepares the configured backend for use: it installs the
// session salt key and one HMAC key per slot at the configured persistent
// handles, evicting whatever occupied them. A slot with nil key material
// receives a key generated inside the module; a slot with 32 bytes of
// material has it imported, optionally bound to the originator's
// obfuscation seed.
//
// This is a destructive operator workflow, not part of the runtime
// interface, and it reports full error detail.
func Provision(config *Config, slotKeys [types.KeySlotCount]types.SlotKey) (*ProvisionResult, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	backendType, err := types.ParseBackendType(config.Backend)
	if err != nil {
		return nil, err
	}

	run, ok := provisioners[backendType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProvisioningNotSupported, config.Backend)
	}
	return run(config, slotKeys)
}
