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

// Package trustanchor selects and constructs trust anchor backends.
//
// Backend selection is a build-time decision: the software simulation is
// always compiled, the hardware backends are included with -tags tpm2 and
// -tags tss respectively. Requesting a backend that was not compiled in
// fails at construction with an error naming the missing tag; there is no
// runtime fallback and no backend switching on a live instance.
package trustanchor

import (
	"fmt"

	"github.com/jeremyhahn/go-trustanchor/pkg/types"
)

// constructor builds a backend instance from the shared configuration.
type constructor func(*Config) (types.TrustAnchor, error)

// constructors is populated by the per-backend registration files. The
// build-tag stubs register constructors that fail with the tag name, so
// every backend type always resolves.
var constructors = map[types.BackendType]constructor{}

// New constructs the configured trust anchor backend. The returned
// instance is bound to that backend for its lifetime and is not yet
// open; call Open before use and Close when done.
func New(config *Config) (types.TrustAnchor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	backendType, err := types.ParseBackendType(config.Backend)
	if err != nil {
		return nil, err
	}

	build, ok := constructors[backendType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownBackend, config.Backend)
	}
	return build(config)
}
