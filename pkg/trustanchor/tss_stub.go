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

//go:build !tss

package trustanchor

import "github.com/jeremyhahn/go-trustanchor/pkg/types"

func init() {
	constructors[types.BackendTPMTSS] = buildTSS
	provisioners[types.BackendTPMTSS] = provisionTSS
}

func buildTSS(config *Config) (types.TrustAnchor, error) {
	return nil, ErrTSSNotAvailable
}

func provisionTSS(config *Config, slotKeys [types.KeySlotCount]types.SlotKey) (*ProvisionResult, error) {
	return nil, ErrTSSNotAvailable
}
