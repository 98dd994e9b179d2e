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

//go:build tpm2

package trustanchor

import (
	"github.com/jeremyhahn/go-trustanchor/pkg/backend/tpm2"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
)

func init() {
	constructors[types.BackendTPMDirect] = buildTPM2
	provisioners[types.BackendTPMDirect] = provisionTPM2
}

func tpm2Config(config *Config) *tpm2.Config {
	return &tpm2.Config{
		Device:       config.Device,
		UseSimulator: config.UseSimulator,
		Slot0Handle:  config.Slot0Handle,
		Slot1Handle:  config.Slot1Handle,
		SaltHandle:   config.SaltHandle,
		Logger:       config.Logger,
	}
}

func buildTPM2(config *Config) (types.TrustAnchor, error) {
	return tpm2.NewBackend(tpm2Config(config))
}

func provisionTPM2(config *Config, slotKeys [types.KeySlotCount]types.SlotKey) (*ProvisionResult, error) {
	result, err := tpm2.Provision(tpm2Config(config), slotKeys)
	if err != nil {
		return nil, err
	}
	return &ProvisionResult{Commitments: result.Commitments}, nil
}
