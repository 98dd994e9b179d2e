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

//go:build tss

package trustanchor

import (
	"github.com/jeremyhahn/go-trustanchor/pkg/backend/tss"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
)

func init() {
	constructors[types.BackendTPMTSS] = buildTSS
	provisioners[types.BackendTPMTSS] = provisionTSS
}

func tssConfig(config *Config) *tss.Config {
	return &tss.Config{
		Device:        config.Device,
		UseSimulator:  config.UseSimulator,
		SimulatorHost: config.SimulatorHost,
		SimulatorPort: config.SimulatorPort,
		Slot0Handle:   config.Slot0Handle,
		Slot1Handle:   config.Slot1Handle,
		SaltHandle:    config.SaltHandle,
		Logger:        config.Logger,
	}
}

func buildTSS(config *Config) (types.TrustAnchor, error) {
	return tss.NewBackend(tssConfig(config))
}

func provisionTSS(config *Config, slotKeys [types.KeySlotCount]types.SlotKey) (*ProvisionResult, error) {
	result, err := tss.Provision(tssConfig(config), slotKeys)
	if err != nil {
		return nil, err
	}
	return &ProvisionResult{Commitments: result.Commitments}, nil
}
