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
	"github.com/jeremyhahn/go-trustanchor/pkg/backend/sim"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
)

// The simulation is compiled unconditionally.
func init() {
	constructors[types.BackendSimulation] = buildSim
}

func buildSim(config *Config) (types.TrustAnchor, error) {
	return sim.NewBackend(&sim.Config{
		MachineIDPath: config.MachineIDPath,
		Logger:        config.Logger,
		Fs:            config.Fs,
	})
}
