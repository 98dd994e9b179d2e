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

//go:build tpm2 && tpm_simulator

package tpm2

import (
	"sync"

	"github.com/google/go-tpm-tools/simulator"
	"github.com/google/go-tpm/tpm2/transport"
)

var (
	simMu       sync.Mutex
	simInstance *simulator.Simulator
)

// simulatorConn exposes the embedded simulator as a TPM transport. The
// simulator lives for the process so that provisioned state survives
// reconnects the way it does on hardware; Close releases only the
// connection.
type simulatorConn struct {
	transport transport.TPM
}

func (s *simulatorConn) Send(input []byte) ([]byte, error) {
	return s.transport.Send(input)
}

func (s *simulatorConn) Close() error {
	return nil
}

// openSimulator opens the embedded software TPM with a fixed seed so
// that provisioned state is reproducible across test runs.
func openSimulator() (transport.TPMCloser, error) {
	simMu.Lock()
	defer simMu.Unlock()

	if simInstance == nil {
		sim, err := simulator.GetWithFixedSeedInsecure(1234567890)
		if err != nil {
			return nil, err
		}
		simInstance = sim
	}
	return &simulatorConn{transport: transport.FromReadWriter(simInstance)}, nil
}
