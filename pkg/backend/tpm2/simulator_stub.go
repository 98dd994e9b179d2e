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

//go:build tpm2 && !tpm_simulator

package tpm2

import (
	"errors"

	"github.com/google/go-tpm/tpm2/transport"
)

// ErrSimulatorNotAvailable is returned when simulator support is not compiled in
var ErrSimulatorNotAvailable = errors.New("tpm2: simulator support not compiled (build with -tags tpm_simulator)")

// openSimulator returns an error when simulator support is not compiled in
func openSimulator() (transport.TPMCloser, error) {
	return nil, ErrSimulatorNotAvailable
}
