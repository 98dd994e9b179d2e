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

package tss

import "errors"

var (
	// ErrNotOpen is returned when an operation is attempted before Open
	// or after Close.
	ErrNotOpen = errors.New("tss: backend not open")

	// ErrAlreadyOpen is returned by Open on an instance that is already
	// open or has been closed. Closed instances cannot be reopened.
	ErrAlreadyOpen = errors.New("tss: backend already opened")

	// ErrTPMNotAvailable indicates the TPM device is not available
	ErrTPMNotAvailable = errors.New("tss: TPM device not available")

	// ErrOpeningDevice is returned when the TPM device exists but could
	// not be opened.
	ErrOpeningDevice = errors.New("tss: failed to open device")

	// ErrSimulatorUnreachable is returned when the TPM server cannot be
	// reached over TCP or does not answer as a TPM 2.0.
	ErrSimulatorUnreachable = errors.New("tss: TPM server unreachable")

	// ErrNotProvisioned is returned by Open when the salt key or a key
	// slot cannot be read at its persistent handle.
	ErrNotProvisioned = errors.New("tss: persistent handles not provisioned")
)
