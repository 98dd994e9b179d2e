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

// Package tss provides a types.TrustAnchor implementation backed by a
// TPM 2.0 module in the manner of a TSS feature-level stack: the TPM
// connection and its encrypted sessions are negotiated once at Open and
// held until Close instead of being rebuilt per command.
//
// The two key slots are persistent KEYEDHASH/HMAC-SHA256 objects inside
// the module and key derivation runs entirely on-chip. Open starts two
// HMAC sessions salted with the persistent storage key at the salt
// handle, one encrypting key derivation parameters in both directions
// and one encrypting random output on its way back, so neither
// derivation strings nor derived keys cross the TPM link in the clear.
//
// The backend talks to the kernel resource manager by default. With
// UseSimulator set it connects over TCP to a software TPM server such as
// swtpm, which makes the same code path testable without hardware.
//
// A module must be provisioned before first use; see Provision. Opening
// an unprovisioned module fails with ErrNotProvisioned.
//
// Thread Safety:
// All operations are serialized by a mutex, making the backend safe for
// concurrent use by multiple goroutines.
//
// Usage:
//
//	config := &tss.Config{
//	    Device: "/dev/tpmrm0",
//	}
//	ta, err := tss.NewBackend(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := ta.Open(); err != nil {
//	    log.Fatal(err)
//	}
//	defer ta.Close()
//
//	key, err := ta.DeriveKey([]byte("default!"), 1, 32)
package tss
