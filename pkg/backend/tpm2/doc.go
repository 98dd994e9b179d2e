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

// Package tpm2 provides a types.TrustAnchor implementation backed by a
// TPM 2.0 module, driven through the google go-tpm direct command API.
//
// The two key slots are persistent KEYEDHASH/HMAC-SHA256 objects inside
// the module and key derivation runs entirely on-chip. Command parameters
// travel over HMAC sessions salted with the persistent storage key at the
// salt handle and encrypted with AES-128-CFB, so neither derivation
// strings nor derived keys cross the TPM bus in the clear. The device
// identity is recreated on demand from the endorsement hierarchy seed and
// never stored.
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
//	config := &tpm2.Config{
//	    Device: "/dev/tpmrm0",
//	}
//	ta, err := tpm2.NewBackend(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := ta.Open(); err != nil {
//	    log.Fatal(err)
//	}
//	defer ta.Close()
//
//	key, err := ta.DeriveKey([]byte("default!"), 1, 32)
package tpm2
