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

package types

import "errors"

var (
	// ErrInvalidKeyLength is returned when the requested key length
	// is negative or exceeds LenKeyMax.
	ErrInvalidKeyLength = errors.New("trustanchor: invalid key length")

	// ErrInvalidDVLength is returned when the derivation value is
	// not exactly LenDV bytes.
	ErrInvalidDVLength = errors.New("trustanchor: invalid derivation value length")

	// ErrInvalidKeySlot is returned when the key slot is not 0 or 1.
	ErrInvalidKeySlot = errors.New("trustanchor: invalid key slot")

	// ErrTrustAnchor is the generic trust anchor failure. Backends
	// collapse every transport, session and command error into this
	// sentinel so that no detail about the underlying stack crosses
	// the API boundary. The detail is logged, never returned.
	ErrTrustAnchor = errors.New("trustanchor: trust anchor failure")

	// ErrUnknownBackend is returned when a backend name string is
	// not recognized.
	ErrUnknownBackend = errors.New("trustanchor: unknown backend")
)

// ReturnCode is the numeric error contract shared by all backends.
type ReturnCode uint32

const (
	CodeSuccess          ReturnCode = 0x00
	CodeInvalidKeyLength ReturnCode = 0x01
	CodeInvalidDVLength  ReturnCode = 0x02
	CodeInvalidKeySlot   ReturnCode = 0x03
	CodeTrustAnchor      ReturnCode = 0x10
)

// String returns the symbolic name of the return code.
func (rc ReturnCode) String() string {
	switch rc {
	case CodeSuccess:
		return "SUCCESS"
	case CodeInvalidKeyLength:
		return "INVALID_KEY_LENGTH"
	case CodeInvalidDVLength:
		return "INVALID_DV_LENGTH"
	case CodeInvalidKeySlot:
		return "INVALID_KEY_SLOT"
	case CodeTrustAnchor:
		return "TA_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Code maps an error returned by a TrustAnchor operation to its
// numeric return code. A nil error is CodeSuccess, the three
// validation sentinels keep their dedicated codes, and every other
// error collapses to CodeTrustAnchor.
func Code(err error) ReturnCode {
	switch {
	case err == nil:
		return CodeSuccess
	case errors.Is(err, ErrInvalidKeyLength):
		return CodeInvalidKeyLength
	case errors.Is(err, ErrInvalidDVLength):
		return CodeInvalidDVLength
	case errors.Is(err, ErrInvalidKeySlot):
		return CodeInvalidKeySlot
	default:
		return CodeTrustAnchor
	}
}
