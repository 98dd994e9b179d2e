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

// Package encoding provides output encodings and derivation value helpers
// for the trust anchor tools.
//
// Derived keys are rendered as lowercase hex or unpadded standard base64.
// Derivation strings supplied on the command line are padded to the fixed
// derivation value length with '=' characters.
package encoding

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-trustanchor/pkg/types"
)

var (
	// ErrUnknownOutput is returned when an output encoding name is not recognized.
	ErrUnknownOutput = errors.New("unknown output encoding")

	// ErrDerivationStringTooLong is returned when a derivation string exceeds
	// the derivation value length.
	ErrDerivationStringTooLong = errors.New("derivation string too long")
)

// Output represents the encoding applied to derived bytes before printing.
type Output int

const (
	// Base64 is standard base64 with the trailing '=' padding omitted.
	Base64 Output = iota
	// Hex is lowercase hexadecimal.
	Hex
)

// String returns the string representation of the output encoding.
func (o Output) String() string {
	switch o {
	case Base64:
		return "base64"
	case Hex:
		return "hex"
	default:
		return "unknown"
	}
}

// ParseOutput converts an output encoding name to an Output.
func ParseOutput(s string) (Output, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "base64":
		return Base64, nil
	case "hex":
		return Hex, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownOutput, s)
	}
}

// EncodeToString renders data in the given output encoding.
func (o Output) EncodeToString(data []byte) (string, error) {
	switch o {
	case Base64:
		return base64.RawStdEncoding.EncodeToString(data), nil
	case Hex:
		return hex.EncodeToString(data), nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownOutput, o)
	}
}

// PadDerivationString converts a derivation string of at most types.LenDV
// characters into a full-length derivation value, filling the remainder
// with '=' characters.
func PadDerivationString(s string) ([]byte, error) {
	if len(s) > types.LenDV {
		return nil, fmt.Errorf("%w: %q is %d bytes, maximum is %d",
			ErrDerivationStringTooLong, s, len(s), types.LenDV)
	}
	dv := make([]byte, types.LenDV)
	for i := range dv {
		dv[i] = '='
	}
	copy(dv, s)
	return dv, nil
}
