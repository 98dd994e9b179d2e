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

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ReturnCode
	}{
		{"Nil", nil, CodeSuccess},
		{"KeyLength", ErrInvalidKeyLength, CodeInvalidKeyLength},
		{"DVLength", ErrInvalidDVLength, CodeInvalidDVLength},
		{"KeySlot", ErrInvalidKeySlot, CodeInvalidKeySlot},
		{"Generic", ErrTrustAnchor, CodeTrustAnchor},
		{"WrappedKeySlot", fmt.Errorf("derive: %w", ErrInvalidKeySlot), CodeInvalidKeySlot},
		{"WrappedDVLength", fmt.Errorf("derive: %w", ErrInvalidDVLength), CodeInvalidDVLength},
		{"UnknownBackend", ErrUnknownBackend, CodeTrustAnchor},
		{"Arbitrary", errors.New("device unreachable"), CodeTrustAnchor},
		{"WrappedArbitrary", fmt.Errorf("open: %w", errors.New("eof")), CodeTrustAnchor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestReturnCode_Values(t *testing.T) {
	// Numeric codes are part of the stable contract.
	assert.Equal(t, uint32(0x00), uint32(CodeSuccess))
	assert.Equal(t, uint32(0x01), uint32(CodeInvalidKeyLength))
	assert.Equal(t, uint32(0x02), uint32(CodeInvalidDVLength))
	assert.Equal(t, uint32(0x03), uint32(CodeInvalidKeySlot))
	assert.Equal(t, uint32(0x10), uint32(CodeTrustAnchor))
}

func TestReturnCode_String(t *testing.T) {
	tests := []struct {
		name string
		rc   ReturnCode
		want string
	}{
		{"Success", CodeSuccess, "SUCCESS"},
		{"KeyLength", CodeInvalidKeyLength, "INVALID_KEY_LENGTH"},
		{"DVLength", CodeInvalidDVLength, "INVALID_DV_LENGTH"},
		{"KeySlot", CodeInvalidKeySlot, "INVALID_KEY_SLOT"},
		{"Generic", CodeTrustAnchor, "TA_ERROR"},
		{"Unknown", ReturnCode(0xff), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rc.String())
		})
	}
}
