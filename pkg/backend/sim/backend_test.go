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

package sim

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"testing"

	"github.com/jeremyhahn/go-trustanchor/pkg/types"
	"github.com/spf13/afero"
)

const testMachineID = "0123456789abcdef0123456789abcdef\n"

// newTestBackend creates an opened simulation backend with an in-memory
// machine id file
func newTestBackend(t *testing.T) types.TrustAnchor {
	t.Helper()

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/etc/machine-id", []byte(testMachineID), 0644); err != nil {
		t.Fatalf("Failed to write machine id: %v", err)
	}

	ta, err := NewBackend(&Config{Fs: fs})
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	if err := ta.Open(); err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	t.Cleanup(func() { _ = ta.Close() })

	return ta
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("Bad hex constant %q: %v", s, err)
	}
	return b
}

func TestNewBackend_Defaults(t *testing.T) {
	cfg := &Config{}
	ta, err := NewBackend(cfg)
	if err != nil {
		t.Fatalf("NewBackend failed: %v", err)
	}
	if ta == nil {
		t.Fatal("NewBackend returned nil")
	}
	if cfg.MachineIDPath != "/etc/machine-id" {
		t.Errorf("MachineIDPath default = %q", cfg.MachineIDPath)
	}
	if cfg.Logger == nil || cfg.Fs == nil {
		t.Error("Validate did not fill Logger/Fs defaults")
	}
}

func TestLifecycle(t *testing.T) {
	ta, err := NewBackend(&Config{Fs: afero.NewMemMapFs()})
	if err != nil {
		t.Fatalf("NewBackend failed: %v", err)
	}

	// Operations before Open fail.
	if _, err := ta.GetRandom(8); !errors.Is(err, ErrNotOpen) {
		t.Errorf("GetRandom before Open = %v, want ErrNotOpen", err)
	}
	if err := ta.SelfTest(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("SelfTest before Open = %v, want ErrNotOpen", err)
	}
	if err := ta.Close(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Close before Open = %v, want ErrNotOpen", err)
	}

	if err := ta.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := ta.Open(); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("Second Open = %v, want ErrAlreadyOpen", err)
	}

	if err := ta.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := ta.Close(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Second Close = %v, want ErrNotOpen", err)
	}
	if _, err := ta.GetRandom(8); !errors.Is(err, ErrNotOpen) {
		t.Errorf("GetRandom after Close = %v, want ErrNotOpen", err)
	}

	// A closed instance cannot be reopened.
	if err := ta.Open(); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("Open after Close = %v, want ErrAlreadyOpen", err)
	}
}

func TestDeriveKey_Vectors(t *testing.T) {
	ta := newTestBackend(t)

	tests := []struct {
		name   string
		dv     []byte
		slot   uint8
		keyLen int
		want   string
	}{
		{
			name:   "Slot0_Ones",
			dv:     bytes.Repeat([]byte{0x01}, types.LenDV),
			slot:   0,
			keyLen: 32,
			want:   "8df3033cf2d9ffaf853fecb97c4871601955219d0b6035e1bd2ea0f2ac353e66",
		},
		{
			name:   "Slot1_Ones",
			dv:     bytes.Repeat([]byte{0x01}, types.LenDV),
			slot:   1,
			keyLen: 32,
			want:   "95d516efce154a39dea247f0ca3e0fc10f02984af5714db5641279b2c85a9dd0",
		},
		{
			name:   "Slot0_Default",
			dv:     []byte("default!"),
			slot:   0,
			keyLen: 32,
			want:   "4ab1e28f0300ff9dfdd963b90283f0efc782dcf7b495b7b8ca29018f1d5b1fb8",
		},
		{
			name:   "Slot1_Default",
			dv:     []byte("default!"),
			slot:   1,
			keyLen: 32,
			want:   "0980529c8aeb8500493d4e3900cab99b8f2a17857383b52df7385f7e784eb964",
		},
		{
			name:   "Slot0_Prefix16",
			dv:     bytes.Repeat([]byte{0x01}, types.LenDV),
			slot:   0,
			keyLen: 16,
			want:   "8df3033cf2d9ffaf853fecb97c487160",
		},
		{
			name:   "ZeroLength",
			dv:     bytes.Repeat([]byte{0x01}, types.LenDV),
			slot:   0,
			keyLen: 0,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ta.DeriveKey(tt.dv, tt.slot, tt.keyLen)
			if err != nil {
				t.Fatalf("DeriveKey failed: %v", err)
			}
			if !bytes.Equal(got, mustHex(t, tt.want)) {
				t.Errorf("DeriveKey = %x, want %s", got, tt.want)
			}
		})
	}
}

func TestDeriveKey_Validation(t *testing.T) {
	ta := newTestBackend(t)

	goodDV := bytes.Repeat([]byte{0x01}, types.LenDV)

	tests := []struct {
		name    string
		dv      []byte
		slot    uint8
		keyLen  int
		wantErr error
	}{
		{"BadSlot", goodDV, 2, 32, types.ErrInvalidKeySlot},
		{"BadSlotMax", goodDV, 255, 32, types.ErrInvalidKeySlot},
		{"ShortDV", goodDV[:7], 0, 32, types.ErrInvalidDVLength},
		{"LongDV", append(goodDV, 0x01), 0, 32, types.ErrInvalidDVLength},
		{"NilDV", nil, 0, 32, types.ErrInvalidDVLength},
		{"NegativeLen", goodDV, 0, -1, types.ErrInvalidKeyLength},
		{"OverMaxLen", goodDV, 0, types.LenKeyMax + 1, types.ErrInvalidKeyLength},
		// The key slot is checked first, then the dv, then the length.
		{"SlotBeforeDV", nil, 2, 64, types.ErrInvalidKeySlot},
		{"DVBeforeLen", nil, 0, 64, types.ErrInvalidDVLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ta.DeriveKey(tt.dv, tt.slot, tt.keyLen)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DeriveKey error = %v, want %v", err, tt.wantErr)
			}
			if types.Code(err) == types.CodeSuccess {
				t.Error("DeriveKey validation error mapped to success")
			}
		})
	}
}

func TestDeriveKey_ValidationBeforeOpen(t *testing.T) {
	ta, err := NewBackend(&Config{Fs: afero.NewMemMapFs()})
	if err != nil {
		t.Fatalf("NewBackend failed: %v", err)
	}

	// Argument validation runs before the open check.
	if _, err := ta.DeriveKey(nil, 7, 32); !errors.Is(err, types.ErrInvalidKeySlot) {
		t.Errorf("DeriveKey = %v, want ErrInvalidKeySlot", err)
	}
	goodDV := bytes.Repeat([]byte{0x01}, types.LenDV)
	if _, err := ta.DeriveKey(goodDV, 0, 32); !errors.Is(err, ErrNotOpen) {
		t.Errorf("DeriveKey = %v, want ErrNotOpen", err)
	}
}

func TestGetRandom(t *testing.T) {
	ta := newTestBackend(t)

	buf, err := ta.GetRandom(64)
	if err != nil {
		t.Fatalf("GetRandom failed: %v", err)
	}
	if len(buf) != 64 {
		t.Errorf("GetRandom returned %d bytes, want 64", len(buf))
	}

	buf2, err := ta.GetRandom(64)
	if err != nil {
		t.Fatalf("GetRandom failed: %v", err)
	}
	if bytes.Equal(buf, buf2) {
		t.Error("Consecutive GetRandom calls returned identical bytes")
	}

	empty, err := ta.GetRandom(0)
	if err != nil {
		t.Fatalf("GetRandom(0) failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("GetRandom(0) returned %d bytes", len(empty))
	}

	if _, err := ta.GetRandom(-1); !errors.Is(err, types.ErrTrustAnchor) {
		t.Errorf("GetRandom(-1) = %v, want ErrTrustAnchor", err)
	}
}

func TestDeviceUUID(t *testing.T) {
	ta := newTestBackend(t)

	u, err := ta.DeviceUUID()
	if err != nil {
		t.Fatalf("DeviceUUID failed: %v", err)
	}
	if u.String() != "01234567-89ab-cdef-0123-456789abcdef" {
		t.Errorf("DeviceUUID = %s", u)
	}

	// The identity is stable across calls.
	u2, err := ta.DeviceUUID()
	if err != nil {
		t.Fatalf("DeviceUUID failed: %v", err)
	}
	if u != u2 {
		t.Errorf("DeviceUUID not stable: %s != %s", u, u2)
	}

	// The machine id bytes pass through untouched, so the version
	// nibble is whatever the file contains.
	if v := u[6] >> 4; v != 0x0c {
		t.Errorf("Version nibble = %x, want raw machine id byte", v)
	}
}

func TestDeviceUUID_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		missing bool
	}{
		{"MissingFile", "", true},
		{"Empty", "", false},
		{"TooShort", "0123abcd", false},
		{"NotHex", "zz23456789abcdef0123456789abcdef", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if !tt.missing {
				if err := afero.WriteFile(fs, "/etc/machine-id", []byte(tt.content), 0644); err != nil {
					t.Fatalf("Failed to write machine id: %v", err)
				}
			}
			ta, err := NewBackend(&Config{Fs: fs})
			if err != nil {
				t.Fatalf("NewBackend failed: %v", err)
			}
			if err := ta.Open(); err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer func() { _ = ta.Close() }()

			if _, err := ta.DeviceUUID(); !errors.Is(err, types.ErrTrustAnchor) {
				t.Errorf("DeviceUUID = %v, want ErrTrustAnchor", err)
			}
		})
	}
}

func TestSelfTest(t *testing.T) {
	ta := newTestBackend(t)
	if err := ta.SelfTest(); err != nil {
		t.Errorf("SelfTest failed: %v", err)
	}
}

func TestVersion(t *testing.T) {
	ta, err := NewBackend(&Config{Fs: afero.NewMemMapFs()})
	if err != nil {
		t.Fatalf("NewBackend failed: %v", err)
	}

	// Version needs no open connection.
	v := ta.Version()
	if v.Backend != types.BackendSimulation {
		t.Errorf("Backend = %v, want BackendSimulation", v.Backend)
	}
	if v.String() != "1.2.0" {
		t.Errorf("Version = %s, want 1.2.0", v)
	}
}

func TestConcurrentDeriveKey(t *testing.T) {
	ta := newTestBackend(t)

	slot0Key := make([]byte, types.LenKeyMax)
	for i := range slot0Key {
		slot0Key[i] = byte(i)
	}

	const numGoroutines = 8
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			dv := bytes.Repeat([]byte{byte(id)}, types.LenDV)
			for j := 0; j < 50; j++ {
				got, err := ta.DeriveKey(dv, 0, types.LenKeyMax)
				if err != nil {
					t.Errorf("DeriveKey failed: %v", err)
					return
				}
				mac := hmac.New(sha256.New, slot0Key)
				mac.Write(dv)
				if !bytes.Equal(got, mac.Sum(nil)) {
					t.Errorf("DeriveKey mismatch for goroutine %d", id)
					return
				}
			}
		}(i)
	}

	wg.Wait()
}
