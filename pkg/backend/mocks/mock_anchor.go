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

// Package mocks provides a scriptable trust anchor for tests that need
// behavior the real backends cannot produce, such as an unstable device
// identity or a broken random number generator.
package mocks

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
)

// DefaultUUID is the device identity reported when no DeviceUUIDFunc is
// configured.
var DefaultUUID = uuid.MustParse("00010203-0405-4607-8809-0a0b0c0d0e0f")

// DefaultKey returns the deterministic HMAC key behind the default
// DeriveKey behavior for a slot, so tests can compute expected output.
func DefaultKey(slot uint8) []byte {
	key := make([]byte, types.LenKeyMax)
	for i := range key {
		key[i] = slot + 1
	}
	return key
}

// MockAnchor is a mock implementation of types.TrustAnchor for testing.
//
// Every method delegates to its XxxFunc field when one is set. Without
// an override the mock behaves like a healthy module: contract argument
// validation, deterministic per-slot HMAC keys, real random bytes and a
// fixed device identity.
type MockAnchor struct {
	mu sync.Mutex

	// Configurable behavior
	OpenFunc       func() error
	CloseFunc      func() error
	DeriveKeyFunc  func(dv []byte, keySlot uint8, keyLen int) ([]byte, error)
	GetRandomFunc  func(length int) ([]byte, error)
	DeviceUUIDFunc func() (uuid.UUID, error)
	SelfTestFunc   func() error
	VersionFunc    func() types.Version

	// Call tracking
	OpenCalls       int
	CloseCalls      int
	DeriveKeyCalls  []uint8
	GetRandomCalls  []int
	DeviceUUIDCalls int
	SelfTestCalls   int
	VersionCalls    int

	// State
	opened bool
	closed bool
}

var _ types.TrustAnchor = (*MockAnchor)(nil)

// NewMockAnchor creates a new MockAnchor with default behavior.
func NewMockAnchor() *MockAnchor {
	return &MockAnchor{}
}

// Open marks the anchor open. Like the real backends, a closed instance
// cannot be reopened.
func (m *MockAnchor) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OpenCalls++

	if m.OpenFunc != nil {
		return m.OpenFunc()
	}

	if m.opened || m.closed {
		return fmt.Errorf("anchor is already open")
	}
	m.opened = true
	return nil
}

// Close marks the anchor closed.
func (m *MockAnchor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}

	if !m.opened {
		return fmt.Errorf("anchor is not open")
	}
	m.opened = false
	m.closed = true
	return nil
}

// DeriveKey derives keyLen bytes as HMAC-SHA256 under the fixed
// per-slot key from DefaultKey.
func (m *MockAnchor) DeriveKey(dv []byte, keySlot uint8, keyLen int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeriveKeyCalls = append(m.DeriveKeyCalls, keySlot)

	if m.DeriveKeyFunc != nil {
		return m.DeriveKeyFunc(dv, keySlot, keyLen)
	}

	if keySlot >= types.KeySlotCount {
		return nil, types.ErrInvalidKeySlot
	}
	if len(dv) != types.LenDV {
		return nil, types.ErrInvalidDVLength
	}
	if keyLen < 0 || keyLen > types.LenKeyMax {
		return nil, types.ErrInvalidKeyLength
	}
	if !m.opened {
		return nil, fmt.Errorf("anchor is not open")
	}

	mac := hmac.New(sha256.New, DefaultKey(keySlot))
	mac.Write(dv)
	return mac.Sum(nil)[:keyLen], nil
}

// GetRandom returns length real random bytes.
func (m *MockAnchor) GetRandom(length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetRandomCalls = append(m.GetRandomCalls, length)

	if m.GetRandomFunc != nil {
		return m.GetRandomFunc(length)
	}

	if length < 0 {
		return nil, types.ErrTrustAnchor
	}
	if !m.opened {
		return nil, fmt.Errorf("anchor is not open")
	}

	out := make([]byte, length)
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeviceUUID returns the fixed device identity.
func (m *MockAnchor) DeviceUUID() (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeviceUUIDCalls++

	if m.DeviceUUIDFunc != nil {
		return m.DeviceUUIDFunc()
	}

	if !m.opened {
		return uuid.Nil, fmt.Errorf("anchor is not open")
	}
	return DefaultUUID, nil
}

// SelfTest always passes.
func (m *MockAnchor) SelfTest() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SelfTestCalls++

	if m.SelfTestFunc != nil {
		return m.SelfTestFunc()
	}

	if !m.opened {
		return fmt.Errorf("anchor is not open")
	}
	return nil
}

// Version reports the simulation backend type. Like the real backends,
// it works without an open anchor.
func (m *MockAnchor) Version() types.Version {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.VersionCalls++

	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return types.NewVersion(types.BackendSimulation)
}
