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

// Package sim provides a software simulation of a hardware trust anchor.
//
// The simulation implements the full trust anchor contract without any
// hardware: the two key slots hold fixed, publicly known development keys,
// random bytes come from a non-cryptographic PRNG seeded at Open, and the
// device identity is read from the machine id file. It exists so that
// applications and the regression harness can run on machines without a
// TPM. It provides no security whatsoever and must never be used in
// production.
package sim

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-trustanchor/pkg/logging"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
	"github.com/spf13/afero"
)

// Backend is the software simulation of a trust anchor.
//
// Thread-safe: Yes, a mutex serializes all operations on one instance.
type Backend struct {
	cfg    *Config
	logger *logging.Logger
	fs     afero.Fs
	keys   [types.KeySlotCount][]byte
	rng    *rand.Rand
	opened bool
	closed bool
	mu     sync.Mutex
}

var _ types.TrustAnchor = (*Backend)(nil)

// NewBackend creates a new simulation backend with the given configuration.
// The returned instance is not connected until Open is called.
func NewBackend(config *Config) (types.TrustAnchor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	b := &Backend{
		cfg:    config,
		logger: config.Logger,
		fs:     config.Fs,
	}
	// Development keys, public by definition: slot 0 is the byte
	// sequence 0x00..0x1f, slot 1 the same sequence reversed.
	for slot := range b.keys {
		b.keys[slot] = make([]byte, types.LenKeyMax)
	}
	for i := 0; i < types.LenKeyMax; i++ {
		b.keys[0][i] = byte(i)
		b.keys[1][i] = byte(types.LenKeyMax - 1 - i)
	}
	return b, nil
}

// Open prepares the simulation for use and seeds the PRNG. A closed
// instance cannot be reopened.
func (b *Backend) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.opened || b.closed {
		return ErrAlreadyOpen
	}
	b.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	b.opened = true
	b.logger.Debug("sim: backend opened")
	return nil
}

// Close shuts the simulation down. Further operations return ErrNotOpen.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened {
		return ErrNotOpen
	}
	b.opened = false
	b.closed = true
	b.rng = nil
	b.logger.Debug("sim: backend closed")
	return nil
}

// DeriveKey returns the first keyLen bytes of HMAC-SHA256 over dv using
// the development key in the given slot.
func (b *Backend) DeriveKey(dv []byte, keySlot uint8, keyLen int) ([]byte, error) {
	if keySlot >= types.KeySlotCount {
		return nil, types.ErrInvalidKeySlot
	}
	if len(dv) != types.LenDV {
		return nil, types.ErrInvalidDVLength
	}
	if keyLen < 0 || keyLen > types.LenKeyMax {
		return nil, types.ErrInvalidKeyLength
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened {
		return nil, ErrNotOpen
	}

	mac := hmac.New(sha256.New, b.keys[keySlot])
	mac.Write(dv)
	return mac.Sum(nil)[:keyLen], nil
}

// GetRandom returns length bytes from the simulation PRNG. The PRNG is
// not cryptographic and its output must not be used as key material.
func (b *Backend) GetRandom(length int) ([]byte, error) {
	if length < 0 {
		return nil, types.ErrTrustAnchor
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened {
		return nil, ErrNotOpen
	}

	buf := make([]byte, length)
	b.rng.Read(buf)
	return buf, nil
}

// DeviceUUID reads the machine id file and returns its first 16 bytes
// as the device identity.
func (b *Backend) DeviceUUID() (uuid.UUID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened {
		return uuid.Nil, ErrNotOpen
	}

	data, err := afero.ReadFile(b.fs, b.cfg.MachineIDPath)
	if err != nil {
		b.logger.Debugf("sim: reading %s: %v", b.cfg.MachineIDPath, err)
		return uuid.Nil, types.ErrTrustAnchor
	}
	id := strings.TrimSpace(string(data))
	if len(id) < 2*16 {
		b.logger.Debugf("sim: machine id too short: %d characters", len(id))
		return uuid.Nil, types.ErrTrustAnchor
	}
	raw, err := hex.DecodeString(id[:2*16])
	if err != nil {
		b.logger.Debugf("sim: decoding machine id: %v", err)
		return uuid.Nil, types.ErrTrustAnchor
	}
	u, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, types.ErrTrustAnchor
	}
	return u, nil
}

// SelfTest always succeeds; the simulation has no diagnostics to run.
func (b *Backend) SelfTest() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened {
		return ErrNotOpen
	}
	return nil
}

// Version returns the backend type and library version.
func (b *Backend) Version() types.Version {
	return types.NewVersion(types.BackendSimulation)
}
