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
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// LenKeyMax is the maximum number of bytes DeriveKey can return.
	LenKeyMax = 32

	// LenDV is the required length of a derivation value in bytes.
	LenDV = 8

	// KeySlotCount is the number of key slots every backend provides.
	KeySlotCount = 2
)

// Library version, reported by every backend through Version().
const (
	VersionMajor = 1
	VersionMinor = 2
	VersionPatch = 0
)

// BackendType identifies the trust anchor implementation behind a
// TrustAnchor instance. The numeric values are part of the stable
// contract and must never be reordered.
type BackendType uint32

const (
	// BackendSimulation is the software simulation. It provides no
	// hardware security guarantees and exists for development and
	// regression testing on machines without a TPM.
	BackendSimulation BackendType = 0

	// BackendTPMTSS is a TPM 2.0 accessed through a TSS-style stack
	// that holds an authorization session open for the lifetime of
	// the connection.
	BackendTPMTSS BackendType = 1

	// BackendTPMDirect is a TPM 2.0 accessed through the direct
	// command interface with per-command encrypted sessions.
	BackendTPMDirect BackendType = 2
)

// String returns the configuration name of the backend type.
func (t BackendType) String() string {
	switch t {
	case BackendSimulation:
		return "sim"
	case BackendTPMTSS:
		return "tss"
	case BackendTPMDirect:
		return "tpm2"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// ParseBackendType converts a configuration string to a BackendType.
func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sim", "simulation":
		return BackendSimulation, nil
	case "tss":
		return BackendTPMTSS, nil
	case "tpm2":
		return BackendTPMDirect, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownBackend, s)
	}
}

// Version describes a backend implementation and the library version
// it implements.
type Version struct {
	Backend BackendType `json:"backend" yaml:"backend"`
	Major   uint32      `json:"major" yaml:"major"`
	Minor   uint32      `json:"minor" yaml:"minor"`
	Patch   uint32      `json:"patch" yaml:"patch"`
}

// NewVersion returns the current library version tagged with the
// given backend type.
func NewVersion(backend BackendType) Version {
	return Version{
		Backend: backend,
		Major:   VersionMajor,
		Minor:   VersionMinor,
		Patch:   VersionPatch,
	}
}

// String returns the semantic version string, e.g. "1.2.0".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// TrustAnchor is the uniform interface to a hardware trust anchor or
// its software simulation. Implementations are safe for concurrent
// use; operations on one instance are serialized internally.
//
// An instance must be opened exactly once before use and closed
// exactly once after. A closed instance cannot be reopened; create a
// new one instead.
type TrustAnchor interface {
	// Open establishes the connection to the trust anchor. On
	// hardware backends this includes transport setup and session
	// establishment, so a failure here typically means the module
	// is unreachable or not provisioned.
	Open() error

	// Close tears down the session and releases the transport.
	// Session cleanup is best-effort; transport release failures
	// are reported.
	Close() error

	// DeriveKey derives keyLen bytes from the key stored in keySlot
	// and the 8-byte derivation value dv. The same (slot, dv) pair
	// always yields the same bytes on the same device. keySlot must
	// be 0 or 1, len(dv) must be LenDV and keyLen must be between 0
	// and LenKeyMax. Argument validation happens before any
	// communication with the trust anchor.
	DeriveKey(dv []byte, keySlot uint8, keyLen int) ([]byte, error)

	// GetRandom returns exactly length random bytes from the trust
	// anchor's generator.
	GetRandom(length int) ([]byte, error)

	// DeviceUUID returns the device-unique identifier derived from
	// the trust anchor's identity key.
	DeviceUUID() (uuid.UUID, error)

	// SelfTest runs the trust anchor's built-in diagnostic and
	// returns an error if it reports a failure.
	SelfTest() error

	// Version reports the backend type and library version.
	Version() Version
}

// SlotKey is the provisioning input for one key slot.
//
// A nil Key asks the backend to generate the slot key inside the
// module. A 32-byte Key is imported; the optional 32-byte Seed is the
// obfuscation seed bound to it, so that the commitment
// SHA-256(seed||key) matches the originator's records. When Key is set
// and Seed is nil the backend draws a fresh random seed.
type SlotKey struct {
	Key  []byte
	Seed []byte
}

// Generate reports whether the slot key is to be generated inside the
// module rather than imported.
func (k SlotKey) Generate() bool {
	return k.Key == nil
}
