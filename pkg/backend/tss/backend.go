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

import (
	"fmt"
	"sync"

	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-trustanchor/pkg/logging"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
)

// deviceIDLabel is the fixed message keyed by the endorsement identity
// key to derive the device UUID.
const deviceIDLabel = "DEVICEID"

// maxRandomRequest caps a single TPM2_GetRandom request at the size of
// its 16-bit wire field. The TPM is free to return fewer bytes per round.
const maxRandomRequest = 0xffff

// hmacKeyTemplate is the public area of an HMAC-SHA256 signing key. It is
// used both for the transient endorsement primary that derives the device
// identity and for slot keys generated on the module during provisioning.
var hmacKeyTemplate = tpm2.TPMTPublic{
	Type:    tpm2.TPMAlgKeyedHash,
	NameAlg: tpm2.TPMAlgSHA256,
	ObjectAttributes: tpm2.TPMAObject{
		FixedTPM:            true,
		FixedParent:         true,
		SensitiveDataOrigin: true,
		UserWithAuth:        true,
		SignEncrypt:         true,
		NoDA:                true,
	},
	Parameters: tpm2.NewTPMUPublicParms(
		tpm2.TPMAlgKeyedHash,
		&tpm2.TPMSKeyedHashParms{
			Scheme: tpm2.TPMTKeyedHashScheme{
				Scheme: tpm2.TPMAlgHMAC,
				Details: tpm2.NewTPMUSchemeKeyedHash(
					tpm2.TPMAlgHMAC,
					&tpm2.TPMSSchemeHMAC{
						HashAlg: tpm2.TPMAlgSHA256,
					},
				),
			},
		},
	),
}

// slotRef caches the persistent handle and name of one HMAC key slot.
type slotRef struct {
	handle tpm2.TPMHandle
	name   tpm2.TPM2BName
}

// Backend is a trust anchor backed by a TPM 2.0 module through a
// software-stack style connection: sessions are negotiated once at Open
// and reused for every command until Close.
//
// Thread-safe: Yes, a mutex serializes all operations on one instance.
type Backend struct {
	cfg         *Config
	logger      *logging.Logger
	conn        transport.TPMCloser
	slots       [types.KeySlotCount]slotRef
	saltHandle  tpm2.TPMHandle
	deriveSess  tpm2.Session
	closeDerive func() error
	randomSess  tpm2.Session
	closeRandom func() error
	opened      bool
	closed      bool
	mu          sync.Mutex
}

var _ types.TrustAnchor = (*Backend)(nil)

// NewBackend creates a new TSS backend with the given configuration.
// The returned instance is not connected until Open is called.
func NewBackend(config *Config) (types.TrustAnchor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	b := &Backend{
		cfg:        config,
		logger:     config.Logger,
		saltHandle: tpm2.TPMHandle(config.SaltHandle),
	}
	b.slots[0].handle = tpm2.TPMHandle(config.Slot0Handle)
	b.slots[1].handle = tpm2.TPMHandle(config.Slot1Handle)
	return b, nil
}

// Open connects to the TPM, reads the public areas at the provisioned
// persistent handles and starts the two long-lived encrypted sessions
// the instance operates with. A closed instance cannot be reopened.
func (b *Backend) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.opened || b.closed {
		return ErrAlreadyOpen
	}

	conn, err := openTransport(b.cfg, b.logger)
	if err != nil {
		return err
	}

	// The salt key public area is needed to construct the sessions and
	// the slot names are needed to authorize commands under them.
	saltPub, _, err := readPublic(conn, b.saltHandle)
	if err != nil {
		b.logger.Debugf("tss: reading salt key 0x%x: %v", uint32(b.saltHandle), err)
		_ = conn.Close()
		return ErrNotProvisioned
	}
	for i := range b.slots {
		_, name, err := readPublic(conn, b.slots[i].handle)
		if err != nil {
			b.logger.Debugf("tss: reading key slot %d at 0x%x: %v",
				i, uint32(b.slots[i].handle), err)
			_ = conn.Close()
			return ErrNotProvisioned
		}
		b.slots[i].name = name
	}

	// A session's encryption direction is fixed when it is created, so
	// key derivation and random generation each hold their own. Both are
	// salted with the persistent storage key and encrypt parameters with
	// AES-128-CFB.
	deriveSess, closeDerive, err := tpm2.HMACSession(
		conn,
		tpm2.TPMAlgSHA256,
		16,
		tpm2.AESEncryption(128, tpm2.EncryptInOut),
		tpm2.Salted(b.saltHandle, *saltPub))
	if err != nil {
		b.logger.Debugf("tss: starting derivation session: %v", err)
		_ = conn.Close()
		return types.ErrTrustAnchor
	}
	randomSess, closeRandom, err := tpm2.HMACSession(
		conn,
		tpm2.TPMAlgSHA256,
		16,
		tpm2.AESEncryption(128, tpm2.EncryptOut),
		tpm2.Salted(b.saltHandle, *saltPub))
	if err != nil {
		b.logger.Debugf("tss: starting random session: %v", err)
		if cerr := closeDerive(); cerr != nil {
			b.logger.Debugf("tss: ending derivation session: %v", cerr)
		}
		_ = conn.Close()
		return types.ErrTrustAnchor
	}

	b.conn = conn
	b.deriveSess = deriveSess
	b.closeDerive = closeDerive
	b.randomSess = randomSess
	b.closeRandom = closeRandom
	b.opened = true
	b.logger.Debug("tss: backend opened")
	return nil
}

// Close ends the sessions and releases the TPM connection. Session
// teardown is best-effort; further operations return ErrNotOpen.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened {
		return ErrNotOpen
	}
	b.opened = false
	b.closed = true

	if err := b.closeDerive(); err != nil {
		b.logger.Debugf("tss: ending derivation session: %v", err)
	}
	if err := b.closeRandom(); err != nil {
		b.logger.Debugf("tss: ending random session: %v", err)
	}
	b.deriveSess = nil
	b.randomSess = nil
	b.closeDerive = nil
	b.closeRandom = nil

	err := b.conn.Close()
	b.conn = nil
	if err != nil {
		b.logger.Debugf("tss: closing connection: %v", err)
		return types.ErrTrustAnchor
	}
	b.logger.Debug("tss: backend closed")
	return nil
}

// DeriveKey derives keyLen bytes from the derivation value dv using the
// HMAC-SHA256 key in the given slot. The computation runs inside the TPM
// under the held derivation session, which encrypts the parameters in
// both directions.
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

	slot := b.slots[keySlot]
	rsp, err := tpm2.Hmac{
		Handle: tpm2.AuthHandle{
			Handle: slot.handle,
			Name:   slot.name,
			Auth:   b.deriveSess,
		},
		Buffer:  tpm2.TPM2BMaxBuffer{Buffer: dv},
		HashAlg: tpm2.TPMAlgSHA256,
	}.Execute(b.conn)
	if err != nil {
		b.logger.Debugf("tss: TPM2_HMAC slot %d: %v", keySlot, err)
		return nil, types.ErrTrustAnchor
	}

	digest := rsp.OutHMAC.Buffer
	if len(digest) < keyLen {
		b.logger.Debugf("tss: short HMAC digest: %d bytes", len(digest))
		return nil, types.ErrTrustAnchor
	}
	return digest[:keyLen], nil
}

// GetRandom returns length bytes from the TPM random number generator.
// Responses are encrypted under the held random session. Short TPM
// returns are accumulated; a round yielding no bytes at all is an error.
func (b *Backend) GetRandom(length int) ([]byte, error) {
	if length < 0 {
		return nil, types.ErrTrustAnchor
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened {
		return nil, ErrNotOpen
	}

	out := make([]byte, 0, length)
	for len(out) < length {
		remaining := length - len(out)
		if remaining > maxRandomRequest {
			remaining = maxRandomRequest
		}

		rsp, err := tpm2.GetRandom{
			BytesRequested: uint16(remaining),
		}.Execute(b.conn, b.randomSess)
		if err != nil {
			b.logger.Debugf("tss: TPM2_GetRandom: %v", err)
			return nil, types.ErrTrustAnchor
		}
		if len(rsp.RandomBytes.Buffer) == 0 {
			b.logger.Debug("tss: TPM2_GetRandom returned no bytes")
			return nil, types.ErrTrustAnchor
		}
		out = append(out, rsp.RandomBytes.Buffer...)
	}
	return out[:length], nil
}

// DeviceUUID derives a stable device identity from the endorsement
// hierarchy: a primary HMAC key is recreated from the endorsement seed,
// keyed over a fixed label, and the first 16 digest bytes are shaped
// into an RFC 4122 version 4 UUID.
func (b *Backend) DeviceUUID() (uuid.UUID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened {
		return uuid.Nil, ErrNotOpen
	}

	createRsp, err := tpm2.CreatePrimary{
		PrimaryHandle: tpm2.TPMRHEndorsement,
		InPublic:      tpm2.New2B(hmacKeyTemplate),
	}.Execute(b.conn)
	if err != nil {
		b.logger.Debugf("tss: TPM2_CreatePrimary endorsement: %v", err)
		return uuid.Nil, types.ErrTrustAnchor
	}

	hmacRsp, hmacErr := tpm2.Hmac{
		Handle: tpm2.AuthHandle{
			Handle: createRsp.ObjectHandle,
			Name:   createRsp.Name,
			Auth:   tpm2.PasswordAuth(nil),
		},
		Buffer:  tpm2.TPM2BMaxBuffer{Buffer: []byte(deviceIDLabel)},
		HashAlg: tpm2.TPMAlgSHA256,
	}.Execute(b.conn)

	// The transient key is flushed whether or not the HMAC succeeded.
	if _, err := (tpm2.FlushContext{FlushHandle: createRsp.ObjectHandle}).Execute(b.conn); err != nil {
		b.logger.Debugf("tss: flushing device identity key: %v", err)
	}
	if hmacErr != nil {
		b.logger.Debugf("tss: TPM2_HMAC device identity: %v", hmacErr)
		return uuid.Nil, types.ErrTrustAnchor
	}

	return uuidFromDigest(hmacRsp.OutHMAC.Buffer)
}

// SelfTest instructs the TPM to run its full self test and checks the
// result.
func (b *Backend) SelfTest() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened {
		return ErrNotOpen
	}

	if _, err := (tpm2.SelfTest{FullTest: true}).Execute(b.conn); err != nil {
		b.logger.Debugf("tss: TPM2_SelfTest: %v", err)
		return types.ErrTrustAnchor
	}
	rsp, err := tpm2.GetTestResult{}.Execute(b.conn)
	if err != nil {
		b.logger.Debugf("tss: TPM2_GetTestResult: %v", err)
		return types.ErrTrustAnchor
	}
	if rsp.TestResult != tpm2.TPMRCSuccess {
		b.logger.Debugf("tss: self test result: 0x%x", uint32(rsp.TestResult))
		return types.ErrTrustAnchor
	}
	return nil
}

// Version returns the backend type and library version.
func (b *Backend) Version() types.Version {
	return types.NewVersion(types.BackendTPMTSS)
}

// readPublic reads the public area and name of an object by handle.
func readPublic(conn transport.TPM, handle tpm2.TPMHandle) (*tpm2.TPMTPublic, tpm2.TPM2BName, error) {
	rsp, err := tpm2.ReadPublic{
		ObjectHandle: handle,
	}.Execute(conn)
	if err != nil {
		return nil, tpm2.TPM2BName{}, err
	}
	pub, err := rsp.OutPublic.Contents()
	if err != nil {
		return nil, tpm2.TPM2BName{}, err
	}
	return pub, rsp.Name, nil
}

// uuidFromDigest shapes the first 16 digest bytes into an RFC 4122
// version 4 UUID.
func uuidFromDigest(digest []byte) (uuid.UUID, error) {
	if len(digest) < 16 {
		return uuid.Nil, types.ErrTrustAnchor
	}
	var u uuid.UUID
	copy(u[:], digest[:16])
	u[6] = (u[6] & 0x0f) | 0x40
	u[8] = (u[8] & 0x3f) | 0x80
	return u, nil
}
