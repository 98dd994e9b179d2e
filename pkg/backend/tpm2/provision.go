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

package tpm2

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"
	"github.com/jeremyhahn/go-trustanchor/pkg/logging"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
)

// dupPolicyDigest is the SHA-256 policy digest of
// TPM2_PolicyCommandCode(TPM2_CC_Duplicate). An object carrying it can
// only ever be authorized for duplication, which is the one operation
// the import path needs.
var dupPolicyDigest = []byte{
	0xbe, 0xf5, 0x6b, 0x8c, 0x1c, 0xc8, 0x4e, 0x11,
	0xed, 0xd7, 0x17, 0x52, 0x8d, 0x2c, 0xd9, 0x93,
	0x56, 0xbd, 0x2b, 0xbf, 0x8f, 0x01, 0x52, 0x09,
	0xc3, 0xf8, 0x4a, 0xee, 0xab, 0xa8, 0xe8, 0xa2,
}

// ProvisionResult reports what provisioning installed on the module.
type ProvisionResult struct {
	// Commitments holds SHA-256(seed||key) per slot for imported key
	// material, nil for keys generated inside the module. The TPM
	// enforces the same binding when the external key is loaded.
	Commitments [types.KeySlotCount][]byte
}

// Provision prepares a TPM for use as a trust anchor:
//
//  1. Whatever occupies the three configured persistent handles is
//     evicted.
//  2. A storage primary (RSA-2048 restricted decrypt) is created under
//     the owner hierarchy and persisted at the salt handle. It salts
//     runtime sessions and parents the slot keys.
//  3. Each key slot receives an HMAC-SHA256 key: generated inside the
//     module when no material is supplied for the slot, or imported
//     through the duplication path when a 32-byte key is given. An
//     imported key may carry its originator's obfuscation seed so the
//     commitment matches the originator's records.
//
// Provisioning is an operator workflow, so unlike the runtime interface
// it returns full error detail.
func Provision(config *Config, slotKeys [types.KeySlotCount]types.SlotKey) (*ProvisionResult, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := config.Logger

	for slot := range slotKeys {
		if err := validateSlotKey(slot, slotKeys[slot]); err != nil {
			return nil, err
		}
	}

	conn, err := openTransport(config, logger)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	saltHandle := tpm2.TPMHandle(config.SaltHandle)
	slotHandles := [types.KeySlotCount]tpm2.TPMHandle{
		tpm2.TPMHandle(config.Slot0Handle),
		tpm2.TPMHandle(config.Slot1Handle),
	}

	evictExisting(conn, logger, saltHandle)
	for _, handle := range slotHandles {
		evictExisting(conn, logger, handle)
	}

	logger.Infof("tpm2: creating storage primary at 0x%x", config.SaltHandle)
	primary, err := tpm2.CreatePrimary{
		PrimaryHandle: tpm2.TPMRHOwner,
		InPublic:      tpm2.New2B(tpm2.RSASRKTemplate),
	}.Execute(conn)
	if err != nil {
		return nil, fmt.Errorf("tpm2: failed to create storage primary: %w", err)
	}
	if err := persist(conn, primary.ObjectHandle, primary.Name, saltHandle); err != nil {
		flush(conn, logger, primary.ObjectHandle)
		return nil, err
	}
	flush(conn, logger, primary.ObjectHandle)

	result := &ProvisionResult{}
	for slot, slotKey := range slotKeys {
		if slotKey.Generate() {
			logger.Infof("tpm2: generating key slot %d at 0x%x",
				slot, uint32(slotHandles[slot]))
			if err := generateSlotKey(conn, logger, saltHandle, primary.Name, slotHandles[slot]); err != nil {
				return nil, err
			}
			continue
		}
		logger.Infof("tpm2: importing key slot %d at 0x%x",
			slot, uint32(slotHandles[slot]))
		commitment, err := importSlotKey(conn, logger, saltHandle, primary.Name, slotHandles[slot], slotKey)
		if err != nil {
			return nil, err
		}
		result.Commitments[slot] = commitment
	}

	return result, nil
}

// validateSlotKey checks the length constraints on provisioning input
// before any TPM state is touched.
func validateSlotKey(slot int, k types.SlotKey) error {
	if k.Generate() {
		if k.Seed != nil {
			return fmt.Errorf("tpm2: slot %d has a seed but no key material", slot)
		}
		return nil
	}
	if len(k.Key) != types.LenKeyMax {
		return fmt.Errorf("tpm2: slot %d key material must be %d bytes, got %d",
			slot, types.LenKeyMax, len(k.Key))
	}
	if k.Seed != nil && len(k.Seed) != sha256.Size {
		return fmt.Errorf("tpm2: slot %d seed must be %d bytes, got %d",
			slot, sha256.Size, len(k.Seed))
	}
	return nil
}

// generateSlotKey creates an HMAC-SHA256 key inside the module under the
// storage primary and persists it at the slot handle. The key material
// never exists outside the TPM.
func generateSlotKey(
	conn transport.TPM,
	logger *logging.Logger,
	parentHandle tpm2.TPMHandle,
	parentName tpm2.TPM2BName,
	slotHandle tpm2.TPMHandle) error {

	createRsp, err := tpm2.Create{
		ParentHandle: tpm2.NamedHandle{
			Handle: parentHandle,
			Name:   parentName,
		},
		InPublic: tpm2.New2B(hmacKeyTemplate),
	}.Execute(conn)
	if err != nil {
		return fmt.Errorf("tpm2: failed to create slot key: %w", err)
	}

	loadRsp, err := tpm2.Load{
		ParentHandle: tpm2.NamedHandle{
			Handle: parentHandle,
			Name:   parentName,
		},
		InPrivate: createRsp.OutPrivate,
		InPublic:  createRsp.OutPublic,
	}.Execute(conn)
	if err != nil {
		return fmt.Errorf("tpm2: failed to load slot key: %w", err)
	}
	defer flush(conn, logger, loadRsp.ObjectHandle)

	return persist(conn, loadRsp.ObjectHandle, loadRsp.Name, slotHandle)
}

// importSlotKey installs externally generated key material through the
// duplication path: the key is loaded under the null hierarchy with a
// policy restricting it to duplication, duplicated to the storage
// primary, imported, loaded and persisted at the slot handle. The TPM
// rejects the external load unless unique equals SHA-256(seed||key), so
// the returned commitment is enforced by the module itself.
func importSlotKey(
	conn transport.TPM,
	logger *logging.Logger,
	parentHandle tpm2.TPMHandle,
	parentName tpm2.TPM2BName,
	slotHandle tpm2.TPMHandle,
	slotKey types.SlotKey) ([]byte, error) {

	key := slotKey.Key
	seed := slotKey.Seed
	if seed == nil {
		seed = make([]byte, sha256.Size)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("tpm2: failed to generate obfuscation seed: %w", err)
		}
	}

	sum := sha256.New()
	sum.Write(seed)
	sum.Write(key)
	commitment := sum.Sum(nil)

	pub := importKeyTemplate(commitment)
	sens := tpm2.TPMTSensitive{
		SensitiveType: tpm2.TPMAlgKeyedHash,
		SeedValue: tpm2.TPM2BDigest{
			Buffer: seed,
		},
		Sensitive: tpm2.NewTPMUSensitiveComposite(
			tpm2.TPMAlgKeyedHash,
			&tpm2.TPM2BSensitiveData{
				Buffer: key,
			},
		),
	}

	loadExtRsp, err := tpm2.LoadExternal{
		InPrivate: tpm2.New2B(sens),
		InPublic:  tpm2.New2B(pub),
		Hierarchy: tpm2.TPMRHNull,
	}.Execute(conn)
	if err != nil {
		return nil, fmt.Errorf("tpm2: failed to load external key: %w", err)
	}
	defer flush(conn, logger, loadExtRsp.ObjectHandle)

	// TPM2_Duplicate authorizes through the DUP role, which accepts
	// only a policy session asserting the Duplicate command code.
	sess, closer, err := tpm2.PolicySession(conn, tpm2.TPMAlgSHA256, 16)
	if err != nil {
		return nil, fmt.Errorf("tpm2: failed to start policy session: %w", err)
	}
	defer closer()

	if _, err := (tpm2.PolicyCommandCode{
		PolicySession: sess.Handle(),
		Code:          tpm2.TPMCCDuplicate,
	}).Execute(conn); err != nil {
		return nil, fmt.Errorf("tpm2: failed to assert duplication policy: %w", err)
	}

	dupRsp, err := tpm2.Duplicate{
		ObjectHandle: tpm2.AuthHandle{
			Handle: loadExtRsp.ObjectHandle,
			Name:   loadExtRsp.Name,
			Auth:   sess,
		},
		NewParentHandle: tpm2.NamedHandle{
			Handle: parentHandle,
			Name:   parentName,
		},
		Symmetric: tpm2.TPMTSymDef{
			Algorithm: tpm2.TPMAlgNull,
		},
	}.Execute(conn)
	if err != nil {
		return nil, fmt.Errorf("tpm2: failed to duplicate key: %w", err)
	}

	importRsp, err := tpm2.Import{
		ParentHandle: tpm2.AuthHandle{
			Handle: parentHandle,
			Name:   parentName,
			Auth:   tpm2.PasswordAuth(nil),
		},
		ObjectPublic: tpm2.New2B(pub),
		Duplicate:    dupRsp.Duplicate,
		InSymSeed:    dupRsp.OutSymSeed,
		Symmetric: tpm2.TPMTSymDef{
			Algorithm: tpm2.TPMAlgNull,
		},
	}.Execute(conn)
	if err != nil {
		return nil, fmt.Errorf("tpm2: failed to import key: %w", err)
	}

	loadRsp, err := tpm2.Load{
		ParentHandle: tpm2.AuthHandle{
			Handle: parentHandle,
			Name:   parentName,
			Auth:   tpm2.PasswordAuth(nil),
		},
		InPrivate: importRsp.OutPrivate,
		InPublic:  tpm2.New2B(pub),
	}.Execute(conn)
	if err != nil {
		return nil, fmt.Errorf("tpm2: failed to load imported key: %w", err)
	}
	defer flush(conn, logger, loadRsp.ObjectHandle)

	if err := persist(conn, loadRsp.ObjectHandle, loadRsp.Name, slotHandle); err != nil {
		return nil, err
	}
	return commitment, nil
}

// importKeyTemplate is the public area of an externally generated slot
// key: not fixed to the TPM, which import requires, restricted to the
// duplication policy and carrying the key commitment as unique.
func importKeyTemplate(unique []byte) tpm2.TPMTPublic {
	return tpm2.TPMTPublic{
		Type:    tpm2.TPMAlgKeyedHash,
		NameAlg: tpm2.TPMAlgSHA256,
		ObjectAttributes: tpm2.TPMAObject{
			UserWithAuth: true,
			SignEncrypt:  true,
			NoDA:         true,
		},
		AuthPolicy: tpm2.TPM2BDigest{
			Buffer: dupPolicyDigest,
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
		Unique: tpm2.NewTPMUPublicID(
			tpm2.TPMAlgKeyedHash,
			&tpm2.TPM2BDigest{
				Buffer: unique,
			},
		),
	}
}

// evictExisting removes whatever persistent object occupies the handle.
// An empty handle is not an error; eviction failures are reported for
// debugging only.
func evictExisting(conn transport.TPM, logger *logging.Logger, handle tpm2.TPMHandle) {
	rsp, err := tpm2.ReadPublic{
		ObjectHandle: handle,
	}.Execute(conn)
	if err != nil {
		return
	}
	logger.Debugf("tpm2: evicting existing object at 0x%x", uint32(handle))
	_, err = tpm2.EvictControl{
		Auth: tpm2.AuthHandle{
			Handle: tpm2.TPMRHOwner,
			Auth:   tpm2.PasswordAuth(nil),
		},
		ObjectHandle: &tpm2.NamedHandle{
			Handle: handle,
			Name:   rsp.Name,
		},
		PersistentHandle: handle,
	}.Execute(conn)
	if err != nil {
		logger.Debugf("tpm2: evicting 0x%x: %v", uint32(handle), err)
	}
}

// persist stores a loaded object at a persistent handle.
func persist(conn transport.TPM, objectHandle tpm2.TPMHandle, name tpm2.TPM2BName, persistentHandle tpm2.TPMHandle) error {
	_, err := tpm2.EvictControl{
		Auth: tpm2.AuthHandle{
			Handle: tpm2.TPMRHOwner,
			Auth:   tpm2.PasswordAuth(nil),
		},
		ObjectHandle: &tpm2.NamedHandle{
			Handle: objectHandle,
			Name:   name,
		},
		PersistentHandle: persistentHandle,
	}.Execute(conn)
	if err != nil {
		return fmt.Errorf("tpm2: failed to persist key at 0x%x: %w", uint32(persistentHandle), err)
	}
	return nil
}

// flush releases a transient handle, logging failures for debugging only.
func flush(conn transport.TPM, logger *logging.Logger, handle tpm2.TPMHandle) {
	if _, err := (tpm2.FlushContext{FlushHandle: handle}).Execute(conn); err != nil {
		logger.Debugf("tpm2: flushing 0x%x: %v", uint32(handle), err)
	}
}
