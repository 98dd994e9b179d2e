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

package cli

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/jeremyhahn/go-trustanchor/pkg/trustanchor"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with the given arguments and
// returns the captured output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	b := new(bytes.Buffer)
	rootCmd.SetOut(b)
	rootCmd.SetErr(b)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return b.String(), err
}

// withMemFs swaps the command filesystem for an empty memory filesystem
// holding a machine id, restoring the original when the test ends.
func withMemFs(t *testing.T) afero.Fs {
	t.Helper()

	memFs := afero.NewMemMapFs()
	err := afero.WriteFile(memFs, "/etc/machine-id",
		[]byte("00112233445566778899aabbccddeeff\n"), 0o644)
	require.NoError(t, err)

	orig := fs
	fs = memFs
	t.Cleanup(func() { fs = orig })
	return memFs
}

// simKey returns the publicly known simulation development key of a slot.
func simKey(slot int) []byte {
	key := make([]byte, types.LenKeyMax)
	for i := range key {
		if slot == 0 {
			key[i] = byte(i)
		} else {
			key[i] = byte(types.LenKeyMax - 1 - i)
		}
	}
	return key
}

func TestVersion(t *testing.T) {
	withMemFs(t)

	out, err := executeCommand(t, "version", "--backend", "sim")
	require.NoError(t, err)
	assert.Contains(t, out, "HARDWARE: 0, VERSION: 1.2.0")
	assert.Contains(t, out, "CLI: dev")
}

func TestUUID(t *testing.T) {
	withMemFs(t)

	out, err := executeCommand(t, "uuid", "--backend", "sim")
	require.NoError(t, err)
	assert.Equal(t, "00112233-4455-6677-8899-aabbccddeeff\n", out)
}

func TestSelftest(t *testing.T) {
	withMemFs(t)

	out, err := executeCommand(t, "selftest", "--backend", "sim")
	require.NoError(t, err)
	assert.Equal(t, "self test passed\n", out)
}

func TestRandom(t *testing.T) {
	withMemFs(t)

	out, err := executeCommand(t, "random", "16", "--backend", "sim")
	require.NoError(t, err)
	require.Len(t, out, 33) // 16 bytes as hex plus newline
	_, err = hex.DecodeString(out[:32])
	assert.NoError(t, err)
}

func TestRandom_InvalidCount(t *testing.T) {
	withMemFs(t)

	_, err := executeCommand(t, "random", "many", "--backend", "sim")
	assert.Error(t, err)

	_, err = executeCommand(t, "random", "--backend", "sim", "--", "-5")
	assert.Error(t, err)
}

func TestPassphrase(t *testing.T) {
	withMemFs(t)

	// The derivation string is padded to "hello===" and the simulation
	// derives with HMAC-SHA256 over the development key of the slot.
	mac := hmac.New(sha256.New, simKey(0))
	mac.Write([]byte("hello==="))
	want := hex.EncodeToString(mac.Sum(nil)) + "\n"

	out, err := executeCommand(t, "passphrase", "--backend", "sim",
		"-d", "hello", "-e", "hex", "-k", "0")
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestPassphrase_DefaultsToBase64(t *testing.T) {
	withMemFs(t)

	out, err := executeCommand(t, "passphrase", "--backend", "sim",
		"-d", "default!", "-e", "base64", "-k", "1")
	require.NoError(t, err)
	// 32 bytes encode to 43 base64 characters without padding.
	assert.Len(t, out, 44)
	assert.NotContains(t, out, "=")
}

func TestPassphrase_InvalidArguments(t *testing.T) {
	withMemFs(t)

	_, err := executeCommand(t, "passphrase", "--backend", "sim",
		"-d", "morethan8chars", "-e", "base64", "-k", "1")
	assert.Error(t, err)

	_, err = executeCommand(t, "passphrase", "--backend", "sim",
		"-d", "ok", "-e", "rot13", "-k", "1")
	assert.Error(t, err)

	_, err = executeCommand(t, "passphrase", "--backend", "sim",
		"-d", "ok", "-e", "base64", "-k", "2")
	assert.Error(t, err)
}

func TestRegtest(t *testing.T) {
	memFs := withMemFs(t)

	require.NoError(t, afero.WriteFile(memFs, "/keys/slot0.bin", simKey(0), 0o600))
	require.NoError(t, afero.WriteFile(memFs, "/keys/slot1.bin", simKey(1), 0o600))

	out, err := executeCommand(t, "regtest", "--backend", "sim",
		"/keys/slot0.bin", "/keys/slot1.bin")
	require.NoError(t, err)
	assert.Contains(t, out, "Running regression tests with reference keys.")
	assert.Contains(t, out, "PASS")
	assert.NotContains(t, out, "FAIL")
}

func TestProvision_SimNotSupported(t *testing.T) {
	withMemFs(t)

	_, err := executeCommand(t, "provision", "--backend", "sim")
	assert.ErrorIs(t, err, trustanchor.ErrProvisioningNotSupported)
}

// TestConfigFile runs after the flag-driven tests: the file values stay
// loaded in viper until another file is read.
func TestConfigFile(t *testing.T) {
	memFs := withMemFs(t)
	t.Cleanup(func() { cfgFile = "" })

	require.NoError(t, afero.WriteFile(memFs, "/id",
		[]byte("ffeeddccbbaa99887766554433221100"), 0o644))
	require.NoError(t, afero.WriteFile(memFs, "/trustanchor.yaml",
		[]byte("backend: sim\nmachine_id_path: /id\n"), 0o644))

	out, err := executeCommand(t, "uuid", "--config", "/trustanchor.yaml")
	require.NoError(t, err)
	assert.Equal(t, "ffeeddcc-bbaa-9988-7766-554433221100\n", out)
}

func TestLoadSlotInput(t *testing.T) {
	memFs := withMemFs(t)

	key := simKey(0)
	seed := bytes.Repeat([]byte{0x42}, sha256.Size)
	sum := sha256.New()
	sum.Write(seed)
	sum.Write(key)
	commitment := sum.Sum(nil)

	require.NoError(t, afero.WriteFile(memFs, "/key.bin", key, 0o600))
	require.NoError(t, afero.WriteFile(memFs, "/seed.bin", seed, 0o600))
	require.NoError(t, afero.WriteFile(memFs, "/commitment.bin", commitment, 0o600))
	require.NoError(t, afero.WriteFile(memFs, "/short.bin", key[:16], 0o600))

	// No files selects generation.
	input, err := loadSlotInput(0, slotFlags{})
	require.NoError(t, err)
	assert.True(t, input.Generate())

	// Key only.
	input, err = loadSlotInput(0, slotFlags{key: "/key.bin"})
	require.NoError(t, err)
	assert.Equal(t, key, input.Key)
	assert.Nil(t, input.Seed)

	// Key with seed and matching commitment.
	input, err = loadSlotInput(0, slotFlags{
		key:        "/key.bin",
		seed:       "/seed.bin",
		commitment: "/commitment.bin",
	})
	require.NoError(t, err)
	assert.Equal(t, key, input.Key)
	assert.Equal(t, seed, input.Seed)

	// Commitment mismatch is caught before the module is touched.
	require.NoError(t, afero.WriteFile(memFs, "/wrong.bin",
		bytes.Repeat([]byte{0xff}, sha256.Size), 0o600))
	_, err = loadSlotInput(0, slotFlags{
		key:        "/key.bin",
		seed:       "/seed.bin",
		commitment: "/wrong.bin",
	})
	assert.ErrorContains(t, err, "commitment mismatch")

	// Commitment without a seed cannot be verified.
	_, err = loadSlotInput(0, slotFlags{key: "/key.bin", commitment: "/commitment.bin"})
	assert.ErrorContains(t, err, "requires a seed file")

	// Seed without a key is meaningless.
	_, err = loadSlotInput(0, slotFlags{seed: "/seed.bin"})
	assert.ErrorContains(t, err, "without a key file")

	// Wrong key length.
	_, err = loadSlotInput(0, slotFlags{key: "/short.bin"})
	assert.ErrorContains(t, err, "exactly 32 bytes")

	// Missing file.
	_, err = loadSlotInput(0, slotFlags{key: "/missing.bin"})
	assert.Error(t, err)
}
