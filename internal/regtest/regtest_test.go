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

package regtest

import (
	"bytes"
	"testing"

	"github.com/jeremyhahn/go-trustanchor/pkg/trustanchor"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simFixture builds a memory filesystem with a machine id and the
// simulation development keys written as reference key files.
func simFixture(t *testing.T) (afero.Fs, *trustanchor.Config) {
	t.Helper()

	fs := afero.NewMemMapFs()
	err := afero.WriteFile(fs, "/etc/machine-id",
		[]byte("0123456789abcdef0123456789abcdef\n"), 0o644)
	require.NoError(t, err)

	return fs, &trustanchor.Config{
		Backend: "sim",
		Fs:      fs,
	}
}

// writeSimKeys writes the publicly known simulation development keys,
// slot 0 ascending bytes and slot 1 the same reversed.
func writeSimKeys(t *testing.T, fs afero.Fs) []string {
	t.Helper()

	slot0 := make([]byte, types.LenKeyMax)
	slot1 := make([]byte, types.LenKeyMax)
	for i := 0; i < types.LenKeyMax; i++ {
		slot0[i] = byte(i)
		slot1[i] = byte(types.LenKeyMax - 1 - i)
	}
	require.NoError(t, afero.WriteFile(fs, "/keys/slot0.bin", slot0, 0o600))
	require.NoError(t, afero.WriteFile(fs, "/keys/slot1.bin", slot1, 0o600))
	return []string{"/keys/slot0.bin", "/keys/slot1.bin"}
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{})
	assert.Error(t, err)
}

func TestLoadReferenceKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/slot0.bin", make([]byte, types.LenKeyMax), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/slot1.bin", make([]byte, types.LenKeyMax), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/short.bin", make([]byte, 16), 0o600))

	keys, err := loadReferenceKeys(fs, nil)
	require.NoError(t, err)
	assert.Nil(t, keys[0])
	assert.Nil(t, keys[1])

	keys, err = loadReferenceKeys(fs, []string{"/slot0.bin"})
	require.NoError(t, err)
	assert.Len(t, keys[0], types.LenKeyMax)
	assert.Nil(t, keys[1])

	keys, err = loadReferenceKeys(fs, []string{"/slot0.bin", "/slot1.bin"})
	require.NoError(t, err)
	assert.Len(t, keys[0], types.LenKeyMax)
	assert.Len(t, keys[1], types.LenKeyMax)

	_, err = loadReferenceKeys(fs, []string{"/slot0.bin", "/slot1.bin", "/slot0.bin"})
	assert.Error(t, err)

	_, err = loadReferenceKeys(fs, []string{"/missing.bin"})
	assert.Error(t, err)

	_, err = loadReferenceKeys(fs, []string{"/short.bin"})
	assert.Error(t, err)
}

func TestChiSquared_Constant(t *testing.T) {
	// 64 zero bytes put all 128 samples in one bin: the statistic is
	// (128-8)^2/8 + 15*(0-8)^2/8 = 1920, far above the upper bound.
	chi2 := chiSquared(make([]byte, 64))
	assert.InDelta(t, 1920.0, chi2, 0.0001)
	assert.Greater(t, chi2, chi2Upper)
}

func TestChiSquared_PerfectlyUniform(t *testing.T) {
	// Every nibble exactly eight times: the statistic is zero, which is
	// below the lower bound. A perfectly flat histogram is as suspicious
	// as a skewed one.
	pattern := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	data := bytes.Repeat(pattern, 8)
	require.Len(t, data, 64)

	chi2 := chiSquared(data)
	assert.InDelta(t, 0.0, chi2, 0.0001)
	assert.Less(t, chi2, chi2Lower)
}

func TestRun_SimPass(t *testing.T) {
	fs, anchorCfg := simFixture(t)
	keyFiles := writeSimKeys(t, fs)

	var out bytes.Buffer
	r, err := New(&Config{
		Anchor:   anchorCfg,
		KeyFiles: keyFiles,
		Fs:       fs,
		Out:      &out,
	})
	require.NoError(t, err)

	require.NoError(t, r.Run())

	output := out.String()
	assert.Contains(t, output, "Running regression tests with reference keys.")
	assert.Contains(t, output, "HARDWARE: 0, VERSION: 1.2.0")
	assert.Contains(t, output, "Setting reference UUID: 01234567-89ab-cdef-0123-456789abcdef")
	assert.Contains(t, output, "PASS")
	assert.NotContains(t, output, "FAIL")
}

func TestRun_ReturnCodesOnly(t *testing.T) {
	fs, anchorCfg := simFixture(t)

	var out bytes.Buffer
	r, err := New(&Config{
		Anchor: anchorCfg,
		Fs:     fs,
		Out:    &out,
	})
	require.NoError(t, err)

	require.NoError(t, r.Run())
	assert.Contains(t, out.String(), "without reference keys")
	assert.Contains(t, out.String(), "PASS")
}

func TestRun_WrongReferenceKey(t *testing.T) {
	fs, anchorCfg := simFixture(t)

	wrong := bytes.Repeat([]byte{0xaa}, types.LenKeyMax)
	require.NoError(t, afero.WriteFile(fs, "/keys/wrong.bin", wrong, 0o600))

	var out bytes.Buffer
	r, err := New(&Config{
		Anchor:   anchorCfg,
		KeyFiles: []string{"/keys/wrong.bin"},
		Fs:       fs,
		Out:      &out,
	})
	require.NoError(t, err)

	err = r.Run()
	assert.ErrorIs(t, err, ErrTestsFailed)
	assert.Contains(t, out.String(), "wrong key derivation using key slot 0")
	assert.Contains(t, out.String(), "FAIL")
}

func TestRun_OwnContextWorkers(t *testing.T) {
	// With the child marker set the multi-process pass runs its workers
	// but must not spawn another process.
	t.Setenv(childEnv, "1")

	fs, anchorCfg := simFixture(t)

	var out bytes.Buffer
	r, err := New(&Config{
		Anchor:       anchorCfg,
		Multiprocess: true,
		Fs:           fs,
		Out:          &out,
	})
	require.NoError(t, err)

	require.NoError(t, r.Run())

	output := out.String()
	assert.Contains(t, output, "workers opening their own contexts")
	assert.NotContains(t, output, "Re-executing the suite as a child process")
	assert.Contains(t, output, "PASS")
}

func TestRun_UUIDConsistentAcrossPasses(t *testing.T) {
	fs, anchorCfg := simFixture(t)

	var out bytes.Buffer
	r, err := New(&Config{
		Anchor: anchorCfg,
		Fs:     fs,
		Out:    &out,
	})
	require.NoError(t, err)
	require.NoError(t, r.Run())

	// The reference is set exactly once even though every pass and
	// worker reads the identity again.
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("Setting reference UUID")))
}
