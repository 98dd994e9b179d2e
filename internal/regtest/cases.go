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
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/rand"

	"github.com/jeremyhahn/go-trustanchor/pkg/types"
)

// Statistical bounds for the RNG case: the central 90% window of the
// chi-squared distribution with 15 degrees of freedom. The case finds
// gross implementation errors only; passing says nothing about the
// cryptographic quality of the generator.
const (
	chi2Lower   = 7.24628
	chi2Upper   = 25.0295
	chi2Repeats = 5
	chi2Samples = 128 // 4-bit samples per repeat
)

// deriveVectors is the number of random derivation values tried per key
// slot in the derivation case.
const deriveVectors = 10

// testCase is one entry of the ordered suite.
type testCase struct {
	name string
	run  func(types.TrustAnchor) error
}

// cases returns the suite in its fixed execution order.
func (r *Runner) cases() []testCase {
	return []testCase{
		{"read_version", r.caseVersion},
		{"read_uuid", r.caseUUID},
		{"self_test", r.caseSelfTest},
		{"random_chi_squared", r.caseRandomChiSquared},
		{"derive_key", r.caseDeriveKey},
	}
}

// caseVersion reads the backend version and prints it once per run.
func (r *Runner) caseVersion(ta types.TrustAnchor) error {
	v := ta.Version()

	r.mu.Lock()
	first := !r.versionPrinted
	r.versionPrinted = true
	r.mu.Unlock()

	if first {
		r.printf("HARDWARE: %d, VERSION: %d.%d.%d\n", v.Backend, v.Major, v.Minor, v.Patch)
	}
	return nil
}

// caseUUID reads the device identity. The first read of a run becomes
// the reference; every later read, from any pass or worker, must match.
func (r *Runner) caseUUID(ta types.TrustAnchor) error {
	u, err := ta.DeviceUUID()
	if err != nil {
		return fmt.Errorf("reading device uuid: %w", err)
	}

	r.mu.Lock()
	if !r.refUUIDSet {
		r.refUUID = u
		r.refUUIDSet = true
		r.mu.Unlock()
		r.printf("Setting reference UUID: %s\n", u)
		return nil
	}
	ref := r.refUUID
	r.mu.Unlock()

	if ref != u {
		return fmt.Errorf("uuid %s does not match the reference %s set during the first read",
			u, ref)
	}
	return nil
}

// caseSelfTest runs the backend diagnostic.
func (r *Runner) caseSelfTest(ta types.TrustAnchor) error {
	if err := ta.SelfTest(); err != nil {
		return fmt.Errorf("self test: %w", err)
	}
	return nil
}

// caseRandomChiSquared draws random bytes and checks the chi-squared
// statistic of their 4-bit histogram against the uniform expectation.
// One repeat inside the bounds passes; all repeats outside fail.
func (r *Runner) caseRandomChiSquared(ta types.TrustAnchor) error {
	for rep := 0; rep < chi2Repeats; rep++ {
		random, err := ta.GetRandom(chi2Samples / 2)
		if err != nil {
			return fmt.Errorf("get random: %w", err)
		}
		if chi2 := chiSquared(random); chi2 > chi2Lower && chi2 < chi2Upper {
			return nil
		}
	}
	return errors.New("random output failed the chi-squared bounds in every repeat")
}

// caseDeriveKey derives keys for random derivation values on both slots.
// Return codes are always checked; slots with a reference key are also
// compared against a software HMAC-SHA256 of the same inputs.
func (r *Runner) caseDeriveKey(ta types.TrustAnchor) error {
	dv := make([]byte, types.LenDV)
	for i := 0; i < deriveVectors; i++ {
		for j := range dv {
			dv[j] = byte(rand.Intn(256))
		}

		for slot := uint8(0); slot < types.KeySlotCount; slot++ {
			out, err := ta.DeriveKey(dv, slot, types.LenKeyMax)
			if err != nil {
				return fmt.Errorf("derive key using key slot %d: %w", slot, err)
			}
			if r.refKeys[slot] == nil {
				continue
			}

			mac := hmac.New(sha256.New, r.refKeys[slot])
			mac.Write(dv)
			if !bytes.Equal(out, mac.Sum(nil)) {
				return fmt.Errorf("wrong key derivation using key slot %d", slot)
			}
		}
	}
	return nil
}

// chiSquared folds the buffer into 4-bit samples and computes the
// chi-squared statistic of their 16-bin histogram against a uniform
// distribution.
func chiSquared(data []byte) float64 {
	var histogram [16]int
	for _, b := range data {
		histogram[b&0x0f]++
		histogram[b>>4]++
	}

	expected := float64(2*len(data)) / 16.0
	chi2 := 0.0
	for _, count := range histogram {
		diff := float64(count) - expected
		chi2 += diff * diff / expected
	}
	return chi2
}
