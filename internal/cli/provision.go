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
	"crypto/sha256"
	"fmt"

	"github.com/jeremyhahn/go-trustanchor/pkg/trustanchor"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// slotFlags holds the provisioning input files for one key slot.
type slotFlags struct {
	key        string
	seed       string
	commitment string
}

var provisionSlots [types.KeySlotCount]slotFlags

// provisionCmd represents the provision command
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Install the trust anchor keys on the module",
	Long: `Provision the TPM for use as a trust anchor. Whatever occupies the
configured persistent handles is evicted, a fresh storage primary is
created and persisted at the salt handle, and each key slot receives an
HMAC-SHA256 key.

A slot without a key file gets a key generated inside the module; the
key material never exists outside the TPM. A slot with a key file has
its 32 raw bytes imported through the duplication path, optionally bound
to the 32-byte obfuscation seed chosen by the key originator.

The commitment SHA-256(seed || key) is printed per imported slot. When a
commitment file is given it is checked against the originator's records
before the module is touched; the TPM enforces the same binding when the
key is loaded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := anchorConfig()
		if err != nil {
			return err
		}

		var slotKeys [types.KeySlotCount]types.SlotKey
		for slot := range provisionSlots {
			slotKeys[slot], err = loadSlotInput(slot, provisionSlots[slot])
			if err != nil {
				return err
			}
		}

		result, err := trustanchor.Provision(config, slotKeys)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for slot := range slotKeys {
			if slotKeys[slot].Generate() {
				fmt.Fprintf(out, "key slot %d: key generated inside the module\n", slot)
				continue
			}
			fmt.Fprintf(out, "key slot %d: key imported, commitment %x\n",
				slot, result.Commitments[slot])
		}
		return nil
	},
}

// loadSlotInput reads the key, seed and commitment files for one slot
// and verifies the commitment before any TPM state is touched.
func loadSlotInput(slot int, files slotFlags) (types.SlotKey, error) {
	var input types.SlotKey

	if files.key == "" {
		if files.seed != "" {
			return input, fmt.Errorf("key slot %d: seed file given without a key file", slot)
		}
		if files.commitment != "" {
			return input, fmt.Errorf("key slot %d: commitment file given without a key file", slot)
		}
		return input, nil
	}

	key, err := readSlotFile(files.key, types.LenKeyMax)
	if err != nil {
		return input, fmt.Errorf("key slot %d: %w", slot, err)
	}
	input.Key = key

	if files.seed != "" {
		seed, err := readSlotFile(files.seed, sha256.Size)
		if err != nil {
			return input, fmt.Errorf("key slot %d: %w", slot, err)
		}
		input.Seed = seed
	}

	if files.commitment != "" {
		if input.Seed == nil {
			return input, fmt.Errorf("key slot %d: commitment check requires a seed file", slot)
		}
		expected, err := readSlotFile(files.commitment, sha256.Size)
		if err != nil {
			return input, fmt.Errorf("key slot %d: %w", slot, err)
		}
		sum := sha256.New()
		sum.Write(input.Seed)
		sum.Write(input.Key)
		if !bytes.Equal(expected, sum.Sum(nil)) {
			return input, fmt.Errorf("key slot %d: commitment mismatch, refusing to import", slot)
		}
	}

	return input, nil
}

// readSlotFile reads a provisioning input file and checks its exact length.
func readSlotFile(path string, length int) ([]byte, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) != length {
		return nil, fmt.Errorf("%s must hold exactly %d bytes, got %d", path, length, len(data))
	}
	return data, nil
}

func init() {
	rootCmd.AddCommand(provisionCmd)

	provisionCmd.Flags().StringVar(&provisionSlots[0].key, "slot0-key", "",
		"file with the 32 raw bytes to import into key slot 0 (default: generate)")
	provisionCmd.Flags().StringVar(&provisionSlots[0].seed, "slot0-seed", "",
		"file with the 32-byte obfuscation seed for key slot 0")
	provisionCmd.Flags().StringVar(&provisionSlots[0].commitment, "slot0-commitment", "",
		"file with the expected commitment SHA-256(seed || key) for key slot 0")
	provisionCmd.Flags().StringVar(&provisionSlots[1].key, "slot1-key", "",
		"file with the 32 raw bytes to import into key slot 1 (default: generate)")
	provisionCmd.Flags().StringVar(&provisionSlots[1].seed, "slot1-seed", "",
		"file with the 32-byte obfuscation seed for key slot 1")
	provisionCmd.Flags().StringVar(&provisionSlots[1].commitment, "slot1-commitment", "",
		"file with the expected commitment SHA-256(seed || key) for key slot 1")
}
