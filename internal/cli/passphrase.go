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
	"fmt"

	"github.com/jeremyhahn/go-trustanchor/internal/encoding"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
	"github.com/spf13/cobra"
)

var (
	passphraseDerivation string
	passphraseEncoding   string
	passphraseKeySlot    int
)

// passphraseCmd represents the passphrase command
var passphraseCmd = &cobra.Command{
	Use:   "passphrase",
	Short: "Derive a passphrase from the trust anchor",
	Long: `Derive a printable passphrase from a key slot and a derivation
string. The derivation string is at most 8 characters and is padded to 8
with '=' characters.

The same derivation string on the same device always yields the same
passphrase, so it can unlock filesystems or key stores without storing a
secret on disk. Key slot 1 holds the device specific key; passphrases
derived from it differ between devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := encoding.ParseOutput(passphraseEncoding)
		if err != nil {
			return err
		}
		if passphraseKeySlot < 0 || passphraseKeySlot >= types.KeySlotCount {
			return fmt.Errorf("key slot must be 0 or 1, got %d", passphraseKeySlot)
		}
		dv, err := encoding.PadDerivationString(passphraseDerivation)
		if err != nil {
			return err
		}
		return withAnchor(func(ta types.TrustAnchor) error {
			key, err := ta.DeriveKey(dv, uint8(passphraseKeySlot), types.LenKeyMax)
			if err != nil {
				return err
			}
			passphrase, err := output.EncodeToString(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), passphrase)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(passphraseCmd)

	passphraseCmd.Flags().StringVarP(&passphraseDerivation, "derivation-string", "d", "default!",
		"string used in the passphrase computation, at most 8 characters")
	passphraseCmd.Flags().StringVarP(&passphraseEncoding, "encoding", "e", "base64",
		"passphrase encoding, 'base64' or 'hex'")
	passphraseCmd.Flags().IntVarP(&passphraseKeySlot, "key-slot", "k", 1,
		"key slot, 0 or 1 (1 holds the device specific key)")
}
