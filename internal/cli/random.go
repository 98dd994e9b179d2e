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
	"strconv"

	"github.com/jeremyhahn/go-trustanchor/internal/encoding"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
	"github.com/spf13/cobra"
)

// randomCmd represents the random command
var randomCmd = &cobra.Command{
	Use:   "random <bytes>",
	Short: "Print random bytes from the trust anchor",
	Long: `Draw the given number of bytes from the trust anchor's random number
generator and print them as lowercase hex.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		length, err := strconv.Atoi(args[0])
		if err != nil || length < 0 {
			return fmt.Errorf("invalid byte count: %s", args[0])
		}
		return withAnchor(func(ta types.TrustAnchor) error {
			data, err := ta.GetRandom(length)
			if err != nil {
				return err
			}
			out, err := encoding.Hex.EncodeToString(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(randomCmd)
}
