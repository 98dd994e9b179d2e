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

	"github.com/jeremyhahn/go-trustanchor/pkg/types"
	"github.com/spf13/cobra"
)

// selftestCmd represents the selftest command
var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the trust anchor's built-in diagnostic",
	Long: `Run the trust anchor's built-in self test. The exit status reflects
the result, so the command can gate boot or deployment scripts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAnchor(func(ta types.TrustAnchor) error {
			if err := ta.SelfTest(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "self test passed")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(selftestCmd)
}
