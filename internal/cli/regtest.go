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
	"github.com/jeremyhahn/go-trustanchor/internal/regtest"
	"github.com/spf13/cobra"
)

var regtestMultiprocess bool

// regtestCmd represents the regtest command
var regtestCmd = &cobra.Command{
	Use:   "regtest [keyfile0 [keyfile1]]",
	Short: "Run the regression test suite against the trust anchor",
	Long: `Run the regression test suite: version, UUID, self test, a
chi-squared check on the random number generator and key derivation
vectors, first sequentially and then from concurrent workers sharing one
open context.

Each key file holds the 32 raw bytes of the corresponding key slot.
Derived keys are verified against a software HMAC-SHA256 of those
reference keys; without key files only the return codes are verified.

With --multiprocess the suite additionally runs from workers that each
open their own context and from a re-executed child process, exercising
the module's cross-process serialization.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := anchorConfig()
		if err != nil {
			return err
		}
		runner, err := regtest.New(&regtest.Config{
			Anchor:       config,
			KeyFiles:     args,
			Multiprocess: regtestMultiprocess,
			Fs:           fs,
			Out:          cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}
		return runner.Run()
	},
}

func init() {
	rootCmd.AddCommand(regtestCmd)

	regtestCmd.Flags().BoolVarP(&regtestMultiprocess, "multiprocess", "m", false,
		"additionally run the suite from concurrent processes")
}
