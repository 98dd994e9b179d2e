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

	"github.com/jeremyhahn/go-trustanchor/pkg/trustanchor"
	"github.com/spf13/cobra"
)

// Version information (injected at build time via -ldflags)
var (
	Version   = "dev"     // Set via -ldflags "-X github.com/jeremyhahn/go-trustanchor/internal/cli.Version=x.y.z"
	GitCommit = "unknown" // Set via -ldflags "-X github.com/jeremyhahn/go-trustanchor/internal/cli.GitCommit=abc123"
	BuildDate = "unknown" // Set via -ldflags "-X github.com/jeremyhahn/go-trustanchor/internal/cli.BuildDate=2025-01-15"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the backend type and library version",
	Long: `Print the numeric backend type and the library version reported by
the configured trust anchor backend, followed by the CLI build
information.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := anchorConfig()
		if err != nil {
			return err
		}
		ta, err := trustanchor.New(config)
		if err != nil {
			return err
		}
		v := ta.Version()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "HARDWARE: %d, VERSION: %s\n", v.Backend, v)
		fmt.Fprintf(out, "CLI: %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
