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

// uuidCmd represents the uuid command
var uuidCmd = &cobra.Command{
	Use:   "uuid",
	Short: "Print the device UUID",
	Long: `Print the device-unique identifier derived from the trust anchor's
identity key as a canonical RFC 4122 string. The UUID is stable across
reboots and identifies the device, not the software installation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAnchor(func(ta types.TrustAnchor) error {
			id, err := ta.DeviceUUID()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(uuidCmd)
}
