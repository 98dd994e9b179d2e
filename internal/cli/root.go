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
	"errors"
	"fmt"
	"os"

	"github.com/jeremyhahn/go-trustanchor/pkg/trustanchor"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// cfgFile is the configuration file given with --config
	cfgFile string

	// fs is the filesystem the commands read key and seed files from.
	// Tests inject a memory filesystem.
	fs afero.Fs = afero.NewOsFs()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "trustanchor",
	Short: "Uniform interface to hardware trust anchors",
	Long: `trustanchor derives keys, random bytes and device identities from a
hardware trust anchor through one uniform interface.

Available backends:
  - sim:   software simulation, no hardware security, development only
  - tss:   TPM 2.0 through sessions held open for the connection lifetime
  - tpm2:  TPM 2.0 through per-command encrypted sessions

The hardware backends are compiled in with -tags tss and -tags tpm2;
requesting a backend that was not compiled in fails with an error naming
the missing tag.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is /etc/trustanchor/trustanchor.yaml)")
	rootCmd.PersistentFlags().String("backend", "sim",
		"trust anchor backend (sim, tss, tpm2)")
	rootCmd.PersistentFlags().String("device", "/dev/tpmrm0",
		"TPM character device used by the hardware backends")
	rootCmd.PersistentFlags().Bool("use-simulator", false,
		"connect to a TPM simulator instead of a device file")
	rootCmd.PersistentFlags().String("simulator-host", "localhost",
		"TPM simulator hostname")
	rootCmd.PersistentFlags().Int("simulator-port", 2321,
		"TPM simulator command port")
	rootCmd.PersistentFlags().String("machine-id-path", "/etc/machine-id",
		"machine id file read by the simulation")
	rootCmd.PersistentFlags().Bool("debug", false,
		"enable debug logging, including backend error detail")

	// Bind the flags under their configuration file keys so that flag,
	// environment and file values resolve through one lookup.
	bindings := map[string]string{
		"backend":         "backend",
		"device":          "device",
		"use_simulator":   "use-simulator",
		"simulator_host":  "simulator-host",
		"simulator_port":  "simulator-port",
		"machine_id_path": "machine-id-path",
		"debug":           "debug",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads the configuration file and environment into viper.
// A missing file is only an error when it was named explicitly.
func initConfig() {
	viper.SetFs(fs)
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("trustanchor")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/trustanchor")
		viper.AddConfigPath("$HOME/.trustanchor")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("trustanchor")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

// anchorConfig builds the backend configuration from flags, environment
// and the configuration file.
func anchorConfig() (*trustanchor.Config, error) {
	config := &trustanchor.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	config.Fs = fs
	return config, nil
}

// withAnchor opens the configured trust anchor, runs the operation and
// closes it again. A close failure after a successful operation is
// still a failure, matching the contract that every open context must
// tear down cleanly.
func withAnchor(run func(types.TrustAnchor) error) error {
	config, err := anchorConfig()
	if err != nil {
		return err
	}
	ta, err := trustanchor.New(config)
	if err != nil {
		return err
	}
	if err := ta.Open(); err != nil {
		return err
	}
	if err := run(ta); err != nil {
		_ = ta.Close()
		return err
	}
	return ta.Close()
}
