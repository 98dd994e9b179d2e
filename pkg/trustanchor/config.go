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

package trustanchor

import (
	"fmt"

	"github.com/jeremyhahn/go-trustanchor/pkg/logging"
	"github.com/spf13/afero"
)

// Config holds the configuration shared by all trust anchor backends.
// The zero value selects the simulation with defaults suitable for
// development.
type Config struct {
	// Backend selects the implementation: "sim", "tss" or "tpm2"
	Backend string `yaml:"backend" json:"backend" mapstructure:"backend"`

	// Device is the path to the TPM character device used by the
	// hardware backends (default: "/dev/tpmrm0", the kernel resource
	// manager)
	Device string `yaml:"device" json:"device" mapstructure:"device"`

	// UseSimulator routes the hardware backends to a TPM simulator
	// instead of a device file
	UseSimulator bool `yaml:"use_simulator" json:"use_simulator" mapstructure:"use_simulator"`

	// SimulatorHost is the hostname of the TPM simulator (default: "localhost")
	SimulatorHost string `yaml:"simulator_host" json:"simulator_host" mapstructure:"simulator_host"`

	// SimulatorPort is the command port of the TPM simulator (default: 2321)
	SimulatorPort int `yaml:"simulator_port" json:"simulator_port" mapstructure:"simulator_port"`

	// Slot0Handle is the persistent handle of the key slot 0 HMAC key
	// (default: 0x81000000)
	Slot0Handle uint32 `yaml:"slot0_handle" json:"slot0_handle" mapstructure:"slot0_handle"`

	// Slot1Handle is the persistent handle of the key slot 1 HMAC key
	// (default: 0x81000001)
	Slot1Handle uint32 `yaml:"slot1_handle" json:"slot1_handle" mapstructure:"slot1_handle"`

	// SaltHandle is the persistent handle of the storage key used to
	// salt and encrypt sessions (default: 0x81000002)
	SaltHandle uint32 `yaml:"salt_handle" json:"salt_handle" mapstructure:"salt_handle"`

	// MachineIDPath is the machine id file read by the simulation
	// (default: "/etc/machine-id")
	MachineIDPath string `yaml:"machine_id_path" json:"machine_id_path" mapstructure:"machine_id_path"`

	// Debug enables debug logging, including the details of backend
	// errors that the contract otherwise hides
	Debug bool `yaml:"debug" json:"debug" mapstructure:"debug"`

	// Logger is the logger instance to use
	Logger *logging.Logger `yaml:"-" json:"-" mapstructure:"-"`

	// Fs is the filesystem the simulation reads the machine id from.
	// Tests inject a memory filesystem.
	Fs afero.Fs `yaml:"-" json:"-" mapstructure:"-"`
}

// Validate validates the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Backend == "" {
		c.Backend = "sim"
	}
	if c.Device == "" {
		c.Device = "/dev/tpmrm0"
	}
	if c.SimulatorHost == "" {
		c.SimulatorHost = "localhost"
	}
	if c.SimulatorPort == 0 {
		c.SimulatorPort = 2321
	}
	if c.Slot0Handle == 0 {
		c.Slot0Handle = 0x81000000
	}
	if c.Slot1Handle == 0 {
		c.Slot1Handle = 0x81000001
	}
	if c.SaltHandle == 0 {
		c.SaltHandle = 0x81000002
	}
	if c.MachineIDPath == "" {
		c.MachineIDPath = "/etc/machine-id"
	}
	if c.Logger == nil {
		c.Logger = logging.NewLogger(c.Debug)
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	return nil
}
