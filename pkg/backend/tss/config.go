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

//go:build tss

package tss

import (
	"errors"
	"fmt"
	"os"

	"github.com/jeremyhahn/go-trustanchor/pkg/logging"
)

const (
	// DefaultDevice is the kernel TPM resource manager.
	DefaultDevice = "/dev/tpmrm0"

	// Defaults for the TCP TPM server used in place of a device file,
	// matching the swtpm socket interface.
	DefaultSimulatorHost = "localhost"
	DefaultSimulatorPort = 2321

	// Default persistent handles for the two HMAC key slots and the
	// salt key used for session encryption.
	DefaultSlot0Handle uint32 = 0x81000000
	DefaultSlot1Handle uint32 = 0x81000001
	DefaultSaltHandle  uint32 = 0x81000002
)

// Config holds the configuration for the TSS backend
type Config struct {
	// Device is the path to the TPM device (e.g., "/dev/tpmrm0")
	Device string `yaml:"device" json:"device"`

	// UseSimulator routes commands over TCP to a software TPM server
	// instead of a device file.
	UseSimulator bool `yaml:"use_simulator" json:"use_simulator"`

	// SimulatorHost is the hostname of the TPM server
	SimulatorHost string `yaml:"simulator_host" json:"simulator_host"`

	// SimulatorPort is the command port of the TPM server
	SimulatorPort int `yaml:"simulator_port" json:"simulator_port"`

	// Slot0Handle is the persistent handle of the key slot 0 HMAC key
	Slot0Handle uint32 `yaml:"slot0_handle" json:"slot0_handle"`

	// Slot1Handle is the persistent handle of the key slot 1 HMAC key
	Slot1Handle uint32 `yaml:"slot1_handle" json:"slot1_handle"`

	// SaltHandle is the persistent handle of the storage key that salts
	// and encrypts sessions
	SaltHandle uint32 `yaml:"salt_handle" json:"salt_handle"`

	// Logger is the logger instance to use
	Logger *logging.Logger `yaml:"-" json:"-"`
}

// Validate validates the TSS backend configuration and fills in defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Device == "" {
		c.Device = DefaultDevice
	}

	if c.SimulatorHost == "" {
		c.SimulatorHost = DefaultSimulatorHost
	}

	if c.SimulatorPort == 0 {
		c.SimulatorPort = DefaultSimulatorPort
	}

	if c.Slot0Handle == 0 {
		c.Slot0Handle = DefaultSlot0Handle
	}

	if c.Slot1Handle == 0 {
		c.Slot1Handle = DefaultSlot1Handle
	}

	if c.SaltHandle == 0 {
		c.SaltHandle = DefaultSaltHandle
	}

	if c.Logger == nil {
		c.Logger = logging.DefaultLogger()
	}

	// Check if device exists (unless using the TCP server)
	if !c.UseSimulator {
		if _, err := os.Stat(c.Device); os.IsNotExist(err) {
			return fmt.Errorf("%w: device %s does not exist", ErrTPMNotAvailable, c.Device)
		}
	}

	return nil
}
