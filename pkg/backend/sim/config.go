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

package sim

import (
	"fmt"

	"github.com/jeremyhahn/go-trustanchor/pkg/logging"
	"github.com/spf13/afero"
)

// Config holds the configuration for the simulation backend
type Config struct {
	// MachineIDPath is the file whose first 32 hex characters identify
	// the device (default: "/etc/machine-id")
	MachineIDPath string `yaml:"machine_id_path" json:"machine_id_path"`

	// Logger is the logger instance to use
	Logger *logging.Logger `yaml:"-" json:"-"`

	// Fs is the filesystem used to read the machine id. Tests inject
	// a memory filesystem here.
	Fs afero.Fs `yaml:"-" json:"-"`
}

// Validate validates the simulation backend configuration and fills
// in defaults.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.MachineIDPath == "" {
		c.MachineIDPath = "/etc/machine-id"
	}
	if c.Logger == nil {
		c.Logger = logging.DefaultLogger()
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	return nil
}
