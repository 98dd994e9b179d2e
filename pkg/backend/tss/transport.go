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
	"net"
	"strconv"

	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"
	"github.com/jeremyhahn/go-trustanchor/pkg/logging"
)

// tpmPtManufacturer is the TPM_PT_MANUFACTURER property index
// (PT_FIXED + 5).
const tpmPtManufacturer = 0x00000100 + 5

// openTransport opens a connection to the TPM device or, when the
// simulator is configured, to a software TPM server speaking the raw
// command stream over TCP.
func openTransport(cfg *Config, logger *logging.Logger) (transport.TPMCloser, error) {
	if cfg.UseSimulator {
		addr := net.JoinHostPort(cfg.SimulatorHost, strconv.Itoa(cfg.SimulatorPort))
		logger.Debugf("tss: connecting to TPM server at %s", addr)
		netConn, err := net.Dial("tcp", addr)
		if err != nil {
			logger.Debugf("tss: dialing %s: %v", addr, err)
			return nil, ErrSimulatorUnreachable
		}
		conn := transport.FromReadWriteCloser(netConn)
		// A TCP endpoint that accepts the connection may still be the
		// wrong service, so query a fixed property before use.
		if err := probeManufacturer(conn, logger); err != nil {
			logger.Debugf("tss: %s did not answer as a TPM 2.0: %v", addr, err)
			_ = conn.Close()
			return nil, ErrSimulatorUnreachable
		}
		return conn, nil
	}
	logger.Debugf("tss: opening device %s", cfg.Device)
	conn, err := transport.OpenTPM(cfg.Device)
	if err != nil {
		logger.Debugf("tss: opening %s: %v", cfg.Device, err)
		return nil, ErrOpeningDevice
	}
	return conn, nil
}

// probeManufacturer reads TPM_PT_MANUFACTURER from the connected module.
func probeManufacturer(conn transport.TPM, logger *logging.Logger) error {
	rsp, err := tpm2.GetCapability{
		Capability:    tpm2.TPMCapTPMProperties,
		Property:      tpmPtManufacturer,
		PropertyCount: 1,
	}.Execute(conn)
	if err != nil {
		return err
	}
	props, err := rsp.CapabilityData.Data.TPMProperties()
	if err != nil {
		return err
	}
	if len(props.TPMProperty) == 0 {
		return errors.New("manufacturer property not reported")
	}
	logger.Debugf("tss: TPM manufacturer 0x%08x", props.TPMProperty[0].Value)
	return nil
}
