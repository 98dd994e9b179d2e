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

import "errors"

var (
	// ErrTPM2NotAvailable is returned when the tpm2 backend is
	// requested but was not compiled in. Rebuild with -tags tpm2.
	ErrTPM2NotAvailable = errors.New("trustanchor: tpm2 backend not compiled in")

	// ErrTSSNotAvailable is returned when the tss backend is
	// requested but was not compiled in. Rebuild with -tags tss.
	ErrTSSNotAvailable = errors.New("trustanchor: tss backend not compiled in")

	// ErrProvisioningNotSupported is returned when Provision is called
	// for a backend that has no provisioning workflow, such as the
	// simulation.
	ErrProvisioningNotSupported = errors.New("trustanchor: backend does not support provisioning")
)
