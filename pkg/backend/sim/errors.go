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

import "errors"

var (
	// ErrNotOpen is returned when an operation is attempted before
	// Open or after Close.
	ErrNotOpen = errors.New("sim: backend not open")

	// ErrAlreadyOpen is returned when Open is called on an instance
	// that is already open or was closed. Closed instances cannot be
	// reopened.
	ErrAlreadyOpen = errors.New("sim: backend already opened")
)
