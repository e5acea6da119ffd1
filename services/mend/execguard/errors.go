// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package execguard

import "errors"

// Sentinel errors for the execguard package.
var (
	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCommandRejected indicates a command failed allow-list or
	// deny-pattern validation. Recoverable; the session continues.
	ErrCommandRejected = errors.New("command rejected")
)
