// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recovery

import "errors"

// Sentinel errors for the recovery package.
var (
	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProjectBusy indicates another session already owns the project.
	ErrProjectBusy = errors.New("project busy")

	// ErrSessionAborted indicates the session ended in the aborted state.
	ErrSessionAborted = errors.New("session aborted")
)
