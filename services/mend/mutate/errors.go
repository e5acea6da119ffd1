// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mutate

import "errors"

// Sentinel errors for the mutate package.
var (
	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPathEscape indicates a fix path resolves outside the project root.
	ErrPathEscape = errors.New("path escapes project root")

	// ErrSensitivePath indicates a fix targets a protected path.
	ErrSensitivePath = errors.New("sensitive path")

	// ErrFixRejected indicates a fix failed structural validation.
	ErrFixRejected = errors.New("fix rejected")

	// ErrMutationFailed indicates the write set could not be applied and
	// was rolled back. Fatal for the current attempt.
	ErrMutationFailed = errors.New("mutation failed")

	// ErrRestoreFailed indicates rollback itself failed; the tree may be
	// inconsistent and the session must not continue.
	ErrRestoreFailed = errors.New("restore failed")
)
