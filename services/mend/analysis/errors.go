// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import "errors"

// Sentinel errors for the analysis package.
var (
	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrToolUnavailable indicates the analyzer binary cannot run at all.
	// Fatal for the session; callers must not retry.
	ErrToolUnavailable = errors.New("analyzer unavailable")

	// ErrAnalyzerTimeout indicates the analyzer exceeded its timeout.
	ErrAnalyzerTimeout = errors.New("analyzer timed out")

	// ErrUnknownToolchain indicates no analyzer is registered for the toolchain.
	ErrUnknownToolchain = errors.New("unknown toolchain")
)
