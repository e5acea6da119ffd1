// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package suggest

import "errors"

// Sentinel errors for the suggest package.
var (
	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrGatewayUnavailable indicates the suggestion capability could not
	// be reached after retries.
	ErrGatewayUnavailable = errors.New("suggestion gateway unavailable")

	// ErrMalformedPatch indicates a patch directive could not be parsed
	// or applied to the current file content.
	ErrMalformedPatch = errors.New("malformed patch")
)
