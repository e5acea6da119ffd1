// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package suggest is the boundary to the external suggestion capability.
//
// The engine treats the capability as an opaque black box that receives
// the current error snapshot plus attempt history and returns candidate
// shell commands and complete-file rewrites. Free-form model text never
// escapes this boundary: ParseDirectives extracts only boundary-delimited
// typed blocks from a transcript and discards everything else, so
// downstream components only ever see typed Command and Fix values.
//
// Suggestion output is not assumed deterministic across calls.
package suggest
