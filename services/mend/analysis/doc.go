// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analysis runs the project's static analyzer and converts its
// textual diagnostics into structured, immutable snapshots.
//
// The adapter owns all parsing: it invokes the analyzer subprocess, captures
// combined stdout/stderr, and parses each diagnostic line using the analyzer's
// fixed line grammar. Malformed lines are dropped, never fatal. Snapshots are
// the unit of comparison for the progress tracker and are never mutated after
// capture.
//
// Failure semantics: when the analyzer binary is missing, or it exits with a
// non-diagnostic failure (e.g., the project path does not exist), Analyze
// returns ErrToolUnavailable. Callers treat that as fatal for the session,
// not retryable.
//
// Thread Safety: the Adapter is safe for concurrent use.
package analysis
