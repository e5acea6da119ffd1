// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package mutate applies file rewrites to a project tree transactionally.
//
// Every target file's current content is captured as a backup before any
// write happens. Writes are applied in sequence with atomic per-file
// replacement (temp file + fsync + rename); if any individual write fails,
// all files touched so far in the call are restored from backup and the
// call reports failure. The mutation is all-or-nothing per call, never
// partially applied to the tree.
//
// Structural validation of fixes (balanced delimiters, non-empty content)
// is the caller's responsibility before invoking Apply; ValidateFix is
// provided for that. The mutator itself only guarantees atomicity of the
// write set it is given, plus path containment under the project root.
//
// Thread Safety: a Mutator is safe for concurrent use across distinct
// project roots; the orchestrator guarantees a single writer per project.
package mutate
