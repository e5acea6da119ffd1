// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package progress classifies the delta between two analysis snapshots.
//
// Diff is a pure function of its two inputs: no side effects, fully
// deterministic. The trend and score it produces drive the recovery
// orchestrator's continue/stop decisions.
package progress
