// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package execguard validates and runs shell commands under a two-pass
// safety policy: an allow-list of recognized program names and a
// deny-pattern list of dangerous shell idioms. Both checks always run,
// defence in depth; only commands passing both are spawned, and every
// invocation, accepted or rejected, is recorded for audit.
//
// Rejected commands never touch the process table or the file system.
// Accepted commands run under a hard wall-clock timeout; on expiry the
// process is killed and the execution is marked timed out.
//
// Thread Safety: the Executor is safe for concurrent use.
package execguard
