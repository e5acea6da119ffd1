// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package lock guards project directories against concurrent recovery
// sessions.
//
// A session acquires exclusive ownership of a project by flocking a
// .mend.lock file at the project root. The lock file carries JSON
// metadata (PID, session ID, expiry) so a second invocation can report
// who holds the lock and clean up after crashed processes. While a
// session holds the guard, fsnotify watches the project for external
// edits so concurrent manual changes surface in the log instead of
// silently corrupting a rollback.
package lock
