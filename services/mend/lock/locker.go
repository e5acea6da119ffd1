// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lock

import "os"

// fileLocker abstracts platform-specific advisory locking.
//
// Implementations must be safe for concurrent use on different files.
type fileLocker interface {
	// Lock acquires a non-blocking exclusive lock on the open file.
	// Returns ErrProjectLocked when another process holds it.
	Lock(f *os.File) error

	// Unlock releases a previously acquired lock. Safe to call when
	// not locked.
	Unlock(f *os.File) error
}

// IsProcessAlive reports whether a process with the given PID exists.
// Used for stale lock detection.
func IsProcessAlive(pid int) bool {
	return isProcessAlive(pid)
}

func newFileLocker() fileLocker {
	return newPlatformLocker()
}
