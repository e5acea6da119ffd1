// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lock

import (
	"errors"
	"fmt"
)

// Sentinel errors for the lock package.
var (
	// ErrProjectLocked indicates another live session holds the project.
	ErrProjectLocked = errors.New("project locked by another session")

	// ErrLockNotHeld indicates a release for a project this guard never
	// acquired.
	ErrLockNotHeld = errors.New("lock not held")
)

// HeldError reports a lock conflict together with the current holder.
type HeldError struct {
	Path   string
	Holder *Info
	Err    error
}

func (e *HeldError) Error() string {
	if e.Holder != nil {
		return fmt.Sprintf("project %s locked by session %s (pid %d)",
			e.Path, e.Holder.SessionID, e.Holder.PID)
	}
	return fmt.Sprintf("project %s locked", e.Path)
}

func (e *HeldError) Unwrap() error {
	return e.Err
}
