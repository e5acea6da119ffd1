// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lock

import "time"

// LockFileName is the guard file created at the project root.
const LockFileName = ".mend.lock"

// Info is the JSON metadata stored in the guard file.
type Info struct {
	// ProjectPath is the absolute path of the guarded project.
	ProjectPath string `json:"project_path"`

	// PID is the process that holds the lock.
	PID int `json:"pid"`

	// SessionID identifies the recovery session.
	SessionID string `json:"session_id"`

	// LockedAt is when the lock was acquired.
	LockedAt time.Time `json:"locked_at"`

	// ExpiresAt is when the lock becomes reclaimable even if the
	// holding process is still alive.
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the lock's TTL has elapsed.
func (i *Info) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// ChangeType classifies an external change to a guarded project.
type ChangeType int

const (
	ChangeWrite ChangeType = iota
	ChangeDelete
	ChangeRename
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeWrite:
		return "write"
	case ChangeDelete:
		return "delete"
	case ChangeRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ExternalChange is an edit to a guarded project made outside the
// holding session.
type ExternalChange struct {
	// Path is the changed file.
	Path string

	// Type is the kind of change.
	Type ChangeType
}
