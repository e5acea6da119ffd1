// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mutate

// =============================================================================
// FILE FIX
// =============================================================================

// Operation identifies the kind of rewrite a fix performs.
type Operation string

const (
	// OpCreate creates a file that must not already exist.
	OpCreate Operation = "create"

	// OpModify replaces the full content of an existing file.
	OpModify Operation = "modify"

	// OpDelete removes an existing file.
	OpDelete Operation = "delete"
)

// Valid returns true for a recognized operation.
func (o Operation) Valid() bool {
	switch o {
	case OpCreate, OpModify, OpDelete:
		return true
	default:
		return false
	}
}

// FileFix is one complete-file rewrite.
//
// Invariant: every FileFix that reaches Mutator.Apply has already passed
// structural validation (ValidateFix).
//
// Thread Safety: Immutable after creation.
type FileFix struct {
	// Path is the target file, relative to the project root or absolute
	// within it.
	Path string `json:"file_path"`

	// Op is the rewrite operation.
	Op Operation `json:"operation"`

	// NewContent is the complete new file content. Empty for delete.
	NewContent string `json:"new_content,omitempty"`

	// BackupContent is populated by the mutator before writing: the
	// file's prior content, or empty for create.
	BackupContent string `json:"backup_content,omitempty"`
}

// =============================================================================
// APPLY RESULT
// =============================================================================

// ApplyResult reports the outcome of one Apply call.
//
// Thread Safety: Immutable after creation.
type ApplyResult struct {
	// Applied lists the absolute paths written, in application order.
	// Empty when the call rolled back.
	Applied []string `json:"applied"`

	// RolledBack is true when a mid-batch failure restored the tree.
	RolledBack bool `json:"rolled_back"`

	// FailedPath is the fix path that triggered the rollback.
	FailedPath string `json:"failed_path,omitempty"`
}
