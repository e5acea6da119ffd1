// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mutate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// =============================================================================
// MUTATOR
// =============================================================================

// Mutator applies write sets to a project tree, all-or-nothing per call.
//
// Thread Safety: Safe for concurrent use across distinct project roots.
type Mutator struct {
	projectRoot string
}

// NewMutator creates a mutator rooted at the given project directory.
//
// Inputs:
//
//	projectRoot - Absolute path of the project tree; every fix must
//	              resolve inside it
//
// Outputs:
//
//	*Mutator - The mutator
//	error - Non-nil if projectRoot is empty or not a directory
func NewMutator(projectRoot string) (*Mutator, error) {
	if projectRoot == "" {
		return nil, fmt.Errorf("%w: projectRoot must not be empty", ErrInvalidInput)
	}
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving project root: %v", ErrInvalidInput, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: project root %s is not a directory", ErrInvalidInput, abs)
	}
	return &Mutator{projectRoot: abs}, nil
}

// backup captures one file's prior state for rollback.
type backup struct {
	path    string
	existed bool
	content []byte
	mode    os.FileMode
}

// Apply writes a set of fixes transactionally.
//
// Description:
//
//	Resolves and containment-checks every path first, then captures a
//	backup of each target's current state, then applies the writes in
//	sequence. If any individual write fails, every file touched so far
//	in this call is restored from backup and ErrMutationFailed is
//	returned; the tree is never left partially mutated.
//
// Inputs:
//
//	ctx - Context checked between writes
//	fixes - The write set; must have passed ValidateFix already
//
// Outputs:
//
//	*ApplyResult - Applied paths, or the rollback report
//	error - ErrMutationFailed on rollback; ErrRestoreFailed if the
//	        rollback itself failed (tree possibly inconsistent)
//
// Thread Safety: Safe for concurrent use across distinct project roots.
func (m *Mutator) Apply(ctx context.Context, fixes []FileFix) (*ApplyResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if len(fixes) == 0 {
		return &ApplyResult{Applied: []string{}}, nil
	}

	// Resolve and check containment before touching anything.
	resolved := make([]string, len(fixes))
	for i := range fixes {
		abs, err := m.resolve(fixes[i].Path)
		if err != nil {
			return &ApplyResult{RolledBack: false, FailedPath: fixes[i].Path},
				fmt.Errorf("%w: %v", ErrMutationFailed, err)
		}
		resolved[i] = abs
	}

	// Snapshot-before-write: capture every target's current state.
	backups := make([]backup, 0, len(fixes))
	for i := range fixes {
		b, err := captureBackup(resolved[i])
		if err != nil {
			return &ApplyResult{FailedPath: fixes[i].Path},
				fmt.Errorf("%w: capturing backup of %s: %v", ErrMutationFailed, fixes[i].Path, err)
		}
		if b.existed {
			fixes[i].BackupContent = string(b.content)
		}
		backups = append(backups, b)
	}

	applied := make([]string, 0, len(fixes))
	for i := range fixes {
		if err := ctx.Err(); err != nil {
			return m.rollback(backups[:len(applied)], fixes[i].Path, err)
		}
		if err := m.applyOne(resolved[i], &fixes[i], backups[i]); err != nil {
			slog.Warn("Write failed mid-batch, rolling back",
				slog.String("path", fixes[i].Path),
				slog.Int("applied_so_far", len(applied)),
				slog.String("error", err.Error()),
			)
			return m.rollback(backups[:len(applied)], fixes[i].Path, err)
		}
		applied = append(applied, resolved[i])
	}

	slog.Debug("Write set applied",
		slog.String("project", m.projectRoot),
		slog.Int("files", len(applied)),
	)
	return &ApplyResult{Applied: applied}, nil
}

// applyOne performs a single fix against its resolved path.
func (m *Mutator) applyOne(abs string, fix *FileFix, b backup) error {
	switch fix.Op {
	case OpCreate:
		if b.existed {
			return fmt.Errorf("create target already exists: %s", fix.Path)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Errorf("creating parent directories: %w", err)
		}
		return atomicWriteFile(abs, []byte(fix.NewContent), 0o644)

	case OpModify:
		if !b.existed {
			return fmt.Errorf("modify target does not exist: %s", fix.Path)
		}
		return atomicWriteFile(abs, []byte(fix.NewContent), b.mode)

	case OpDelete:
		if !b.existed {
			return fmt.Errorf("delete target does not exist: %s", fix.Path)
		}
		return os.Remove(abs)

	default:
		return fmt.Errorf("unknown operation %q", fix.Op)
	}
}

// rollback restores every touched file from its backup.
func (m *Mutator) rollback(touched []backup, failedPath string, cause error) (*ApplyResult, error) {
	for i := len(touched) - 1; i >= 0; i-- {
		b := touched[i]
		var err error
		if b.existed {
			err = atomicWriteFile(b.path, b.content, b.mode)
		} else {
			err = os.Remove(b.path)
			if os.IsNotExist(err) {
				err = nil
			}
		}
		if err != nil {
			return &ApplyResult{RolledBack: false, FailedPath: failedPath},
				fmt.Errorf("%w: restoring %s: %v (original failure: %v)",
					ErrRestoreFailed, b.path, err, cause)
		}
	}
	return &ApplyResult{RolledBack: true, FailedPath: failedPath},
		fmt.Errorf("%w: %s: %v", ErrMutationFailed, failedPath, cause)
}

// resolve maps a fix path to an absolute path and enforces containment
// under the project root plus the sensitive-path deny list.
func (m *Mutator) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidInput)
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(m.projectRoot, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(m.projectRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, path)
	}
	if IsSensitivePath(abs) {
		return "", fmt.Errorf("%w: %s", ErrSensitivePath, path)
	}
	return abs, nil
}

// captureBackup records the current state of a path.
func captureBackup(abs string) (backup, error) {
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return backup{path: abs, existed: false}, nil
	}
	if err != nil {
		return backup{}, err
	}
	if info.IsDir() {
		return backup{}, fmt.Errorf("target is a directory: %s", abs)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return backup{}, err
	}
	return backup{path: abs, existed: true, content: content, mode: info.Mode().Perm()}, nil
}

// IsSensitivePath reports whether a path must never be rewritten by the
// recovery engine: version-control internals, secrets, and credentials.
func IsSensitivePath(path string) bool {
	clean := filepath.ToSlash(filepath.Clean(path))
	base := filepath.Base(clean)

	if base == ".env" || strings.HasPrefix(base, ".env.") {
		return true
	}
	switch filepath.Ext(base) {
	case ".pem", ".key", ".p12", ".pfx":
		return true
	}
	for _, segment := range strings.Split(clean, "/") {
		switch segment {
		case ".git", ".hg", ".svn", "secrets", ".ssh":
			return true
		}
	}
	return false
}

// atomicWriteFile writes content to a file atomically using rename.
//
// The file is either fully written or not modified at all, preventing
// partial writes on crashes or errors.
func atomicWriteFile(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	// Temp file in the same directory ensures same filesystem for rename.
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing content: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing to disk: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}
