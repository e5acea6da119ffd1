// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mutate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestMutator_Apply_CreateModifyDelete(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.q"), "old a")
	writeFile(t, filepath.Join(root, "src", "b.q"), "old b")

	m, err := NewMutator(root)
	require.NoError(t, err)

	result, err := m.Apply(context.Background(), []FileFix{
		{Path: "src/a.q", Op: OpModify, NewContent: "new a"},
		{Path: "src/c.q", Op: OpCreate, NewContent: "new c"},
		{Path: "src/b.q", Op: OpDelete},
	})
	require.NoError(t, err)
	assert.False(t, result.RolledBack)
	assert.Len(t, result.Applied, 3)

	assert.Equal(t, "new a", readFile(t, filepath.Join(root, "src", "a.q")))
	assert.Equal(t, "new c", readFile(t, filepath.Join(root, "src", "c.q")))
	_, statErr := os.Stat(filepath.Join(root, "src", "b.q"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMutator_Apply_MidBatchRollbackIsByteIdentical(t *testing.T) {
	root := t.TempDir()
	aPath := filepath.Join(root, "a.q")
	bPath := filepath.Join(root, "b.q")
	writeFile(t, aPath, "original a\nwith two lines\n")
	writeFile(t, bPath, "original b\n")

	m, err := NewMutator(root)
	require.NoError(t, err)

	// Third fix fails: modify target does not exist. The first two have
	// already been written and must be restored byte-identically.
	result, err := m.Apply(context.Background(), []FileFix{
		{Path: "a.q", Op: OpModify, NewContent: "clobbered a"},
		{Path: "b.q", Op: OpDelete},
		{Path: "missing.q", Op: OpModify, NewContent: "whatever"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMutationFailed)
	require.NotNil(t, result)
	assert.True(t, result.RolledBack)
	assert.Equal(t, "missing.q", result.FailedPath)

	assert.Equal(t, "original a\nwith two lines\n", readFile(t, aPath))
	assert.Equal(t, "original b\n", readFile(t, bPath))
}

func TestMutator_Apply_RollbackRemovesCreatedFiles(t *testing.T) {
	root := t.TempDir()
	m, err := NewMutator(root)
	require.NoError(t, err)

	result, err := m.Apply(context.Background(), []FileFix{
		{Path: "fresh.q", Op: OpCreate, NewContent: "fresh"},
		{Path: "missing.q", Op: OpDelete},
	})
	require.ErrorIs(t, err, ErrMutationFailed)
	assert.True(t, result.RolledBack)

	_, statErr := os.Stat(filepath.Join(root, "fresh.q"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMutator_Apply_PathEscapeFailsBeforeWriting(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "inside.q")
	writeFile(t, inside, "safe")

	m, err := NewMutator(root)
	require.NoError(t, err)

	_, err = m.Apply(context.Background(), []FileFix{
		{Path: "inside.q", Op: OpModify, NewContent: "changed"},
		{Path: "../outside.q", Op: OpCreate, NewContent: "escape"},
	})
	require.ErrorIs(t, err, ErrMutationFailed)

	// Containment is checked for the whole set before any write.
	assert.Equal(t, "safe", readFile(t, inside))
	_, statErr := os.Stat(filepath.Join(filepath.Dir(root), "outside.q"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMutator_Apply_SensitivePathRefused(t *testing.T) {
	root := t.TempDir()
	m, err := NewMutator(root)
	require.NoError(t, err)

	_, err = m.Apply(context.Background(), []FileFix{
		{Path: ".git/config", Op: OpModify, NewContent: "[core]"},
	})
	require.ErrorIs(t, err, ErrMutationFailed)
}

func TestMutator_Apply_CreateExistingFails(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.q"), "already here")

	m, err := NewMutator(root)
	require.NoError(t, err)

	result, err := m.Apply(context.Background(), []FileFix{
		{Path: "a.q", Op: OpCreate, NewContent: "dup"},
	})
	require.ErrorIs(t, err, ErrMutationFailed)
	assert.Equal(t, "a.q", result.FailedPath)
	assert.Equal(t, "already here", readFile(t, filepath.Join(root, "a.q")))
}

func TestMutator_Apply_EmptySetIsNoop(t *testing.T) {
	m, err := NewMutator(t.TempDir())
	require.NoError(t, err)

	result, err := m.Apply(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	assert.False(t, result.RolledBack)
}

func TestMutator_Apply_RecordsBackupContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.q"), "prior content")

	m, err := NewMutator(root)
	require.NoError(t, err)

	fixes := []FileFix{{Path: "a.q", Op: OpModify, NewContent: "next content"}}
	_, err = m.Apply(context.Background(), fixes)
	require.NoError(t, err)
	assert.Equal(t, "prior content", fixes[0].BackupContent)
}

func TestIsSensitivePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/p/.git/config", true},
		{"/p/.env", true},
		{"/p/.env.local", true},
		{"/p/secrets/api.txt", true},
		{"/p/certs/server.pem", true},
		{"/p/id.key", true},
		{"/p/src/main.q", false},
		{"/p/environment.q", false},
		{"/p/gitlog.txt", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSensitivePath(tt.path))
		})
	}
}
