// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-ai/mend/services/mend/analysis"
	"github.com/tessellate-ai/mend/services/mend/lock"
	"github.com/tessellate-ai/mend/services/mend/mutate"
	"github.com/tessellate-ai/mend/services/mend/store"
	"github.com/tessellate-ai/mend/services/mend/suggest"
)

func newTestManager(t *testing.T, analyzer Analyzer, gateway suggest.Gateway, opts ...ManagerOption) *Manager {
	t.Helper()
	guard, err := lock.NewGuard()
	require.NoError(t, err)
	t.Cleanup(func() { _ = guard.Close() })

	m, err := NewManager(analyzer, gateway, guard, Config{}, opts...)
	require.NoError(t, err)
	return m
}

func TestManager_RecoverAppliesFixToTree(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, "src.q"), []byte("broken\n"), 0644))

	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{importErrors(1), {}}}
	gateway := &fakeGateway{responses: []*suggest.Response{
		{Fixes: []suggest.Fix{{Path: "src.q", Op: mutate.OpModify, Content: "fixed()\n"}}},
	}}

	m := newTestManager(t, analyzer, gateway)
	result, err := m.Recover(context.Background(), Request{ProjectPath: project})
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, result.Status)
	content, err := os.ReadFile(filepath.Join(project, "src.q"))
	require.NoError(t, err)
	assert.Equal(t, "fixed()\n", string(content))
}

func TestManager_BusyProjectFailsFast(t *testing.T) {
	project := t.TempDir()

	guard, err := lock.NewGuard()
	require.NoError(t, err)
	t.Cleanup(func() { _ = guard.Close() })
	require.NoError(t, guard.Acquire(project, "other-session"))

	otherGuard, err := lock.NewGuard()
	require.NoError(t, err)
	t.Cleanup(func() { _ = otherGuard.Close() })

	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{{}}}
	m, err := NewManager(analyzer, &fakeGateway{}, otherGuard, Config{})
	require.NoError(t, err)

	_, err = m.Recover(context.Background(), Request{ProjectPath: project})
	assert.ErrorIs(t, err, ErrProjectBusy)
	assert.Zero(t, analyzer.calls, "a busy project must not be analyzed")
}

func TestManager_LockReleasedAfterSession(t *testing.T) {
	project := t.TempDir()
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{{}}}

	m := newTestManager(t, analyzer, &fakeGateway{})
	_, err := m.Recover(context.Background(), Request{ProjectPath: project})
	require.NoError(t, err)

	// A fresh session can take the project again.
	_, err = m.Recover(context.Background(), Request{ProjectPath: project})
	require.NoError(t, err)
}

func TestManager_PersistsSessionDocument(t *testing.T) {
	project := t.TempDir()
	logs, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = logs.Close() })

	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{importErrors(2), {}}}
	m := newTestManager(t, analyzer, &fakeGateway{}, WithSessionStore(logs))

	result, err := m.Recover(context.Background(), Request{ProjectPath: project, SessionID: "sess-test"})
	require.NoError(t, err)
	assert.Equal(t, "sess-test", result.SessionID)

	var doc SessionDocument
	require.NoError(t, logs.Get(context.Background(), "sess-test", &doc))
	assert.Equal(t, result.Status, doc.Result.Status)
	assert.Equal(t, project, doc.Session.ProjectPath)
	assert.Len(t, doc.Result.Attempts, 1)
}

func TestManager_OwnFixesDoNotTripExternalChangeWatch(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, "src.q"), []byte("broken\n"), 0644))

	guard, err := lock.NewGuard()
	require.NoError(t, err)
	t.Cleanup(func() { _ = guard.Close() })
	require.NoError(t, guard.Acquire(project, "sess-watch"))

	changes := make(chan lock.ExternalChange, 8)
	require.NoError(t, guard.Watch(project, func(c lock.ExternalChange) {
		changes <- c
	}))

	mutator, err := mutate.NewMutator(project)
	require.NoError(t, err)
	applier := &maskedApplier{inner: mutator, guard: guard, project: project}

	_, err = applier.Apply(context.Background(), []mutate.FileFix{
		{Path: "src.q", Op: mutate.OpModify, NewContent: "fixed()\n"},
	})
	require.NoError(t, err)

	select {
	case change := <-changes:
		t.Fatalf("session's own rewrite reported as external: %s", change.Path)
	case <-time.After(300 * time.Millisecond):
	}

	// An edit outside any write phase still fires.
	external := filepath.Join(project, "outside.q")
	require.NoError(t, os.WriteFile(external, []byte("drive-by\n"), 0644))
	select {
	case change := <-changes:
		assert.Equal(t, external, change.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("external edit went unreported")
	}
}

func TestManager_RecoverAllDistinctProjects(t *testing.T) {
	projects := []string{t.TempDir(), t.TempDir(), t.TempDir()}
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{{}}}

	m := newTestManager(t, analyzer, &fakeGateway{})
	reqs := make([]Request, len(projects))
	for i, p := range projects {
		reqs[i] = Request{ProjectPath: p}
	}

	results, err := m.RecoverAll(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, len(projects))
	for _, result := range results {
		require.NotNil(t, result)
		assert.Equal(t, StatusSucceeded, result.Status)
	}
}

func TestManager_Validation(t *testing.T) {
	guard, err := lock.NewGuard()
	require.NoError(t, err)
	t.Cleanup(func() { _ = guard.Close() })

	_, err = NewManager(nil, &fakeGateway{}, guard, Config{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	m, err := NewManager(&fakeAnalyzer{}, &fakeGateway{}, guard, Config{})
	require.NoError(t, err)
	_, err = m.Recover(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
