// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tessellate-ai/mend/services/mend/execguard"
	"github.com/tessellate-ai/mend/services/mend/lock"
	"github.com/tessellate-ai/mend/services/mend/mutate"
	"github.com/tessellate-ai/mend/services/mend/progress"
	"github.com/tessellate-ai/mend/services/mend/store"
	"github.com/tessellate-ai/mend/services/mend/suggest"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// SessionDocument is the persisted artifact written at session end: the
// full attempt trail plus the final result, one JSON document per session.
type SessionDocument struct {
	Session *Session `json:"session"`
	Result  *Result  `json:"result"`
}

// Manager runs recovery sessions with per-project exclusion and optional
// session log persistence.
//
// Multiple sessions may run in parallel provided they target different
// project paths; the project directory is the unit of exclusion.
//
// Thread Safety: Safe for concurrent use.
type Manager struct {
	analyzer Analyzer
	gateway  suggest.Gateway
	tracker  *progress.Tracker
	policy   *execguard.Policy
	guard    *lock.Guard
	logs     *store.Store
	cfg      Config
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSessionStore enables session log persistence.
func WithSessionStore(logs *store.Store) ManagerOption {
	return func(m *Manager) {
		m.logs = logs
	}
}

// WithExecutionPolicy overrides the default command execution policy.
func WithExecutionPolicy(policy *execguard.Policy) ManagerOption {
	return func(m *Manager) {
		m.policy = policy
	}
}

// WithTracker overrides the default progress tracker.
func WithTracker(tracker *progress.Tracker) ManagerOption {
	return func(m *Manager) {
		m.tracker = tracker
	}
}

// NewManager creates a session manager.
//
// Inputs:
//
//	analyzer - Static analysis collaborator (required)
//	gateway - Suggestion collaborator (required)
//	guard - Project exclusion guard (required)
//	cfg - Loop bounds; zero fields take defaults
//	opts - Optional store, policy, and tracker overrides
//
// Outputs:
//
//	*Manager - The manager
//	error - ErrInvalidInput when a required collaborator is nil
func NewManager(analyzer Analyzer, gateway suggest.Gateway, guard *lock.Guard, cfg Config, opts ...ManagerOption) (*Manager, error) {
	if analyzer == nil || gateway == nil || guard == nil {
		return nil, fmt.Errorf("%w: analyzer, gateway, and guard are required", ErrInvalidInput)
	}
	m := &Manager{
		analyzer: analyzer,
		gateway:  gateway,
		guard:    guard,
		cfg:      cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Recover runs one exclusive recovery session against a project.
//
// Description:
//
//	Acquires the project lock, builds the per-project executor and
//	mutator, runs the orchestrator, persists the session document when
//	a store is configured, and releases the lock. A project already
//	owned by a live session fails fast with ErrProjectBusy.
//
// Outputs:
//
//	*Result - The session result
//	error - ErrProjectBusy, ErrInvalidInput, or a fatal session error
func (m *Manager) Recover(ctx context.Context, req Request) (*Result, error) {
	if req.ProjectPath == "" {
		return nil, fmt.Errorf("%w: project path required", ErrInvalidInput)
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	if err := m.guard.Acquire(req.ProjectPath, req.SessionID); err != nil {
		if errors.Is(err, lock.ErrProjectLocked) {
			return nil, fmt.Errorf("%w: %s", ErrProjectBusy, req.ProjectPath)
		}
		return nil, fmt.Errorf("acquiring project lock: %w", err)
	}
	defer func() {
		if err := m.guard.Release(req.ProjectPath); err != nil {
			slog.Warn("releasing project lock",
				slog.String("project", req.ProjectPath),
				slog.String("error", err.Error()))
		}
	}()

	// External edits during the session are logged as a tripwire.
	_ = m.guard.Watch(req.ProjectPath, func(change lock.ExternalChange) {
		slog.Warn("project modified outside the session",
			slog.String("session_id", req.SessionID),
			slog.String("path", change.Path),
			slog.String("change", change.Type.String()))
	})

	mutator, err := mutate.NewMutator(req.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("creating mutator: %w", err)
	}

	executorOpts := []execguard.ExecutorOption{execguard.WithWorkingDir(req.ProjectPath)}
	if m.policy != nil {
		executorOpts = append(executorOpts, execguard.WithPolicy(m.policy))
	}
	executor := execguard.NewExecutor(executorOpts...)

	// The session's own commands and fixes must not trip the
	// external-change watch, so both write paths suspend it.
	runner := &maskedRunner{inner: executor, guard: m.guard, project: req.ProjectPath}
	applier := &maskedApplier{inner: mutator, guard: m.guard, project: req.ProjectPath}

	orchestrator, err := NewOrchestrator(m.analyzer, m.gateway, runner, applier, m.tracker, m.cfg)
	if err != nil {
		return nil, err
	}

	result, runErr := orchestrator.Run(ctx, req)
	if result != nil {
		m.persist(req.SessionID, req, result)
	}
	return result, runErr
}

// RecoverAll runs sessions for several projects in parallel.
//
// Description:
//
//	Each request runs in its own goroutine; the guard serializes
//	duplicate project paths, so a repeated path fails with
//	ErrProjectBusy rather than racing. Results are returned in request
//	order; the first error (if any) is returned after all sessions
//	finish.
//
// Outputs:
//
//	[]*Result - One slot per request, nil where that session errored
//	error - First session error, or nil
func (m *Manager) RecoverAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			result, err := m.Recover(gctx, req)
			results[i] = result
			return err
		})
	}
	err := g.Wait()
	return results, err
}

// maskedRunner suspends the external-change watch while a suggested
// command runs, since commands may legitimately write to the tree.
type maskedRunner struct {
	inner   CommandRunner
	guard   *lock.Guard
	project string
}

func (r *maskedRunner) Execute(ctx context.Context, commandText, description string, timeout time.Duration) (*execguard.Execution, error) {
	r.guard.Suspend(r.project)
	defer r.guard.Resume(r.project)
	return r.inner.Execute(ctx, commandText, description, timeout)
}

// maskedApplier suspends the external-change watch while the mutator
// rewrites files.
type maskedApplier struct {
	inner   FixApplier
	guard   *lock.Guard
	project string
}

func (a *maskedApplier) Apply(ctx context.Context, fixes []mutate.FileFix) (*mutate.ApplyResult, error) {
	a.guard.Suspend(a.project)
	defer a.guard.Resume(a.project)
	return a.inner.Apply(ctx, fixes)
}

// persist writes the session document; persistence failures are logged,
// never surfaced, since the recovery outcome stands on its own.
func (m *Manager) persist(sessionID string, req Request, result *Result) {
	if m.logs == nil {
		return
	}
	state := StateExhausted
	switch result.Status {
	case StatusSucceeded:
		state = StateConverged
	case StatusAborted:
		state = StateAborted
	}
	doc := SessionDocument{
		Session: &Session{
			ID:          sessionID,
			ProjectPath: req.ProjectPath,
			MaxAttempts: req.MaxAttempts,
			Attempts:    result.Attempts,
			Status:      result.Status,
			State:       state,
			StartedAt:   time.Now().Add(-result.Duration),
		},
		Result: result,
	}
	if err := m.logs.Put(context.Background(), sessionID, doc); err != nil {
		slog.Warn("persisting session log",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}
