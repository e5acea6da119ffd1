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

	"github.com/tessellate-ai/mend/services/mend/analysis"
	"github.com/tessellate-ai/mend/services/mend/execguard"
	"github.com/tessellate-ai/mend/services/mend/mutate"
	"github.com/tessellate-ai/mend/services/mend/progress"
	"github.com/tessellate-ai/mend/services/mend/suggest"
)

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// Analyzer runs static analysis and returns a structured snapshot.
type Analyzer interface {
	Analyze(ctx context.Context, projectPath string, errorsOnly bool, takenAt int) (*analysis.Snapshot, error)
}

// CommandRunner validates and executes one shell command.
type CommandRunner interface {
	Execute(ctx context.Context, commandText, description string, timeout time.Duration) (*execguard.Execution, error)
}

// FixApplier applies a set of file rewrites transactionally.
type FixApplier interface {
	Apply(ctx context.Context, fixes []mutate.FileFix) (*mutate.ApplyResult, error)
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Config bounds one orchestrator run.
type Config struct {
	// MaxAttempts bounds fix attempts. Default 5.
	MaxAttempts int

	// RegressionLimit is how many consecutive regressing attempts end
	// the session early. Default 2.
	RegressionLimit int

	// SessionBudget bounds total session wall time. Default 10m.
	SessionBudget time.Duration

	// CommandTimeout bounds each suggested command. Default 60s.
	CommandTimeout time.Duration
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RegressionLimit <= 0 {
		c.RegressionLimit = 2
	}
	if c.SessionBudget <= 0 {
		c.SessionBudget = 10 * time.Minute
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 60 * time.Second
	}
	return c
}

// Orchestrator sequences the recovery state machine.
//
// Thread Safety: One orchestrator serves one session at a time; create
// one per Run or serialize callers. Collaborators must be safe for the
// orchestrator's sequential use.
type Orchestrator struct {
	analyzer Analyzer
	gateway  suggest.Gateway
	runner   CommandRunner
	applier  FixApplier
	tracker  *progress.Tracker
	cfg      Config
}

// NewOrchestrator wires the collaborators into an orchestrator.
//
// Inputs:
//
//	analyzer - Static analysis collaborator (required)
//	gateway - Suggestion collaborator (required)
//	runner - Command executor (required)
//	applier - File mutator (required)
//	tracker - Progress tracker; nil selects the default policy
//	cfg - Loop bounds; zero fields take defaults
//
// Outputs:
//
//	*Orchestrator - The orchestrator
//	error - ErrInvalidInput when a required collaborator is nil
func NewOrchestrator(analyzer Analyzer, gateway suggest.Gateway, runner CommandRunner, applier FixApplier, tracker *progress.Tracker, cfg Config) (*Orchestrator, error) {
	if analyzer == nil || gateway == nil || runner == nil || applier == nil {
		return nil, fmt.Errorf("%w: all collaborators are required", ErrInvalidInput)
	}
	if tracker == nil {
		tracker = progress.NewTracker(nil)
	}
	return &Orchestrator{
		analyzer: analyzer,
		gateway:  gateway,
		runner:   runner,
		applier:  applier,
		tracker:  tracker,
		cfg:      cfg.withDefaults(),
	}, nil
}

// Run drives one recovery session to a terminal state.
//
// Description:
//
//	Implements the state machine: an initial analysis (optionally
//	errors-only), then bounded attempts of suggest, command, fix, and
//	validate phases. Terminal states:
//	  - CONVERGED when an analysis reports zero errors
//	  - EXHAUSTED on max attempts, on RegressionLimit consecutive
//	    regressing attempts, on a blown session budget, or after a
//	    mutation failure (the attempt is rolled back first)
//	  - ABORTED when the analyzer is unavailable, the caller cancels,
//	    or a rollback fails and the tree state is unknown
//	Cancellation is cooperative and checked between phases; commands
//	carry their own hard timeout and cannot block indefinitely.
//
// Inputs:
//
//	ctx - Caller context; cancellation aborts between phases
//	req - Project path and per-call loop overrides
//
// Outputs:
//
//	*Result - Always non-nil when err is nil; explains why it stopped
//	error - ErrInvalidInput, or the fatal condition behind an ABORTED
//	        session (analysis.ErrToolUnavailable, context.Canceled,
//	        mutate.ErrRestoreFailed)
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.ProjectPath == "" {
		return nil, fmt.Errorf("%w: project path required", ErrInvalidInput)
	}

	maxAttempts := o.cfg.MaxAttempts
	if req.MaxAttempts > 0 {
		maxAttempts = req.MaxAttempts
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	session := &Session{
		ID:          sessionID,
		ProjectPath: req.ProjectPath,
		MaxAttempts: maxAttempts,
		Status:      StatusRunning,
		State:       StateInit,
		StartedAt:   time.Now(),
	}
	deadline := session.StartedAt.Add(o.cfg.SessionBudget)

	ctx, span := startSessionSpan(ctx, session.ID, req.ProjectPath, maxAttempts)
	defer span.End()

	slog.Info("recovery session starting",
		slog.String("session_id", session.ID),
		slog.String("project", req.ProjectPath),
		slog.Int("max_attempts", maxAttempts))

	result, err := o.run(ctx, session, req, deadline)
	if result != nil {
		recordSessionMetrics(ctx, result.Status, result.StopReason, len(result.Attempts), result.Duration)
		slog.Info("recovery session finished",
			slog.String("session_id", session.ID),
			slog.String("status", string(result.Status)),
			slog.String("stop_reason", result.StopReason),
			slog.Int("attempts", len(result.Attempts)),
			slog.Duration("duration", result.Duration))
	}
	return result, err
}

// run executes the state machine and builds the result.
func (o *Orchestrator) run(ctx context.Context, session *Session, req Request, deadline time.Time) (*Result, error) {
	// INIT -> ANALYZING
	session.State = StateAnalyzing
	pre, err := o.analyzer.Analyze(ctx, session.ProjectPath, req.ErrorsOnlyFirstPass, 0)
	if err != nil {
		session.State = StateAborted
		session.Status = StatusAborted
		return o.finish(session, 0, 0, StopToolUnavailable),
			fmt.Errorf("initial analysis: %w", err)
	}
	initialErrors := pre.ErrorCount

	if pre.Clean() {
		session.State = StateConverged
		session.Status = StatusSucceeded
		return o.finish(session, initialErrors, 0, StopConverged), nil
	}

	// resolved tracks issue identities fixed in earlier attempts, so a
	// reappearance counts as a regression even when the delta is flat.
	resolved := make(map[string]struct{})
	consecutiveRegressions := 0

	for attemptNumber := 1; attemptNumber <= session.MaxAttempts; attemptNumber++ {
		if err := ctx.Err(); err != nil {
			session.State = StateAborted
			session.Status = StatusAborted
			return o.finish(session, initialErrors, pre.ErrorCount, StopCanceled), err
		}
		if time.Now().After(deadline) {
			session.State = StateExhausted
			session.Status = StatusFailed
			return o.finish(session, initialErrors, pre.ErrorCount, StopBudgetExceeded), nil
		}

		attempt := &Attempt{Number: attemptNumber, Pre: pre}
		attemptCtx, attemptSpan := startAttemptSpan(ctx, attemptNumber, pre.ErrorCount)

		// COMMAND phase: request suggestions, execute commands in order.
		session.State = StateCommand
		resp := o.requestSuggestions(attemptCtx, session, attempt, pre)
		o.runCommands(attemptCtx, attempt, resp.Commands)

		if err := ctx.Err(); err != nil {
			attemptSpan.End()
			session.Attempts = append(session.Attempts, attempt)
			session.State = StateAborted
			session.Status = StatusAborted
			return o.finish(session, initialErrors, pre.ErrorCount, StopCanceled), err
		}
		// The budget forces EXHAUSTED regardless of phase; per-command
		// timeouts bound how far past it a phase can run.
		if time.Now().After(deadline) {
			attemptSpan.End()
			session.Attempts = append(session.Attempts, attempt)
			session.State = StateExhausted
			session.Status = StatusFailed
			return o.finish(session, initialErrors, pre.ErrorCount, StopBudgetExceeded), nil
		}

		// FIX phase: validate structurally, apply valid fixes.
		session.State = StateFix
		mutationErr := o.applyFixes(attemptCtx, attempt, resp.Fixes)
		if mutationErr != nil {
			attemptSpan.End()
			session.Attempts = append(session.Attempts, attempt)
			if errors.Is(mutationErr, mutate.ErrRestoreFailed) {
				// Rollback itself failed; the tree state is unknown.
				session.State = StateAborted
				session.Status = StatusAborted
				return o.finish(session, initialErrors, pre.ErrorCount, StopMutationFailed), mutationErr
			}
			// Tree rolled back; stop rather than risk compounding damage.
			session.State = StateExhausted
			session.Status = StatusFailed
			return o.finish(session, initialErrors, pre.ErrorCount, StopMutationFailed), nil
		}

		if err := ctx.Err(); err != nil {
			attemptSpan.End()
			session.Attempts = append(session.Attempts, attempt)
			session.State = StateAborted
			session.Status = StatusAborted
			return o.finish(session, initialErrors, pre.ErrorCount, StopCanceled), err
		}
		if time.Now().After(deadline) {
			attemptSpan.End()
			session.Attempts = append(session.Attempts, attempt)
			session.State = StateExhausted
			session.Status = StatusFailed
			return o.finish(session, initialErrors, pre.ErrorCount, StopBudgetExceeded), nil
		}

		// VALIDATING phase: re-analyze and score the delta.
		session.State = StateValidating
		post, err := o.analyzer.Analyze(attemptCtx, session.ProjectPath, false, attemptNumber)
		if err != nil {
			attemptSpan.End()
			session.Attempts = append(session.Attempts, attempt)
			session.State = StateAborted
			session.Status = StatusAborted
			return o.finish(session, initialErrors, pre.ErrorCount, StopToolUnavailable),
				fmt.Errorf("validating analysis: %w", err)
		}

		attempt.Post = post
		attempt.Progress = o.tracker.DiffWithHistory(pre, post, resolved)
		markResolved(resolved, pre, post)
		session.Attempts = append(session.Attempts, attempt)

		slog.Info("attempt complete",
			slog.String("session_id", session.ID),
			slog.Int("attempt", attemptNumber),
			slog.Int("errors_before", pre.ErrorCount),
			slog.Int("errors_after", post.ErrorCount),
			slog.String("trend", string(attempt.Progress.Trend)))
		attemptSpan.End()

		if post.Clean() {
			session.State = StateConverged
			session.Status = StatusSucceeded
			return o.finish(session, initialErrors, 0, StopConverged), nil
		}

		if attempt.Progress.Trend == progress.TrendRegressing {
			consecutiveRegressions++
		} else {
			consecutiveRegressions = 0
		}
		if consecutiveRegressions >= o.cfg.RegressionLimit {
			session.State = StateExhausted
			session.Status = StatusFailed
			return o.finish(session, initialErrors, post.ErrorCount, StopRegressing), nil
		}

		pre = post
	}

	session.State = StateExhausted
	session.Status = StatusFailed
	return o.finish(session, initialErrors, pre.ErrorCount, StopMaxAttempts), nil
}

// requestSuggestions calls the gateway; a failed call is recorded on the
// attempt and yields an empty response, never a session failure.
func (o *Orchestrator) requestSuggestions(ctx context.Context, session *Session, attempt *Attempt, pre *analysis.Snapshot) *suggest.Response {
	req := &suggest.Request{
		ProjectPath: session.ProjectPath,
		Snapshot:    pre,
		History:     summarizeHistory(session.Attempts),
	}
	resp, err := o.gateway.Suggest(ctx, req)
	if err != nil {
		attempt.GatewayError = err.Error()
		slog.Warn("suggestion call failed",
			slog.String("session_id", session.ID),
			slog.Int("attempt", attempt.Number),
			slog.String("error", err.Error()))
		return &suggest.Response{}
	}
	return resp
}

// runCommands executes candidate commands strictly in gateway order.
// Rejected and failed commands are recorded and the loop continues.
func (o *Orchestrator) runCommands(ctx context.Context, attempt *Attempt, commands []suggest.Command) {
	for _, cmd := range commands {
		execution, err := o.runner.Execute(ctx, cmd.Text, cmd.Description, o.cfg.CommandTimeout)
		if err != nil {
			slog.Warn("command execution error",
				slog.Int("attempt", attempt.Number),
				slog.String("command", cmd.Text),
				slog.String("error", err.Error()))
			continue
		}
		attempt.Commands = append(attempt.Commands, *execution)
	}
}

// applyFixes validates and applies candidate rewrites with the
// partial-success policy: invalid fixes are skipped and logged, valid
// siblings still applied. A non-nil return means the mutator failed and
// rolled the attempt back.
func (o *Orchestrator) applyFixes(ctx context.Context, attempt *Attempt, fixes []suggest.Fix) error {
	valid := make([]mutate.FileFix, 0, len(fixes))
	for _, fix := range fixes {
		candidate := mutate.FileFix{
			Path:       fix.Path,
			Op:         fix.Op,
			NewContent: fix.Content,
		}
		if err := mutate.ValidateFix(candidate); err != nil {
			attempt.SkippedFixes++
			slog.Warn("fix rejected by structural validation",
				slog.Int("attempt", attempt.Number),
				slog.String("path", fix.Path),
				slog.String("error", err.Error()))
			continue
		}
		valid = append(valid, candidate)
	}
	if len(valid) == 0 {
		return nil
	}

	if _, err := o.applier.Apply(ctx, valid); err != nil {
		slog.Error("mutation failed, attempt rolled back",
			slog.Int("attempt", attempt.Number),
			slog.String("error", err.Error()))
		return err
	}
	// Apply is all-or-nothing: success means every valid fix landed.
	attempt.Fixes = valid
	return nil
}

// finish seals the session into a caller-facing result.
func (o *Orchestrator) finish(session *Session, initialErrors, finalErrors int, stopReason string) *Result {
	duration := time.Since(session.StartedAt)
	commands := 0
	fixes := 0
	for _, attempt := range session.Attempts {
		for i := range attempt.Commands {
			if attempt.Commands[i].Allowed {
				commands++
			}
		}
		fixes += len(attempt.Fixes)
	}

	summary := fmt.Sprintf(
		"started with %d errors, ended with %d after %d attempt(s); %d command(s) run, %d fix(es) applied; stopped: %s",
		initialErrors, finalErrors, len(session.Attempts), commands, fixes, stopReason)

	return &Result{
		SessionID:         session.ID,
		Status:            session.Status,
		StopReason:        stopReason,
		InitialErrorCount: initialErrors,
		FinalErrorCount:   finalErrors,
		Attempts:          session.Attempts,
		CommandsExecuted:  commands,
		FixesApplied:      fixes,
		Duration:          duration,
		Summary:           summary,
	}
}

// summarizeHistory condenses sealed attempts for the gateway.
func summarizeHistory(attempts []*Attempt) []suggest.AttemptSummary {
	if len(attempts) == 0 {
		return nil
	}
	summaries := make([]suggest.AttemptSummary, 0, len(attempts))
	for _, attempt := range attempts {
		summary := suggest.AttemptSummary{
			Number:       attempt.Number,
			CommandsRun:  len(attempt.Commands),
			FixesApplied: len(attempt.Fixes),
		}
		if attempt.Post != nil {
			summary.ErrorCount = attempt.Post.ErrorCount
		}
		if attempt.Progress != nil {
			summary.Trend = string(attempt.Progress.Trend)
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// markResolved adds identities present before but absent after.
func markResolved(resolved map[string]struct{}, pre, post *analysis.Snapshot) {
	postSet := post.IdentitySet()
	for key := range pre.IdentitySet() {
		if _, still := postSet[key]; !still {
			resolved[key] = struct{}{}
		}
	}
}
