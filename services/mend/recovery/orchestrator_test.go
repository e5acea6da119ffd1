// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recovery

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-ai/mend/services/mend/analysis"
	"github.com/tessellate-ai/mend/services/mend/execguard"
	"github.com/tessellate-ai/mend/services/mend/mutate"
	"github.com/tessellate-ai/mend/services/mend/suggest"
)

// =============================================================================
// FAKES
// =============================================================================

// fakeAnalyzer returns scripted issue sets in call order; the last set
// repeats once the script runs out. Safe for concurrent sessions.
type fakeAnalyzer struct {
	script [][]analysis.Issue
	errs   map[int]error // call index -> error
	mu     sync.Mutex
	calls  int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string, errorsOnly bool, takenAt int) (*analysis.Snapshot, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()
	if err, ok := f.errs[call]; ok {
		return nil, err
	}
	idx := call
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	issues := f.script[idx]
	if errorsOnly {
		var filtered []analysis.Issue
		for _, issue := range issues {
			if issue.Severity == analysis.SeverityError {
				filtered = append(filtered, issue)
			}
		}
		issues = filtered
	}
	return analysis.NewSnapshot(issues, takenAt), nil
}

// fakeGateway returns scripted responses and records requests.
type fakeGateway struct {
	responses []*suggest.Response
	err       error
	mu        sync.Mutex
	requests  []*suggest.Request
}

func (f *fakeGateway) Suggest(_ context.Context, req *suggest.Request) (*suggest.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	idx := len(f.requests) - 1
	if idx >= len(f.responses) {
		return &suggest.Response{}, nil
	}
	return f.responses[idx], nil
}

// fakeRunner records commands in execution order, optionally stalling
// per command to simulate slow executions.
type fakeRunner struct {
	executed []string
	delay    time.Duration
}

func (f *fakeRunner) Execute(_ context.Context, commandText, description string, _ time.Duration) (*execguard.Execution, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.executed = append(f.executed, commandText)
	code := 0
	return &execguard.Execution{
		CommandText: commandText,
		Description: description,
		Allowed:     true,
		ExitCode:    &code,
	}, nil
}

// fakeApplier records fix batches and optionally fails.
type fakeApplier struct {
	batches [][]mutate.FileFix
	err     error
}

func (f *fakeApplier) Apply(_ context.Context, fixes []mutate.FileFix) (*mutate.ApplyResult, error) {
	f.batches = append(f.batches, fixes)
	if f.err != nil {
		return nil, f.err
	}
	applied := make([]string, len(fixes))
	for i := range fixes {
		applied[i] = fixes[i].Path
	}
	return &mutate.ApplyResult{Applied: applied}, nil
}

func importErrors(n int) []analysis.Issue {
	issues := make([]analysis.Issue, n)
	for i := range issues {
		issues[i] = analysis.Issue{
			Severity: analysis.SeverityError,
			File:     fmt.Sprintf("src/f%d.q", i),
			Line:     i + 1,
			Code:     fmt.Sprintf("IMP%03d", i+1),
			Message:  "unresolved import",
		}
	}
	return issues
}

func newOrchestrator(t *testing.T, a Analyzer, g suggest.Gateway, r CommandRunner, ap FixApplier, cfg Config) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(a, g, r, ap, nil, cfg)
	require.NoError(t, err)
	return o
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestRun_SingleCommandConverges(t *testing.T) {
	// 15 import errors; one dependency-resolution command; clean re-analysis.
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{
		importErrors(15),
		{},
	}}
	gateway := &fakeGateway{responses: []*suggest.Response{
		{Commands: []suggest.Command{{Text: "qpm install", Description: "resolve dependencies"}}},
	}}
	runner := &fakeRunner{}
	applier := &fakeApplier{}

	o := newOrchestrator(t, analyzer, gateway, runner, applier, Config{})
	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, StopConverged, result.StopReason)
	assert.Len(t, result.Attempts, 1)
	assert.Equal(t, 15, result.InitialErrorCount)
	assert.Equal(t, 0, result.FinalErrorCount)
	assert.Equal(t, 1, result.CommandsExecuted)
	assert.Equal(t, []string{"qpm install"}, runner.executed)
	assert.Empty(t, applier.batches)
}

func TestRun_CleanProjectConvergesImmediately(t *testing.T) {
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{{}}}
	gateway := &fakeGateway{}

	o := newOrchestrator(t, analyzer, gateway, &fakeRunner{}, &fakeApplier{}, Config{})
	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Empty(t, result.Attempts)
	assert.Empty(t, gateway.requests)
	assert.Equal(t, 1, analyzer.calls)
}

func TestRun_AllFixesRejectedExhaustsAttempts(t *testing.T) {
	// 5 errors that never change; every suggested fix fails structural
	// validation, so nothing is ever applied.
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{importErrors(5)}}
	badFix := suggest.Fix{Path: "src/a.q", Op: mutate.OpModify, Content: "fn main( {\n"}
	gateway := &fakeGateway{responses: []*suggest.Response{
		{Fixes: []suggest.Fix{badFix}},
		{Fixes: []suggest.Fix{badFix}},
		{Fixes: []suggest.Fix{badFix}},
	}}
	applier := &fakeApplier{}

	o := newOrchestrator(t, analyzer, gateway, &fakeRunner{}, applier, Config{MaxAttempts: 3})
	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StopMaxAttempts, result.StopReason)
	assert.Len(t, result.Attempts, 3)
	assert.Empty(t, applier.batches, "invalid fixes must never reach the mutator")
	for _, attempt := range result.Attempts {
		assert.Equal(t, 1, attempt.SkippedFixes)
		assert.Equal(t, "stable", string(attempt.Progress.Trend))
	}
	assert.Equal(t, 5, result.FinalErrorCount)
}

func TestRun_ConsecutiveRegressionsExitEarly(t *testing.T) {
	// 20 -> 8 (improving) -> 14 (regressing) -> 20 (regressing again):
	// the early-exit rule fires before max attempts.
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{
		importErrors(20),
		importErrors(8),
		importErrors(14),
		importErrors(20),
	}}
	gateway := &fakeGateway{}

	o := newOrchestrator(t, analyzer, gateway, &fakeRunner{}, &fakeApplier{}, Config{MaxAttempts: 10})
	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StopRegressing, result.StopReason)
	assert.Len(t, result.Attempts, 3)
}

func TestRun_RejectedCommandRecordedNotCounted(t *testing.T) {
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{importErrors(2), {}}}
	gateway := &fakeGateway{responses: []*suggest.Response{
		{Commands: []suggest.Command{{Text: "rm -rf /"}, {Text: "qpm install"}}},
	}}
	// A real executor to exercise the rejection path end to end.
	executor := execguard.NewExecutor()

	o := newOrchestrator(t, analyzer, gateway, executor, &fakeApplier{}, Config{})
	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.NoError(t, err)

	require.Len(t, result.Attempts, 1)
	require.Len(t, result.Attempts[0].Commands, 2)
	assert.False(t, result.Attempts[0].Commands[0].Allowed)
	assert.Nil(t, result.Attempts[0].Commands[0].ExitCode)
	// Only the accepted command counts as executed.
	assert.Equal(t, 1, result.CommandsExecuted)
}

// =============================================================================
// INVARIANTS AND FAILURE MODES
// =============================================================================

func TestRun_AttemptOrderingInvariant(t *testing.T) {
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{importErrors(4)}}
	o := newOrchestrator(t, analyzer, &fakeGateway{}, &fakeRunner{}, &fakeApplier{}, Config{MaxAttempts: 4})

	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.NoError(t, err)
	require.Len(t, result.Attempts, 4)

	for i, attempt := range result.Attempts {
		assert.Equal(t, i+1, attempt.Number, "attempt numbers are gap-free and 1-based")
		require.NotNil(t, attempt.Post)
		assert.Equal(t, attempt.Number, attempt.Post.TakenAt)
	}
}

func TestRun_InitialAnalyzerUnavailableAborts(t *testing.T) {
	analyzer := &fakeAnalyzer{errs: map[int]error{0: analysis.ErrToolUnavailable}}
	o := newOrchestrator(t, analyzer, &fakeGateway{}, &fakeRunner{}, &fakeApplier{}, Config{})

	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.Error(t, err)
	assert.ErrorIs(t, err, analysis.ErrToolUnavailable)
	require.NotNil(t, result)
	assert.Equal(t, StatusAborted, result.Status)
	assert.Equal(t, StopToolUnavailable, result.StopReason)
}

func TestRun_ValidationAnalyzerUnavailableAborts(t *testing.T) {
	analyzer := &fakeAnalyzer{
		script: [][]analysis.Issue{importErrors(3)},
		errs:   map[int]error{1: analysis.ErrToolUnavailable},
	}
	o := newOrchestrator(t, analyzer, &fakeGateway{}, &fakeRunner{}, &fakeApplier{}, Config{})

	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, StatusAborted, result.Status)
	// The unfinished attempt is still part of the trail.
	assert.Len(t, result.Attempts, 1)
	assert.Nil(t, result.Attempts[0].Post)
}

func TestRun_MutationFailureExhausts(t *testing.T) {
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{importErrors(3)}}
	gateway := &fakeGateway{responses: []*suggest.Response{
		{Fixes: []suggest.Fix{{Path: "src/a.q", Op: mutate.OpModify, Content: "fn main() {}\n"}}},
	}}
	applier := &fakeApplier{err: mutate.ErrMutationFailed}

	o := newOrchestrator(t, analyzer, gateway, &fakeRunner{}, applier, Config{MaxAttempts: 5})
	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StopMutationFailed, result.StopReason)
	assert.Len(t, result.Attempts, 1)
}

func TestRun_FailedRollbackAborts(t *testing.T) {
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{importErrors(3)}}
	gateway := &fakeGateway{responses: []*suggest.Response{
		{Fixes: []suggest.Fix{{Path: "src/a.q", Op: mutate.OpModify, Content: "fn main() {}\n"}}},
	}}
	applier := &fakeApplier{err: fmt.Errorf("%w: src/a.q", mutate.ErrRestoreFailed)}

	o := newOrchestrator(t, analyzer, gateway, &fakeRunner{}, applier, Config{MaxAttempts: 5})
	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.ErrorIs(t, err, mutate.ErrRestoreFailed)
	require.NotNil(t, result)

	assert.Equal(t, StatusAborted, result.Status)
	assert.Equal(t, StopMutationFailed, result.StopReason)
}

func TestRun_SessionBudgetForcesExhausted(t *testing.T) {
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{importErrors(3)}}
	o := newOrchestrator(t, analyzer, &fakeGateway{}, &fakeRunner{}, &fakeApplier{},
		Config{SessionBudget: time.Nanosecond})

	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StopBudgetExceeded, result.StopReason)
	assert.Empty(t, result.Attempts)
}

func TestRun_BudgetEnforcedBetweenPhases(t *testing.T) {
	// The budget outlives the top-of-attempt check but is blown during
	// the command phase; the session must stop at the next phase
	// boundary instead of running the fix and validation phases.
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{importErrors(3)}}
	gateway := &fakeGateway{responses: []*suggest.Response{
		{
			Commands: []suggest.Command{{Text: "qpm install"}},
			Fixes:    []suggest.Fix{{Path: "src/a.q", Op: mutate.OpModify, Content: "fn main() {}\n"}},
		},
	}}
	runner := &fakeRunner{delay: 50 * time.Millisecond}
	applier := &fakeApplier{}

	o := newOrchestrator(t, analyzer, gateway, runner, applier,
		Config{SessionBudget: 10 * time.Millisecond, MaxAttempts: 5})
	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StopBudgetExceeded, result.StopReason)
	require.Len(t, result.Attempts, 1)
	assert.Empty(t, applier.batches, "fix phase must not run past the budget")
	assert.Equal(t, 1, analyzer.calls, "validation must not run past the budget")
}

func TestRun_CancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{importErrors(3)}}
	o := newOrchestrator(t, analyzer, &fakeGateway{}, &fakeRunner{}, &fakeApplier{}, Config{})

	result, err := o.Run(ctx, Request{ProjectPath: "/tmp/proj"})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, StatusAborted, result.Status)
	assert.Equal(t, StopCanceled, result.StopReason)
}

func TestRun_GatewayFailureIsRecoverable(t *testing.T) {
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{importErrors(2)}}
	gateway := &fakeGateway{err: suggest.ErrGatewayUnavailable}

	o := newOrchestrator(t, analyzer, gateway, &fakeRunner{}, &fakeApplier{}, Config{MaxAttempts: 2})
	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.NoError(t, err)

	assert.Equal(t, StopMaxAttempts, result.StopReason)
	for _, attempt := range result.Attempts {
		assert.NotEmpty(t, attempt.GatewayError)
	}
}

func TestRun_HistoryGrowsAcrossAttempts(t *testing.T) {
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{importErrors(3)}}
	gateway := &fakeGateway{}

	o := newOrchestrator(t, analyzer, gateway, &fakeRunner{}, &fakeApplier{}, Config{MaxAttempts: 3})
	_, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.NoError(t, err)

	require.Len(t, gateway.requests, 3)
	assert.Empty(t, gateway.requests[0].History)
	assert.Len(t, gateway.requests[1].History, 1)
	assert.Len(t, gateway.requests[2].History, 2)
}

func TestRun_PartialSuccessFixPolicy(t *testing.T) {
	analyzer := &fakeAnalyzer{script: [][]analysis.Issue{importErrors(3), importErrors(1)}}
	gateway := &fakeGateway{responses: []*suggest.Response{
		{Fixes: []suggest.Fix{
			{Path: "src/bad.q", Op: mutate.OpModify, Content: "fn { {\n"},
			{Path: "src/good.q", Op: mutate.OpModify, Content: "fn main() {}\n"},
		}},
	}}
	applier := &fakeApplier{}

	o := newOrchestrator(t, analyzer, gateway, &fakeRunner{}, applier, Config{MaxAttempts: 1})
	result, err := o.Run(context.Background(), Request{ProjectPath: "/tmp/proj"})
	require.NoError(t, err)

	require.Len(t, result.Attempts, 1)
	assert.Equal(t, 1, result.Attempts[0].SkippedFixes)
	require.Len(t, applier.batches, 1)
	require.Len(t, applier.batches[0], 1)
	assert.Equal(t, "src/good.q", applier.batches[0][0].Path)
	assert.Equal(t, 1, result.FixesApplied)
}

func TestRun_RequestValidation(t *testing.T) {
	o := newOrchestrator(t, &fakeAnalyzer{script: [][]analysis.Issue{{}}}, &fakeGateway{}, &fakeRunner{}, &fakeApplier{}, Config{})
	_, err := o.Run(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewOrchestrator(nil, &fakeGateway{}, &fakeRunner{}, &fakeApplier{}, nil, Config{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
