// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recovery

import (
	"time"

	"github.com/tessellate-ai/mend/services/mend/analysis"
	"github.com/tessellate-ai/mend/services/mend/execguard"
	"github.com/tessellate-ai/mend/services/mend/mutate"
	"github.com/tessellate-ai/mend/services/mend/progress"
)

// =============================================================================
// STATES
// =============================================================================

// State is the orchestrator's position in the recovery state machine.
type State string

const (
	StateInit       State = "INIT"
	StateAnalyzing  State = "ANALYZING"
	StateCommand    State = "COMMAND"
	StateFix        State = "FIX"
	StateValidating State = "VALIDATING"
	StateConverged  State = "CONVERGED"
	StateExhausted  State = "EXHAUSTED"
	StateAborted    State = "ABORTED"
)

// IsTerminal reports whether the state ends the session.
func (s State) IsTerminal() bool {
	switch s {
	case StateConverged, StateExhausted, StateAborted:
		return true
	default:
		return false
	}
}

// Status is the session outcome visible to callers.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// Stop reasons reported in Result.StopReason.
const (
	StopConverged       = "converged"
	StopMaxAttempts     = "max attempts exhausted"
	StopRegressing      = "consecutive regressions"
	StopBudgetExceeded  = "session budget exceeded"
	StopMutationFailed  = "mutation failed"
	StopToolUnavailable = "analyzer unavailable"
	StopCanceled        = "canceled"
)

// =============================================================================
// SESSION AGGREGATE
// =============================================================================

// Attempt is one iteration of the recovery loop.
//
// An attempt is sealed once Post is set: the orchestrator never rewrites
// a sealed attempt, and Post.TakenAt always equals Number.
type Attempt struct {
	// Number is the 1-based attempt number.
	Number int `json:"number"`

	// Pre is the snapshot the attempt acted on.
	Pre *analysis.Snapshot `json:"pre_snapshot"`

	// Post is the snapshot after the attempt's actions. Nil until the
	// validating phase completes.
	Post *analysis.Snapshot `json:"post_snapshot"`

	// Commands are the executions (accepted and rejected) in order.
	Commands []execguard.Execution `json:"commands_executed"`

	// Fixes are the rewrites handed to the mutator.
	Fixes []mutate.FileFix `json:"fixes_applied"`

	// SkippedFixes counts rewrites rejected by structural validation.
	SkippedFixes int `json:"skipped_fixes,omitempty"`

	// GatewayError records a failed suggestion call, if any.
	GatewayError string `json:"gateway_error,omitempty"`

	// Progress is the scored delta between Pre and Post.
	Progress *progress.Result `json:"progress"`
}

// Session is the root aggregate for one recovery run.
type Session struct {
	// ID is the unique session identifier.
	ID string `json:"session_id"`

	// ProjectPath is the project under recovery.
	ProjectPath string `json:"project_path"`

	// MaxAttempts bounds the loop.
	MaxAttempts int `json:"max_attempts"`

	// Attempts is the ordered, gap-free attempt history.
	Attempts []*Attempt `json:"attempts"`

	// Status is the session outcome.
	Status Status `json:"status"`

	// State is the final state machine position.
	State State `json:"state"`

	// StartedAt is the session start time.
	StartedAt time.Time `json:"started_at"`
}

// =============================================================================
// CALLER CONTRACT
// =============================================================================

// Request is the caller-facing entry contract.
type Request struct {
	// ProjectPath is the root of the broken project.
	ProjectPath string

	// SessionID pins the session identifier. Generated when empty.
	SessionID string

	// MaxAttempts overrides the configured attempt bound when > 0.
	MaxAttempts int

	// ErrorsOnlyFirstPass requests an errors-only initial analysis.
	ErrorsOnlyFirstPass bool
}

// Result is the final report returned to the caller.
type Result struct {
	// SessionID identifies the session that produced this result.
	SessionID string `json:"session_id"`

	// Status is the outcome.
	Status Status `json:"status"`

	// StopReason explains why the session ended.
	StopReason string `json:"stop_reason"`

	// InitialErrorCount is the error count at session start.
	InitialErrorCount int `json:"initial_error_count"`

	// FinalErrorCount is the error count at session end.
	FinalErrorCount int `json:"final_error_count"`

	// Attempts is the full attempt history.
	Attempts []*Attempt `json:"attempts"`

	// CommandsExecuted is the total commands run (accepted only).
	CommandsExecuted int `json:"commands_executed"`

	// FixesApplied is the total rewrites applied.
	FixesApplied int `json:"fixes_applied"`

	// Duration is total session wall time.
	Duration time.Duration `json:"duration"`

	// Summary is a human-readable account of the session.
	Summary string `json:"summary"`
}
