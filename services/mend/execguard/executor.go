// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package execguard

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// maxExcerptLen bounds the stdout/stderr excerpts kept on the record.
const maxExcerptLen = 2000

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor validates and runs shell commands under the safety policy.
//
// Thread Safety: Safe for concurrent use.
type Executor struct {
	policy     *Policy
	workingDir string

	auditMu sync.Mutex
	audit   []Execution
}

// ExecutorOption configures the Executor.
type ExecutorOption func(*Executor)

// WithPolicy sets a custom safety policy.
func WithPolicy(policy *Policy) ExecutorOption {
	return func(e *Executor) {
		e.policy = policy
	}
}

// WithWorkingDir sets the working directory for command execution.
func WithWorkingDir(dir string) ExecutorOption {
	return func(e *Executor) {
		e.workingDir = dir
	}
}

// NewExecutor creates an executor with the default policy.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		policy: NewPolicy(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute validates and, if allowed, runs a command.
//
// Description:
//
//	Validation precedes execution. Rejected commands are recorded with
//	Allowed=false and never spawned; no error is returned for them so
//	the caller can continue the session. Accepted commands run with a
//	hard wall-clock timeout; on expiry the process is killed and the
//	record is marked TimedOut.
//
//	The command line is split on whitespace and executed directly, not
//	through a shell. Quoting is unnecessary because the deny patterns
//	reject every shell metacharacter before this point.
//
// Inputs:
//
//	ctx - Context for cancellation
//	commandText - The full command line
//	description - The suggestion gateway's description of intent
//	timeout - Hard wall-clock limit for this command
//
// Outputs:
//
//	*Execution - The immutable invocation record (always non-nil on nil error)
//	error - Non-nil only for invalid input, never for rejection or failure
//
// Thread Safety: Safe for concurrent use.
func (e *Executor) Execute(ctx context.Context, commandText, description string, timeout time.Duration) (*Execution, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive", ErrInvalidInput)
	}

	ctx, span := startExecuteSpan(ctx, commandText)
	defer span.End()

	ok, reason := e.policy.Validate(commandText)
	if !ok {
		record := Execution{
			CommandText:  commandText,
			Description:  description,
			Allowed:      false,
			RejectReason: reason,
		}
		e.record(record)
		setExecuteSpanResult(span, false, false)
		recordExecuteMetrics(ctx, false, false, 0)

		slog.Warn("Command rejected by safety policy",
			slog.String("command", commandText),
			slog.String("reason", reason),
		)
		return &record, nil
	}

	record := e.run(ctx, commandText, description, timeout)
	e.record(record)
	setExecuteSpanResult(span, true, record.TimedOut)
	recordExecuteMetrics(ctx, true, record.Succeeded(), record.Duration)

	return &record, nil
}

// run spawns an already-validated command.
func (e *Executor) run(ctx context.Context, commandText, description string, timeout time.Duration) Execution {
	start := time.Now()

	fields := strings.Fields(strings.TrimSpace(commandText))
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, fields[0], fields[1:]...)
	if e.workingDir != "" {
		cmd.Dir = e.workingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)
	timedOut := cmdCtx.Err() == context.DeadlineExceeded

	record := Execution{
		CommandText:   commandText,
		Description:   description,
		Allowed:       true,
		Duration:      duration,
		StdoutExcerpt: excerpt(stdout.String()),
		StderrExcerpt: excerpt(stderr.String()),
		TimedOut:      timedOut,
	}

	if !timedOut {
		code := 0
		if exitErr, isExit := err.(*exec.ExitError); isExit {
			code = exitErr.ExitCode()
		} else if err != nil {
			// Start failure (e.g., binary vanished after validation).
			code = -1
		}
		record.ExitCode = &code
	}

	if record.Succeeded() {
		slog.Debug("Command completed",
			slog.String("command", commandText),
			slog.Duration("duration", duration),
		)
	} else {
		slog.Warn("Command did not succeed",
			slog.String("command", commandText),
			slog.Bool("timed_out", timedOut),
			slog.Duration("duration", duration),
			slog.String("stderr", record.StderrExcerpt),
		)
	}

	return record
}

// record appends to the audit trail.
func (e *Executor) record(execution Execution) {
	e.auditMu.Lock()
	defer e.auditMu.Unlock()
	e.audit = append(e.audit, execution)
}

// AuditTrail returns a copy of every invocation recorded so far.
//
// Thread Safety: Safe for concurrent use.
func (e *Executor) AuditTrail() []Execution {
	e.auditMu.Lock()
	defer e.auditMu.Unlock()
	out := make([]Execution, len(e.audit))
	copy(out, e.audit)
	return out
}

// excerpt truncates captured output for the record, backing up to a
// rune boundary so the excerpt stays valid UTF-8.
func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxExcerptLen {
		return s
	}
	cut := maxExcerptLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... [truncated]"
}
