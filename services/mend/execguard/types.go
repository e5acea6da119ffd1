// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package execguard

import "time"

// =============================================================================
// COMMAND EXECUTION RECORD
// =============================================================================

// Execution records one command invocation, accepted or rejected.
//
// Every invocation is recorded so safety violations are observable,
// not silently dropped.
//
// Thread Safety: Immutable once executed.
type Execution struct {
	// CommandText is the full command line as received.
	CommandText string `json:"command_text"`

	// Description is the suggestion gateway's description of intent.
	Description string `json:"description,omitempty"`

	// Allowed is false when the command failed validation.
	Allowed bool `json:"allowed"`

	// RejectReason names the failed check for rejected commands.
	RejectReason string `json:"reject_reason,omitempty"`

	// ExitCode is the process exit code. Nil when the command was
	// rejected or killed before producing one.
	ExitCode *int `json:"exit_code,omitempty"`

	// Duration is the wall-clock run time. Zero for rejected commands.
	Duration time.Duration `json:"duration"`

	// StdoutExcerpt is a truncated capture of standard output.
	StdoutExcerpt string `json:"stdout_excerpt,omitempty"`

	// StderrExcerpt is a truncated capture of standard error.
	StderrExcerpt string `json:"stderr_excerpt,omitempty"`

	// TimedOut is true when the hard timeout killed the process.
	TimedOut bool `json:"timed_out"`
}

// Succeeded returns true if the command ran and exited zero.
func (e *Execution) Succeeded() bool {
	return e.Allowed && !e.TimedOut && e.ExitCode != nil && *e.ExitCode == 0
}

// Failed returns true if an allowed command ran but did not succeed.
// Rejected commands are not failures; they never ran.
func (e *Execution) Failed() bool {
	return e.Allowed && !e.Succeeded()
}
