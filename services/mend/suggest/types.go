// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package suggest

import (
	"context"

	"github.com/tessellate-ai/mend/services/mend/analysis"
	"github.com/tessellate-ai/mend/services/mend/mutate"
)

// =============================================================================
// GATEWAY CONTRACT
// =============================================================================

// AttemptSummary is the compact attempt history passed to the capability.
type AttemptSummary struct {
	// Number is the 1-based attempt number.
	Number int `json:"number"`

	// ErrorCount is the error count after the attempt.
	ErrorCount int `json:"error_count"`

	// Trend is the attempt's progress classification.
	Trend string `json:"trend"`

	// CommandsRun is how many commands executed during the attempt.
	CommandsRun int `json:"commands_run"`

	// FixesApplied is how many rewrites were applied during the attempt.
	FixesApplied int `json:"fixes_applied"`
}

// Request carries the current error state and history to the capability.
type Request struct {
	// ProjectPath is the root of the broken project tree.
	ProjectPath string

	// Snapshot is the current analysis snapshot.
	Snapshot *analysis.Snapshot

	// History summarizes earlier attempts in this session, oldest first.
	History []AttemptSummary
}

// Command is one candidate shell command, in execution order.
type Command struct {
	// Text is the full command line.
	Text string `json:"text"`

	// Description is the capability's statement of intent.
	Description string `json:"description,omitempty"`
}

// Fix is one candidate complete-file rewrite.
type Fix struct {
	// Path is the target file relative to the project root.
	Path string `json:"path"`

	// Op is the rewrite operation.
	Op mutate.Operation `json:"operation"`

	// Content is the complete new file content. Empty for delete.
	Content string `json:"content,omitempty"`
}

// Response is the typed, ordered suggestion set.
//
// Commands are executed strictly in slice order; the capability is
// responsible for dependency ordering (e.g., dependency resolution
// before code generation).
type Response struct {
	Commands []Command `json:"commands"`
	Fixes    []Fix     `json:"fixes"`
}

// Empty returns true when the response proposes nothing.
func (r *Response) Empty() bool {
	return len(r.Commands) == 0 && len(r.Fixes) == 0
}

// Gateway is the external suggestion capability.
//
// Implementations must be safe for concurrent use; the engine never
// assumes deterministic output across calls.
type Gateway interface {
	// Suggest requests corrective candidates for the current error set.
	//
	// Inputs:
	//   ctx - Context bounding the external call
	//   req - Current snapshot and attempt history
	//
	// Outputs:
	//   *Response - Typed directives, possibly empty
	//   error - Non-nil if the capability could not be reached
	Suggest(ctx context.Context, req *Request) (*Response, error)
}
