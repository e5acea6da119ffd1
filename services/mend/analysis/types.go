// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"fmt"
	"strings"
)

// =============================================================================
// SEVERITY
// =============================================================================

// Severity represents the severity level of a compilation issue.
type Severity int

const (
	// SeverityInfo represents informational diagnostics.
	SeverityInfo Severity = iota

	// SeverityWarning represents diagnostics that do not block compilation.
	SeverityWarning

	// SeverityError represents diagnostics that block compilation.
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// SeverityFromString parses a severity string.
//
// Description:
//
//	Parses common severity strings emitted by analyzers.
//	Unknown values default to SeverityWarning.
//
// Inputs:
//
//	s - Severity string (e.g., "error", "warning", "info")
//
// Outputs:
//
//	Severity - The parsed severity level
func SeverityFromString(s string) Severity {
	switch strings.ToLower(s) {
	case "error", "err", "fatal", "critical":
		return SeverityError
	case "warning", "warn":
		return SeverityWarning
	case "info", "note", "hint":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// =============================================================================
// CATEGORY
// =============================================================================

// Category is a coarse bucket for compilation issues, derived from the
// analyzer rule code. The progress tracker computes per-category deltas.
type Category string

const (
	// CategoryImport covers import and dependency resolution issues.
	CategoryImport Category = "import_dependency"

	// CategoryType covers type mismatches and unresolved symbols.
	CategoryType Category = "type"

	// CategorySyntax covers parse and syntax errors.
	CategorySyntax Category = "syntax"

	// CategoryGenerated covers issues in generated code.
	CategoryGenerated Category = "generated"

	// CategoryOther is the fallback for unrecognized rule codes.
	CategoryOther Category = "other"
)

// =============================================================================
// COMPILATION ISSUE
// =============================================================================

// Issue represents a single diagnostic from static analysis.
//
// Thread Safety: Immutable after creation.
type Issue struct {
	// Severity is the severity level of the issue.
	Severity Severity `json:"severity"`

	// File is the path to the file containing the issue.
	File string `json:"file"`

	// Line is the 1-indexed line number where the issue occurs.
	Line int `json:"line"`

	// Column is the 1-indexed column number where the issue occurs.
	// May be 0 if the analyzer doesn't provide column info.
	Column int `json:"column,omitempty"`

	// Code is the analyzer rule identifier (e.g., "TYP0412").
	Code string `json:"code"`

	// Message is the human-readable description of the issue.
	Message string `json:"message"`
}

// Key returns the identity of the issue for diffing.
//
// Description:
//
//	Identity is the tuple (file, line, code, message), not insertion
//	order, since re-analysis may reorder output. Column is excluded
//	because some analyzers omit it on re-runs.
//
// Outputs:
//
//	string - A stable identity key
func (i *Issue) Key() string {
	return fmt.Sprintf("%s|%d|%s|%s", i.File, i.Line, i.Code, i.Message)
}

// Location returns a formatted location string (file:line:col).
func (i *Issue) Location() string {
	if i.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", i.File, i.Line, i.Column)
	}
	return fmt.Sprintf("%s:%d", i.File, i.Line)
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an immutable capture of all diagnostics at one point in time.
//
// Created once per analyzer invocation; never mutated afterwards.
//
// Thread Safety: Immutable after creation.
type Snapshot struct {
	// Issues is the ordered sequence of diagnostics as reported.
	Issues []Issue `json:"issues"`

	// ErrorCount is the number of SeverityError issues.
	ErrorCount int `json:"error_count"`

	// WarningCount is the number of SeverityWarning issues.
	WarningCount int `json:"warning_count"`

	// TakenAt is the monotonic attempt index at capture time.
	TakenAt int `json:"taken_at"`
}

// NewSnapshot builds a snapshot from parsed issues.
//
// Inputs:
//
//	issues - The parsed diagnostics in analyzer order
//	takenAt - The attempt index at capture time
//
// Outputs:
//
//	*Snapshot - The immutable snapshot with counts populated
func NewSnapshot(issues []Issue, takenAt int) *Snapshot {
	s := &Snapshot{
		Issues:  make([]Issue, len(issues)),
		TakenAt: takenAt,
	}
	copy(s.Issues, issues)
	for _, issue := range s.Issues {
		switch issue.Severity {
		case SeverityError:
			s.ErrorCount++
		case SeverityWarning:
			s.WarningCount++
		}
	}
	return s
}

// Errors returns only the SeverityError issues.
func (s *Snapshot) Errors() []Issue {
	out := make([]Issue, 0, s.ErrorCount)
	for _, issue := range s.Issues {
		if issue.Severity == SeverityError {
			out = append(out, issue)
		}
	}
	return out
}

// IdentitySet returns the set of issue identity keys in the snapshot.
//
// Thread Safety: Safe for concurrent use (snapshot is immutable).
func (s *Snapshot) IdentitySet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Issues))
	for i := range s.Issues {
		set[s.Issues[i].Key()] = struct{}{}
	}
	return set
}

// Clean returns true if the snapshot contains no errors.
func (s *Snapshot) Clean() bool {
	return s.ErrorCount == 0
}
