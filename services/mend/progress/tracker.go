// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package progress

import (
	"github.com/tessellate-ai/mend/services/mend/analysis"
)

// =============================================================================
// TREND
// =============================================================================

// Trend classifies the direction of one iteration's delta.
type Trend string

const (
	// TrendImproving means the error count dropped without a category
	// regressing more than the others improved.
	TrendImproving Trend = "improving"

	// TrendStable means nothing materially changed.
	TrendStable Trend = "stable"

	// TrendRegressing means the error count rose, or a previously
	// resolved issue identity reappeared.
	TrendRegressing Trend = "regressing"
)

// =============================================================================
// PROGRESS RESULT
// =============================================================================

// Result is the computed delta between two snapshots.
//
// Thread Safety: Immutable after creation.
type Result struct {
	// ErrorDelta is current.ErrorCount - previous.ErrorCount.
	ErrorDelta int `json:"error_delta"`

	// CategoryDeltas maps issue category to its signed error delta.
	// Only categories with a non-zero delta appear.
	CategoryDeltas map[analysis.Category]int `json:"category_deltas"`

	// Trend is the classified direction.
	Trend Trend `json:"trend"`

	// Score is the normalized improvement in [0, 1]: fixing every error
	// scores 1.0, any net regression scores 0.0.
	Score float64 `json:"score"`

	// Reappeared counts previously resolved issue identities that came
	// back in the current snapshot.
	Reappeared int `json:"reappeared,omitempty"`
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker diffs snapshots using a category policy.
//
// Thread Safety: Safe for concurrent use (stateless beyond the policy).
type Tracker struct {
	policy *analysis.CategoryPolicy
}

// NewTracker creates a tracker with the given category policy.
// A nil policy selects the default bucketing.
func NewTracker(policy *analysis.CategoryPolicy) *Tracker {
	if policy == nil {
		policy = analysis.DefaultCategoryPolicy()
	}
	return &Tracker{policy: policy}
}

// Diff computes the progress result between two snapshots.
//
// Description:
//
//	Pure function of (previous, current). The trend is:
//	  - regressing when the error count rose, or when any error identity
//	    absent from previous (but present in resolved history, see
//	    DiffWithHistory) reappeared;
//	  - improving when the error count dropped and no category regressed
//	    by more than the total improvement elsewhere;
//	  - stable otherwise.
//	Score is max(0, min(1, -errorDelta / max(1, previousErrors))).
//
// Inputs:
//
//	previous - The pre-attempt snapshot
//	current - The post-attempt snapshot
//
// Outputs:
//
//	*Result - The computed, immutable progress result
//
// Thread Safety: Safe for concurrent use.
func (t *Tracker) Diff(previous, current *analysis.Snapshot) *Result {
	return t.DiffWithHistory(previous, current, nil)
}

// DiffWithHistory computes the progress result, additionally treating the
// reappearance of any identity in resolved as a regression.
//
// Description:
//
//	resolved is the set of issue identity keys fixed in earlier attempts
//	of the same session. An issue that was resolved and then reappears
//	marks the attempt regressing even when the net error delta is flat
//	or negative: churn that reintroduces old breakage is not progress.
//
// Inputs:
//
//	previous - The pre-attempt snapshot
//	current - The post-attempt snapshot
//	resolved - Identity keys of issues fixed in earlier attempts (may be nil)
//
// Outputs:
//
//	*Result - The computed, immutable progress result
//
// Thread Safety: Safe for concurrent use.
func (t *Tracker) DiffWithHistory(previous, current *analysis.Snapshot, resolved map[string]struct{}) *Result {
	errorDelta := current.ErrorCount - previous.ErrorCount

	categoryDeltas := t.categoryDeltas(previous, current)

	prevSet := previous.IdentitySet()
	reappeared := 0
	for i := range current.Issues {
		key := current.Issues[i].Key()
		if _, inPrev := prevSet[key]; inPrev {
			continue
		}
		if _, wasResolved := resolved[key]; wasResolved {
			reappeared++
		}
	}

	trend := t.classify(errorDelta, categoryDeltas, reappeared)

	return &Result{
		ErrorDelta:     errorDelta,
		CategoryDeltas: categoryDeltas,
		Trend:          trend,
		Score:          score(errorDelta, previous.ErrorCount),
		Reappeared:     reappeared,
	}
}

// categoryDeltas computes the signed per-category error delta.
func (t *Tracker) categoryDeltas(previous, current *analysis.Snapshot) map[analysis.Category]int {
	deltas := make(map[analysis.Category]int)
	for _, issue := range previous.Issues {
		if issue.Severity == analysis.SeverityError {
			deltas[t.policy.Categorize(issue.Code)]--
		}
	}
	for _, issue := range current.Issues {
		if issue.Severity == analysis.SeverityError {
			deltas[t.policy.Categorize(issue.Code)]++
		}
	}
	for category, delta := range deltas {
		if delta == 0 {
			delete(deltas, category)
		}
	}
	return deltas
}

// classify derives the trend from the computed deltas.
func (t *Tracker) classify(errorDelta int, categoryDeltas map[analysis.Category]int, reappeared int) Trend {
	if errorDelta > 0 || reappeared > 0 {
		return TrendRegressing
	}
	if errorDelta < 0 {
		// A category regressing by more than the total improvement
		// elsewhere means the fix traded old errors for worse new ones.
		improvement := 0
		worstRegression := 0
		for _, delta := range categoryDeltas {
			if delta < 0 {
				improvement += -delta
			} else if delta > worstRegression {
				worstRegression = delta
			}
		}
		if worstRegression > improvement {
			return TrendStable
		}
		return TrendImproving
	}
	return TrendStable
}

// score normalizes the improvement into [0, 1].
func score(errorDelta, previousErrors int) float64 {
	denom := previousErrors
	if denom < 1 {
		denom = 1
	}
	s := float64(-errorDelta) / float64(denom)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
