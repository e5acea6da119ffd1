// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshot_Counts(t *testing.T) {
	issues := []Issue{
		{Severity: SeverityError, File: "a.q", Line: 1, Code: "TYP0001", Message: "m1"},
		{Severity: SeverityWarning, File: "a.q", Line: 2, Code: "IMP001", Message: "m2"},
		{Severity: SeverityError, File: "b.q", Line: 3, Code: "SYN100", Message: "m3"},
		{Severity: SeverityInfo, File: "b.q", Line: 4, Code: "GEN200", Message: "m4"},
	}

	snap := NewSnapshot(issues, 2)
	assert.Equal(t, 2, snap.ErrorCount)
	assert.Equal(t, 1, snap.WarningCount)
	assert.Equal(t, 2, snap.TakenAt)
	assert.Len(t, snap.Issues, 4)
	assert.False(t, snap.Clean())

	errs := snap.Errors()
	require.Len(t, errs, 2)
	assert.Equal(t, "TYP0001", errs[0].Code)
	assert.Equal(t, "SYN100", errs[1].Code)
}

func TestNewSnapshot_CopiesInput(t *testing.T) {
	issues := []Issue{
		{Severity: SeverityError, File: "a.q", Line: 1, Code: "TYP0001", Message: "m1"},
	}
	snap := NewSnapshot(issues, 0)

	// Mutating the caller's slice must not change the snapshot.
	issues[0].Message = "mutated"
	assert.Equal(t, "m1", snap.Issues[0].Message)
}

func TestIssue_Key_IgnoresColumnAndOrder(t *testing.T) {
	a := Issue{Severity: SeverityError, File: "a.q", Line: 1, Column: 5, Code: "TYP0001", Message: "m"}
	b := Issue{Severity: SeverityError, File: "a.q", Line: 1, Column: 0, Code: "TYP0001", Message: "m"}
	assert.Equal(t, a.Key(), b.Key())

	c := Issue{Severity: SeverityError, File: "a.q", Line: 2, Column: 5, Code: "TYP0001", Message: "m"}
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestSnapshot_IdentitySet_ReorderInvariant(t *testing.T) {
	forward := NewSnapshot([]Issue{
		{Severity: SeverityError, File: "a.q", Line: 1, Code: "TYP0001", Message: "m1"},
		{Severity: SeverityError, File: "b.q", Line: 2, Code: "SYN100", Message: "m2"},
	}, 0)
	reversed := NewSnapshot([]Issue{
		{Severity: SeverityError, File: "b.q", Line: 2, Code: "SYN100", Message: "m2"},
		{Severity: SeverityError, File: "a.q", Line: 1, Code: "TYP0001", Message: "m1"},
	}, 1)

	assert.Equal(t, forward.IdentitySet(), reversed.IdentitySet())
}

func TestCategoryPolicy_Defaults(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{"IMP001", CategoryImport},
		{"DEP042", CategoryImport},
		{"TYP0412", CategoryType},
		{"SYM100", CategoryType},
		{"SYN100", CategorySyntax},
		{"PAR003", CategorySyntax},
		{"GEN200", CategoryGenerated},
		{"typ0412", CategoryType}, // case-insensitive
		{"XYZ999", CategoryOther},
		{"", CategoryOther},
	}

	policy := DefaultCategoryPolicy()
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Categorize(tt.code))
		})
	}
}

func TestSeverityFromString(t *testing.T) {
	assert.Equal(t, SeverityError, SeverityFromString("error"))
	assert.Equal(t, SeverityError, SeverityFromString("fatal"))
	assert.Equal(t, SeverityWarning, SeverityFromString("warn"))
	assert.Equal(t, SeverityInfo, SeverityFromString("note"))
	assert.Equal(t, SeverityWarning, SeverityFromString("bogus"))
}
