// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"strings"
	"sync"
)

// =============================================================================
// CATEGORY POLICY
// =============================================================================

// CategoryPolicy maps analyzer rule codes to coarse issue categories.
//
// Description:
//
//	Codes are matched by prefix, case-insensitively. For example, the
//	prefix "TYP" matches "TYP0412" and "TYP/unresolved". The first
//	category whose prefix list matches wins; unmatched codes fall back
//	to CategoryOther.
//
// Thread Safety: Treat as immutable after creation.
type CategoryPolicy struct {
	// Prefixes maps a category to the rule-code prefixes that select it.
	Prefixes map[Category][]string

	// order fixes the evaluation order so overlapping prefixes resolve
	// deterministically.
	order []Category
}

// DefaultCategoryPolicy returns the default rule-code bucketing.
//
// Description:
//
//	The prefix tables are a tunable policy, not hard law: deployments
//	with analyzers using different code families should register their
//	own policy via Adapter options.
//
// Outputs:
//
//	*CategoryPolicy - The default policy
func DefaultCategoryPolicy() *CategoryPolicy {
	return &CategoryPolicy{
		Prefixes: map[Category][]string{
			CategoryImport:    {"IMP", "DEP", "PKG", "MOD"},
			CategoryType:      {"TYP", "SYM", "REF"},
			CategorySyntax:    {"SYN", "PAR", "LEX"},
			CategoryGenerated: {"GEN", "CGN"},
		},
		order: []Category{CategoryImport, CategoryType, CategorySyntax, CategoryGenerated},
	}
}

// Categorize returns the category for an analyzer rule code.
//
// Inputs:
//
//	code - The analyzer rule identifier (e.g., "TYP0412")
//
// Outputs:
//
//	Category - The matched category, or CategoryOther
func (p *CategoryPolicy) Categorize(code string) Category {
	code = strings.ToUpper(code)
	for _, cat := range p.order {
		for _, prefix := range p.Prefixes[cat] {
			if strings.HasPrefix(code, strings.ToUpper(prefix)) {
				return cat
			}
		}
	}
	return CategoryOther
}

// =============================================================================
// DEFAULT POLICY ACCESS
// =============================================================================

var (
	defaultPolicy     *CategoryPolicy
	defaultPolicyOnce sync.Once
)

// CategorizeCode categorizes a rule code using the default policy.
//
// Thread Safety: Safe for concurrent use.
func CategorizeCode(code string) Category {
	defaultPolicyOnce.Do(func() {
		defaultPolicy = DefaultCategoryPolicy()
	})
	return defaultPolicy.Categorize(code)
}
