// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package execguard

import (
	"regexp"
	"strings"
)

// =============================================================================
// SAFETY POLICY
// =============================================================================

// Policy is the two-pass validation gate for shell commands.
//
// Description:
//
//	Pass 1 checks the command's leading token against a fixed allow-list
//	of recognized program names. Pass 2 scans the whole command line for
//	deny patterns: redirection, chaining, substitution, privilege
//	escalation, recursive deletes, and fetch-and-execute idioms. Both
//	passes always run regardless of the other's outcome.
//
// Thread Safety: Safe for concurrent use (immutable after creation).
type Policy struct {
	allowed map[string]struct{}
	denied  []denyPattern
}

// denyPattern pairs a compiled pattern with the audit name reported on
// rejection.
type denyPattern struct {
	name    string
	pattern *regexp.Regexp
}

// DefaultAllowList is the fixed set of recognized program names: the
// project's build tool, its analyzer, the package manager, the code
// generator, version control, and a small set of read-only utilities.
var DefaultAllowList = []string{
	// Toolchain
	"qb",   // build tool
	"qc",   // static analyzer
	"qpm",  // package manager (dependency resolution)
	"qgen", // code generator
	// Version control
	"git",
	// Read-only shell utilities
	"ls", "cat", "head", "tail", "grep", "find", "wc", "stat", "pwd", "which",
}

// defaultDenyPatterns are the dangerous idioms rejected even for
// allow-listed programs.
var defaultDenyPatterns = []struct {
	name    string
	pattern string
}{
	{"redirection", `[<>]`},
	{"pipe", `\|`},
	{"chaining", `&&|\|\||;|&`},
	{"command_substitution", "`|\\$\\("},
	{"privilege_escalation", `(^|\s)(sudo|doas|su)(\s|$)`},
	{"recursive_delete", `(^|\s)rm\s+(-[a-zA-Z]*r[a-zA-Z]*f|-[a-zA-Z]*f[a-zA-Z]*r)(\s|$)`},
	{"fetch_and_execute", `(^|\s)(curl|wget)\s`},
}

// PolicyOption configures a Policy.
type PolicyOption func(*policyBuilder)

type policyBuilder struct {
	extraAllowed []string
	extraDenied  []string
}

// WithExtraAllowed adds program names to the allow-list.
func WithExtraAllowed(names ...string) PolicyOption {
	return func(b *policyBuilder) {
		b.extraAllowed = append(b.extraAllowed, names...)
	}
}

// WithExtraDenyPatterns adds regex deny patterns.
func WithExtraDenyPatterns(patterns ...string) PolicyOption {
	return func(b *policyBuilder) {
		b.extraDenied = append(b.extraDenied, patterns...)
	}
}

// NewPolicy creates the default policy, optionally extended.
//
// Description:
//
//	The base allow-list and deny patterns are always present; options
//	only add to them, never remove. Invalid extra patterns are dropped.
//
// Inputs:
//
//	opts - Optional policy extensions
//
// Outputs:
//
//	*Policy - The compiled policy
func NewPolicy(opts ...PolicyOption) *Policy {
	b := &policyBuilder{}
	for _, opt := range opts {
		opt(b)
	}

	p := &Policy{
		allowed: make(map[string]struct{}, len(DefaultAllowList)+len(b.extraAllowed)),
	}
	for _, name := range DefaultAllowList {
		p.allowed[name] = struct{}{}
	}
	for _, name := range b.extraAllowed {
		p.allowed[strings.TrimSpace(name)] = struct{}{}
	}

	for _, d := range defaultDenyPatterns {
		p.denied = append(p.denied, denyPattern{
			name:    d.name,
			pattern: regexp.MustCompile(d.pattern),
		})
	}
	for _, raw := range b.extraDenied {
		re, err := regexp.Compile(raw)
		if err != nil {
			continue
		}
		p.denied = append(p.denied, denyPattern{name: "custom", pattern: re})
	}

	return p
}

// Validate runs both safety passes over a command line.
//
// Description:
//
//	Returns ok=false with the name of the first failed check. The deny
//	scan runs even when the allow-list check already failed, so audit
//	records name the most specific violation.
//
// Inputs:
//
//	commandText - The full command line
//
// Outputs:
//
//	ok - True when the command passes both checks
//	reason - Name of the failed check when ok is false
func (p *Policy) Validate(commandText string) (ok bool, reason string) {
	trimmed := strings.TrimSpace(commandText)
	if trimmed == "" {
		return false, "empty_command"
	}

	// Pass 2 first for reporting precision: a denied idiom is a more
	// specific violation than an unknown program name.
	for _, d := range p.denied {
		if d.pattern.MatchString(trimmed) {
			return false, "deny_pattern:" + d.name
		}
	}

	// Pass 1: leading token must be a recognized program name.
	leading := leadingToken(trimmed)
	if _, found := p.allowed[leading]; !found {
		return false, "not_allow_listed:" + leading
	}

	return true, ""
}

// leadingToken extracts the program name from a command line, stripping
// any path prefix so "/usr/bin/git" and "git" validate identically.
func leadingToken(commandText string) string {
	fields := strings.Fields(commandText)
	if len(fields) == 0 {
		return ""
	}
	token := fields[0]
	if idx := strings.LastIndexByte(token, '/'); idx >= 0 {
		token = token[idx+1:]
	}
	return token
}
