// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mutate

import (
	"fmt"
	"strings"
)

// =============================================================================
// STRUCTURAL VALIDATION
// =============================================================================

// ValidateFix checks a candidate rewrite before it may reach Apply.
//
// Description:
//
//	Structural validation is deliberately shallow: it catches content a
//	suggestion response mangled in transit (truncated files, unbalanced
//	delimiters, empty rewrites), not semantic errors — the analyzer pass
//	after application catches those. Checks:
//	  - operation is recognized and path is non-empty
//	  - create/modify content is non-empty
//	  - delete carries no content
//	  - round-bracket, square-bracket, and brace delimiters balance,
//	    ignoring string literals and line comments
//
// Inputs:
//
//	fix - The candidate rewrite
//
// Outputs:
//
//	error - ErrFixRejected (wrapped with detail) when invalid, else nil
func ValidateFix(fix FileFix) error {
	if fix.Path == "" {
		return fmt.Errorf("%w: empty path", ErrFixRejected)
	}
	if !fix.Op.Valid() {
		return fmt.Errorf("%w: unknown operation %q", ErrFixRejected, fix.Op)
	}

	switch fix.Op {
	case OpDelete:
		if fix.NewContent != "" {
			return fmt.Errorf("%w: delete must not carry content", ErrFixRejected)
		}
		return nil
	case OpCreate, OpModify:
		if strings.TrimSpace(fix.NewContent) == "" {
			return fmt.Errorf("%w: empty content for %s", ErrFixRejected, fix.Op)
		}
	}

	if err := checkBalancedDelimiters(fix.NewContent); err != nil {
		return fmt.Errorf("%w: %v", ErrFixRejected, err)
	}
	return nil
}

// checkBalancedDelimiters verifies (), [], {} balance outside string
// literals and line comments.
func checkBalancedDelimiters(content string) error {
	var stack []byte
	var inString byte // active quote char, 0 when outside
	inComment := false
	escaped := false

	for i := 0; i < len(content); i++ {
		c := content[i]

		if inComment {
			if c == '\n' {
				inComment = false
			}
			continue
		}

		if inString != 0 {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case inString:
				inString = 0
			case '\n':
				// Unterminated single-line string; stop tracking so a
				// stray quote doesn't swallow the rest of the file.
				if inString != '`' {
					inString = 0
				}
			}
			continue
		}

		switch c {
		case '"', '\'', '`':
			inString = c
		case '/':
			if i+1 < len(content) && content[i+1] == '/' {
				inComment = true
			}
		case '#':
			inComment = true
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 {
				return fmt.Errorf("unbalanced %q at offset %d", c, i)
			}
			open := stack[len(stack)-1]
			if !delimiterMatches(open, c) {
				return fmt.Errorf("mismatched %q at offset %d", c, i)
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > 0 {
		return fmt.Errorf("unclosed %q", stack[len(stack)-1])
	}
	return nil
}

// delimiterMatches pairs an opening delimiter with its closer.
func delimiterMatches(open, closing byte) bool {
	switch open {
	case '(':
		return closing == ')'
	case '[':
		return closing == ']'
	case '{':
		return closing == '}'
	default:
		return false
	}
}
