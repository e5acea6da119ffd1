// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"bufio"
	"bytes"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// DIAGNOSTIC LINE PARSER
// =============================================================================

// The analyzer emits one diagnostic per line using a fixed grammar:
//
//	severity: file:line:col: CODE: message
//
// The column segment is optional; some analyzer versions omit it on
// incremental runs. Example:
//
//	error: src/orders/handler.q:14:7: TYP0412: unresolved symbol 'ledger'
var diagnosticLine = regexp.MustCompile(
	`^\s*(error|warning|info|note|hint|fatal)\s*:\s*(.+?):(\d+)(?::(\d+))?\s*:\s*([A-Za-z]{2,4}\d{3,5})\s*:\s*(.+?)\s*$`,
)

// ParseDiagnostics parses raw analyzer output into issues.
//
// Description:
//
//	Scans the combined stdout/stderr output line by line. Lines that do
//	not match the diagnostic grammar (progress chatter, banners, stack
//	traces) are dropped with a debug log, never fatal. Issue order
//	follows analyzer output order.
//
// Inputs:
//
//	output - Raw combined analyzer output
//
// Outputs:
//
//	[]Issue - Parsed issues in output order (possibly empty, never nil)
func ParseDiagnostics(output []byte) []Issue {
	issues := make([]Issue, 0, 16)
	dropped := 0

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		issue, ok := parseLine(line)
		if !ok {
			dropped++
			slog.Debug("Dropped malformed diagnostic line",
				slog.String("line", truncate(line, 200)),
			)
			continue
		}
		issues = append(issues, issue)
	}

	if dropped > 0 {
		slog.Debug("Analyzer output contained non-diagnostic lines",
			slog.Int("dropped", dropped),
			slog.Int("parsed", len(issues)),
		)
	}

	return issues
}

// parseLine parses a single diagnostic line.
func parseLine(line string) (Issue, bool) {
	m := diagnosticLine.FindStringSubmatch(line)
	if m == nil {
		return Issue{}, false
	}

	lineNum, err := strconv.Atoi(m[3])
	if err != nil || lineNum < 1 {
		return Issue{}, false
	}

	col := 0
	if m[4] != "" {
		// Already validated as digits by the pattern.
		col, _ = strconv.Atoi(m[4])
	}

	return Issue{
		Severity: SeverityFromString(m[1]),
		File:     m[2],
		Line:     lineNum,
		Column:   col,
		Code:     strings.ToUpper(m[5]),
		Message:  m[6],
	}, true
}

// truncate shortens a string for log output.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
