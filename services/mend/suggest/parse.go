// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package suggest

import (
	"bufio"
	"log/slog"
	"strings"

	"github.com/tessellate-ai/mend/services/mend/mutate"
)

// =============================================================================
// DIRECTIVE PARSING
// =============================================================================

// Directive block openers. Each block runs until the next closing fence.
const (
	fenceCommand = "```mend:command"
	fencePatch   = "```mend:patch"
	fenceFix     = "```mend:fix"
	fenceClose   = "```"
)

// FileReader resolves a project-relative path to its current content.
// Patch directives need the pre-image to materialize a whole-file rewrite.
type FileReader func(path string) ([]byte, error)

// ParseDirectives extracts typed directives from a free-form transcript.
//
// Description:
//
//	Scans the transcript line by line for fenced directive blocks:
//
//	  ```mend:command
//	  <command line>
//	  <optional description lines>
//	  ```
//
//	  ```mend:fix path=<relative path> op=<create|modify|delete>
//	  <complete new file content>
//	  ```
//
//	  ```mend:patch
//	  <unified diff>
//	  ```
//
//	Everything outside a directive block is prose and is discarded.
//	Malformed blocks (missing attributes, unknown operation, unreadable
//	patch) are logged and skipped; one bad block never poisons the rest
//	of the transcript. Patch blocks are expanded into whole-file fixes
//	by applying their hunks to the content returned by readFile.
//
// Inputs:
//
//	transcript - Raw capability output
//	readFile - Pre-image resolver for patch directives (may be nil when
//	           the transcript is known to carry no patch blocks)
//
// Outputs:
//
//	*Response - Directives in transcript order, never nil
//
// Thread Safety: Safe for concurrent use.
func ParseDirectives(transcript string, readFile FileReader) *Response {
	resp := &Response{}
	scanner := bufio.NewScanner(strings.NewReader(transcript))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		inBlock   bool
		blockKind string
		blockAttr string
		body      []string
	)

	flush := func() {
		defer func() {
			inBlock = false
			blockKind = ""
			blockAttr = ""
			body = nil
		}()
		switch blockKind {
		case fenceCommand:
			cmd, ok := parseCommandBlock(body)
			if !ok {
				slog.Debug("dropping empty command directive")
				return
			}
			resp.Commands = append(resp.Commands, cmd)
		case fenceFix:
			fix, ok := parseFixBlock(blockAttr, body)
			if !ok {
				return
			}
			resp.Fixes = append(resp.Fixes, fix)
		case fencePatch:
			fixes, err := expandPatch(strings.Join(body, "\n"), readFile)
			if err != nil {
				slog.Warn("dropping malformed patch directive",
					slog.String("error", err.Error()))
				return
			}
			resp.Fixes = append(resp.Fixes, fixes...)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if !inBlock {
			switch {
			case trimmed == fenceCommand:
				inBlock, blockKind = true, fenceCommand
			case trimmed == fencePatch:
				inBlock, blockKind = true, fencePatch
			case strings.HasPrefix(trimmed, fenceFix):
				inBlock, blockKind = true, fenceFix
				blockAttr = strings.TrimSpace(strings.TrimPrefix(trimmed, fenceFix))
			}
			continue
		}

		if trimmed == fenceClose {
			flush()
			continue
		}
		body = append(body, line)
	}

	// Unterminated trailing block: treat EOF as the closing fence.
	if inBlock {
		flush()
	}

	return resp
}

// parseCommandBlock interprets a command body: first non-empty line is the
// command text, remaining lines are the description.
func parseCommandBlock(body []string) (Command, bool) {
	var cmd Command
	var descLines []string
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if cmd.Text == "" {
			cmd.Text = trimmed
			continue
		}
		descLines = append(descLines, trimmed)
	}
	if cmd.Text == "" {
		return Command{}, false
	}
	cmd.Description = strings.Join(descLines, " ")
	return cmd, true
}

// parseFixBlock interprets a fix header plus body into a whole-file rewrite.
func parseFixBlock(attrs string, body []string) (Fix, bool) {
	var fix Fix
	for _, field := range strings.Fields(attrs) {
		key, value, found := strings.Cut(field, "=")
		if !found {
			continue
		}
		switch key {
		case "path":
			fix.Path = value
		case "op":
			fix.Op = mutate.Operation(value)
		}
	}
	if fix.Op == "" {
		fix.Op = mutate.OpModify
	}
	if fix.Path == "" || !fix.Op.Valid() {
		slog.Warn("dropping malformed fix directive",
			slog.String("attrs", attrs))
		return Fix{}, false
	}
	if fix.Op != mutate.OpDelete {
		fix.Content = strings.Join(body, "\n")
		if fix.Content != "" {
			fix.Content += "\n"
		}
	}
	return fix, true
}
