// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package suggest

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/tessellate-ai/mend/services/mend/mutate"
)

// =============================================================================
// PATCH EXPANSION
// =============================================================================

// expandPatch parses a unified diff and materializes each touched file into
// a whole-file Fix by applying the hunks to the current content.
//
// Description:
//
//	The downstream mutator only understands complete-file rewrites, so a
//	patch directive is expanded here: each file's pre-image is read via
//	readFile, hunks are applied line by line, and the post-image becomes
//	the fix content. Creation patches (pre-image /dev/null) become create
//	fixes; deletion patches (post-image /dev/null) become delete fixes.
//
// Inputs:
//
//	patchText - Unified diff text, possibly multi-file
//	readFile - Pre-image resolver for modified files
//
// Outputs:
//
//	[]Fix - One whole-file fix per touched file, in patch order
//	error - ErrMalformedPatch if the diff cannot be parsed or applied
func expandPatch(patchText string, readFile FileReader) ([]Fix, error) {
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(patchText))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPatch, err)
	}
	if len(fileDiffs) == 0 {
		return nil, fmt.Errorf("%w: no file sections", ErrMalformedPatch)
	}

	fixes := make([]Fix, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		fix, err := expandFileDiff(fd, readFile)
		if err != nil {
			return nil, err
		}
		fixes = append(fixes, fix)
	}
	return fixes, nil
}

// expandFileDiff materializes one file section of a parsed diff.
func expandFileDiff(fd *diff.FileDiff, readFile FileReader) (Fix, error) {
	origPath := normalizeDiffPath(fd.OrigName)
	newPath := normalizeDiffPath(fd.NewName)

	switch {
	case origPath == "" && newPath == "":
		return Fix{}, fmt.Errorf("%w: file section without names", ErrMalformedPatch)

	case origPath == "":
		// New file: the post-image is the hunk additions alone.
		content, err := applyHunks("", fd.Hunks)
		if err != nil {
			return Fix{}, err
		}
		return Fix{Path: newPath, Op: mutate.OpCreate, Content: content}, nil

	case newPath == "":
		return Fix{Path: origPath, Op: mutate.OpDelete}, nil

	default:
		if readFile == nil {
			return Fix{}, fmt.Errorf("%w: no pre-image reader for %s", ErrMalformedPatch, origPath)
		}
		before, err := readFile(origPath)
		if err != nil {
			return Fix{}, fmt.Errorf("%w: reading pre-image %s: %v", ErrMalformedPatch, origPath, err)
		}
		content, err := applyHunks(string(before), fd.Hunks)
		if err != nil {
			return Fix{}, err
		}
		return Fix{Path: newPath, Op: mutate.OpModify, Content: content}, nil
	}
}

// normalizeDiffPath strips the conventional a/ b/ prefixes and maps
// /dev/null to the empty string.
func normalizeDiffPath(name string) string {
	if name == "" || name == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

// applyHunks applies hunks to the pre-image and returns the post-image.
//
// Context lines must match the pre-image exactly; any drift means the
// patch was written against different content and is rejected rather
// than fuzzily applied.
func applyHunks(before string, hunks []*diff.Hunk) (string, error) {
	var beforeLines []string
	if before != "" {
		beforeLines = strings.Split(strings.TrimSuffix(before, "\n"), "\n")
	}

	var out []string
	cursor := 0 // index into beforeLines of the next unconsumed line

	for _, hunk := range hunks {
		// Hunk line numbers are 1-based; 0 means an empty pre-image side.
		start := int(hunk.OrigStartLine) - 1
		if start < 0 {
			start = 0
		}
		if start < cursor || start > len(beforeLines) {
			return "", fmt.Errorf("%w: hunk at line %d out of order", ErrMalformedPatch, hunk.OrigStartLine)
		}
		out = append(out, beforeLines[cursor:start]...)
		cursor = start

		for _, raw := range strings.Split(strings.TrimSuffix(string(hunk.Body), "\n"), "\n") {
			if raw == "" {
				continue
			}
			marker, text := raw[0], raw[1:]
			switch marker {
			case ' ':
				if cursor >= len(beforeLines) || beforeLines[cursor] != text {
					return "", fmt.Errorf("%w: context mismatch at line %d", ErrMalformedPatch, cursor+1)
				}
				out = append(out, text)
				cursor++
			case '-':
				if cursor >= len(beforeLines) || beforeLines[cursor] != text {
					return "", fmt.Errorf("%w: removal mismatch at line %d", ErrMalformedPatch, cursor+1)
				}
				cursor++
			case '+':
				out = append(out, text)
			case '\\':
				// "\ No newline at end of file" marker.
			default:
				return "", fmt.Errorf("%w: unknown hunk marker %q", ErrMalformedPatch, marker)
			}
		}
	}

	out = append(out, beforeLines[cursor:]...)
	if len(out) == 0 {
		return "", nil
	}
	return strings.Join(out, "\n") + "\n", nil
}
