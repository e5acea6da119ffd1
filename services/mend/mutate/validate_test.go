// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mutate

import (
	"errors"
	"testing"
)

func TestValidateFix(t *testing.T) {
	tests := []struct {
		name    string
		fix     FileFix
		wantErr bool
	}{
		{
			name: "valid modify",
			fix:  FileFix{Path: "a.q", Op: OpModify, NewContent: "fn main() { run() }\n"},
		},
		{
			name: "valid create",
			fix:  FileFix{Path: "b.q", Op: OpCreate, NewContent: "module b\n"},
		},
		{
			name: "valid delete without content",
			fix:  FileFix{Path: "c.q", Op: OpDelete},
		},
		{
			name:    "empty path",
			fix:     FileFix{Path: "", Op: OpModify, NewContent: "x"},
			wantErr: true,
		},
		{
			name:    "unknown operation",
			fix:     FileFix{Path: "a.q", Op: Operation("truncate"), NewContent: "x"},
			wantErr: true,
		},
		{
			name:    "empty content for modify",
			fix:     FileFix{Path: "a.q", Op: OpModify, NewContent: "   \n"},
			wantErr: true,
		},
		{
			name:    "delete with content",
			fix:     FileFix{Path: "a.q", Op: OpDelete, NewContent: "x"},
			wantErr: true,
		},
		{
			name:    "unclosed brace",
			fix:     FileFix{Path: "a.q", Op: OpModify, NewContent: "fn main() {\n  run(\n}"},
			wantErr: true,
		},
		{
			name:    "stray closer",
			fix:     FileFix{Path: "a.q", Op: OpModify, NewContent: "fn main() }\n"},
			wantErr: true,
		},
		{
			name:    "mismatched pair",
			fix:     FileFix{Path: "a.q", Op: OpModify, NewContent: "items = [1, 2)\n"},
			wantErr: true,
		},
		{
			name: "delimiters inside string ignored",
			fix:  FileFix{Path: "a.q", Op: OpModify, NewContent: `msg = "unbalanced ) { [ here"` + "\n"},
		},
		{
			name: "delimiters inside line comment ignored",
			fix:  FileFix{Path: "a.q", Op: OpModify, NewContent: "run() // closing ) } ]\n"},
		},
		{
			name: "delimiters inside hash comment ignored",
			fix:  FileFix{Path: "a.q", Op: OpModify, NewContent: "run() # closing ) } ]\n"},
		},
		{
			name: "escaped quote in string",
			fix:  FileFix{Path: "a.q", Op: OpModify, NewContent: `s = "say \"hi\" (ok)"` + "\n"},
		},
		{
			name: "nested delimiters",
			fix:  FileFix{Path: "a.q", Op: OpModify, NewContent: "m = {a: [f(1), f(2)], b: {c: 3}}\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFix(tt.fix)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected rejection, got nil")
				}
				if !errors.Is(err, ErrFixRejected) {
					t.Errorf("error %v is not ErrFixRejected", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected rejection: %v", err)
			}
		})
	}
}
