// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Level
	}{
		{"debug", "debug", LevelDebug},
		{"info", "info", LevelInfo},
		{"warn", "warn", LevelWarn},
		{"warning alias", "warning", LevelWarn},
		{"error", "error", LevelError},
		{"mixed case", "DeBuG", LevelDebug},
		{"padded", "  warn  ", LevelWarn},
		{"unknown falls back to info", "verbose", LevelInfo},
		{"empty falls back to info", "", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		if ParseLevel(level.String()) != level {
			t.Errorf("level %d does not round-trip through String()", level)
		}
	}
}

func TestNew_StderrOnly(t *testing.T) {
	logger, err := New(Config{Level: LevelInfo})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.Slog() == nil {
		t.Fatal("Slog() returned nil")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()

	logger, err := New(Config{
		Level:   LevelDebug,
		Dir:     filepath.Join(dir, "logs"), // Must be created
		Service: "mend-test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Slog().Info("session started", "session_id", "sess-1")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	name := "mend-test_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, "logs", name))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("log file is not JSON: %v", err)
	}
	if entry["msg"] != "session started" {
		t.Errorf("msg = %v, want %q", entry["msg"], "session started")
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want %q", entry["session_id"], "sess-1")
	}
}

func TestNew_LevelFiltersFileOutput(t *testing.T) {
	dir := t.TempDir()

	logger, err := New(Config{Level: LevelError, Dir: dir, Service: "quiet"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Slog().Info("below threshold")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	name := "quiet_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if len(strings.TrimSpace(string(data))) != 0 {
		t.Errorf("info record leaked past error level: %q", data)
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil || logger.Slog() == nil {
		t.Fatal("Default() returned an unusable logger")
	}
}
