// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for mend.
//
// Built on Go's standard library slog package, with a fan-out handler
// for multi-destination output:
//
//   - Default: stderr output for CLI compatibility (follows Unix conventions)
//   - Optional: file logging with automatic directory creation
//
// # Basic Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    Format:  "text",
//	    Dir:     "~/.mend/logs", // Supports ~ expansion
//	    Service: "mend",
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	slog.SetDefault(logger.Slog())
//
// File logs are named `{service}_{date}.log` and always JSON, regardless
// of the stderr format, so they stay machine-readable.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Level is the minimum severity a logger reports.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// toSlogLevel maps to the slog equivalent.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a level name to a Level. Unknown names map to
// LevelInfo, matching the configuration default.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Config controls logger construction.
type Config struct {
	// Level is the minimum severity to report.
	Level Level

	// Format selects the stderr handler: "text" (default) or "json".
	Format string

	// Dir enables file logging when non-empty. Supports ~ expansion;
	// the directory is created if missing.
	Dir string

	// Service names the log file: {service}_{date}.log. Default "mend".
	Service string
}

// Logger wraps a slog.Logger with optional file output.
//
// Thread Safety: Safe for concurrent use.
type Logger struct {
	slogger *slog.Logger
	file    *os.File
}

// New creates a logger per configuration.
//
// Description:
//
//	Always logs to stderr so command output stays pipeable. When Dir
//	is set, a JSON log file is opened (append) alongside, and records
//	fan out to both destinations.
//
// Outputs:
//
//	*Logger - The logger; call Close when file logging is enabled
//	error - Non-nil when the log directory or file cannot be created
func New(cfg Config) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level.toSlogLevel()}

	var stderr slog.Handler
	if cfg.Format == "json" {
		stderr = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		stderr = slog.NewTextHandler(os.Stderr, opts)
	}

	if cfg.Dir == "" {
		return &Logger{slogger: slog.New(stderr)}, nil
	}

	dir := expandPath(cfg.Dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating log directory %s: %w", dir, err)
	}

	service := cfg.Service
	if service == "" {
		service = "mend"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	handler := &multiHandler{handlers: []slog.Handler{
		stderr,
		slog.NewJSONHandler(file, opts),
	}}
	return &Logger{slogger: slog.New(handler), file: file}, nil
}

// Default returns a stderr-only text logger at info level.
func Default() *Logger {
	logger, _ := New(Config{Level: LevelInfo})
	return logger
}

// Slog returns the underlying slog.Logger, suitable for slog.SetDefault.
func (l *Logger) Slog() *slog.Logger {
	return l.slogger
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("syncing log file: %w", err)
	}
	return l.file.Close()
}

// =============================================================================
// FAN-OUT HANDLER
// =============================================================================

// multiHandler fans records out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

// expandPath expands a leading ~ to the user home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
		}
	}
	return path
}
