// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// =============================================================================
// ANALYZER ADAPTER
// =============================================================================

// Adapter executes the static analyzer and produces snapshots.
//
// Description:
//
//	Manages analyzer execution, output parsing, and errors-only
//	filtering. Detects analyzer availability at startup and surfaces
//	missing binaries as ErrToolUnavailable.
//
// Thread Safety: Safe for concurrent use.
type Adapter struct {
	configs   *ConfigRegistry
	policy    *CategoryPolicy
	toolchain string
	available map[string]bool
	availMu   sync.RWMutex
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithConfigs sets a custom config registry.
func WithConfigs(configs *ConfigRegistry) Option {
	return func(a *Adapter) {
		a.configs = configs
	}
}

// WithToolchain selects the analyzer toolchain (default "qc").
func WithToolchain(toolchain string) Option {
	return func(a *Adapter) {
		a.toolchain = toolchain
	}
}

// WithCategoryPolicy sets a custom rule-code category policy.
func WithCategoryPolicy(policy *CategoryPolicy) Option {
	return func(a *Adapter) {
		a.policy = policy
	}
}

// NewAdapter creates a new analyzer adapter.
//
// Description:
//
//	Creates an adapter with default or custom configuration.
//	Call DetectAvailable to probe PATH for the analyzer binary.
//
// Inputs:
//
//	opts - Optional configuration options
//
// Outputs:
//
//	*Adapter - The configured adapter
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		configs:   NewConfigRegistry(),
		policy:    DefaultCategoryPolicy(),
		toolchain: DefaultConfig.Toolchain,
		available: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DetectAvailable checks which analyzers are installed.
//
// Description:
//
//	Probes the system PATH for each configured analyzer binary and
//	updates the Available flag in configurations.
//
// Outputs:
//
//	map[string]bool - Map of toolchain to availability
//
// Thread Safety: Safe for concurrent use.
func (a *Adapter) DetectAvailable() map[string]bool {
	a.availMu.Lock()
	defer a.availMu.Unlock()

	result := make(map[string]bool)
	for _, toolchain := range a.configs.Toolchains() {
		config := a.configs.Get(toolchain)
		if config == nil {
			continue
		}

		_, err := exec.LookPath(config.Command)
		available := err == nil

		a.available[toolchain] = available
		a.configs.SetAvailable(toolchain, available)
		result[toolchain] = available

		if available {
			slog.Info("Analyzer available",
				slog.String("toolchain", toolchain),
				slog.String("command", config.Command),
			)
		} else {
			slog.Warn("Analyzer not installed",
				slog.String("toolchain", toolchain),
				slog.String("command", config.Command),
			)
		}
	}
	return result
}

// IsAvailable returns whether the selected analyzer is available.
//
// Thread Safety: Safe for concurrent use.
func (a *Adapter) IsAvailable() bool {
	a.availMu.RLock()
	defer a.availMu.RUnlock()
	return a.available[a.toolchain]
}

// Policy returns the category policy in use.
func (a *Adapter) Policy() *CategoryPolicy {
	return a.policy
}

// Analyze runs static analysis over a project tree.
//
// Description:
//
//	Invokes the analyzer subprocess with combined stdout/stderr capture,
//	parses each diagnostic line, and returns an immutable snapshot.
//	When errorsOnly is set, warning and info records are filtered out
//	before the snapshot is built; this is the cheaper pre-check used
//	before expensive corrective steps.
//
// Inputs:
//
//	ctx - Context for cancellation and timeout
//	projectPath - Root of the project tree to analyze
//	errorsOnly - Filter out warnings and infos
//	takenAt - Monotonic attempt index recorded on the snapshot
//
// Outputs:
//
//	*Snapshot - The analysis snapshot
//	error - Non-nil if the analyzer could not run
//
// Errors:
//
//	ErrInvalidInput - ctx nil or projectPath empty
//	ErrToolUnavailable - Analyzer missing or non-diagnostic failure; fatal
//	ErrAnalyzerTimeout - Analyzer exceeded its timeout
//
// Thread Safety: Safe for concurrent use.
func (a *Adapter) Analyze(ctx context.Context, projectPath string, errorsOnly bool, takenAt int) (*Snapshot, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if projectPath == "" {
		return nil, fmt.Errorf("%w: projectPath must not be empty", ErrInvalidInput)
	}

	ctx, span := startAnalyzeSpan(ctx, a.toolchain, projectPath, errorsOnly)
	defer span.End()
	start := time.Now()

	config := a.configs.Get(a.toolchain)
	if config == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToolchain, a.toolchain)
	}

	if _, err := exec.LookPath(config.Command); err != nil {
		recordAnalyzeMetrics(ctx, a.toolchain, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: %s not found in PATH", ErrToolUnavailable, config.Command)
	}

	if info, err := os.Stat(projectPath); err != nil || !info.IsDir() {
		recordAnalyzeMetrics(ctx, a.toolchain, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: project path %s", ErrToolUnavailable, projectPath)
	}

	output, err := a.execute(ctx, config, projectPath, errorsOnly)
	if err != nil {
		recordAnalyzeMetrics(ctx, a.toolchain, time.Since(start), 0, false)
		return nil, err
	}

	issues := ParseDiagnostics(output)
	if errorsOnly {
		filtered := issues[:0]
		for _, issue := range issues {
			if issue.Severity == SeverityError {
				filtered = append(filtered, issue)
			}
		}
		issues = filtered
	}

	snapshot := NewSnapshot(issues, takenAt)

	setAnalyzeSpanResult(span, snapshot.ErrorCount, snapshot.WarningCount)
	recordAnalyzeMetrics(ctx, a.toolchain, time.Since(start), snapshot.ErrorCount, true)

	slog.Debug("Analysis completed",
		slog.String("project", projectPath),
		slog.String("toolchain", a.toolchain),
		slog.Duration("duration", time.Since(start)),
		slog.Int("errors", snapshot.ErrorCount),
		slog.Int("warnings", snapshot.WarningCount),
	)

	return snapshot, nil
}

// execute runs the analyzer subprocess with combined output capture.
func (a *Adapter) execute(ctx context.Context, config *AnalyzerConfig, projectPath string, errorsOnly bool) ([]byte, error) {
	args := config.Args
	if errorsOnly && len(config.ErrorsOnlyArgs) > 0 {
		args = config.ErrorsOnlyArgs
	}
	argv := make([]string, len(args), len(args)+1)
	copy(argv, args)
	argv = append(argv, projectPath)

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, config.Command, argv...)
	cmd.Dir = projectPath

	// Diagnostics may arrive on either stream depending on analyzer
	// version; capture both into one buffer.
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	err := cmd.Run()

	if cmdCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: %s after %s", ErrAnalyzerTimeout, config.Command, timeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// The analyzer exits zero even with diagnostics present. A non-zero
	// exit with no parsable output is a checker failure, fatal for the
	// session.
	if err != nil && len(ParseDiagnostics(combined.Bytes())) == 0 {
		return nil, fmt.Errorf("%w: %s: %v: %s",
			ErrToolUnavailable, config.Command, err, truncate(combined.String(), 500))
	}

	return combined.Bytes(), nil
}
