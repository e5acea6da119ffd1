// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"sync"
	"time"
)

// =============================================================================
// ANALYZER CONFIG
// =============================================================================

// AnalyzerConfig configures how to run a static analyzer.
//
// Thread Safety: Treat as immutable after creation.
type AnalyzerConfig struct {
	// Toolchain identifies the analyzer (e.g., "qc", the default
	// project toolchain analyzer).
	Toolchain string

	// Command is the analyzer executable name.
	Command string

	// Args are the arguments for a full analysis pass. The project path
	// is appended as the final argument.
	Args []string

	// ErrorsOnlyArgs are the arguments for the cheaper errors-only pass.
	// Empty means errors-only filtering happens after parsing instead.
	ErrorsOnlyArgs []string

	// Timeout is the maximum time to wait for the analyzer.
	Timeout time.Duration

	// Available indicates whether the analyzer binary was found in PATH.
	// Set by Adapter.DetectAvailable.
	Available bool
}

// Clone returns a deep copy of the config.
func (c *AnalyzerConfig) Clone() *AnalyzerConfig {
	clone := &AnalyzerConfig{
		Toolchain:      c.Toolchain,
		Command:        c.Command,
		Args:           make([]string, len(c.Args)),
		ErrorsOnlyArgs: make([]string, len(c.ErrorsOnlyArgs)),
		Timeout:        c.Timeout,
		Available:      c.Available,
	}
	copy(clone.Args, c.Args)
	copy(clone.ErrorsOnlyArgs, c.ErrorsOnlyArgs)
	return clone
}

// DefaultConfig is the configuration for the standard toolchain analyzer.
//
// Description:
//
//	"qc" is the toolchain's batch checker. It prints one diagnostic per
//	line in the fixed grammar parsed by ParseDiagnostics and exits zero
//	even when diagnostics are present; a non-zero exit indicates the
//	checker itself failed.
var DefaultConfig = AnalyzerConfig{
	Toolchain: "qc",
	Command:   "qc",
	Args: []string{
		"check",
		"--format=line",
		"--no-color",
	},
	ErrorsOnlyArgs: []string{
		"check",
		"--format=line",
		"--no-color",
		"--errors-only",
	},
	Timeout: 120 * time.Second,
}

// =============================================================================
// CONFIG REGISTRY
// =============================================================================

// ConfigRegistry manages analyzer configurations per toolchain.
//
// Thread Safety: Safe for concurrent use after initialization.
type ConfigRegistry struct {
	mu      sync.RWMutex
	configs map[string]*AnalyzerConfig
}

// NewConfigRegistry creates a registry with the default configuration.
func NewConfigRegistry() *ConfigRegistry {
	r := &ConfigRegistry{
		configs: make(map[string]*AnalyzerConfig),
	}
	r.Register(&DefaultConfig)
	return r
}

// Register adds or updates an analyzer configuration.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) Register(config *AnalyzerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[config.Toolchain] = config.Clone()
}

// Get returns a clone of the configuration for a toolchain, or nil.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) Get(toolchain string) *AnalyzerConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.configs[toolchain]
	if !ok {
		return nil
	}
	return config.Clone()
}

// SetAvailable marks an analyzer as available or unavailable.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) SetAvailable(toolchain string, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if config, ok := r.configs[toolchain]; ok {
		config.Available = available
	}
}

// Toolchains returns all registered toolchain names.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) Toolchains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	return names
}
