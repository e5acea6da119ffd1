// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is the package validator instance.
var validate = validator.New()

// Duration is a time.Duration that round-trips through YAML in the
// human form ("10m", "60s") instead of nanosecond integers.
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or an integer count
// of nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, perr := time.ParseDuration(raw)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := value.Decode(&ns); err != nil {
		return fmt.Errorf("invalid duration node: %w", err)
	}
	*d = Duration(ns)
	return nil
}

// MarshalYAML emits the human-readable form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full engine configuration.
type Config struct {
	// Engine controls the recovery loop.
	Engine EngineConfig `yaml:"engine"`

	// Analyzer overrides the default toolchain adapter.
	Analyzer AnalyzerConfig `yaml:"analyzer"`

	// Guard extends the command execution policy.
	Guard GuardConfig `yaml:"guard"`

	// Gateway configures the external suggestion capability.
	Gateway GatewayConfig `yaml:"gateway"`

	// Store configures session log persistence.
	Store StoreConfig `yaml:"store"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`
}

// EngineConfig controls the recovery loop.
type EngineConfig struct {
	// MaxAttempts bounds fix attempts per session.
	MaxAttempts int `yaml:"max_attempts" validate:"gte=1,lte=50"`

	// RegressionLimit is how many consecutive regressing attempts end
	// the session early.
	RegressionLimit int `yaml:"regression_limit" validate:"gte=1,lte=10"`

	// SessionBudget bounds total session wall time.
	SessionBudget Duration `yaml:"session_budget" validate:"gt=0"`

	// ErrorsOnlyFirstPass requests an errors-only initial analysis.
	ErrorsOnlyFirstPass bool `yaml:"errors_only_first_pass"`

	// LockTTL is the project lock time-to-live.
	LockTTL Duration `yaml:"lock_ttl" validate:"gt=0"`
}

// AnalyzerConfig overrides the toolchain adapter.
type AnalyzerConfig struct {
	// Toolchain selects the analyzer toolchain. Default "qc".
	Toolchain string `yaml:"toolchain" validate:"required"`

	// Command overrides the analyzer binary name.
	Command string `yaml:"command,omitempty"`

	// Args overrides the analyzer arguments.
	Args []string `yaml:"args,omitempty"`

	// Timeout bounds one analysis run.
	Timeout Duration `yaml:"timeout" validate:"gt=0"`
}

// GuardConfig extends the command execution policy. Extensions are
// additive: the built-in deny patterns can never be switched off.
type GuardConfig struct {
	// CommandTimeout bounds one suggested command.
	CommandTimeout Duration `yaml:"command_timeout" validate:"gt=0"`

	// ExtraAllowed adds binaries to the allow-list.
	ExtraAllowed []string `yaml:"extra_allowed,omitempty"`

	// ExtraDenyPatterns adds regular expressions to the deny list.
	ExtraDenyPatterns []string `yaml:"extra_deny_patterns,omitempty"`
}

// GatewayConfig configures the suggestion capability.
type GatewayConfig struct {
	// BaseURL overrides the API endpoint, e.g. a local model server.
	BaseURL string `yaml:"base_url,omitempty"`

	// Model is the chat model name.
	Model string `yaml:"model" validate:"required"`

	// Timeout bounds one suggestion call.
	Timeout Duration `yaml:"timeout" validate:"gt=0"`

	// MaxRetries bounds retries on transport failures.
	MaxRetries int `yaml:"max_retries" validate:"gte=0,lte=10"`

	// RequestsPerSecond throttles outbound calls.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
}

// StoreConfig configures session log persistence.
type StoreConfig struct {
	// Path is the database directory. Empty disables persistence.
	Path string `yaml:"path,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format is one of text, json.
	Format string `yaml:"format" validate:"oneof=text json"`

	// Dir enables file logging when set. Supports ~ expansion.
	Dir string `yaml:"dir,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	storePath := ""
	if home, err := os.UserHomeDir(); err == nil {
		storePath = filepath.Join(home, ".mend", "sessions")
	}
	return Config{
		Engine: EngineConfig{
			MaxAttempts:         5,
			RegressionLimit:     2,
			SessionBudget:       Duration(10 * time.Minute),
			ErrorsOnlyFirstPass: true,
			LockTTL:             Duration(time.Hour),
		},
		Analyzer: AnalyzerConfig{
			Toolchain: "qc",
			Timeout:   Duration(60 * time.Second),
		},
		Guard: GuardConfig{
			CommandTimeout: Duration(60 * time.Second),
		},
		Gateway: GatewayConfig{
			Model:             "gpt-4o-mini",
			Timeout:           Duration(120 * time.Second),
			MaxRetries:        3,
			RequestsPerSecond: 1,
		},
		Store: StoreConfig{
			Path: storePath,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration against its constraint tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
