// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"
	"log/slog"

	"github.com/tessellate-ai/mend/pkg/logging"
	"github.com/tessellate-ai/mend/services/mend/analysis"
	"github.com/tessellate-ai/mend/services/mend/config"
	"github.com/tessellate-ai/mend/services/mend/execguard"
	"github.com/tessellate-ai/mend/services/mend/lock"
	"github.com/tessellate-ai/mend/services/mend/recovery"
	"github.com/tessellate-ai/mend/services/mend/store"
	"github.com/tessellate-ai/mend/services/mend/suggest"
)

// setupLogging installs the default slog logger per configuration.
// Logs go to stderr so command output stays pipeable; file logging
// activates when log.dir is configured.
func setupLogging(lc config.LogConfig) {
	logger, err := logging.New(logging.Config{
		Level:   logging.ParseLevel(lc.Level),
		Format:  lc.Format,
		Dir:     lc.Dir,
		Service: "mend",
	})
	if err != nil {
		log.Fatalf("Error setting up logging: %v", err)
	}
	slog.SetDefault(logger.Slog())
}

// buildAnalyzer constructs the toolchain adapter from configuration.
//
// The built-in "qc" configuration is the baseline; overrides replace the
// binary name, arguments, or timeout without losing the rest. Custom
// argument lists drop the errors-only variant, so errors-only filtering
// happens after parsing instead.
func buildAnalyzer(ac config.AnalyzerConfig) *analysis.Adapter {
	cfg := analysis.DefaultConfig.Clone()
	cfg.Toolchain = ac.Toolchain
	if ac.Command != "" {
		cfg.Command = ac.Command
	} else if ac.Toolchain != analysis.DefaultConfig.Toolchain {
		cfg.Command = ac.Toolchain
	}
	if len(ac.Args) > 0 {
		cfg.Args = ac.Args
		cfg.ErrorsOnlyArgs = nil
	}
	if ac.Timeout > 0 {
		cfg.Timeout = ac.Timeout.Std()
	}

	registry := analysis.NewConfigRegistry()
	registry.Register(cfg)

	adapter := analysis.NewAdapter(
		analysis.WithConfigs(registry),
		analysis.WithToolchain(ac.Toolchain),
	)
	adapter.DetectAvailable()
	return adapter
}

// buildManager wires the full session manager from configuration.
//
// Outputs:
//
//	*recovery.Manager - The wired manager
//	func() - Cleanup releasing the guard and session store
//	error - Non-nil when a collaborator cannot be constructed
func buildManager(cfg *config.Config) (*recovery.Manager, func(), error) {
	gateway, err := suggest.NewOpenAIGateway(suggest.GatewayConfig{
		BaseURL:           cfg.Gateway.BaseURL,
		Model:             cfg.Gateway.Model,
		CallTimeout:       cfg.Gateway.Timeout.Std(),
		MaxRetries:        cfg.Gateway.MaxRetries,
		RequestsPerSecond: cfg.Gateway.RequestsPerSecond,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("building suggestion gateway: %w", err)
	}

	guard, err := lock.NewGuard(lock.WithTTL(cfg.Engine.LockTTL.Std()))
	if err != nil {
		return nil, nil, fmt.Errorf("building project guard: %w", err)
	}

	var opts []recovery.ManagerOption
	var logs *store.Store
	if cfg.Store.Path != "" {
		logs, err = store.Open(store.DefaultConfig(cfg.Store.Path))
		if err != nil {
			_ = guard.Close()
			return nil, nil, fmt.Errorf("opening session store: %w", err)
		}
		opts = append(opts, recovery.WithSessionStore(logs))
	}

	if len(cfg.Guard.ExtraAllowed) > 0 || len(cfg.Guard.ExtraDenyPatterns) > 0 {
		policy := execguard.NewPolicy(
			execguard.WithExtraAllowed(cfg.Guard.ExtraAllowed...),
			execguard.WithExtraDenyPatterns(cfg.Guard.ExtraDenyPatterns...),
		)
		opts = append(opts, recovery.WithExecutionPolicy(policy))
	}

	manager, err := recovery.NewManager(
		buildAnalyzer(cfg.Analyzer),
		gateway,
		guard,
		recovery.Config{
			MaxAttempts:     cfg.Engine.MaxAttempts,
			RegressionLimit: cfg.Engine.RegressionLimit,
			SessionBudget:   cfg.Engine.SessionBudget.Std(),
			CommandTimeout:  cfg.Guard.CommandTimeout.Std(),
		},
		opts...,
	)
	if err != nil {
		_ = guard.Close()
		if logs != nil {
			_ = logs.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		if err := guard.Close(); err != nil {
			slog.Warn("closing project guard", slog.String("error", err.Error()))
		}
		if logs != nil {
			if err := logs.Close(); err != nil {
				slog.Warn("closing session store", slog.String("error", err.Error()))
			}
		}
	}
	return manager, cleanup, nil
}

// openSessionStore opens the configured session store for log inspection.
func openSessionStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, fmt.Errorf("session persistence is disabled: set store.path in the configuration")
	}
	return store.Open(store.DefaultConfig(cfg.Store.Path))
}
