// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/tessellate-ai/mend/services/mend/config"
)

// --- Global Command Variables ---
var (
	cfg *config.Config

	configPath      string
	maxAttempts     int
	errorsOnly      bool
	sessionID       string
	exportPath      string
	checkErrorsOnly bool

	rootCmd = &cobra.Command{
		Use:   "mend",
		Short: "A cli that drives a broken project back to a compiling state",
		Long: `Mend runs an analyze-suggest-fix loop against a project that no
longer compiles: it collects diagnostics from the toolchain checker,
asks the configured suggestion gateway for commands and file rewrites,
applies them under guard, and repeats until the project is clean or
the attempt budget runs out.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loaded, err := config.Load(configPath)
			if err != nil {
				log.Fatalf("Error loading configuration: %v", err)
			}
			cfg = loaded
			setupLogging(cfg.Log)
		},
	}

	// --- Recovery ---
	recoverCmd = &cobra.Command{
		Use:   "recover [project path]",
		Short: "Run a recovery session until the project compiles or the budget runs out",
		Args:  cobra.ExactArgs(1),
		Run:   runRecover, // Defined in cmd_recover.go
	}

	// --- Analysis ---
	checkCmd = &cobra.Command{
		Use:   "check [project path]",
		Short: "Analyze the project and print diagnostics without changing anything",
		Args:  cobra.ExactArgs(1),
		Run:   runCheck, // Defined in cmd_check.go
	}

	// --- Session Logs ---
	logCmd = &cobra.Command{
		Use:   "log",
		Short: "Inspect persisted recovery session logs",
	}
	logListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored session identifiers",
		Run:   runLogList, // Defined in cmd_log.go
	}
	logShowCmd = &cobra.Command{
		Use:   "show [session-id]",
		Short: "Print the full session document as JSON",
		Args:  cobra.ExactArgs(1),
		Run:   runLogShow, // Defined in cmd_log.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the configuration file (default ~/.mend/mend.yaml)")

	recoverCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Override the configured attempt bound")
	recoverCmd.Flags().BoolVar(&errorsOnly, "errors-only-first-pass", true, "Run the cheaper errors-only analysis on the first pass")
	recoverCmd.Flags().StringVar(&sessionID, "session-id", "", "Pin the session identifier (generated when empty)")
	recoverCmd.Flags().StringVar(&exportPath, "export", "", "Write the session result as JSON to this file")

	checkCmd.Flags().BoolVar(&checkErrorsOnly, "errors-only", false, "Report errors and suppress warnings")

	logCmd.AddCommand(logListCmd, logShowCmd)
	rootCmd.AddCommand(recoverCmd, checkCmd, logCmd)
}
