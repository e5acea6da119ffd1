// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessellate-ai/mend/services/mend/recovery"
	"github.com/tessellate-ai/mend/services/mend/telemetry"
)

// runRecover drives one recovery session and reports the outcome.
//
// Exit codes: 0 when the project converged, 1 when the session ended
// without convergence, 2 on operational failure (busy project, missing
// analyzer, bad configuration).
func runRecover(cmd *cobra.Command, args []string) {
	project, err := filepath.Abs(args[0])
	if err != nil {
		log.Fatalf("Error resolving project path: %v", err)
	}

	shutdown, err := telemetry.Init(cmd.Context(), telemetry.DefaultConfig())
	if err != nil {
		log.Fatalf("Error initializing telemetry: %v", err)
	}

	manager, cleanup, err := buildManager(cfg)
	if err != nil {
		log.Fatalf("Error building recovery engine: %v", err)
	}

	req := recovery.Request{
		ProjectPath:         project,
		SessionID:           sessionID,
		MaxAttempts:         maxAttempts,
		ErrorsOnlyFirstPass: errorsOnly,
	}
	if !cmd.Flags().Changed("errors-only-first-pass") {
		req.ErrorsOnlyFirstPass = cfg.Engine.ErrorsOnlyFirstPass
	}

	result, runErr := manager.Recover(cmd.Context(), req)

	// Cleanup runs before os.Exit, so release everything explicitly.
	cleanup()
	if err := shutdown(context.Background()); err != nil {
		log.Printf("Telemetry shutdown: %v", err)
	}

	if result == nil {
		log.Printf("Recovery failed: %v", runErr)
		os.Exit(2)
	}

	printResult(result)
	if exportPath != "" {
		if err := exportResult(result, exportPath); err != nil {
			log.Printf("Exporting result: %v", err)
		}
	}

	if result.Status != recovery.StatusSucceeded {
		os.Exit(1)
	}
}

// printResult writes a human-readable session report to stdout.
func printResult(result *recovery.Result) {
	fmt.Printf("session:  %s\n", result.SessionID)
	fmt.Printf("status:   %s (%s)\n", result.Status, result.StopReason)
	fmt.Printf("errors:   %d -> %d\n", result.InitialErrorCount, result.FinalErrorCount)
	fmt.Printf("attempts: %d (%d commands, %d fixes)\n",
		len(result.Attempts), result.CommandsExecuted, result.FixesApplied)
	fmt.Printf("duration: %s\n", result.Duration.Round(time.Millisecond))

	for _, attempt := range result.Attempts {
		trend := "unknown"
		if attempt.Progress != nil {
			trend = string(attempt.Progress.Trend)
		}
		post := "?"
		if attempt.Post != nil {
			post = fmt.Sprintf("%d", attempt.Post.ErrorCount)
		}
		fmt.Printf("  attempt %d: %d -> %s errors (%s)\n",
			attempt.Number, attempt.Pre.ErrorCount, post, trend)
	}
	fmt.Println(result.Summary)
}

// exportResult writes the result document as indented JSON.
func exportResult(result *recovery.Result, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
