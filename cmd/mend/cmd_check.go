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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// runCheck analyzes the project once and prints the diagnostics.
//
// Exit codes: 0 when the project is clean, 1 when it has errors,
// 2 when the analyzer itself is unavailable or fails.
func runCheck(cmd *cobra.Command, args []string) {
	project, err := filepath.Abs(args[0])
	if err != nil {
		log.Fatalf("Error resolving project path: %v", err)
	}

	adapter := buildAnalyzer(cfg.Analyzer)
	snapshot, err := adapter.Analyze(cmd.Context(), project, checkErrorsOnly, 0)
	if err != nil {
		log.Printf("Analysis failed: %v", err)
		os.Exit(2)
	}

	for _, issue := range snapshot.Issues {
		fmt.Printf("%s: %s\n", issue.Severity, issue.Location())
		fmt.Printf("    %s: %s\n", issue.Code, issue.Message)
	}
	fmt.Printf("%d error(s), %d warning(s)\n", snapshot.ErrorCount, snapshot.WarningCount)

	if snapshot.ErrorCount > 0 {
		os.Exit(1)
	}
}
