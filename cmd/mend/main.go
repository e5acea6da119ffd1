// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command mend drives a broken project back to a compiling state.
//
// It analyzes the project with the toolchain checker, asks the configured
// suggestion gateway for shell commands and file rewrites, applies them
// under guard, and re-analyzes until the project is clean or the attempt
// budget runs out.
//
// # Usage
//
//	# Run a recovery session against a project
//	mend recover ./broken-project
//
//	# Analyze only, without touching anything
//	mend check ./broken-project
//
//	# Inspect persisted session logs
//	mend log list
//	mend log show <session-id>
//
// # Configuration
//
// Configuration lives at ~/.mend/mend.yaml and is created with defaults on
// first run. Pass --config to use a different file. The suggestion gateway
// reads OPENAI_API_KEY from the environment unless a local base_url is
// configured.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Ctrl-C aborts the session cleanly: the orchestrator seals the
	// current attempt and the project lock is released.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
