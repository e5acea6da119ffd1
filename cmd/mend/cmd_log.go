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

	"github.com/spf13/cobra"
)

// runLogList prints the identifiers of all stored sessions.
func runLogList(cmd *cobra.Command, args []string) {
	logs, err := openSessionStore(cfg)
	if err != nil {
		log.Fatalf("Error opening session store: %v", err)
	}
	defer func() { _ = logs.Close() }()

	ids, err := logs.List(cmd.Context())
	if err != nil {
		log.Fatalf("Error listing sessions: %v", err)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

// runLogShow dumps one session document as JSON to stdout.
func runLogShow(cmd *cobra.Command, args []string) {
	logs, err := openSessionStore(cfg)
	if err != nil {
		log.Fatalf("Error opening session store: %v", err)
	}
	defer func() { _ = logs.Close() }()

	if err := logs.Export(cmd.Context(), args[0], os.Stdout); err != nil {
		log.Fatalf("Error exporting session %s: %v", args[0], err)
	}
	fmt.Println()
}
