// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package recovery drives a broken project back to a compiling state.
//
// The orchestrator runs an explicit state machine over bounded attempts:
// analyze, request suggestions, execute vetted commands, apply validated
// file rewrites, re-analyze, score the delta. It stops on convergence
// (zero errors), attempt exhaustion, consecutive regressions, a blown
// session budget, or a fatal collaborator failure. The Manager layers
// per-project exclusion, parallel sessions across distinct projects,
// and session log persistence on top.
package recovery
