// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store persists recovery session logs in an embedded BadgerDB.
//
// Each completed session is written as one JSON document keyed by
// session ID, so a later invocation can answer "what did the last run
// against this project do" without any external database. In-memory
// mode exists for tests.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package store
