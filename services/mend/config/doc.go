// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads and validates the engine configuration.
//
// Configuration lives in a YAML file (default ~/.mend/mend.yaml,
// created with defaults on first run). Every field has a working
// default so a bare invocation needs no file at all.
package config
