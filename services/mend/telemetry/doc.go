// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry initializes the OpenTelemetry SDK for mend.
//
// Be opinionated about the API, flexible about the backend: packages use
// otel.Tracer() and otel.Meter() directly, and the backend is chosen here
// through exporter configuration. A CLI tool has no scrape endpoint, so
// the supported exporters are "stdout" (pretty-printed spans and metric
// dumps, useful when debugging a stuck session) and "none" (the default
// for interactive runs).
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Environment Variables
//
//   - OTEL_TRACES_EXPORTER: stdout or none (default: none)
//   - OTEL_METRICS_EXPORTER: stdout or none (default: none)
//   - MEND_ENV: environment name (default: development)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init() returns.
package telemetry
