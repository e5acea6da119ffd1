// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recovery

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for recovery sessions.
var (
	tracer = otel.Tracer("mend.recovery")
	meter  = otel.Meter("mend.recovery")
)

// Metrics for recovery sessions.
var (
	sessionLatency metric.Float64Histogram
	sessionTotal   metric.Int64Counter
	attemptsUsed   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		sessionLatency, err = meter.Float64Histogram(
			"recovery_session_duration_seconds",
			metric.WithDescription("Duration of recovery sessions"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		sessionTotal, err = meter.Int64Counter(
			"recovery_sessions_total",
			metric.WithDescription("Total number of recovery sessions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		attemptsUsed, err = meter.Int64Histogram(
			"recovery_attempts_used",
			metric.WithDescription("Attempts consumed per session"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startSessionSpan creates a span for one recovery session.
func startSessionSpan(ctx context.Context, sessionID, projectPath string, maxAttempts int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Orchestrator.Run",
		trace.WithAttributes(
			attribute.String("recovery.session_id", sessionID),
			attribute.String("recovery.project_path", projectPath),
			attribute.Int("recovery.max_attempts", maxAttempts),
		),
	)
}

// startAttemptSpan creates a span for one attempt.
func startAttemptSpan(ctx context.Context, attemptNumber, preErrors int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Orchestrator.attempt",
		trace.WithAttributes(
			attribute.Int("recovery.attempt", attemptNumber),
			attribute.Int("recovery.pre_errors", preErrors),
		),
	)
}

// recordSessionMetrics records metrics for one completed session.
func recordSessionMetrics(ctx context.Context, status Status, stopReason string, attempts int, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("status", string(status)),
		attribute.String("stop_reason", stopReason),
	)

	sessionLatency.Record(ctx, duration.Seconds(), attrs)
	sessionTotal.Add(ctx, 1, attrs)
	attemptsUsed.Record(ctx, int64(attempts), attrs)
}
