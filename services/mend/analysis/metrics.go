// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for analysis operations.
var (
	tracer = otel.Tracer("mend.analysis")
	meter  = otel.Meter("mend.analysis")
)

// Metrics for analyzer invocations.
var (
	analyzeLatency metric.Float64Histogram
	analyzeTotal   metric.Int64Counter
	errorsFound    metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analyzeLatency, err = meter.Float64Histogram(
			"analysis_duration_seconds",
			metric.WithDescription("Duration of analyzer invocations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analyzeTotal, err = meter.Int64Counter(
			"analysis_total",
			metric.WithDescription("Total number of analyzer invocations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		errorsFound, err = meter.Int64Histogram(
			"analysis_errors_found",
			metric.WithDescription("Number of errors found per invocation"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startAnalyzeSpan creates a span for an analyzer invocation.
func startAnalyzeSpan(ctx context.Context, toolchain, projectPath string, errorsOnly bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Adapter.Analyze",
		trace.WithAttributes(
			attribute.String("analysis.toolchain", toolchain),
			attribute.String("analysis.project_path", projectPath),
			attribute.Bool("analysis.errors_only", errorsOnly),
		),
	)
}

// setAnalyzeSpanResult sets the result attributes on an analyze span.
func setAnalyzeSpanResult(span trace.Span, errorCount, warningCount int) {
	span.SetAttributes(
		attribute.Int("analysis.error_count", errorCount),
		attribute.Int("analysis.warning_count", warningCount),
	)
}

// recordAnalyzeMetrics records metrics for one analyzer invocation.
func recordAnalyzeMetrics(ctx context.Context, toolchain string, duration time.Duration, errorCount int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("toolchain", toolchain),
		attribute.Bool("success", success),
	)

	analyzeLatency.Record(ctx, duration.Seconds(), attrs)
	analyzeTotal.Add(ctx, 1, attrs)

	if success {
		errorsFound.Record(ctx, int64(errorCount), metric.WithAttributes(
			attribute.String("toolchain", toolchain),
		))
	}
}
