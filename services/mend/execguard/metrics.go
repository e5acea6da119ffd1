// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package execguard

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for command execution.
var (
	tracer = otel.Tracer("mend.execguard")
	meter  = otel.Meter("mend.execguard")
)

// Metrics for command invocations.
var (
	commandLatency  metric.Float64Histogram
	commandTotal    metric.Int64Counter
	commandRejected metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		commandLatency, err = meter.Float64Histogram(
			"command_duration_seconds",
			metric.WithDescription("Duration of executed commands"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		commandTotal, err = meter.Int64Counter(
			"command_total",
			metric.WithDescription("Total command invocations, accepted or rejected"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		commandRejected, err = meter.Int64Counter(
			"command_rejected_total",
			metric.WithDescription("Commands rejected by the safety policy"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startExecuteSpan creates a span for a command invocation.
func startExecuteSpan(ctx context.Context, commandText string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Executor.Execute",
		trace.WithAttributes(
			attribute.String("command.text", commandText),
		),
	)
}

// setExecuteSpanResult sets result attributes on an execute span.
func setExecuteSpanResult(span trace.Span, allowed, timedOut bool) {
	span.SetAttributes(
		attribute.Bool("command.allowed", allowed),
		attribute.Bool("command.timed_out", timedOut),
	)
}

// recordExecuteMetrics records metrics for one invocation.
func recordExecuteMetrics(ctx context.Context, allowed, succeeded bool, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("allowed", allowed),
		attribute.Bool("succeeded", succeeded),
	)

	commandTotal.Add(ctx, 1, attrs)
	if !allowed {
		commandRejected.Add(ctx, 1)
		return
	}
	commandLatency.Record(ctx, duration.Seconds(), attrs)
}
