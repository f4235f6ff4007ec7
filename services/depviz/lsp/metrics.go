// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for the language server.
var (
	tracer = otel.Tracer("depviz.lsp")
	meter  = otel.Meter("depviz.lsp")
)

var (
	messageLatency metric.Float64Histogram
	messageTotal   metric.Int64Counter
	clientErrors   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		messageLatency, err = meter.Float64Histogram(
			"depviz_lsp_message_duration_seconds",
			metric.WithDescription("Duration of handled LSP messages"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		messageTotal, err = meter.Int64Counter(
			"depviz_lsp_messages_total",
			metric.WithDescription("Total number of handled LSP messages"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		clientErrors, err = meter.Int64Counter(
			"depviz_lsp_client_errors_total",
			metric.WithDescription("Failures reported to the client with window/logMessage"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordMessage records latency and outcome of one handled message.
func recordMessage(ctx context.Context, method string, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("success", success),
	)
	messageLatency.Record(ctx, duration.Seconds(), attrs)
	messageTotal.Add(ctx, 1, attrs)
}

// recordClientError counts one window/logMessage error.
func recordClientError(ctx context.Context, method string) {
	if err := initMetrics(); err != nil {
		return
	}
	clientErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

// startMessageSpan creates a span for one handled message.
func startMessageSpan(ctx context.Context, method string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "lsp."+method,
		trace.WithAttributes(attribute.String("lsp.method", method)),
	)
}
