// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stages

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("depviz.stages")
	meter  = otel.Meter("depviz.stages")
)

var (
	stageLatency  metric.Float64Histogram
	stageTargets  metric.Int64Counter
	stageFailures metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		stageLatency, err = meter.Float64Histogram(
			"depviz_stage_duration_seconds",
			metric.WithDescription("Duration of one stage over one unit"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		stageTargets, err = meter.Int64Counter(
			"depviz_stage_targets_total",
			metric.WithDescription("Targets processed by stages"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		stageFailures, err = meter.Int64Counter(
			"depviz_stage_failures_total",
			metric.WithDescription("Targets whose processing failed and was skipped"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordStageMetrics(ctx context.Context, report StageReport) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("stage", report.Stage))
	stageLatency.Record(ctx, report.Duration.Seconds(), attrs)
	stageTargets.Add(ctx, int64(report.Targets), attrs)
	if n := report.Failed(); n > 0 {
		stageFailures.Add(ctx, int64(n), attrs)
	}
}
