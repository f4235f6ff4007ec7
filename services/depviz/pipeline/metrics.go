// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("depviz.pipeline")
	meter  = otel.Meter("depviz.pipeline")
)

var (
	analysisLatency metric.Float64Histogram
	analysisTotal   metric.Int64Counter
	sweepLatency    metric.Float64Histogram
	sweepFiles      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisLatency, err = meter.Float64Histogram(
			"depviz_file_analysis_duration_seconds",
			metric.WithDescription("Duration of single-file analyses"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisTotal, err = meter.Int64Counter(
			"depviz_file_analyses_total",
			metric.WithDescription("Total single-file analyses by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		sweepLatency, err = meter.Float64Histogram(
			"depviz_sweep_duration_seconds",
			metric.WithDescription("Duration of project sweeps"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		sweepFiles, err = meter.Int64Counter(
			"depviz_sweep_files_total",
			metric.WithDescription("Files handled by project sweeps by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordAnalysis(ctx context.Context, d time.Duration, ok bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", ok))
	analysisLatency.Record(ctx, d.Seconds(), attrs)
	analysisTotal.Add(ctx, 1, attrs)
}

func recordSweep(ctx context.Context, r *SweepResult) {
	if err := initMetrics(); err != nil {
		return
	}
	sweepLatency.Record(ctx, r.Duration.Seconds(),
		metric.WithAttributes(attribute.Bool("cancelled", r.Cancelled)))
	sweepFiles.Add(ctx, int64(r.FilesAnalyzed), metric.WithAttributes(attribute.String("outcome", "analyzed")))
	sweepFiles.Add(ctx, int64(r.FilesFailed), metric.WithAttributes(attribute.String("outcome", "failed")))
}
