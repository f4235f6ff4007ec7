// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package symbols

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("depviz.symbols")
	meter  = otel.Meter("depviz.symbols")
)

var (
	resolutionTotal metric.Int64Counter
	indexTypes      metric.Int64UpDownCounter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		resolutionTotal, err = meter.Int64Counter(
			"depviz_resolutions_total",
			metric.WithDescription("Symbol resolutions by kind and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		indexTypes, err = meter.Int64UpDownCounter(
			"depviz_index_types",
			metric.WithDescription("Types currently held by source-root indexes"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordResolution counts one resolution attempt.
func recordResolution(kind string, err error) {
	if initMetrics() != nil {
		return
	}
	resolutionTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", err == nil),
	))
}

// recordIndexDelta adjusts the indexed type gauge.
func recordIndexDelta(delta int) {
	if delta == 0 || initMetrics() != nil {
		return
	}
	indexTypes.Add(context.Background(), int64(delta))
}
