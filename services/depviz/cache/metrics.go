// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("depviz.cache")

var (
	lookupTotal   metric.Int64Counter
	evictionTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		lookupTotal, err = meter.Int64Counter(
			"depviz_cache_lookups_total",
			metric.WithDescription("Cache lookups by backend and result"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		evictionTotal, err = meter.Int64Counter(
			"depviz_cache_capacity_evictions_total",
			metric.WithDescription("Entries evicted to make room"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordLookup(ctx context.Context, backend string, hit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	lookupTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("result", result),
	))
}

func recordEviction(ctx context.Context, backend string) {
	if err := initMetrics(); err != nil {
		return
	}
	evictionTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}
