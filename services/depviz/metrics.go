// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depviz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	outcomeOK       = "ok"
	outcomeFailed   = "failed"
	outcomeRejected = "rejected"
)

// =============================================================================
// Prometheus Metrics for the Request Service
// =============================================================================

var (
	// documentOpsTotal counts document operations by outcome.
	// Labels: operation (open, change, close, fetch), outcome (ok, failed, rejected)
	documentOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "depviz",
		Subsystem: "service",
		Name:      "document_operations_total",
		Help:      "Document operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// fileGraphLookupsTotal counts FileGraph cache lookups.
	// Labels: result (hit, miss)
	fileGraphLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "depviz",
		Subsystem: "service",
		Name:      "file_graph_lookups_total",
		Help:      "FileGraph lookups by cache result",
	}, []string{"result"})

	// watcherEventsTotal counts debounced file system changes handled.
	// Labels: op (create, write, remove, rename)
	watcherEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "depviz",
		Subsystem: "watcher",
		Name:      "events_total",
		Help:      "Debounced file changes handled by the watcher",
	}, []string{"op"})

	// watcherDroppedTotal counts raw events dropped on a full buffer.
	watcherDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "depviz",
		Subsystem: "watcher",
		Name:      "dropped_events_total",
		Help:      "File system events dropped because the change buffer was full",
	})

	// httpRequestSeconds measures handler latency.
	// Labels: route, status (status class such as 2xx)
	httpRequestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "depviz",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP handler latency",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
	}, []string{"route", "status"})

	// analysisErrorsTotal counts responses that carried X-DependViz-Error.
	// Labels: handler
	analysisErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "depviz",
		Subsystem: "http",
		Name:      "analysis_errors_total",
		Help:      "Responses that reported an analysis failure out of band",
	}, []string{"handler"})
)

func recordDocumentOp(op, outcome string) {
	documentOpsTotal.WithLabelValues(op, outcome).Inc()
}

func recordLookup(hit bool) {
	if hit {
		fileGraphLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	fileGraphLookupsTotal.WithLabelValues("miss").Inc()
}
