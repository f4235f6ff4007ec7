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
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/DependViz/services/depviz/telemetry"
)

// RegisterRoutes registers all DependViz routes with the router.
//
// Description:
//
//	Registers all /v1/depviz/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET  /v1/depviz/health - Service status
//	POST /v1/depviz/analyze - Re-analyze one file and return its graph
//	GET  /v1/depviz/file - Cached or freshly analyzed file graph
//	POST /v1/depviz/documents/open - Analyze and cache a document
//	POST /v1/depviz/documents/change - Re-analyze a changed document
//	POST /v1/depviz/documents/close - Evict a document
//	POST /v1/depviz/sweep - Sweep a directory into the project graph
//	GET  /v1/depviz/project - The project graph
//	POST /v1/depviz/merge - Merge two wire graphs
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	dv := rg.Group("/depviz")
	{
		dv.GET("/health", handlers.HandleHealth)
		dv.POST("/analyze", handlers.HandleAnalyze)
		dv.GET("/file", handlers.HandleFile)

		docs := dv.Group("/documents")
		{
			docs.POST("/open", handlers.HandleOpen)
			docs.POST("/change", handlers.HandleChange)
			docs.POST("/close", handlers.HandleClose)
		}

		dv.POST("/sweep", handlers.HandleSweep)
		dv.GET("/project", handlers.HandleProject)
		dv.POST("/merge", handlers.HandleMerge)
	}
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// ServiceName names the otelgin server spans.
	ServiceName string

	// Debug adds gin's request logger.
	Debug bool

	// Metrics exposes GET /metrics on the root router.
	Metrics bool
}

// NewRouter builds the gin engine serving the DependViz API.
func NewRouter(handlers *Handlers, opts RouterOptions) *gin.Engine {
	if opts.ServiceName == "" {
		opts.ServiceName = "depviz"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(opts.ServiceName))
	router.Use(requestMetrics())
	if opts.Debug {
		router.Use(gin.Logger())
	}

	if opts.Metrics {
		router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))
	}

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

// requestMetrics records handler latency by route and status class.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := fmt.Sprintf("%dxx", c.Writer.Status()/100)
		httpRequestSeconds.WithLabelValues(route, status).Observe(time.Since(start).Seconds())
	}
}

// NewServer wraps router in an http.Server listening on port.
func NewServer(router http.Handler, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
