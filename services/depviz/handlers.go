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
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/DependViz/services/depviz/graph"
	"github.com/AleutianAI/DependViz/services/depviz/pipeline"
)

// Handlers contains the HTTP handlers for the DependViz API.
//
// Thread Safety: Safe for concurrent use; all state lives in the Service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers backed by svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID returns the caller's X-Request-ID or a new one, and
// echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// writeGraphFailure answers with the empty graph and reports err in
// ErrorHeader.
func writeGraphFailure(c *gin.Context, handler string, err error) {
	analysisErrorsTotal.WithLabelValues(handler).Inc()
	c.Header(ErrorHeader, headerSafe(err.Error()))
	c.JSON(http.StatusOK, graph.EmptyWire())
}

// headerSafe flattens a message onto one line.
func headerSafe(msg string) string {
	return strings.Join(strings.Fields(msg), " ")
}

// writeServiceError maps request-level service errors to a status. It
// returns false for analysis failures, which callers report out of band.
func writeServiceError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, ErrNotJavaFile), errors.Is(err, ErrUnsupportedURI):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_PATH"})
	case errors.Is(err, ErrServiceClosed):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "SERVICE_CLOSED"})
	case errors.Is(err, ErrSweepInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "SWEEP_IN_PROGRESS"})
	default:
		return false
	}
	return true
}

// HandleHealth handles GET /v1/depviz/health.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		Version:     Version,
		Workspace:   h.svc.Workspace(),
		SourceRoot:  h.svc.Engine().SourceRoot(),
		CachedFiles: h.svc.CachedFiles(),
	})
}

// HandleAnalyze handles POST /v1/depviz/analyze.
//
// Description:
//
//	Re-analyzes one document, from the supplied content or from disk, and
//	caches the result. The response is always a wire graph; when the file
//	cannot be analyzed it is the empty graph and the reason is in the
//	X-DependViz-Error header.
//
// Request Body:
//
//	DocumentRequest
//
// Response:
//
//	200 OK: graph.WireGraph
//	400 Bad Request: Missing path
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyze")

	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "path is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	g, err := h.svc.Change(c.Request.Context(), req.Path, req.contentBytes())
	if err != nil {
		logger.Warn("Analysis failed", "path", req.Path, "error", err)
		writeGraphFailure(c, "HandleAnalyze", err)
		return
	}
	c.JSON(http.StatusOK, g.ToWire())
}

// HandleFile handles GET /v1/depviz/file.
//
// Query Parameters:
//
//	path: Absolute path or file:// URI of a .java file (required)
//
// Response:
//
//	200 OK: graph.WireGraph, cached or freshly analyzed. Empty with
//	        X-DependViz-Error on failure.
//	400 Bad Request: Missing path
//
// Thread Safety: Safe for concurrent use. Requests for one path are
// serialized by the service.
func (h *Handlers) HandleFile(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleFile")

	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "path parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	g, err := h.svc.FileGraph(c.Request.Context(), path)
	if err != nil {
		logger.Warn("File graph unavailable", "path", path, "error", err)
		writeGraphFailure(c, "HandleFile", err)
		return
	}
	c.JSON(http.StatusOK, g.ToWire())
}

// HandleOpen handles POST /v1/depviz/documents/open.
//
// Response:
//
//	200 OK: DocumentResponse. Cached is false, with X-DependViz-Error,
//	        when the file could not be analyzed.
//	400 Bad Request: Missing or non-Java path
func (h *Handlers) HandleOpen(c *gin.Context) {
	h.handleDocument(c, "HandleOpen", opOpen)
}

// HandleChange handles POST /v1/depviz/documents/change.
//
// Response: as HandleOpen.
func (h *Handlers) HandleChange(c *gin.Context) {
	h.handleDocument(c, "HandleChange", opChange)
}

// HandleClose handles POST /v1/depviz/documents/close.
//
// Response:
//
//	200 OK: DocumentResponse with Cached false
//	400 Bad Request: Missing or non-Java path
func (h *Handlers) HandleClose(c *gin.Context) {
	h.handleDocument(c, "HandleClose", opClose)
}

func (h *Handlers) handleDocument(c *gin.Context, handler, op string) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", handler)

	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "path is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	var (
		g   *graph.CodeGraph
		err error
	)
	ctx := c.Request.Context()
	switch op {
	case opOpen:
		if req.Content != nil {
			g, err = h.svc.Change(ctx, req.Path, req.contentBytes())
		} else {
			g, err = h.svc.Open(ctx, req.Path)
		}
	case opChange:
		g, err = h.svc.Change(ctx, req.Path, req.contentBytes())
	case opClose:
		err = h.svc.Close(req.Path)
	}

	if err != nil {
		if writeServiceError(c, err) {
			return
		}
		logger.Warn("Document operation failed", "operation", op, "path", req.Path, "error", err)
		analysisErrorsTotal.WithLabelValues(handler).Inc()
		c.Header(ErrorHeader, headerSafe(err.Error()))
		c.JSON(http.StatusOK, DocumentResponse{Path: req.Path})
		return
	}

	resp := DocumentResponse{Path: req.Path}
	if g != nil {
		resp.Cached = true
		resp.Nodes = g.NodeCount()
		resp.Edges = g.EdgeCount()
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSweep handles POST /v1/depviz/sweep.
//
// Description:
//
//	Analyzes every eligible file under the requested root and replaces the
//	project graph. The request context bounds the sweep: a client that
//	disconnects cancels it between files.
//
// Request Body:
//
//	SweepRequest (optional)
//
// Response:
//
//	200 OK: SweepResponse. On discovery failure the graph is empty and
//	        X-DependViz-Error is set.
//	400 Bad Request: Invalid body
//	409 Conflict: Another sweep is running
func (h *Handlers) HandleSweep(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSweep")

	var req SweepRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "invalid sweep request",
				Code:  "INVALID_REQUEST",
			})
			return
		}
	}

	var opts []pipeline.SweepOption
	if req.Workers > 0 {
		opts = append(opts, pipeline.WithSweepWorkers(req.Workers))
	}

	result, err := h.svc.Sweep(c.Request.Context(), req.Root, opts...)
	if err != nil {
		if writeServiceError(c, err) {
			return
		}
		logger.Warn("Sweep failed", "root", req.Root, "error", err)
		analysisErrorsTotal.WithLabelValues("HandleSweep").Inc()
		c.Header(ErrorHeader, headerSafe(err.Error()))
		c.JSON(http.StatusOK, SweepResponse{Graph: graph.EmptyWire()})
		return
	}

	logger.Info("Sweep finished",
		"sweep_id", result.ID,
		"files_analyzed", result.FilesAnalyzed,
		"files_failed", result.FilesFailed)
	c.JSON(http.StatusOK, SweepResponse{Report: result, Graph: result.Graph.ToWire()})
}

// HandleProject handles GET /v1/depviz/project.
//
// Response:
//
//	200 OK: graph.WireGraph of the project. The first request sweeps the
//	        source root. Empty with X-DependViz-Error on failure.
func (h *Handlers) HandleProject(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleProject")

	g, err := h.svc.ProjectGraph(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrSweepInProgress) || errors.Is(err, ErrServiceClosed) {
			writeServiceError(c, err)
			return
		}
		logger.Warn("Project graph unavailable", "error", err)
		writeGraphFailure(c, "HandleProject", err)
		return
	}
	c.JSON(http.StatusOK, g.ToWire())
}

// HandleMerge handles POST /v1/depviz/merge.
//
// Description:
//
//	Merges two client-held wire graphs with the monotone merge rules.
//	Link endpoints may be node ids or embedded node objects.
//
// Request Body:
//
//	MergeRequest
//
// Response:
//
//	200 OK: graph.WireGraph
//	400 Bad Request: Missing source or invalid graph
func (h *Handlers) HandleMerge(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleMerge")

	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "a valid source graph is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	target := graph.NewCodeGraph()
	if req.Target != nil {
		decoded, err := graph.FromWire(req.Target)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "target: " + err.Error(), Code: "INVALID_GRAPH"})
			return
		}
		target = decoded
	}

	stats, err := graph.MergeWire(target, req.Source)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "source: " + err.Error(), Code: "INVALID_GRAPH"})
		return
	}

	logger.Debug("Graphs merged",
		"nodes_added", stats.NodesAdded,
		"nodes_refined", stats.NodesRefined,
		"edges_added", stats.EdgesAdded)
	c.JSON(http.StatusOK, target.ToWire())
}
