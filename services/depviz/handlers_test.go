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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/DependViz/services/depviz/graph"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T) (*gin.Engine, *Service, testWorkspace) {
	t.Helper()
	ws := newTestWorkspace(t)
	svc := newTestService(t, ws)
	router := NewRouter(NewHandlers(svc), RouterOptions{ServiceName: "depviz-test", Metrics: true})
	return router, svc, ws
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeWire(t *testing.T, w *httptest.ResponseRecorder) *graph.WireGraph {
	t.Helper()
	var wire graph.WireGraph
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wire))
	return &wire
}

func hasLink(w *graph.WireGraph, source, target string, edgeType graph.EdgeType) bool {
	for _, l := range w.Links {
		if string(l.Source) == source && string(l.Target) == target && l.Type == edgeType {
			return true
		}
	}
	return false
}

func TestHandleHealth(t *testing.T) {
	router, svc, _ := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/v1/depviz/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, svc.Workspace(), resp.Workspace)
	assert.Equal(t, 0, resp.CachedFiles)
}

func TestHandleAnalyze_EchoesRequestID(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/depviz/analyze", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestHandleAnalyze(t *testing.T) {
	router, svc, ws := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/depviz/analyze", DocumentRequest{Path: ws.circle})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(ErrorHeader))

	wire := decodeWire(t, w)
	assert.True(t, hasLink(wire, "com.acme.model.Circle", "com.acme.model.Shape", graph.EdgeTypeExtends))
	assert.Equal(t, 1, svc.CachedFiles())
}

func TestHandleAnalyze_FailureIsOutOfBand(t *testing.T) {
	router, svc, ws := setupTestRouter(t)

	broken := "package com.acme.model;\nclass Broken {\n  int x = ;\n}\n"
	w := doJSON(t, router, http.MethodPost, "/v1/depviz/analyze", DocumentRequest{
		Path:    ws.file("Broken.java"),
		Content: &broken,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(ErrorHeader))
	assert.NotContains(t, w.Header().Get(ErrorHeader), "\n")
	assert.JSONEq(t, `{"nodes":[],"links":[]}`, w.Body.String())
	assert.Equal(t, 0, svc.CachedFiles())

	w = doJSON(t, router, http.MethodPost, "/v1/depviz/analyze", DocumentRequest{Path: ws.root + "/pom.xml"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get(ErrorHeader), ErrNotJavaFile.Error())
}

func TestHandleFile(t *testing.T) {
	router, _, ws := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/v1/depviz/file", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	target := "/v1/depviz/file?path=" + url.QueryEscape(URIFromPath(ws.shape))
	w = doJSON(t, router, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, w.Code)

	wire := decodeWire(t, w)
	require.Len(t, wire.Nodes, 1)
	assert.Equal(t, "com.acme.model.Shape", wire.Nodes[0].ID)
	assert.Equal(t, graph.NodeTypeAbstractClass, wire.Nodes[0].Type)

	target = "/v1/depviz/file?path=" + url.QueryEscape(ws.file("Missing.java"))
	w = doJSON(t, router, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(ErrorHeader))
	assert.JSONEq(t, `{"nodes":[],"links":[]}`, w.Body.String())
}

func TestHandleDocuments(t *testing.T) {
	router, svc, ws := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/depviz/documents/open", DocumentRequest{Path: ws.circle})
	require.Equal(t, http.StatusOK, w.Code)
	var resp DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.Equal(t, 2, resp.Nodes)
	assert.Equal(t, 1, svc.CachedFiles())

	bad := "class {"
	w = doJSON(t, router, http.MethodPost, "/v1/depviz/documents/change", DocumentRequest{Path: ws.circle, Content: &bad})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(ErrorHeader))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Cached)
	assert.Equal(t, 0, svc.CachedFiles())

	w = doJSON(t, router, http.MethodPost, "/v1/depviz/documents/change", DocumentRequest{Path: ws.circle})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.CachedFiles())

	w = doJSON(t, router, http.MethodPost, "/v1/depviz/documents/close", DocumentRequest{Path: ws.circle})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Cached)
	assert.Equal(t, 0, svc.CachedFiles())

	w = doJSON(t, router, http.MethodPost, "/v1/depviz/documents/open", DocumentRequest{Path: "README.md"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "INVALID_PATH", errResp.Code)
}

func TestHandleSweepAndProject(t *testing.T) {
	router, _, ws := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/depviz/sweep", SweepRequest{Workers: 2})
	require.Equal(t, http.StatusOK, w.Code)

	var resp SweepResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Report)
	assert.Equal(t, 2, resp.Report.FilesAnalyzed)
	assert.Equal(t, 0, resp.Report.FilesFailed)
	assert.NotEmpty(t, resp.Report.ID)
	assert.True(t, hasLink(resp.Graph, "com.acme.model.Circle", "com.acme.model.Shape", graph.EdgeTypeExtends))

	w = doJSON(t, router, http.MethodGet, "/v1/depviz/project", nil)
	require.Equal(t, http.StatusOK, w.Code)
	project := decodeWire(t, w)
	assert.Len(t, project.Nodes, len(resp.Graph.Nodes))

	// An empty body sweeps the source root as well.
	req := httptest.NewRequest(http.MethodPost, "/v1/depviz/sweep", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/depviz/sweep", SweepRequest{Root: ws.root + "/does-not-exist"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(ErrorHeader))
}

func TestHandleSweep_Conflict(t *testing.T) {
	router, svc, _ := setupTestRouter(t)

	svc.sweeping.Store(true)
	defer svc.sweeping.Store(false)

	w := doJSON(t, router, http.MethodPost, "/v1/depviz/sweep", SweepRequest{})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleMerge(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	body := `{
	  "target": {"nodes":[{"id":"a.A","name":"A","type":"Unknown","linesOfCode":-1,"filePath":null}],"links":[]},
	  "source": {
	    "nodes":[
	      {"id":"a.A","name":"A","type":"Class","linesOfCode":4,"filePath":"/w/A.java"},
	      {"id":"a.B","name":"B","type":"Unknown","linesOfCode":-1,"filePath":null}
	    ],
	    "links":[{"source":{"id":"a.A"},"target":"a.B","type":"TypeUse"}]
	  }
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/depviz/merge", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	wire := decodeWire(t, w)
	require.Len(t, wire.Nodes, 2)
	assert.Equal(t, graph.NodeTypeClass, wire.Nodes[0].Type)
	assert.Equal(t, 4, wire.Nodes[0].LinesOfCode)
	assert.True(t, hasLink(wire, "a.A", "a.B", graph.EdgeTypeTypeUse))

	w = doJSON(t, router, http.MethodPost, "/v1/depviz/merge", map[string]any{"target": graph.EmptyWire()})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/depviz/merge",
		strings.NewReader(`{"source":{"nodes":[{"id":"","name":"x","type":"Class","linesOfCode":1,"filePath":null}],"links":[]}}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	doJSON(t, router, http.MethodGet, "/v1/depviz/health", nil)
	w := doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "depviz_http_request_duration_seconds")
}

func TestHeaderSafe(t *testing.T) {
	assert.Equal(t, "a b c", headerSafe("a\nb\r\n  c"))
	assert.NotContains(t, headerSafe(strings.Repeat("x\n", 3)), "\n")
}
