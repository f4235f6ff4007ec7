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
	"github.com/AleutianAI/DependViz/services/depviz/graph"
	"github.com/AleutianAI/DependViz/services/depviz/pipeline"
)

// ErrorHeader carries the reason an analysis produced the empty graph.
// Responses that set it still use status 200 and a valid graph payload.
const ErrorHeader = "X-DependViz-Error"

// ErrorResponse is returned for malformed requests.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the machine-readable error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /v1/depviz/health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Workspace   string `json:"workspace"`
	SourceRoot  string `json:"source_root"`
	CachedFiles int    `json:"cached_files"`
}

// DocumentRequest names a document and optionally carries its full text.
type DocumentRequest struct {
	// Path is an absolute path or file:// URI.
	Path string `json:"path" binding:"required"`

	// Content is the full document text. Absent means read from disk.
	Content *string `json:"content,omitempty"`
}

// contentBytes returns the request content, or nil when absent.
func (r *DocumentRequest) contentBytes() []byte {
	if r.Content == nil {
		return nil
	}
	return []byte(*r.Content)
}

// DocumentResponse reports the cache state of a document after an
// open, change or close.
type DocumentResponse struct {
	Path   string `json:"path"`
	Cached bool   `json:"cached"`
	Nodes  int    `json:"nodes"`
	Edges  int    `json:"edges"`
}

// SweepRequest starts a sweep.
type SweepRequest struct {
	// Root is the directory to sweep. Empty means the source root.
	Root string `json:"root,omitempty"`

	// Workers bounds parallel analyses. Zero uses the configured default.
	Workers int `json:"workers,omitempty" binding:"gte=0,lte=512"`
}

// SweepResponse carries the sweep report and the merged graph.
type SweepResponse struct {
	Report *pipeline.SweepResult `json:"report"`
	Graph  *graph.WireGraph      `json:"graph"`
}

// MergeRequest merges source into target. A missing target is the empty
// graph.
type MergeRequest struct {
	Target *graph.WireGraph `json:"target"`
	Source *graph.WireGraph `json:"source" binding:"required"`
}
