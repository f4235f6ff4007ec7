// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package depviz is the DependViz request service.
//
// It owns the per-file analysis cache, serializes work per document path,
// keeps the project graph produced by sweeps and exposes everything over
// HTTP. The LSP front end in package lsp drives the same Service.
package depviz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/DependViz/services/depviz/cache"
	"github.com/AleutianAI/DependViz/services/depviz/config"
	"github.com/AleutianAI/DependViz/services/depviz/graph"
	"github.com/AleutianAI/DependViz/services/depviz/pipeline"
)

// Document operation names used in logs and metrics.
const (
	opOpen   = "open"
	opChange = "change"
	opClose  = "close"
	opFetch  = "fetch"
)

// Service answers dependency-graph requests for one workspace.
//
// Description:
//
//	Each document path moves between two states: uncached, and cached with
//	the graph of its last successful analysis. Open and Change analyze and
//	cache; a failed analysis evicts the entry so a stale graph is never
//	served. Close evicts. FileGraph serves the cached graph or analyzes on
//	demand.
//
//	A sweep produces the project graph and records each file's own graph as
//	its contribution. A later analysis replaces that file's contribution and
//	the project graph is rebuilt from the contributions on next read, so
//	facts a file no longer states drop out of the project view.
//
// Thread Safety:
//
//	Safe for concurrent use. Operations on one path are serialized; distinct
//	paths proceed in parallel.
type Service struct {
	engine *pipeline.Engine
	cache  cache.FileAnalysisCache

	locks sync.Map // path -> *sync.Mutex

	projectMu     sync.RWMutex
	project       *graph.CodeGraph
	contributions map[string]*graph.CodeGraph
	projectStale  bool
	lastSweep     *pipeline.SweepResult

	sweeping atomic.Bool
	closed   atomic.Bool
}

// New creates a service for workspace configured by cfg.
//
// Outputs:
//   - *Service: Ready service. Call Shutdown when done.
//   - error: Invalid configuration or cache backend failure.
func New(workspace string, cfg *config.Config) (*Service, error) {
	opts, err := EngineOptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	engine, err := pipeline.NewEngine(workspace, opts...)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	c, err := cache.New(CacheOptionsFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return NewService(engine, c), nil
}

// NewService wraps an engine and a cache. The service takes ownership of
// the cache and closes it in Shutdown.
func NewService(engine *pipeline.Engine, c cache.FileAnalysisCache) *Service {
	return &Service{engine: engine, cache: c}
}

// Engine returns the analysis engine.
func (s *Service) Engine() *pipeline.Engine {
	return s.engine
}

// Workspace returns the absolute workspace root.
func (s *Service) Workspace() string {
	return s.engine.Workspace()
}

// CachedFiles returns the number of cached document graphs.
func (s *Service) CachedFiles() int {
	return s.cache.Len()
}

// Open analyzes the file on disk and caches its graph.
//
// Outputs:
//   - *graph.CodeGraph: The new graph, owned by the caller.
//   - error: ErrNotJavaFile, ErrServiceClosed, or a
//     *pipeline.FileAnalysisError after which the path is uncached.
func (s *Service) Open(ctx context.Context, path string) (*graph.CodeGraph, error) {
	return s.refresh(ctx, opOpen, path, nil)
}

// Change re-analyzes a document and replaces its cached graph.
//
// content holds the full current text of the document; nil means read the
// file from disk. On failure the previous graph is evicted.
func (s *Service) Change(ctx context.Context, path string, content []byte) (*graph.CodeGraph, error) {
	return s.refresh(ctx, opChange, path, content)
}

// Close evicts the cached graph of a document.
func (s *Service) Close(path string) error {
	if s.closed.Load() {
		return ErrServiceClosed
	}
	abs, err := normalizeDocument(path)
	if err != nil {
		recordDocumentOp(opClose, outcomeRejected)
		return err
	}

	unlock := s.lockPath(abs)
	defer unlock()

	if err := s.cache.Evict(abs); err != nil {
		recordDocumentOp(opClose, outcomeFailed)
		return fmt.Errorf("evict %s: %w", abs, err)
	}
	recordDocumentOp(opClose, outcomeOK)
	slog.Debug("document closed", slog.String("file", abs))
	return nil
}

// FileGraph returns the graph of one file.
//
// Description:
//
//	Serves the cached graph when present. Otherwise the file is analyzed
//	from disk and the result cached.
//
// Outputs:
//   - *graph.CodeGraph: The graph. A cached graph is shared and must be
//     treated as read-only.
//   - error: ErrNotJavaFile, ErrServiceClosed or a
//     *pipeline.FileAnalysisError.
func (s *Service) FileGraph(ctx context.Context, path string) (*graph.CodeGraph, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	abs, err := normalizeDocument(path)
	if err != nil {
		recordDocumentOp(opFetch, outcomeRejected)
		return nil, err
	}

	unlock := s.lockPath(abs)
	defer unlock()

	g, err := s.cache.Get(abs)
	switch {
	case err == nil:
		recordLookup(true)
		return g, nil
	case !errors.Is(err, cache.ErrMiss):
		slog.Warn("cache read failed, re-analyzing",
			slog.String("file", abs),
			slog.String("error", err.Error()))
	}
	recordLookup(false)

	return s.analyzeLocked(ctx, opFetch, abs, nil)
}

// refresh normalizes path and re-analyzes it under the path lock.
func (s *Service) refresh(ctx context.Context, op, path string, content []byte) (*graph.CodeGraph, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	abs, err := normalizeDocument(path)
	if err != nil {
		recordDocumentOp(op, outcomeRejected)
		return nil, err
	}

	unlock := s.lockPath(abs)
	defer unlock()

	return s.analyzeLocked(ctx, op, abs, content)
}

// analyzeLocked analyzes abs and updates the cache. The caller holds the
// path lock.
func (s *Service) analyzeLocked(ctx context.Context, op, abs string, content []byte) (*graph.CodeGraph, error) {
	var (
		g   *graph.CodeGraph
		err error
	)
	if content == nil {
		g, err = s.engine.AnalyzeFile(ctx, abs)
	} else {
		g, err = s.engine.AnalyzeSource(ctx, abs, content)
	}
	if err != nil {
		s.setContribution(abs, nil)
		if evictErr := s.cache.Evict(abs); evictErr != nil {
			slog.Warn("evicting failed document",
				slog.String("file", abs),
				slog.String("error", evictErr.Error()))
		}
		recordDocumentOp(op, outcomeFailed)
		slog.Warn("document analysis failed",
			slog.String("operation", op),
			slog.String("file", abs),
			slog.String("error", err.Error()))
		return nil, err
	}

	if err := s.cache.Put(abs, g); err != nil {
		recordDocumentOp(op, outcomeFailed)
		return nil, fmt.Errorf("cache %s: %w", abs, err)
	}
	s.setContribution(abs, g.Clone())
	recordDocumentOp(op, outcomeOK)
	return g, nil
}

// lockPath acquires the mutex for path and returns its release function.
func (s *Service) lockPath(path string) func() {
	v, _ := s.locks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// setContribution replaces the project contribution of path. A nil graph
// removes it. Nothing is tracked until a sweep has produced a project graph.
func (s *Service) setContribution(path string, g *graph.CodeGraph) {
	s.projectMu.Lock()
	defer s.projectMu.Unlock()
	if s.project == nil {
		return
	}
	if g == nil {
		if _, ok := s.contributions[path]; !ok {
			return
		}
		delete(s.contributions, path)
	} else {
		s.contributions[path] = g
	}
	s.projectStale = true
}

// forgetFile drops the project contribution of a file that no longer
// exists.
func (s *Service) forgetFile(path string) {
	abs, err := normalizeDocument(path)
	if err != nil {
		return
	}
	unlock := s.lockPath(abs)
	defer unlock()
	s.setContribution(abs, nil)
}

// projectSnapshot returns a copy of the project graph, rebuilding it from
// the file contributions if any changed since the last read. Returns nil
// before the first sweep.
func (s *Service) projectSnapshot() *graph.CodeGraph {
	s.projectMu.Lock()
	defer s.projectMu.Unlock()
	if s.project == nil {
		return nil
	}
	if s.projectStale {
		paths := make([]string, 0, len(s.contributions))
		for p := range s.contributions {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		rebuilt := s.engine.NewGraph()
		for _, p := range paths {
			graph.Merge(rebuilt, s.contributions[p])
		}
		s.project = rebuilt
		s.projectStale = false
		slog.Debug("project graph rebuilt",
			slog.Int("files", len(paths)),
			slog.Int("nodes", rebuilt.NodeCount()),
			slog.Int("edges", rebuilt.EdgeCount()))
	}
	return s.project.Clone()
}

// Sweep analyzes every eligible file under root and keeps the merged
// graph as the project graph.
//
// Description:
//
//	Only one sweep runs at a time. A canceled sweep is returned with
//	Cancelled set and leaves the project graph unchanged.
//
// Inputs:
//   - ctx: Cancellation stops scheduling new files.
//   - root: Directory to sweep. Empty means the source root.
//   - opts: Sweep options such as progress reporting.
//
// Outputs:
//   - *pipeline.SweepResult: The report and merged graph.
//   - error: ErrSweepInProgress, ErrServiceClosed or a discovery failure.
func (s *Service) Sweep(ctx context.Context, root string, opts ...pipeline.SweepOption) (*pipeline.SweepResult, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	if !s.sweeping.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer s.sweeping.Store(false)

	result, err := s.engine.Sweep(ctx, root, opts...)
	if err != nil {
		return nil, err
	}
	if result.Cancelled {
		slog.Warn("sweep canceled, keeping previous project graph",
			slog.String("sweep_id", result.ID),
			slog.Int("files_analyzed", result.FilesAnalyzed))
		return result, nil
	}

	s.projectMu.Lock()
	s.project = result.Graph.Clone()
	s.contributions = maps.Clone(result.FileGraphs)
	s.projectStale = false
	s.lastSweep = result
	s.projectMu.Unlock()
	return result, nil
}

// ProjectGraph returns a copy of the project graph, sweeping the source
// root first if no sweep has completed yet.
func (s *Service) ProjectGraph(ctx context.Context) (*graph.CodeGraph, error) {
	if project := s.projectSnapshot(); project != nil {
		return project, nil
	}

	result, err := s.Sweep(ctx, "")
	if err != nil {
		return nil, err
	}
	if result.Cancelled {
		return nil, ctx.Err()
	}
	return result.Graph, nil
}

// LastSweep returns the report of the last completed sweep, or nil.
func (s *Service) LastSweep() *pipeline.SweepResult {
	s.projectMu.RLock()
	defer s.projectMu.RUnlock()
	return s.lastSweep
}

// MergedGraph merges cached file graphs into a new graph.
//
// Inputs:
//   - paths: Documents to merge. None means every cached document.
//
// Outputs:
//   - *graph.CodeGraph: The merged graph, owned by the caller.
//   - error: A named path that is not cached wraps cache.ErrMiss.
func (s *Service) MergedGraph(paths ...string) (*graph.CodeGraph, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}

	keys := make([]string, 0, len(paths))
	if len(paths) == 0 {
		cached, err := s.cache.Paths()
		if err != nil {
			return nil, fmt.Errorf("list cached documents: %w", err)
		}
		keys = cached
	}
	for _, p := range paths {
		abs, err := normalizeDocument(p)
		if err != nil {
			return nil, err
		}
		keys = append(keys, abs)
	}

	merged := graph.NewCodeGraph()
	for _, key := range keys {
		g, err := s.cache.Get(key)
		if err != nil {
			if len(paths) == 0 && errors.Is(err, cache.ErrMiss) {
				// Evicted between Paths and Get.
				continue
			}
			return nil, fmt.Errorf("document %s: %w", key, err)
		}
		graph.Merge(merged, g)
	}
	return merged, nil
}

// Shutdown releases the cache. Later calls fail with ErrServiceClosed.
func (s *Service) Shutdown() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.cache.Close()
}
