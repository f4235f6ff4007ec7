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
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/DependViz/services/depviz/ast"
	"github.com/AleutianAI/DependViz/services/depviz/graph"
	"github.com/AleutianAI/DependViz/services/depviz/symbols"
)

// SweepProgress is reported after each file is merged or fails.
type SweepProgress struct {
	FilesTotal  int
	FilesDone   int
	FilesFailed int
	Nodes       int
	Edges       int
}

// SweepProgressFunc receives sweep progress. It is called from a single
// goroutine.
type SweepProgressFunc func(SweepProgress)

// SweepOptions configures one sweep.
type SweepOptions struct {
	// Workers bounds concurrent file analyses. Default: the engine's
	// setting, else GOMAXPROCS.
	Workers int

	// Progress may be nil.
	Progress SweepProgressFunc

	// Target receives the merged graph. Default: a new empty graph.
	Target *graph.CodeGraph
}

// SweepOption is a functional option for configuring a sweep.
type SweepOption func(*SweepOptions)

// WithSweepWorkers sets the number of concurrent analyses.
func WithSweepWorkers(n int) SweepOption {
	return func(o *SweepOptions) {
		o.Workers = n
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn SweepProgressFunc) SweepOption {
	return func(o *SweepOptions) {
		o.Progress = fn
	}
}

// WithTarget merges into an existing graph instead of a new one. The
// caller must not touch the graph until Sweep returns.
func WithTarget(g *graph.CodeGraph) SweepOption {
	return func(o *SweepOptions) {
		o.Target = g
	}
}

// FileFailure is one file a sweep could not analyze.
type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// SweepResult summarizes a sweep.
type SweepResult struct {
	ID              string           `json:"id"`
	Root            string           `json:"root"`
	FilesDiscovered int              `json:"files_discovered"`
	FilesAnalyzed   int              `json:"files_analyzed"`
	FilesFailed     int              `json:"files_failed"`
	Failures        []FileFailure    `json:"failures,omitempty"`
	TargetFailures  int              `json:"target_failures"`
	Nodes           int              `json:"nodes"`
	Edges           int              `json:"edges"`
	Duration        time.Duration    `json:"duration_ns"`
	Cancelled       bool             `json:"cancelled"`
	Graph           *graph.CodeGraph `json:"-"`

	// FileGraphs holds each analyzed file's own graph, keyed by path.
	FileGraphs map[string]*graph.CodeGraph `json:"-"`
}

// fileOutcome carries one finished file from a worker to the merger.
type fileOutcome struct {
	path   string
	result *FileResult
	err    error
}

// Sweep analyzes every eligible Java file under root and merges the file
// graphs into one.
//
// Description:
//
//	Files are analyzed with bounded parallelism. Each completed file graph
//	is merged by a single merger goroutine, so the target has one writer.
//	A file graph is merged only after all of its stages finished. On
//	cancellation no new files are started; files already running finish
//	and are merged, and the result is marked Cancelled.
//
// Inputs:
//   - ctx: Cancellation stops scheduling between files.
//   - root: Directory to sweep. Empty means the engine's source root.
//
// Outputs:
//   - *SweepResult: Counts, failures and the merged graph.
//   - error: Discovery failure. Per-file failures are reported in the
//     result, not as an error.
func (e *Engine) Sweep(ctx context.Context, root string, opts ...SweepOption) (*SweepResult, error) {
	options := SweepOptions{Workers: e.options.Workers}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Workers <= 0 {
		options.Workers = runtime.GOMAXPROCS(0)
	}
	if root == "" {
		root = e.sourceRoot
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sweep root: %w", err)
	}

	result := &SweepResult{
		ID:         uuid.NewString(),
		Root:       root,
		Graph:      options.Target,
		FileGraphs: make(map[string]*graph.CodeGraph),
	}
	if result.Graph == nil {
		result.Graph = e.NewGraph()
	}

	ctx, span := tracer.Start(ctx, "Engine.Sweep",
		trace.WithAttributes(
			attribute.String("pipeline.sweep_id", result.ID),
			attribute.String("pipeline.root", root),
			attribute.Int("pipeline.workers", options.Workers),
		))
	defer span.End()

	start := time.Now()
	files, err := symbols.DiscoverSources(ctx, root, e.options.Discover)
	if err != nil {
		if ctx.Err() != nil {
			result.Cancelled = true
			result.Duration = time.Since(start)
			return result, nil
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("discover sources in %s: %w", root, err)
	}
	result.FilesDiscovered = len(files)

	slog.Info("sweep started",
		slog.String("sweep_id", result.ID),
		slog.String("root", root),
		slog.Int("files", len(files)),
		slog.Int("workers", options.Workers))

	e.ensureIndex(ctx)

	outcomes := make(chan fileOutcome, options.Workers)
	mergeDone := make(chan struct{})
	go func() {
		defer close(mergeDone)
		e.mergeOutcomes(outcomes, result, options.Progress)
	}()

	g := new(errgroup.Group)
	g.SetLimit(options.Workers)
	for _, path := range files {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := e.analyzeFile(ctx, path)
			if err != nil && ctx.Err() != nil && errors.Is(err, ast.ErrContextCanceled) {
				return nil
			}
			outcomes <- fileOutcome{path: path, result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)
	<-mergeDone

	if ctx.Err() != nil {
		result.Cancelled = true
	}
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].Path < result.Failures[j].Path
	})
	result.Nodes = result.Graph.NodeCount()
	result.Edges = result.Graph.EdgeCount()
	result.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("pipeline.files_analyzed", result.FilesAnalyzed),
		attribute.Int("pipeline.files_failed", result.FilesFailed),
		attribute.Bool("pipeline.cancelled", result.Cancelled),
	)
	recordSweep(ctx, result)
	slog.Info("sweep completed",
		slog.String("sweep_id", result.ID),
		slog.Int("files_analyzed", result.FilesAnalyzed),
		slog.Int("files_failed", result.FilesFailed),
		slog.Int("nodes", result.Nodes),
		slog.Int("edges", result.Edges),
		slog.Bool("cancelled", result.Cancelled),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// mergeOutcomes is the only writer of result while the sweep runs.
func (e *Engine) mergeOutcomes(outcomes <-chan fileOutcome, result *SweepResult, progress SweepProgressFunc) {
	for o := range outcomes {
		if o.err != nil {
			result.FilesFailed++
			result.Failures = append(result.Failures, FileFailure{Path: o.path, Error: o.err.Error()})
			slog.Warn("file not analyzable",
				slog.String("sweep_id", result.ID),
				slog.String("file", o.path),
				slog.String("error", o.err.Error()))
		} else {
			graph.Merge(result.Graph, o.result.Graph)
			result.FileGraphs[o.path] = o.result.Graph
			result.FilesAnalyzed++
			result.TargetFailures += o.result.TargetFailures()
		}
		if progress != nil {
			progress(SweepProgress{
				FilesTotal:  result.FilesDiscovered,
				FilesDone:   result.FilesAnalyzed + result.FilesFailed,
				FilesFailed: result.FilesFailed,
				Nodes:       result.Graph.NodeCount(),
				Edges:       result.Graph.EdgeCount(),
			})
		}
	}
}
