// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs the analysis stages over Java files.
//
// An Engine owns the source-root index and resolver for one workspace.
// AnalyzeFile produces one fresh graph per file; Sweep analyzes every file
// under a root in parallel and merges the results into one project graph.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/DependViz/services/depviz/ast"
	"github.com/AleutianAI/DependViz/services/depviz/graph"
	"github.com/AleutianAI/DependViz/services/depviz/stages"
	"github.com/AleutianAI/DependViz/services/depviz/symbols"
)

// EngineOptions configures an Engine.
type EngineOptions struct {
	// SourceRoots are the relative directories searched for, walking up from
	// the workspace root. Default: symbols.DefaultSourceRoots.
	SourceRoots []string

	// Parser parses analyzed files. Default: a strict parser, so a file
	// with syntax errors is not analyzable.
	Parser *ast.JavaParser

	// Stages run in order on every file. Default: stages.Default().
	Stages []stages.Stage

	// Catalog lists library types. Default: the embedded JDK catalog.
	Catalog *symbols.Catalog

	// TrustImports accepts unknown single-type imports as resolved.
	TrustImports bool

	// Workers bounds parallelism of sweeps and index builds.
	// Default: GOMAXPROCS.
	Workers int

	// Discover selects files for sweeps and the index.
	Discover symbols.DiscoverOptions

	// TypePrecedence makes per-file graphs resolve conflicting node types
	// by rank instead of last write.
	TypePrecedence bool
}

// DefaultEngineOptions returns the default options.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		SourceRoots: symbols.DefaultSourceRoots,
		Parser:      ast.NewJavaParser(),
		Stages:      stages.Default(),
		Discover:    symbols.DiscoverOptions{RespectGitignore: true},
	}
}

// EngineOption is a functional option for configuring Engine.
type EngineOption func(*EngineOptions)

// WithSourceRoots sets the candidate source root directories.
func WithSourceRoots(roots ...string) EngineOption {
	return func(o *EngineOptions) {
		if len(roots) > 0 {
			o.SourceRoots = roots
		}
	}
}

// WithParser sets the parser used for analyzed files.
func WithParser(p *ast.JavaParser) EngineOption {
	return func(o *EngineOptions) {
		if p != nil {
			o.Parser = p
		}
	}
}

// WithStages sets the stages run on every file.
func WithStages(s []stages.Stage) EngineOption {
	return func(o *EngineOptions) {
		o.Stages = s
	}
}

// WithCatalog sets the library type catalog.
func WithCatalog(c *symbols.Catalog) EngineOption {
	return func(o *EngineOptions) {
		o.Catalog = c
	}
}

// WithTrustImports sets whether unknown single-type imports resolve.
func WithTrustImports(trust bool) EngineOption {
	return func(o *EngineOptions) {
		o.TrustImports = trust
	}
}

// WithWorkers sets sweep and index parallelism.
func WithWorkers(n int) EngineOption {
	return func(o *EngineOptions) {
		o.Workers = n
	}
}

// WithDiscoverOptions sets the file selection for sweeps and the index.
func WithDiscoverOptions(d symbols.DiscoverOptions) EngineOption {
	return func(o *EngineOptions) {
		o.Discover = d
	}
}

// WithTypePrecedence enables rank-based node type precedence.
func WithTypePrecedence(enabled bool) EngineOption {
	return func(o *EngineOptions) {
		o.TypePrecedence = enabled
	}
}

// Engine analyzes the Java files of one workspace.
//
// Description:
//
//	The source root is found by walking up from the workspace root; when
//	none exists the workspace root itself is indexed and a warning logged.
//	The index is built on first use and refreshed per file by Reindex and
//	Forget.
//
// Thread Safety:
//
//	Safe for concurrent use. Every analysis builds its own graph.
type Engine struct {
	workspace  string
	sourceRoot string
	options    EngineOptions

	index    *symbols.Index
	resolver *symbols.Resolver

	indexOnce  sync.Once
	indexStats symbols.BuildStats
}

// NewEngine creates an engine for the workspace.
//
// Outputs:
//   - *Engine: Ready engine. The index is not built yet.
//   - error: Non-nil if the workspace path is invalid or the catalog
//     cannot be loaded.
func NewEngine(workspaceRoot string, opts ...EngineOption) (*Engine, error) {
	options := DefaultEngineOptions()
	for _, opt := range opts {
		opt(&options)
	}

	workspace, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace %q: %w", workspaceRoot, err)
	}

	sourceRoot, err := symbols.FindSourceRoot(workspace, options.SourceRoots)
	if err != nil {
		slog.Warn("source root not found, resolving against workspace root",
			slog.String("workspace", workspace),
			slog.String("candidates", strings.Join(options.SourceRoots, ",")),
			slog.String("error", err.Error()))
		sourceRoot = workspace
	}

	index := symbols.NewIndex(sourceRoot,
		symbols.WithWorkers(options.Workers),
		symbols.WithDiscoverOptions(options.Discover))

	resolver, err := symbols.NewResolver(index,
		symbols.WithCatalog(options.Catalog),
		symbols.WithTrustImports(options.TrustImports))
	if err != nil {
		return nil, fmt.Errorf("create resolver: %w", err)
	}

	return &Engine{
		workspace:  workspace,
		sourceRoot: sourceRoot,
		options:    options,
		index:      index,
		resolver:   resolver,
	}, nil
}

// Workspace returns the absolute workspace root.
func (e *Engine) Workspace() string {
	return e.workspace
}

// SourceRoot returns the directory the index covers.
func (e *Engine) SourceRoot() string {
	return e.sourceRoot
}

// Index returns the source index, building it if needed.
func (e *Engine) Index(ctx context.Context) *symbols.Index {
	e.ensureIndex(ctx)
	return e.index
}

// ensureIndex builds the index once. The build is detached from the
// caller's cancellation so one abandoned request cannot leave a partial
// index behind.
func (e *Engine) ensureIndex(ctx context.Context) {
	e.indexOnce.Do(func() {
		stats, err := e.index.Build(context.WithoutCancel(ctx))
		e.indexStats = stats
		if err != nil {
			slog.Warn("source index build failed, cross-file resolution degraded",
				slog.String("root", e.sourceRoot),
				slog.String("error", err.Error()))
		}
	})
}

// AnalyzeFile reads and analyzes one file.
//
// Outputs:
//   - *graph.CodeGraph: A fresh graph owned by the caller.
//   - error: *FileAnalysisError if the file cannot be read or parsed.
func (e *Engine) AnalyzeFile(ctx context.Context, path string) (*graph.CodeGraph, error) {
	res, err := e.analyzeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return res.Graph, nil
}

// AnalyzeSource analyzes in-memory content stored at path. path may be ""
// for content with no backing file; its nodes then carry no file path.
func (e *Engine) AnalyzeSource(ctx context.Context, path string, content []byte) (*graph.CodeGraph, error) {
	res, err := e.Analyze(ctx, path, content)
	if err != nil {
		return nil, err
	}
	return res.Graph, nil
}

// FileResult is one successful file analysis.
type FileResult struct {
	Path     string
	Graph    *graph.CodeGraph
	Reports  []stages.StageReport
	Duration time.Duration
}

// TargetFailures returns the failed targets summed over all stages.
func (r *FileResult) TargetFailures() int {
	n := 0
	for _, rep := range r.Reports {
		n += rep.Failed()
	}
	return n
}

func (e *Engine) analyzeFile(ctx context.Context, path string) (*FileResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &FileAnalysisError{Path: path, Cause: err}
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, &FileAnalysisError{Path: abs, Cause: err}
	}
	return e.Analyze(ctx, abs, content)
}

// Analyze runs every configured stage over one unit.
//
// Description:
//
//	Parses content, binds a resolver to the unit and runs the stages in
//	order into a new graph. Failures inside a stage are isolated per
//	target and reported in FileResult.Reports; only a parse failure fails
//	the file.
//
// Outputs:
//   - *FileResult: The graph and per-stage reports.
//   - error: *FileAnalysisError wrapping the parse error.
func (e *Engine) Analyze(ctx context.Context, path string, content []byte) (*FileResult, error) {
	ctx, span := tracer.Start(ctx, "Engine.Analyze",
		trace.WithAttributes(attribute.String("pipeline.file", path)))
	defer span.End()

	start := time.Now()
	unit, err := e.options.Parser.Parse(ctx, path, content)
	if err != nil {
		recordAnalysis(ctx, time.Since(start), false)
		span.SetStatus(codes.Error, err.Error())
		return nil, &FileAnalysisError{Path: path, Cause: err}
	}
	defer unit.Close()

	e.ensureIndex(ctx)

	tree := &stages.Tree{Unit: unit, Resolver: e.resolver.ForUnit(unit)}
	g := e.NewGraph()

	res := &FileResult{Path: path, Graph: g}
	for _, s := range e.options.Stages {
		res.Reports = append(res.Reports, stages.Run(ctx, s, tree, g))
	}
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("pipeline.nodes", g.NodeCount()),
		attribute.Int("pipeline.edges", g.EdgeCount()),
		attribute.Int("pipeline.target_failures", res.TargetFailures()),
	)
	recordAnalysis(ctx, res.Duration, true)
	slog.Info("Analysis completed",
		slog.String("file", path),
		slog.Int("nodes", g.NodeCount()),
		slog.Int("edges", g.EdgeCount()),
		slog.Int("target_failures", res.TargetFailures()),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// NewGraph returns an empty graph configured like the engine's file graphs.
func (e *Engine) NewGraph() *graph.CodeGraph {
	if e.options.TypePrecedence {
		return graph.NewCodeGraph(graph.WithTypePrecedence())
	}
	return graph.NewCodeGraph()
}

// Reindex refreshes one file's entries in the source index from disk. A
// file that no longer exists is forgotten. Files outside the source root
// are ignored.
//
// Outputs:
//   - int: Number of types now indexed for the file.
//   - error: Read failure other than non-existence.
func (e *Engine) Reindex(ctx context.Context, path string) (int, error) {
	abs, ok := e.underSourceRoot(path)
	if !ok {
		return 0, nil
	}
	e.ensureIndex(ctx)

	content, err := os.ReadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		e.index.Remove(abs)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reindex %s: %w", abs, err)
	}
	return e.index.Update(ctx, abs, content)
}

// Forget drops one file's entries from the source index.
func (e *Engine) Forget(path string) {
	abs, ok := e.underSourceRoot(path)
	if !ok {
		return
	}
	e.index.Remove(abs)
}

// underSourceRoot returns the absolute path and whether it lies inside the
// indexed source root.
func (e *Engine) underSourceRoot(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(e.sourceRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return abs, symbols.IsJavaFile(abs)
}
