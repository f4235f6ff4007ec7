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
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/DependViz/services/depviz/ast"
)

// IndexOptions configures an Index.
type IndexOptions struct {
	// Workers bounds concurrent parsing during Build. Default: GOMAXPROCS.
	Workers int

	// Parser parses indexed files. Default: a parser that tolerates syntax
	// errors, so a half-edited file still contributes its declarations.
	Parser *ast.JavaParser

	// Discover selects the files Build indexes.
	Discover DiscoverOptions
}

// DefaultIndexOptions returns the default options.
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		Workers: runtime.GOMAXPROCS(0),
		Parser:  ast.NewJavaParser(ast.WithTolerateSyntaxErrors(true)),
	}
}

// IndexOption is a functional option for configuring Index.
type IndexOption func(*IndexOptions)

// WithWorkers sets the Build parallelism. Non-positive values are ignored.
func WithWorkers(n int) IndexOption {
	return func(o *IndexOptions) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// WithIndexParser sets the parser used for indexed files.
func WithIndexParser(p *ast.JavaParser) IndexOption {
	return func(o *IndexOptions) {
		if p != nil {
			o.Parser = p
		}
	}
}

// WithDiscoverOptions sets the file selection for Build.
func WithDiscoverOptions(d DiscoverOptions) IndexOption {
	return func(o *IndexOptions) {
		o.Discover = d
	}
}

// BuildStats summarizes one Build.
type BuildStats struct {
	Files    int
	Types    int
	Failed   int
	Duration time.Duration
}

// Index holds the declared types of every Java file under a source root.
//
// Description:
//
//	Plays the role of a source-scanning type solver: other units look up
//	types by FQN and read their summarized members. Files are re-indexed
//	individually as they change.
//
// Thread Safety:
//
//	Safe for concurrent use. Lookups take a read lock; Build, Update and
//	Remove take the write lock only to swap a file's entries. TypeInfo
//	values are never mutated after insertion.
type Index struct {
	mu sync.RWMutex

	root string

	types    map[string]*TypeInfo
	byFile   map[string][]string
	packages map[string]int

	options IndexOptions
}

// NewIndex creates an empty index for the given source root.
func NewIndex(root string, opts ...IndexOption) *Index {
	options := DefaultIndexOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Index{
		root:     root,
		types:    make(map[string]*TypeInfo),
		byFile:   make(map[string][]string),
		packages: make(map[string]int),
		options:  options,
	}
}

// Root returns the indexed source root.
func (ix *Index) Root() string {
	return ix.root
}

// Build discovers and indexes every Java file under the root.
//
// Description:
//
//	Files are parsed concurrently with at most Workers in flight. A file
//	that cannot be read or parsed is logged and counted; it does not fail
//	the build.
//
// Outputs:
//   - BuildStats: Counts for the run.
//   - error: Discovery failure or ctx.Err() on cancellation.
func (ix *Index) Build(ctx context.Context) (BuildStats, error) {
	ctx, span := tracer.Start(ctx, "Index.Build",
		trace.WithAttributes(attribute.String("symbols.root", ix.root)))
	defer span.End()

	start := time.Now()
	files, err := DiscoverSources(ctx, ix.root, ix.options.Discover)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return BuildStats{}, fmt.Errorf("discover sources in %s: %w", ix.root, err)
	}

	var (
		statsMu sync.Mutex
		stats   = BuildStats{Files: len(files)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.options.Workers)
	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := ix.indexFile(gctx, path)
			statsMu.Lock()
			defer statsMu.Unlock()
			if err != nil {
				stats.Failed++
				slog.Debug("index: skipping file",
					slog.String("file", path),
					slog.String("error", err.Error()))
				return nil
			}
			stats.Types += n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return stats, err
	}

	stats.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("symbols.files", stats.Files),
		attribute.Int("symbols.types", stats.Types),
		attribute.Int("symbols.failed", stats.Failed),
	)
	slog.Info("source index built",
		slog.String("root", ix.root),
		slog.Int("files", stats.Files),
		slog.Int("types", stats.Types),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// indexFile reads, parses and indexes one file, returning its type count.
func (ix *Index) indexFile(ctx context.Context, path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return ix.Update(ctx, path, content)
}

// Update re-indexes one file from content, replacing its previous entries.
func (ix *Index) Update(ctx context.Context, path string, content []byte) (int, error) {
	unit, err := ix.options.Parser.Parse(ctx, path, content)
	if err != nil {
		return 0, err
	}
	defer unit.Close()
	return ix.UpdateUnit(unit), nil
}

// UpdateUnit re-indexes an already parsed unit, replacing the entries of
// unit.Path. It returns the number of types indexed. Units without a
// storage path are not indexed.
func (ix *Index) UpdateUnit(unit *ast.Unit) int {
	if unit.Path == "" {
		return 0
	}
	_, types := ExtractTypes(unit)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	removed := ix.removeLocked(unit.Path)
	fqns := make([]string, 0, len(types))
	for _, t := range types {
		if prev, ok := ix.types[t.FQN]; ok && prev.File != t.File {
			slog.Debug("index: type declared in more than one file",
				slog.String("type", t.FQN),
				slog.String("kept", t.File),
				slog.String("dropped", prev.File))
			ix.dropFileEntryLocked(prev.File, t.FQN)
		}
		if _, ok := ix.types[t.FQN]; !ok {
			ix.packages[t.Context.Package]++
		}
		ix.types[t.FQN] = t
		fqns = append(fqns, t.FQN)
	}
	if len(fqns) > 0 {
		ix.byFile[unit.Path] = fqns
	}
	recordIndexDelta(len(fqns) - removed)
	return len(fqns)
}

// Remove drops every type declared in path and returns how many were held.
func (ix *Index) Remove(path string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	n := ix.removeLocked(path)
	recordIndexDelta(-n)
	return n
}

func (ix *Index) removeLocked(path string) int {
	fqns := ix.byFile[path]
	for _, fqn := range fqns {
		if t, ok := ix.types[fqn]; ok && t.File == path {
			ix.packages[t.Context.Package]--
			if ix.packages[t.Context.Package] <= 0 {
				delete(ix.packages, t.Context.Package)
			}
			delete(ix.types, fqn)
		}
	}
	delete(ix.byFile, path)
	return len(fqns)
}

// dropFileEntryLocked forgets that file declares fqn without touching the
// type map.
func (ix *Index) dropFileEntryLocked(file, fqn string) {
	fqns := ix.byFile[file]
	for i, f := range fqns {
		if f == fqn {
			ix.byFile[file] = append(fqns[:i:i], fqns[i+1:]...)
			break
		}
	}
	if len(ix.byFile[file]) == 0 {
		delete(ix.byFile, file)
	}
}

// Lookup returns the type with the given FQN.
func (ix *Index) Lookup(fqn string) (*TypeInfo, bool) {
	if ix == nil {
		return nil, false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.types[fqn]
	return t, ok
}

// HasPackage reports whether any indexed type is declared in pkg.
func (ix *Index) HasPackage(pkg string) bool {
	if ix == nil {
		return false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.packages[pkg] > 0
}

// Len returns the number of indexed types.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.types)
}

// FileCount returns the number of files contributing types.
func (ix *Index) FileCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byFile)
}

// TypesInFile returns the FQNs declared in path.
func (ix *Index) TypesInFile(path string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, len(ix.byFile[path]))
	copy(out, ix.byFile[path])
	return out
}
