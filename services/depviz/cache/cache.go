// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache stores per-file analysis results keyed by file path.
//
// Two backends implement FileAnalysisCache: an in-memory LRU and a
// BadgerDB store that keeps graphs as compressed wire JSON. Both are safe
// for concurrent use.
package cache

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/DependViz/services/depviz/graph"
)

// Sentinel errors for cache operations.
var (
	// ErrMiss indicates no entry exists for the path.
	ErrMiss = errors.New("cache miss")

	// ErrUnknownBackend indicates an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown cache backend")

	// ErrClosed indicates the cache was used after Close.
	ErrClosed = errors.New("cache closed")
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// DefaultCapacity is the default number of cached files.
const DefaultCapacity = 512

// FileAnalysisCache maps a file path to the graph last produced for it.
//
// Graphs returned by Get are shared and must be treated as read-only.
// Put stores a private copy, so the caller keeps ownership of its graph.
type FileAnalysisCache interface {
	// Get returns the cached graph or ErrMiss.
	Get(path string) (*graph.CodeGraph, error)

	// Put stores g for path, replacing any previous entry.
	Put(path string, g *graph.CodeGraph) error

	// Evict removes the entry for path. Evicting a missing path is not an
	// error.
	Evict(path string) error

	// Paths returns the cached paths in lexical order.
	Paths() ([]string, error)

	// Len returns the number of cached paths.
	Len() int

	// Close releases backend resources.
	Close() error
}

// Options selects and sizes a backend.
type Options struct {
	// Backend is BackendMemory or BackendBadger. Default: memory.
	Backend string

	// Capacity bounds the memory backend. Default: DefaultCapacity.
	Capacity int

	// BadgerDir is the badger directory. Empty means a temporary
	// directory removed on Close.
	BadgerDir string

	// Logger receives badger's internal log output. Nil disables it.
	Logger *slog.Logger
}

// New creates the backend named in opts.
func New(opts Options) (FileAnalysisCache, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryCache(opts.Capacity), nil
	case BackendBadger:
		return OpenBadgerCache(BadgerConfig{Dir: opts.BadgerDir, Logger: opts.Logger})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
