// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/AleutianAI/DependViz/services/depviz/graph"
)

// MemoryCache is an in-memory FileAnalysisCache bounded by an LRU.
type MemoryCache struct {
	lru    *LRU[string, *graph.CodeGraph]
	closed atomic.Bool
}

// NewMemoryCache creates a memory cache holding at most capacity files.
func NewMemoryCache(capacity int) *MemoryCache {
	return &MemoryCache{lru: NewLRU[string, *graph.CodeGraph](capacity)}
}

// Get implements FileAnalysisCache.
func (m *MemoryCache) Get(path string) (*graph.CodeGraph, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	g, ok := m.lru.Get(path)
	recordLookup(context.Background(), BackendMemory, ok)
	if !ok {
		return nil, ErrMiss
	}
	return g, nil
}

// Put implements FileAnalysisCache.
func (m *MemoryCache) Put(path string, g *graph.CodeGraph) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if g == nil {
		return fmt.Errorf("graph for %s must not be nil", path)
	}
	if m.lru.Set(path, g.Clone()) {
		recordEviction(context.Background(), BackendMemory)
	}
	return nil
}

// Evict implements FileAnalysisCache.
func (m *MemoryCache) Evict(path string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.lru.Delete(path)
	return nil
}

// Paths implements FileAnalysisCache.
func (m *MemoryCache) Paths() ([]string, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	return m.lru.Keys(func(a, b string) bool { return a < b }), nil
}

// Len implements FileAnalysisCache.
func (m *MemoryCache) Len() int {
	return m.lru.Len()
}

// Stats returns the LRU hit, miss and eviction counts.
func (m *MemoryCache) Stats() (hits, misses, evictions int64) {
	return m.lru.Stats()
}

// Close drops every entry.
func (m *MemoryCache) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.lru.Purge()
	return nil
}
