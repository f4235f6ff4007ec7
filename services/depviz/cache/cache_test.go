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
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/DependViz/services/depviz/graph"
)

func sampleGraph(t *testing.T, id string) *graph.CodeGraph {
	t.Helper()
	g := graph.NewCodeGraph()
	g.SetType(id, graph.NodeTypeClass)
	g.SetLinesOfCode(id, 12)
	g.SetFilePath(id, "/ws/"+id+".java")
	_, err := g.AddEdge(id, "java.util.List", graph.EdgeTypeTypeUse)
	require.NoError(t, err)
	return g
}

func backends(t *testing.T) map[string]FileAnalysisCache {
	t.Helper()
	bc, err := OpenBadgerCache(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	caches := map[string]FileAnalysisCache{
		BackendMemory: NewMemoryCache(8),
		BackendBadger: bc,
	}
	for _, c := range caches {
		t.Cleanup(func() { _ = c.Close() })
	}
	return caches
}

func TestFileAnalysisCache_Lifecycle(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := c.Get("/ws/A.java")
			assert.ErrorIs(t, err, ErrMiss)

			g := sampleGraph(t, "demo.A")
			require.NoError(t, c.Put("/ws/A.java", g))
			require.NoError(t, c.Put("/ws/B.java", sampleGraph(t, "demo.B")))
			assert.Equal(t, 2, c.Len())

			got, err := c.Get("/ws/A.java")
			require.NoError(t, err)
			assert.Equal(t, g.Hash(), got.Hash())

			paths, err := c.Paths()
			require.NoError(t, err)
			assert.Equal(t, []string{"/ws/A.java", "/ws/B.java"}, paths)

			// Replacing keeps one entry per path.
			require.NoError(t, c.Put("/ws/A.java", sampleGraph(t, "demo.A2")))
			assert.Equal(t, 2, c.Len())
			got, err = c.Get("/ws/A.java")
			require.NoError(t, err)
			_, ok := got.GetNode("demo.A2")
			assert.True(t, ok)

			require.NoError(t, c.Evict("/ws/A.java"))
			require.NoError(t, c.Evict("/ws/A.java"))
			assert.Equal(t, 1, c.Len())
			_, err = c.Get("/ws/A.java")
			assert.ErrorIs(t, err, ErrMiss)

			assert.Error(t, c.Put("/ws/C.java", nil))

			require.NoError(t, c.Close())
			require.NoError(t, c.Close())
			_, err = c.Get("/ws/B.java")
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestFileAnalysisCache_PutCopies(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			g := sampleGraph(t, "demo.A")
			require.NoError(t, c.Put("/ws/A.java", g))

			g.SetType("demo.Later", graph.NodeTypeEnum)

			got, err := c.Get("/ws/A.java")
			require.NoError(t, err)
			_, ok := got.GetNode("demo.Later")
			assert.False(t, ok, "cache must not alias the caller's graph")
		})
	}
}

func TestBadgerCache_RoundTripFields(t *testing.T) {
	c, err := OpenBadgerCache(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer c.Close()

	g := sampleGraph(t, "demo.A")
	require.NoError(t, c.Put("/ws/A.java", g))

	got, err := c.Get("/ws/A.java")
	require.NoError(t, err)
	n, ok := got.GetNode("demo.A")
	require.True(t, ok)
	assert.Equal(t, graph.NodeTypeClass, n.Type)
	assert.Equal(t, 12, n.LinesOfCode)
	require.NotNil(t, n.FilePath)
	assert.Equal(t, "/ws/demo.A.java", *n.FilePath)

	stub, ok := got.GetNode("java.util.List")
	require.True(t, ok)
	assert.True(t, stub.IsStub())

	meta, err := c.Meta("/ws/A.java")
	require.NoError(t, err)
	assert.Equal(t, g.Hash(), meta.GraphHash)
	assert.Equal(t, 2, meta.NodeCount)
	assert.Equal(t, 1, meta.EdgeCount)
	assert.Positive(t, meta.CompressedSize)

	_, err = c.Meta("/ws/none.java")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestBadgerCache_PersistentDir(t *testing.T) {
	dir := t.TempDir()

	c, err := OpenBadgerCache(BadgerConfig{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, c.Put("/ws/A.java", sampleGraph(t, "demo.A")))
	require.NoError(t, c.Close())

	reopened, err := OpenBadgerCache(BadgerConfig{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 1, reopened.Len())
}

func TestBadgerCache_TempDirRemovedOnClose(t *testing.T) {
	c, err := OpenBadgerCache(BadgerConfig{})
	require.NoError(t, err)
	dir := c.tempDir
	require.NotEmpty(t, dir)

	require.NoError(t, c.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(2)
	require.NoError(t, c.Put("a", sampleGraph(t, "A")))
	require.NoError(t, c.Put("b", sampleGraph(t, "B")))

	_, err := c.Get("a")
	require.NoError(t, err)
	require.NoError(t, c.Put("c", sampleGraph(t, "C")))

	_, err = c.Get("b")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = c.Get("a")
	assert.NoError(t, err)

	hits, misses, evictions := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, int64(1), evictions)
}

func TestLRU_Concurrent(t *testing.T) {
	lru := NewLRU[int, int](50)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				lru.Set(w*1000+i, i)
				lru.Get(w*1000 + i/2)
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 50, lru.Len())
	assert.Len(t, lru.Keys(func(a, b int) bool { return a < b }), 50)
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		wantErr error
	}{
		{"", nil},
		{BackendMemory, nil},
		{BackendBadger, nil},
		{"redis", ErrUnknownBackend},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("backend=%q", tt.backend), func(t *testing.T) {
			c, err := New(Options{Backend: tt.backend, BadgerDir: t.TempDir()})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, c.Close())
		})
	}
}
