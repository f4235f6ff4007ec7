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
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/DependViz/services/depviz/cache"
	"github.com/AleutianAI/DependViz/services/depviz/config"
	"github.com/AleutianAI/DependViz/services/depviz/graph"
	"github.com/AleutianAI/DependViz/services/depviz/pipeline"
)

const (
	shapeSrc = `package com.acme.model;

public abstract class Shape {
    public abstract double area();
}
`
	circleSrc = `package com.acme.model;

public class Circle extends Shape {
    private final double radius;

    public Circle(double radius) {
        this.radius = radius;
    }

    public double area() {
        return Math.PI * radius * radius;
    }
}
`
	squareSrc = `package com.acme.model;

public class Square extends Shape {
    public double area() {
        return 1.0;
    }
}
`
)

// testWorkspace is a Maven-style workspace with Shape and Circle.
type testWorkspace struct {
	root   string
	shape  string
	circle string
}

func newTestWorkspace(t *testing.T) testWorkspace {
	t.Helper()
	root := t.TempDir()
	pkg := filepath.Join(root, "src", "main", "java", "com", "acme", "model")
	require.NoError(t, os.MkdirAll(pkg, 0o755))

	ws := testWorkspace{
		root:   root,
		shape:  filepath.Join(pkg, "Shape.java"),
		circle: filepath.Join(pkg, "Circle.java"),
	}
	require.NoError(t, os.WriteFile(ws.shape, []byte(shapeSrc), 0o644))
	require.NoError(t, os.WriteFile(ws.circle, []byte(circleSrc), 0o644))
	return ws
}

func (ws testWorkspace) file(name string) string {
	return filepath.Join(filepath.Dir(ws.shape), name)
}

func newTestService(t *testing.T, ws testWorkspace) *Service {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	svc, err := New(ws.root, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Shutdown() })
	return svc
}

func TestService_OpenChangeClose(t *testing.T) {
	ws := newTestWorkspace(t)
	svc := newTestService(t, ws)
	ctx := context.Background()

	g, err := svc.Open(ctx, ws.circle)
	require.NoError(t, err)
	assert.True(t, g.HasEdge("com.acme.model.Circle", "com.acme.model.Shape", graph.EdgeTypeExtends))
	assert.Equal(t, 1, svc.CachedFiles())

	// A failed re-analysis evicts the stale graph.
	_, err = svc.Change(ctx, ws.circle, []byte("package com.acme.model;\npublic class Circle extends {\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrFileNotAnalyzable)
	assert.Equal(t, 0, svc.CachedFiles())

	g, err = svc.Change(ctx, ws.circle, []byte("package com.acme.model;\npublic class Circle {}\n"))
	require.NoError(t, err)
	assert.False(t, g.HasEdge("com.acme.model.Circle", "com.acme.model.Shape", graph.EdgeTypeExtends))
	assert.Equal(t, 1, svc.CachedFiles())

	require.NoError(t, svc.Close(ws.circle))
	assert.Equal(t, 0, svc.CachedFiles())

	// Closing an uncached document is not an error.
	require.NoError(t, svc.Close(ws.circle))
}

func TestService_FileGraph_MissThenHit(t *testing.T) {
	ws := newTestWorkspace(t)
	svc := newTestService(t, ws)
	ctx := context.Background()

	first, err := svc.FileGraph(ctx, ws.circle)
	require.NoError(t, err)
	second, err := svc.FileGraph(ctx, ws.circle)
	require.NoError(t, err)
	third, err := svc.FileGraph(ctx, ws.circle)
	require.NoError(t, err)

	assert.Equal(t, first.Hash(), second.Hash())
	assert.Same(t, second, third, "cached graph should be served on hits")
}

func TestService_DocumentPaths(t *testing.T) {
	ws := newTestWorkspace(t)
	svc := newTestService(t, ws)
	ctx := context.Background()

	_, err := svc.FileGraph(ctx, filepath.Join(ws.root, "pom.xml"))
	assert.ErrorIs(t, err, ErrNotJavaFile)

	_, err = svc.Open(ctx, "untitled:///Scratch.java")
	assert.ErrorIs(t, err, ErrUnsupportedURI)

	_, err = svc.Open(ctx, "")
	assert.ErrorIs(t, err, ErrNotJavaFile)

	g, err := svc.FileGraph(ctx, URIFromPath(ws.circle))
	require.NoError(t, err)
	circle, ok := g.GetNode("com.acme.model.Circle")
	require.True(t, ok)
	require.NotNil(t, circle.FilePath)
	assert.Equal(t, ws.circle, *circle.FilePath)

	// The URI and the plain path share one cache entry.
	require.NoError(t, svc.Close(ws.circle))
	assert.Equal(t, 0, svc.CachedFiles())
}

func TestService_MissingFileEvicts(t *testing.T) {
	ws := newTestWorkspace(t)
	svc := newTestService(t, ws)
	ctx := context.Background()

	_, err := svc.Open(ctx, ws.circle)
	require.NoError(t, err)
	require.NoError(t, os.Remove(ws.circle))

	_, err = svc.Change(ctx, ws.circle, nil)
	assert.ErrorIs(t, err, pipeline.ErrFileNotAnalyzable)
	assert.Equal(t, 0, svc.CachedFiles())
}

func TestService_MergedGraph(t *testing.T) {
	ws := newTestWorkspace(t)
	svc := newTestService(t, ws)
	ctx := context.Background()

	circleGraph, err := svc.Open(ctx, ws.circle)
	require.NoError(t, err)
	stub, _ := circleGraph.GetNode("com.acme.model.Shape")
	require.True(t, stub.IsStub())

	_, err = svc.Open(ctx, ws.shape)
	require.NoError(t, err)

	merged, err := svc.MergedGraph()
	require.NoError(t, err)
	shape, ok := merged.GetNode("com.acme.model.Shape")
	require.True(t, ok)
	assert.Equal(t, graph.NodeTypeAbstractClass, shape.Type)
	assert.Equal(t, 3, shape.LinesOfCode)
	assert.True(t, merged.HasEdge("com.acme.model.Circle", "com.acme.model.Shape", graph.EdgeTypeExtends))

	only, err := svc.MergedGraph(ws.circle)
	require.NoError(t, err)
	assert.Equal(t, circleGraph.Hash(), only.Hash())

	_, err = svc.MergedGraph(ws.file("Square.java"))
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestService_SweepKeepsProjectGraph(t *testing.T) {
	ws := newTestWorkspace(t)
	svc := newTestService(t, ws)
	ctx := context.Background()

	assert.Nil(t, svc.LastSweep())

	// The first request sweeps the source root.
	project, err := svc.ProjectGraph(ctx)
	require.NoError(t, err)
	require.NotNil(t, svc.LastSweep())
	assert.Equal(t, 2, svc.LastSweep().FilesAnalyzed)

	shape, ok := project.GetNode("com.acme.model.Shape")
	require.True(t, ok)
	assert.Equal(t, graph.NodeTypeAbstractClass, shape.Type)

	// Later per-file analyses are merged into the project view.
	require.NoError(t, os.WriteFile(ws.file("Square.java"), []byte(squareSrc), 0o644))
	_, err = svc.Open(ctx, ws.file("Square.java"))
	require.NoError(t, err)

	project, err = svc.ProjectGraph(ctx)
	require.NoError(t, err)
	square, ok := project.GetNode("com.acme.model.Square")
	require.True(t, ok)
	assert.Equal(t, graph.NodeTypeClass, square.Type)
	assert.True(t, project.HasEdge("com.acme.model.Square", "com.acme.model.Shape", graph.EdgeTypeExtends))

	// The returned graph is a copy.
	project.GetOrCreateNode("scratch.Mutation")
	again, err := svc.ProjectGraph(ctx)
	require.NoError(t, err)
	_, ok = again.GetNode("scratch.Mutation")
	assert.False(t, ok)
}

func TestService_ChangeReplacesProjectContribution(t *testing.T) {
	ws := newTestWorkspace(t)
	svc := newTestService(t, ws)
	ctx := context.Background()

	project, err := svc.ProjectGraph(ctx)
	require.NoError(t, err)
	require.True(t, project.HasEdge("com.acme.model.Circle", "com.acme.model.Shape", graph.EdgeTypeExtends))

	// Circle stops extending Shape and shrinks to one line.
	_, err = svc.Change(ctx, ws.circle, []byte("package com.acme.model; public class Circle {}"))
	require.NoError(t, err)

	project, err = svc.ProjectGraph(ctx)
	require.NoError(t, err)
	assert.False(t, project.HasEdge("com.acme.model.Circle", "com.acme.model.Shape", graph.EdgeTypeExtends))
	circle, ok := project.GetNode("com.acme.model.Circle")
	require.True(t, ok)
	assert.Equal(t, 1, circle.LinesOfCode)
	shape, ok := project.GetNode("com.acme.model.Shape")
	require.True(t, ok)
	assert.Equal(t, graph.NodeTypeAbstractClass, shape.Type)

	// A failed analysis withdraws the file's facts.
	_, err = svc.Change(ctx, ws.circle, []byte("package com.acme.model; public class Circle {"))
	require.Error(t, err)
	project, err = svc.ProjectGraph(ctx)
	require.NoError(t, err)
	_, ok = project.GetNode("com.acme.model.Circle")
	assert.False(t, ok)

	// The sweep report still describes the sweep.
	assert.Equal(t, 2, svc.LastSweep().FilesAnalyzed)
	assert.Len(t, svc.LastSweep().FileGraphs, 2)
}

func TestService_RemovedFileLeavesProject(t *testing.T) {
	ws := newTestWorkspace(t)
	svc := newTestService(t, ws)
	ctx := context.Background()

	_, err := svc.ProjectGraph(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(ws.circle))
	svc.applyChange(ctx, FileChange{Path: ws.circle, Op: FileOpRemove})

	project, err := svc.ProjectGraph(ctx)
	require.NoError(t, err)
	_, ok := project.GetNode("com.acme.model.Circle")
	assert.False(t, ok)
	assert.False(t, project.HasEdge("com.acme.model.Circle", "com.acme.model.Shape", graph.EdgeTypeExtends))
	_, ok = project.GetNode("com.acme.model.Shape")
	assert.True(t, ok)
}

func TestService_SweepCanceledKeepsPreviousProject(t *testing.T) {
	ws := newTestWorkspace(t)
	svc := newTestService(t, ws)

	first, err := svc.Sweep(context.Background(), "")
	require.NoError(t, err)
	require.False(t, first.Cancelled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := svc.Sweep(ctx, "")
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Same(t, first, svc.LastSweep())
}

func TestService_SweepInProgress(t *testing.T) {
	ws := newTestWorkspace(t)
	svc := newTestService(t, ws)

	svc.sweeping.Store(true)
	_, err := svc.Sweep(context.Background(), "")
	assert.ErrorIs(t, err, ErrSweepInProgress)
}

func TestService_ConcurrentChangesOnePath(t *testing.T) {
	ws := newTestWorkspace(t)
	svc := newTestService(t, ws)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Change(ctx, ws.circle, []byte(circleSrc))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	g, err := svc.FileGraph(ctx, ws.circle)
	require.NoError(t, err)
	assert.True(t, g.HasEdge("com.acme.model.Circle", "com.acme.model.Shape", graph.EdgeTypeExtends))
	assert.Equal(t, 1, svc.CachedFiles())
}

func TestService_Shutdown(t *testing.T) {
	ws := newTestWorkspace(t)
	svc := newTestService(t, ws)

	require.NoError(t, svc.Shutdown())
	require.NoError(t, svc.Shutdown())

	_, err := svc.Open(context.Background(), ws.circle)
	assert.ErrorIs(t, err, ErrServiceClosed)
	assert.ErrorIs(t, svc.Close(ws.circle), ErrServiceClosed)
	_, err = svc.MergedGraph()
	assert.ErrorIs(t, err, ErrServiceClosed)
}

func TestService_BadgerBackend(t *testing.T) {
	ws := newTestWorkspace(t)
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Cache.Backend = cache.BackendBadger

	svc, err := New(ws.root, cfg)
	require.NoError(t, err)
	defer svc.Shutdown()

	want, err := svc.Open(context.Background(), ws.circle)
	require.NoError(t, err)
	got, err := svc.FileGraph(context.Background(), ws.circle)
	require.NoError(t, err)
	assert.Equal(t, want.Hash(), got.Hash())
}

func TestEngineOptionsFromConfig(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Stages.Disabled = []string{"MethodCall"}
	cfg.Resolution.CatalogExtra = map[string][]string{"org.acme.lib": {"Widget"}}

	opts, err := EngineOptionsFromConfig(cfg)
	require.NoError(t, err)

	var applied pipeline.EngineOptions
	for _, opt := range opts {
		opt(&applied)
	}
	assert.Len(t, applied.Stages, 7)
	assert.True(t, applied.Catalog.HasType("org.acme.lib.Widget"))
	assert.True(t, applied.Catalog.HasType("java.util.List"))
	assert.Equal(t, cfg.Sweep.Exclude, applied.Discover.Exclude)

	cfg.Stages.Disabled = []string{"NoSuchStage"}
	_, err = EngineOptionsFromConfig(cfg)
	assert.Error(t, err)
}
