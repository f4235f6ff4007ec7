// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/DependViz/services/depviz/graph"
	"github.com/AleutianAI/DependViz/services/depviz/pipeline"
)

const (
	shapeSrc  = "package com.acme.model;\n\npublic abstract class Shape {\n    public abstract double area();\n}\n"
	circleSrc = "package com.acme.model;\n\npublic class Circle extends Shape {\n    public double area() { return 1.0; }\n}\n"
)

func newWorkspace(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	pkg := filepath.Join(root, "src", "main", "java", "com", "acme", "model")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "Shape.java"), []byte(shapeSrc), 0o644))
	circle := filepath.Join(pkg, "Circle.java")
	require.NoError(t, os.WriteFile(circle, []byte(circleSrc), 0o644))
	return root, circle
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	root, circle := newWorkspace(t)

	out, err := execute(t, "analyze", "--workspace", root, "--log-level", "error", circle)
	require.NoError(t, err)

	var w graph.WireGraph
	require.NoError(t, json.Unmarshal([]byte(out), &w))
	assert.Len(t, w.Nodes, 2)
	require.Len(t, w.Links, 1)
	assert.Equal(t, graph.EndpointRef("com.acme.model.Circle"), w.Links[0].Source)
	assert.Equal(t, graph.EndpointRef("com.acme.model.Shape"), w.Links[0].Target)
}

func TestAnalyzeCommand_NotJava(t *testing.T) {
	root, _ := newWorkspace(t)
	_, err := execute(t, "analyze", "--workspace", root, "--log-level", "error", filepath.Join(root, "pom.xml"))
	require.Error(t, err)
}

func TestSweepCommand(t *testing.T) {
	root, _ := newWorkspace(t)
	graphFile := filepath.Join(t.TempDir(), "graph.json")

	out, err := execute(t, "sweep", "--workspace", root, "--log-level", "error", "--json", "--output", graphFile)
	require.NoError(t, err)

	var report pipeline.SweepResult
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.FilesDiscovered)
	assert.Equal(t, 2, report.FilesAnalyzed)
	assert.False(t, report.Cancelled)

	data, err := os.ReadFile(graphFile)
	require.NoError(t, err)
	var w graph.WireGraph
	require.NoError(t, json.Unmarshal(data, &w))
	assert.Len(t, w.Nodes, 2)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev", strings.TrimSpace(out))
}

func TestRenderSweepReport(t *testing.T) {
	report := renderSweepReport(&pipeline.SweepResult{
		ID:              "abc",
		Root:            "/ws/src/main/java",
		FilesDiscovered: 3,
		FilesAnalyzed:   2,
		FilesFailed:     1,
		Failures:        []pipeline.FileFailure{{Path: "/ws/Broken.java", Error: "syntax error"}},
		Nodes:           4,
		Edges:           5,
		Duration:        1500 * time.Millisecond,
	})

	assert.Contains(t, report, "Sweep abc")
	assert.Contains(t, report, "2 analyzed of 3 discovered")
	assert.Contains(t, report, "4 nodes, 5 edges")
	assert.Contains(t, report, "1 file(s) failed")
	assert.Contains(t, report, "/ws/Broken.java")
	assert.Contains(t, report, "syntax error")
}

func TestNewLogHandler(t *testing.T) {
	var buf bytes.Buffer

	assert.IsType(t, &slog.JSONHandler{}, newLogHandler(&buf, "json", slog.LevelInfo))
	assert.IsType(t, &slog.TextHandler{}, newLogHandler(&buf, "text", slog.LevelInfo))
	// A buffer is never a terminal.
	assert.IsType(t, &slog.JSONHandler{}, newLogHandler(&buf, "auto", slog.LevelInfo))

	h := newLogHandler(&buf, "json", slog.LevelWarn)
	assert.False(t, h.Enabled(t.Context(), slog.LevelInfo))
}
