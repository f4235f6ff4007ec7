// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/DependViz/services/depviz/ast"
	"github.com/AleutianAI/DependViz/services/depviz/graph"
	"github.com/AleutianAI/DependViz/services/depviz/symbols"
)

var errFake = errors.New("fake resolution failure")

// fakeResolver resolves a type to "demo.<text>", fails on "Bad" and panics
// on "Boom".
type fakeResolver struct {
	unit *ast.Unit
}

func (f fakeResolver) resolve(n *sitter.Node) (string, error) {
	text := symbols.TypeName(f.unit, n)
	switch text {
	case "Bad":
		return "", errFake
	case "Boom":
		panic("boom")
	}
	return "demo." + text, nil
}

func (f fakeResolver) ResolveType(n *sitter.Node) (string, error) {
	return f.resolve(n)
}

func (f fakeResolver) ResolveMethodOwner(call *sitter.Node) (string, error) {
	return "demo.Owner", nil
}

func (f fakeResolver) ResolveCreatedType(creation *sitter.Node) (string, error) {
	return f.resolve(creation.ChildByFieldName("type"))
}

func parseUnit(t *testing.T, path, src string) *ast.Unit {
	t.Helper()
	unit, err := ast.NewJavaParser().Parse(context.Background(), path, []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	t.Cleanup(unit.Close)
	return unit
}

func fakeTree(t *testing.T, src string) *Tree {
	unit := parseUnit(t, "/ws/demo/A.java", src)
	return &Tree{Unit: unit, Resolver: fakeResolver{unit: unit}}
}

func runAll(tree *Tree, g *graph.CodeGraph) []StageReport {
	var reports []StageReport
	for _, s := range Default() {
		reports = append(reports, Run(context.Background(), s, tree, g))
	}
	return reports
}

func TestTypeUse_FaultIsolation(t *testing.T) {
	tree := fakeTree(t, `package demo;
class A {
    Good one;
    Bad two;
    Other three;
    Boom four;
    int five;
    void m(Bad x, Good y, String... rest) { Good z = null; }
}
`)
	g := graph.NewCodeGraph()
	report := Run(context.Background(), NewListStage(NameTypeUse, TypeUse{}), tree, g)

	// 4 reference fields, 3 parameters and 1 local; int and void are skipped.
	if report.Targets != 8 {
		t.Errorf("targets = %d, want 8", report.Targets)
	}
	if report.Failed() != 3 {
		t.Errorf("failures = %d, want 3 (two, four, x)", report.Failed())
	}
	var panicked bool
	for _, f := range report.Failures {
		if errors.Is(f.Err, ErrTargetPanicked) {
			panicked = true
			if f.Line != 6 {
				t.Errorf("panic line = %d, want 6", f.Line)
			}
		}
	}
	if !panicked {
		t.Error("expected a recovered panic failure")
	}

	for _, target := range []string{"demo.Good", "demo.Other", "demo.String"} {
		if !g.HasEdge("demo.A", target, graph.EdgeTypeTypeUse) {
			t.Errorf("missing TypeUse(demo.A, %s)", target)
		}
	}
	if g.EdgeCount() != 3 {
		t.Errorf("edges = %v, want 3", g.Edges())
	}
}

func TestTypeUse_PrimitiveArraysAreNotTargets(t *testing.T) {
	tree := fakeTree(t, `package demo;
class A {
    int[] counts;
    long[][] grid;
    Good[] goods;
    byte[] read(char[] buf, Good... more) { boolean[] seen = null; return null; }
}
`)
	g := graph.NewCodeGraph()
	report := Run(context.Background(), NewListStage(NameTypeUse, TypeUse{}), tree, g)

	// Only goods and the varargs parameter reference a class.
	if report.Targets != 2 {
		t.Errorf("targets = %d, want 2", report.Targets)
	}
	if report.Failed() != 0 {
		t.Errorf("failures = %v, want none", report.Failures)
	}
	if !g.HasEdge("demo.A", "demo.Good", graph.EdgeTypeTypeUse) || g.EdgeCount() != 1 {
		t.Errorf("edges = %v, want only TypeUse(demo.A, demo.Good)", g.Edges())
	}
}

func TestHierarchy_FailurePolicies(t *testing.T) {
	tree := fakeTree(t, `package demo;
class A extends Bad implements Good, Bad, Other {}
interface I extends Bad, Good {}
`)
	g := graph.NewCodeGraph()

	ext := Run(context.Background(), NewListStage(NameExtends, Extends{}), tree, g)
	if ext.Failed() != 0 {
		t.Errorf("Extends failures = %d, unresolved supertypes must be skipped", ext.Failed())
	}
	if !g.HasEdge("demo.I", "demo.Good", graph.EdgeTypeExtends) {
		t.Error("missing Extends(demo.I, demo.Good)")
	}

	impl := Run(context.Background(), NewListStage(NameImplements, Implements{}), tree, g)
	if impl.Failed() != 1 || !errors.Is(impl.Failures[0].Err, errFake) {
		t.Errorf("Implements failures = %+v, want one wrapping the resolution error", impl.Failures)
	}
	if !g.HasEdge("demo.A", "demo.Good", graph.EdgeTypeImplements) {
		t.Error("edges before the failing interface are kept")
	}
	if g.HasEdge("demo.A", "demo.Other", graph.EdgeTypeImplements) {
		t.Error("interfaces after the failing one are not processed")
	}
}

func TestWholeTreeStages(t *testing.T) {
	tree := fakeTree(t, `package demo;

public abstract class Shape {
    interface Visitor {}
    enum Kind { ROUND, SQUARE }
    @interface Marker {}
    record Point(int x, int y) {}
    void m() {
        class Local {}
    }
}
`)
	g := graph.NewCodeGraph()
	runAll(tree, g)

	want := map[string]graph.NodeType{
		"demo.Shape":         graph.NodeTypeAbstractClass,
		"demo.Shape.Visitor": graph.NodeTypeInterface,
		"demo.Shape.Kind":    graph.NodeTypeEnum,
		"demo.Shape.Marker":  graph.NodeTypeAnnotation,
		"demo.Shape.Point":   graph.NodeTypeClass,
	}
	for id, typ := range want {
		n, ok := g.GetNode(id)
		if !ok {
			t.Errorf("missing node %s", id)
			continue
		}
		if n.Type != typ {
			t.Errorf("%s type = %s, want %s", id, n.Type, typ)
		}
		if n.FilePath == nil || *n.FilePath != "/ws/demo/A.java" {
			t.Errorf("%s file path = %v", id, n.FilePath)
		}
		if n.LinesOfCode < 1 {
			t.Errorf("%s lines = %d", id, n.LinesOfCode)
		}
	}

	shape, _ := g.GetNode("demo.Shape")
	if shape.LinesOfCode != 9 {
		t.Errorf("Shape lines = %d, want 9", shape.LinesOfCode)
	}
	if _, ok := g.GetNode(graph.UnknownID); ok {
		t.Error("local declarations must not create an Unknown node")
	}
}

func TestFilePath_InMemoryUnit(t *testing.T) {
	unit := parseUnit(t, "", "class A {}")
	g := graph.NewCodeGraph()
	Run(context.Background(), NewWholeTreeStage(NameFilePath, FilePath{}), &Tree{Unit: unit, Resolver: fakeResolver{unit: unit}}, g)
	if g.NodeCount() != 0 {
		t.Errorf("nodes = %d, want 0 for a unit without a path", g.NodeCount())
	}
}

func TestWithoutDisabled(t *testing.T) {
	got, err := WithoutDisabled([]string{"typeuse", "FilePath"})
	if err != nil {
		t.Fatalf("WithoutDisabled: %v", err)
	}
	if len(got) != 6 || got[0].Name != NameMethodCall || got[len(got)-1].Name != NameLinesOfCode {
		t.Errorf("stages = %v", got)
	}

	if _, err := WithoutDisabled([]string{"Nope"}); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("err = %v, want ErrUnknownStage", err)
	}
}

// writeSources writes Java files under <tmp>/src/main/java and returns the
// source root.
func writeSources(t *testing.T, files map[string]string) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "src", "main", "java")
	for rel, content := range files {
		path := filepath.Join(src, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return src
}

func TestScenario_SingleClass(t *testing.T) {
	const a = `package demo;
class A extends B implements C { D field; void m(E p) { new F(); g(); } }
`
	src := writeSources(t, map[string]string{
		"demo/A.java": a,
		"demo/B.java": "package demo;\nclass B { void g() {} }\n",
		"demo/C.java": "package demo;\ninterface C {}\n",
		"demo/D.java": "package demo;\nclass D {}\n",
		"demo/E.java": "package demo;\nclass E {}\n",
		"demo/F.java": "package demo;\nclass F {}\n",
	})

	ix := symbols.NewIndex(src)
	if _, err := ix.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	resolver, err := symbols.NewResolver(ix)
	if err != nil {
		t.Fatal(err)
	}
	unit := parseUnit(t, filepath.Join(src, "demo", "A.java"), a)
	tree := &Tree{Unit: unit, Resolver: resolver.ForUnit(unit)}

	g := graph.NewCodeGraph()
	for _, r := range runAll(tree, g) {
		if r.Failed() != 0 {
			t.Errorf("stage %s failures: %+v", r.Stage, r.Failures)
		}
	}

	want := []graph.Edge{
		{Source: "demo.A", Target: "demo.B", Type: graph.EdgeTypeExtends},
		{Source: "demo.A", Target: "demo.C", Type: graph.EdgeTypeImplements},
		{Source: "demo.A", Target: "demo.D", Type: graph.EdgeTypeTypeUse},
		{Source: "demo.A", Target: "demo.E", Type: graph.EdgeTypeTypeUse},
		{Source: "demo.A", Target: "demo.F", Type: graph.EdgeTypeObjectCreate},
		{Source: "demo.A", Target: "demo.B", Type: graph.EdgeTypeMethodCall},
	}
	if g.EdgeCount() != len(want) {
		t.Errorf("edges = %v, want exactly %v", g.Edges(), want)
	}
	for _, e := range want {
		if !g.HasEdge(e.Source, e.Target, e.Type) {
			t.Errorf("missing %s", e)
		}
	}

	if g.NodeCount() != 6 {
		t.Errorf("nodes = %d, want 6", g.NodeCount())
	}
	a1, _ := g.GetNode("demo.A")
	if a1.Type != graph.NodeTypeClass || a1.LinesOfCode != 1 || a1.FilePath == nil {
		t.Errorf("A = %+v", a1)
	}
	b, _ := g.GetNode("demo.B")
	if !b.IsStub() {
		t.Errorf("B should be a stub in A's graph, got %+v", b)
	}
}
