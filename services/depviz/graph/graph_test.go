// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"testing"
)

func TestGetOrCreateNode_CreatesStub(t *testing.T) {
	g := NewCodeGraph()

	n, created := g.GetOrCreateNode("com.example.A")
	if !created {
		t.Fatal("expected node to be created")
	}
	if n.ID != "com.example.A" || n.Name != "com.example.A" {
		t.Errorf("id/name = %q/%q, want com.example.A", n.ID, n.Name)
	}
	if !n.IsStub() {
		t.Errorf("new node should be a stub, got type=%s loc=%d path=%v", n.Type, n.LinesOfCode, n.FilePath)
	}

	again, created := g.GetOrCreateNode("com.example.A")
	if created {
		t.Error("second GetOrCreateNode should not create")
	}
	if again != n {
		t.Error("second GetOrCreateNode should return the same node")
	}
	if g.NodeCount() != 1 {
		t.Errorf("node count = %d, want 1", g.NodeCount())
	}
}

func TestAddEdge_DeduplicatesTriple(t *testing.T) {
	g := NewCodeGraph()

	added, err := g.AddEdge("A", "B", EdgeTypeTypeUse)
	if err != nil || !added {
		t.Fatalf("first AddEdge = (%v, %v), want (true, nil)", added, err)
	}
	added, err = g.AddEdge("A", "B", EdgeTypeTypeUse)
	if err != nil || added {
		t.Fatalf("duplicate AddEdge = (%v, %v), want (false, nil)", added, err)
	}
	if _, err := g.AddEdge("A", "B", EdgeTypeMethodCall); err != nil {
		t.Fatalf("different type AddEdge: %v", err)
	}

	if g.EdgeCount() != 2 {
		t.Errorf("edge count = %d, want 2", g.EdgeCount())
	}
	if g.NodeCount() != 2 {
		t.Errorf("node count = %d, want 2 (stubs for both endpoints)", g.NodeCount())
	}
	if !g.HasEdge("A", "B", EdgeTypeMethodCall) {
		t.Error("expected MethodCall(A,B)")
	}
}

func TestAddEdge_EmptyEndpoint(t *testing.T) {
	g := NewCodeGraph()
	if _, err := g.AddEdge("", "B", EdgeTypeExtends); !errors.Is(err, ErrEmptyID) {
		t.Errorf("err = %v, want ErrEmptyID", err)
	}
	if g.NodeCount() != 0 {
		t.Errorf("node count = %d, want 0", g.NodeCount())
	}
}

func TestSetters(t *testing.T) {
	g := NewCodeGraph()
	g.SetType("A", NodeTypeInterface)
	g.SetLinesOfCode("A", 12)
	g.SetFilePath("A", "/src/A.java")

	n, ok := g.GetNode("A")
	if !ok {
		t.Fatal("node A missing")
	}
	if n.Type != NodeTypeInterface {
		t.Errorf("type = %s, want Interface", n.Type)
	}
	if n.LinesOfCode != 12 {
		t.Errorf("loc = %d, want 12", n.LinesOfCode)
	}
	if n.FilePath == nil || *n.FilePath != "/src/A.java" {
		t.Errorf("filePath = %v, want /src/A.java", n.FilePath)
	}
}

func TestSetType_Precedence(t *testing.T) {
	t.Run("last writer wins by default", func(t *testing.T) {
		g := NewCodeGraph()
		g.SetType("A", NodeTypeEnum)
		g.SetType("A", NodeTypeClass)
		if n, _ := g.GetNode("A"); n.Type != NodeTypeClass {
			t.Errorf("type = %s, want Class", n.Type)
		}
	})

	t.Run("precedence keeps higher rank", func(t *testing.T) {
		g := NewCodeGraph(WithTypePrecedence())
		g.SetType("A", NodeTypeEnum)
		g.SetType("A", NodeTypeClass)
		if n, _ := g.GetNode("A"); n.Type != NodeTypeEnum {
			t.Errorf("type = %s, want Enum", n.Type)
		}
		g.SetType("A", NodeTypeAnnotation)
		if n, _ := g.GetNode("A"); n.Type != NodeTypeAnnotation {
			t.Errorf("type = %s, want Annotation", n.Type)
		}
	})
}

func TestNodesAndEdges_InsertionOrder(t *testing.T) {
	g := NewCodeGraph()
	g.GetOrCreateNode("Z")
	g.AddEdge("Z", "A", EdgeTypeExtends)
	g.AddEdge("M", "A", EdgeTypeTypeUse)

	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	want := []string{"Z", "A", "M"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}

	edges := g.Edges()
	if edges[0].String() != "Extends(Z,A)" || edges[1].String() != "TypeUse(M,A)" {
		t.Errorf("edges = %v", edges)
	}
	if len(g.EdgesOfType(EdgeTypeTypeUse)) != 1 {
		t.Errorf("EdgesOfType(TypeUse) = %v", g.EdgesOfType(EdgeTypeTypeUse))
	}
}

func TestClone_IsDeep(t *testing.T) {
	g := NewCodeGraph()
	g.SetFilePath("A", "/a.java")
	g.AddEdge("A", "B", EdgeTypeTypeUse)

	c := g.Clone()
	c.SetFilePath("A", "/changed.java")
	c.AddEdge("A", "C", EdgeTypeTypeUse)

	n, _ := g.GetNode("A")
	if *n.FilePath != "/a.java" {
		t.Errorf("original filePath mutated: %s", *n.FilePath)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("original edge count = %d, want 1", g.EdgeCount())
	}
	if c.Hash() == g.Hash() {
		t.Error("clone hash should differ after mutation")
	}
}

func TestParseTypes(t *testing.T) {
	for _, nt := range []NodeType{NodeTypeUnknown, NodeTypeClass, NodeTypeAbstractClass, NodeTypeInterface, NodeTypeEnum, NodeTypeAnnotation} {
		got, err := ParseNodeType(nt.String())
		if err != nil || got != nt {
			t.Errorf("ParseNodeType(%q) = (%v, %v)", nt.String(), got, err)
		}
	}
	if _, err := ParseNodeType("Struct"); !errors.Is(err, ErrUnknownNodeType) {
		t.Errorf("ParseNodeType(Struct) err = %v, want ErrUnknownNodeType", err)
	}
	for _, et := range AllEdgeTypes {
		got, err := ParseEdgeType(et.String())
		if err != nil || got != et {
			t.Errorf("ParseEdgeType(%q) = (%v, %v)", et.String(), got, err)
		}
	}
	if _, err := ParseEdgeType("Calls"); !errors.Is(err, ErrUnknownEdgeType) {
		t.Errorf("ParseEdgeType(Calls) err = %v, want ErrUnknownEdgeType", err)
	}
}
