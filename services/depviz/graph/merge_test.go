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
	"encoding/json"
	"testing"
)

// fileGraph builds the graph a single-file analysis of decl would produce:
// decl fully populated, refs as stubs with a TypeUse edge each.
func fileGraph(decl string, t NodeType, loc int, path string, refs ...string) *CodeGraph {
	g := NewCodeGraph()
	for _, r := range refs {
		g.AddEdge(decl, r, EdgeTypeTypeUse)
	}
	g.SetType(decl, t)
	g.SetLinesOfCode(decl, loc)
	g.SetFilePath(decl, path)
	return g
}

func TestMerge_InsertsAbsentNodes(t *testing.T) {
	target := NewCodeGraph()
	source := fileGraph("p.A", NodeTypeClass, 10, "/p/A.java", "p.B")

	stats := Merge(target, source)

	if stats.NodesAdded != 2 || stats.EdgesAdded != 1 || stats.NodesRefined != 0 {
		t.Errorf("stats = %+v, want 2 added nodes, 1 edge, 0 refined", stats)
	}
	if target.Hash() != source.Hash() {
		t.Error("merging into empty target should reproduce source")
	}

	// Target must not alias source nodes.
	source.SetLinesOfCode("p.A", 99)
	if n, _ := target.GetNode("p.A"); n.LinesOfCode != 10 {
		t.Errorf("target aliases source node: loc = %d", n.LinesOfCode)
	}
}

func TestMerge_StubRefinement(t *testing.T) {
	// A.java references B; B.java declares B.
	target := NewCodeGraph()
	Merge(target, fileGraph("p.A", NodeTypeClass, 10, "/p/A.java", "p.B"))

	stub, _ := target.GetNode("p.B")
	if !stub.IsStub() {
		t.Fatalf("p.B should be a stub before B is merged")
	}

	stats := Merge(target, fileGraph("p.B", NodeTypeInterface, 4, "/p/B.java"))

	if stats.NodesAdded != 0 {
		t.Errorf("NodesAdded = %d, want 0 (no second node for p.B)", stats.NodesAdded)
	}
	if stats.NodesRefined != 1 {
		t.Errorf("NodesRefined = %d, want 1", stats.NodesRefined)
	}
	if target.NodeCount() != 2 {
		t.Errorf("node count = %d, want 2", target.NodeCount())
	}
	b, _ := target.GetNode("p.B")
	if b.Type != NodeTypeInterface || b.LinesOfCode != 4 || b.FilePath == nil || *b.FilePath != "/p/B.java" {
		t.Errorf("p.B not refined: %+v", b)
	}
}

func TestMerge_NeverRegresses(t *testing.T) {
	target := fileGraph("p.A", NodeTypeAbstractClass, 10, "/p/A.java")

	// Older, less informed data about p.A (a stub) and conflicting data.
	older := NewCodeGraph()
	older.GetOrCreateNode("p.A")
	conflicting := fileGraph("p.A", NodeTypeClass, 3, "/elsewhere/A.java")

	if stats := Merge(target, older); stats.Changed() {
		t.Errorf("stub merge changed target: %+v", stats)
	}
	if stats := Merge(target, conflicting); stats.Changed() {
		t.Errorf("conflicting merge changed target: %+v", stats)
	}

	a, _ := target.GetNode("p.A")
	if a.Type != NodeTypeAbstractClass || a.LinesOfCode != 10 || *a.FilePath != "/p/A.java" {
		t.Errorf("p.A regressed: %+v", a)
	}
}

func TestMerge_Monotonicity(t *testing.T) {
	tests := []struct {
		name       string
		targetType NodeType
		sourceType NodeType
		targetLOC  int
		sourceLOC  int
		wantType   NodeType
		wantLOC    int
	}{
		{"both unknown", NodeTypeUnknown, NodeTypeUnknown, -1, -1, NodeTypeUnknown, -1},
		{"source fills", NodeTypeUnknown, NodeTypeEnum, -1, 7, NodeTypeEnum, 7},
		{"target kept", NodeTypeClass, NodeTypeEnum, 3, 7, NodeTypeClass, 3},
		{"mixed", NodeTypeClass, NodeTypeUnknown, -1, 0, NodeTypeClass, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := NewCodeGraph()
			target.SetType("X", tt.targetType)
			target.SetLinesOfCode("X", tt.targetLOC)

			source := NewCodeGraph()
			source.SetType("X", tt.sourceType)
			source.SetLinesOfCode("X", tt.sourceLOC)
			source.SetFilePath("X", "/x.java")

			Merge(target, source)

			n, _ := target.GetNode("X")
			if n.Type != tt.wantType {
				t.Errorf("type = %s, want %s", n.Type, tt.wantType)
			}
			if n.LinesOfCode != tt.wantLOC {
				t.Errorf("loc = %d, want %d", n.LinesOfCode, tt.wantLOC)
			}
			if n.FilePath == nil {
				t.Error("filePath should be filled from source")
			}
		})
	}
}

func TestMerge_Idempotent(t *testing.T) {
	target := fileGraph("p.C", NodeTypeClass, 1, "/p/C.java", "p.A")
	source := fileGraph("p.A", NodeTypeClass, 10, "/p/A.java", "p.B", "p.C")
	source.AddEdge("p.A", "p.B", EdgeTypeExtends)

	Merge(target, source)
	once := target.Hash()
	nodes, edges := target.NodeCount(), target.EdgeCount()

	stats := Merge(target, source)
	if stats.Changed() {
		t.Errorf("second merge changed target: %+v", stats)
	}
	if target.Hash() != once || target.NodeCount() != nodes || target.EdgeCount() != edges {
		t.Error("second merge altered the graph")
	}
}

func TestMerge_CommutativeOnNodeSet(t *testing.T) {
	a := fileGraph("p.A", NodeTypeClass, 10, "/p/A.java", "p.B")
	b := fileGraph("p.B", NodeTypeClass, 5, "/p/B.java", "p.C")

	ab := NewCodeGraph()
	Merge(ab, a)
	Merge(ab, b)

	ba := NewCodeGraph()
	Merge(ba, b)
	Merge(ba, a)

	if ab.Hash() != ba.Hash() {
		t.Error("merge order changed the resulting graph contents")
	}
}

func TestMergeWire_NormalizesEmbeddedEndpoints(t *testing.T) {
	target := NewCodeGraph()
	target.AddEdge("p.A", "p.B", EdgeTypeTypeUse)

	payload := `{
		"nodes": [
			{"id": "p.A", "name": "p.A", "type": "Class", "linesOfCode": 10, "filePath": "/p/A.java"},
			{"id": "p.B", "name": "p.B", "type": "Unknown", "linesOfCode": -1, "filePath": null}
		],
		"links": [
			{"source": {"id": "p.A", "x": 1.5}, "target": {"id": "p.B"}, "type": "TypeUse"},
			{"source": "p.A", "target": {"id": "p.B"}, "type": "MethodCall"}
		]
	}`
	var w WireGraph
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	stats, err := MergeWire(target, &w)
	if err != nil {
		t.Fatalf("MergeWire: %v", err)
	}
	if stats.EdgesAdded != 1 {
		t.Errorf("EdgesAdded = %d, want 1 (embedded TypeUse is a duplicate)", stats.EdgesAdded)
	}
	if target.EdgeCount() != 2 {
		t.Errorf("edge count = %d, want 2", target.EdgeCount())
	}
	a, _ := target.GetNode("p.A")
	if a.Type != NodeTypeClass || a.LinesOfCode != 10 {
		t.Errorf("p.A not refined from wire: %+v", a)
	}
}

func TestMerge_NilArguments(t *testing.T) {
	if stats := Merge(nil, NewCodeGraph()); stats.Changed() {
		t.Error("nil target should be a no-op")
	}
	g := NewCodeGraph()
	if stats := Merge(g, nil); stats.Changed() {
		t.Error("nil source should be a no-op")
	}
}
