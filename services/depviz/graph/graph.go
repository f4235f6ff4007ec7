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

// GraphOptions configures CodeGraph behavior.
type GraphOptions struct {
	// TypePrecedence makes SetType keep the higher-ranked type when two
	// writers disagree within one run. Default false (last writer wins).
	TypePrecedence bool
}

// GraphOption is a functional option for configuring CodeGraph.
type GraphOption func(*GraphOptions)

// WithTypePrecedence enables NodeType.Rank based conflict resolution in SetType.
func WithTypePrecedence() GraphOption {
	return func(o *GraphOptions) {
		o.TypePrecedence = true
	}
}

// CodeGraph is the mutable dependency graph populated by one analysis run.
//
// Description:
//
//	Nodes and edges are kept in insertion order; that order is the wire
//	order. Node ids are unique and edges are unique on (source, target, type).
//
// Thread Safety:
//
//	NOT safe for concurrent use. One analysis run owns a CodeGraph
//	exclusively; merges into a shared graph must be single-writer.
type CodeGraph struct {
	options GraphOptions

	nodes     map[string]*Node
	nodeOrder []string

	edges   map[EdgeKey]struct{}
	edgeSeq []Edge
}

// NewCodeGraph creates an empty graph.
func NewCodeGraph(opts ...GraphOption) *CodeGraph {
	options := GraphOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &CodeGraph{
		options: options,
		nodes:   make(map[string]*Node),
		edges:   make(map[EdgeKey]struct{}),
	}
}

// GetOrCreateNode returns the node for id, creating a stub if absent.
//
// Inputs:
//
//	id - Fully-qualified declaration name. Must not be empty.
//
// Outputs:
//
//	*Node - The existing or newly created node. Never nil.
//	bool - True if the node was created by this call.
func (g *CodeGraph) GetOrCreateNode(id string) (*Node, bool) {
	if n, ok := g.nodes[id]; ok {
		return n, false
	}
	n := &Node{
		ID:          id,
		Name:        id,
		Type:        NodeTypeUnknown,
		LinesOfCode: UnmeasuredLines,
	}
	g.nodes[id] = n
	g.nodeOrder = append(g.nodeOrder, id)
	return n, true
}

// GetNode returns the node for id, if present.
func (g *CodeGraph) GetNode(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// AddEdge records a typed edge, creating stub endpoints as needed.
//
// Outputs:
//
//	bool - True if the edge was new. Re-adding an existing triple is a no-op.
//	error - ErrEmptyID if either endpoint is empty.
func (g *CodeGraph) AddEdge(source, target string, edgeType EdgeType) (bool, error) {
	if source == "" || target == "" {
		return false, ErrEmptyID
	}
	g.GetOrCreateNode(source)
	g.GetOrCreateNode(target)

	key := EdgeKey{Source: source, Target: target, Type: edgeType}
	if _, exists := g.edges[key]; exists {
		return false, nil
	}
	g.edges[key] = struct{}{}
	g.edgeSeq = append(g.edgeSeq, Edge{Source: source, Target: target, Type: edgeType})
	return true, nil
}

// HasEdge reports whether the triple is present.
func (g *CodeGraph) HasEdge(source, target string, edgeType EdgeType) bool {
	_, ok := g.edges[EdgeKey{Source: source, Target: target, Type: edgeType}]
	return ok
}

// SetType sets the declaration type of id, creating the node if needed.
//
// With type precedence enabled a lower-ranked type never replaces a
// higher-ranked one; otherwise the last writer wins.
func (g *CodeGraph) SetType(id string, t NodeType) {
	n, _ := g.GetOrCreateNode(id)
	if g.options.TypePrecedence && t.Rank() < n.Type.Rank() {
		return
	}
	n.Type = t
}

// SetLinesOfCode sets the line count of id, creating the node if needed.
func (g *CodeGraph) SetLinesOfCode(id string, lines int) {
	n, _ := g.GetOrCreateNode(id)
	n.LinesOfCode = lines
}

// SetFilePath sets the source path of id, creating the node if needed.
func (g *CodeGraph) SetFilePath(id string, path string) {
	n, _ := g.GetOrCreateNode(id)
	p := path
	n.FilePath = &p
}

// NodeCount returns the number of nodes.
func (g *CodeGraph) NodeCount() int {
	if g == nil {
		return 0
	}
	return len(g.nodeOrder)
}

// EdgeCount returns the number of edges.
func (g *CodeGraph) EdgeCount() int {
	if g == nil {
		return 0
	}
	return len(g.edgeSeq)
}

// Nodes returns the nodes in insertion order.
//
// The returned pointers alias graph state; callers must not retain them
// across a Merge into this graph from another goroutine.
func (g *CodeGraph) Nodes() []*Node {
	if g == nil {
		return nil
	}
	out := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns a copy of the edges in insertion order.
func (g *CodeGraph) Edges() []Edge {
	if g == nil {
		return nil
	}
	out := make([]Edge, len(g.edgeSeq))
	copy(out, g.edgeSeq)
	return out
}

// EdgesOfType returns the edges with the given type in insertion order.
func (g *CodeGraph) EdgesOfType(t EdgeType) []Edge {
	var out []Edge
	for _, e := range g.edgeSeq {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a deep copy of the graph.
func (g *CodeGraph) Clone() *CodeGraph {
	c := &CodeGraph{
		options:   g.options,
		nodes:     make(map[string]*Node, len(g.nodes)),
		nodeOrder: make([]string, len(g.nodeOrder)),
		edges:     make(map[EdgeKey]struct{}, len(g.edges)),
		edgeSeq:   make([]Edge, len(g.edgeSeq)),
	}
	copy(c.nodeOrder, g.nodeOrder)
	copy(c.edgeSeq, g.edgeSeq)
	for id, n := range g.nodes {
		c.nodes[id] = n.clone()
	}
	for k := range g.edges {
		c.edges[k] = struct{}{}
	}
	return c
}
