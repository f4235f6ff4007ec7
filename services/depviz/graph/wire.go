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
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// WireGraph is the JSON payload exchanged with the visualization.
//
// Description:
//
//	{"nodes":[{id,name,type,linesOfCode,filePath}],"links":[{source,target,type}]}
//
//	Nodes and Links are never nil after ToWire or EmptyWire so that an
//	empty graph encodes as {"nodes":[],"links":[]}.
//
// Thread Safety: WireGraph is a value type with no internal state.
type WireGraph struct {
	Nodes []WireNode `json:"nodes"`
	Links []WireLink `json:"links"`
}

// WireNode is the JSON form of a Node.
type WireNode struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        NodeType `json:"type"`
	LinesOfCode int      `json:"linesOfCode"`
	FilePath    *string  `json:"filePath"`
}

// UnmarshalJSON decodes a node. A missing or null linesOfCode decodes as
// UnmeasuredLines, not 0.
func (n *WireNode) UnmarshalJSON(data []byte) error {
	type plain WireNode
	var raw struct {
		plain
		LinesOfCode *int `json:"linesOfCode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = WireNode(raw.plain)
	n.LinesOfCode = UnmeasuredLines
	if raw.LinesOfCode != nil {
		n.LinesOfCode = *raw.LinesOfCode
	}
	return nil
}

// WireLink is the JSON form of an Edge.
type WireLink struct {
	Source EndpointRef `json:"source"`
	Target EndpointRef `json:"target"`
	Type   EdgeType    `json:"type"`
}

// EndpointRef is a link endpoint normalized to a bare node id.
//
// Description:
//
//	Force-directed graph renderers replace link endpoints with the node
//	objects they point at. EndpointRef decodes either a JSON string or an
//	object carrying an "id" field, and always encodes as the bare id string.
type EndpointRef string

// MarshalJSON encodes the endpoint as its id string.
func (r EndpointRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(r))
}

// UnmarshalJSON accepts "id" or {"id": "..."}.
func (r *EndpointRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrInvalidEndpoint
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
		}
		*r = EndpointRef(s)
		return nil
	case '{':
		var obj struct {
			ID *string `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
		}
		if obj.ID == nil {
			return fmt.Errorf("%w: object has no id", ErrInvalidEndpoint)
		}
		*r = EndpointRef(*obj.ID)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidEndpoint, string(data))
	}
}

// EmptyWire returns the empty graph payload {"nodes":[],"links":[]}.
func EmptyWire() *WireGraph {
	return &WireGraph{
		Nodes: []WireNode{},
		Links: []WireLink{},
	}
}

// ToWire converts the graph to its wire form, preserving insertion order.
//
// A nil graph yields EmptyWire.
func (g *CodeGraph) ToWire() *WireGraph {
	w := EmptyWire()
	if g == nil {
		return w
	}

	w.Nodes = make([]WireNode, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		wn := WireNode{
			ID:          n.ID,
			Name:        n.Name,
			Type:        n.Type,
			LinesOfCode: n.LinesOfCode,
		}
		if n.FilePath != nil {
			p := *n.FilePath
			wn.FilePath = &p
		}
		w.Nodes = append(w.Nodes, wn)
	}

	w.Links = make([]WireLink, 0, len(g.edgeSeq))
	for _, e := range g.edgeSeq {
		w.Links = append(w.Links, WireLink{
			Source: EndpointRef(e.Source),
			Target: EndpointRef(e.Target),
			Type:   e.Type,
		})
	}
	return w
}

// FromWire reconstructs a CodeGraph from its wire form.
//
// Description:
//
//	Duplicate node ids in w are folded with the Merge fill-the-gaps rule and
//	duplicate links collapse to one edge, so the result always satisfies the
//	graph invariants even if w does not.
//
// Outputs:
//
//	*CodeGraph - The reconstructed graph.
//	error - Non-nil if w is nil or contains an empty id.
func FromWire(w *WireGraph) (*CodeGraph, error) {
	if w == nil {
		return nil, fmt.Errorf("wire graph must not be nil")
	}

	g := NewCodeGraph()
	var stats MergeStats
	for i, wn := range w.Nodes {
		if wn.ID == "" {
			return nil, fmt.Errorf("node at index %d: %w", i, ErrEmptyID)
		}
		n := &Node{
			ID:          wn.ID,
			Name:        wn.Name,
			Type:        wn.Type,
			LinesOfCode: wn.LinesOfCode,
			FilePath:    wn.FilePath,
		}
		if n.Name == "" {
			n.Name = n.ID
		}
		mergeNode(g, n, &stats)
	}

	for i, wl := range w.Links {
		if _, err := g.AddEdge(string(wl.Source), string(wl.Target), wl.Type); err != nil {
			return nil, fmt.Errorf("link at index %d: %w", i, err)
		}
	}
	return g, nil
}

// MarshalJSON encodes the graph in wire form.
func (g *CodeGraph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.ToWire())
}

// Hash returns a deterministic digest of the graph contents.
//
// Description:
//
//	Independent of insertion order: nodes are hashed sorted by id and edges
//	sorted by (source, target, type). Two graphs with equal Hash hold the
//	same nodes with the same fields and the same edge set.
func (g *CodeGraph) Hash() string {
	h := sha256.New()
	if g == nil {
		return hex.EncodeToString(h.Sum(nil))
	}

	ids := make([]string, len(g.nodeOrder))
	copy(ids, g.nodeOrder)
	sort.Strings(ids)
	for _, id := range ids {
		n := g.nodes[id]
		path := "<nil>"
		if n.FilePath != nil {
			path = *n.FilePath
		}
		fmt.Fprintf(h, "N|%s|%s|%s|%d|%s\n", n.ID, n.Name, n.Type, n.LinesOfCode, path)
	}

	edges := g.Edges()
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Type < edges[j].Type
	})
	for _, e := range edges {
		fmt.Fprintf(h, "E|%s|%s|%s\n", e.Source, e.Target, e.Type)
	}
	return hex.EncodeToString(h.Sum(nil))
}
