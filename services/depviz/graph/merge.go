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

// MergeStats summarizes what a merge changed in the target graph.
type MergeStats struct {
	// NodesAdded is the number of nodes inserted into the target.
	NodesAdded int

	// NodesRefined is the number of existing target nodes that gained
	// at least one field.
	NodesRefined int

	// EdgesAdded is the number of new edges.
	EdgesAdded int
}

// Changed reports whether the merge modified the target.
func (s MergeStats) Changed() bool {
	return s.NodesAdded > 0 || s.NodesRefined > 0 || s.EdgesAdded > 0
}

// Merge folds source into target without discarding known facts.
//
// Description:
//
//	Nodes absent from target are inserted as copies. Nodes present in both
//	are refined field by field, and only to fill gaps:
//	  - Type is taken from source only if target's is Unknown.
//	  - LinesOfCode is taken only if target's is UnmeasuredLines.
//	  - FilePath is taken only if target's is nil.
//	Edges are added only if no edge with the same (source, target, type)
//	triple exists in target.
//
//	Merging the same source twice leaves target unchanged the second time.
//
// Inputs:
//
//	target - The running graph. Must not be nil.
//	source - The graph to fold in. Nil is a no-op.
//
// Outputs:
//
//	MergeStats - Counts of inserted nodes, refined nodes and new edges.
//
// Thread Safety: Single writer. Callers serialize merges into one target.
func Merge(target, source *CodeGraph) MergeStats {
	var stats MergeStats
	if target == nil || source == nil {
		return stats
	}

	for _, id := range source.nodeOrder {
		if mergeNode(target, source.nodes[id], &stats) {
			stats.NodesRefined++
		}
	}

	for _, e := range source.edgeSeq {
		if added, err := target.AddEdge(e.Source, e.Target, e.Type); err == nil && added {
			stats.EdgesAdded++
		}
	}
	return stats
}

// mergeNode applies the fill-the-gaps rule and reports whether an existing
// node was refined. Insertions are counted in stats directly.
func mergeNode(target *CodeGraph, src *Node, stats *MergeStats) bool {
	if src == nil || src.ID == "" {
		return false
	}

	dst, exists := target.nodes[src.ID]
	if !exists {
		n := src.clone()
		if n.Name == "" {
			n.Name = n.ID
		}
		target.nodes[n.ID] = n
		target.nodeOrder = append(target.nodeOrder, n.ID)
		stats.NodesAdded++
		return false
	}

	refined := false
	if dst.Type == NodeTypeUnknown && src.Type != NodeTypeUnknown {
		dst.Type = src.Type
		refined = true
	}
	if dst.LinesOfCode == UnmeasuredLines && src.LinesOfCode != UnmeasuredLines {
		dst.LinesOfCode = src.LinesOfCode
		refined = true
	}
	if dst.FilePath == nil && src.FilePath != nil {
		p := *src.FilePath
		dst.FilePath = &p
		refined = true
	}
	return refined
}

// MergeWire folds a decoded wire graph into target.
//
// Description:
//
//	Link endpoints in w were already normalized to bare ids by EndpointRef
//	decoding, so edges embedded as node objects and edges given as ids share
//	one identity. Nodes follow the same fill-the-gaps rule as Merge.
//
// Outputs:
//
//	MergeStats - What changed.
//	error - Non-nil if w contains an unparseable node or edge type.
func MergeWire(target *CodeGraph, w *WireGraph) (MergeStats, error) {
	src, err := FromWire(w)
	if err != nil {
		return MergeStats{}, err
	}
	return Merge(target, src), nil
}
