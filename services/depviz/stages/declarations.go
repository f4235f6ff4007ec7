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
	"github.com/AleutianAI/DependViz/services/depviz/ast"
	"github.com/AleutianAI/DependViz/services/depviz/graph"
)

// ClassType sets the node type of every named declaration in the unit.
type ClassType struct{}

// Run classifies every declaration. Within one run the last write wins
// unless the graph was created with type precedence.
func (ClassType) Run(tree *Tree, g *graph.CodeGraph) error {
	for _, d := range tree.Unit.Declarations() {
		if !d.HasFQN() {
			continue
		}
		g.SetType(d.FQN, Classify(d))
	}
	return nil
}

// Classify maps a declaration to its node type.
func Classify(d *ast.Declaration) graph.NodeType {
	switch d.Kind {
	case ast.DeclInterface:
		return graph.NodeTypeInterface
	case ast.DeclEnum:
		return graph.NodeTypeEnum
	case ast.DeclAnnotation:
		return graph.NodeTypeAnnotation
	case ast.DeclClass:
		if d.Abstract {
			return graph.NodeTypeAbstractClass
		}
		return graph.NodeTypeClass
	default:
		return graph.NodeTypeClass
	}
}

// LinesOfCode sets each named declaration's span in lines, blank and
// comment lines included.
type LinesOfCode struct{}

// Run measures every declaration.
func (LinesOfCode) Run(tree *Tree, g *graph.CodeGraph) error {
	for _, d := range tree.Unit.Declarations() {
		if d.HasFQN() {
			g.SetLinesOfCode(d.FQN, d.Lines())
		}
	}
	return nil
}

// FilePath tags each named declaration with the unit's storage path.
// Units parsed from memory without a path are left untagged.
type FilePath struct{}

// Run tags every declaration.
func (FilePath) Run(tree *Tree, g *graph.CodeGraph) error {
	if tree.Unit.Path == "" {
		return nil
	}
	for _, d := range tree.Unit.Declarations() {
		if d.HasFQN() {
			g.SetFilePath(d.FQN, tree.Unit.Path)
		}
	}
	return nil
}
