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
	"fmt"
	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/DependViz/services/depviz/ast"
	"github.com/AleutianAI/DependViz/services/depviz/graph"
)

// declarationsOf returns the declaration nodes of the given kinds.
func declarationsOf(tree *Tree, kinds ...ast.DeclKind) []*sitter.Node {
	var out []*sitter.Node
	for _, d := range tree.Unit.Declarations() {
		for _, k := range kinds {
			if d.Kind == k {
				out = append(out, d.Node)
				break
			}
		}
	}
	return out
}

// Extends adds an Extends edge from each class to its superclass and from
// each interface to every interface it extends. Unresolvable supertypes are
// skipped without failing the declaration.
type Extends struct{}

// ExtractTargets returns class and interface declarations.
func (Extends) ExtractTargets(tree *Tree) []*sitter.Node {
	return declarationsOf(tree, ast.DeclClass, ast.DeclInterface)
}

// ProcessOne adds the edges of one declaration.
func (Extends) ProcessOne(tree *Tree, target *sitter.Node, g *graph.CodeGraph) error {
	d, ok := tree.Unit.DeclarationOf(target)
	if !ok {
		return fmt.Errorf("line %d: not a declaration", Line(target))
	}

	supers := d.ExtendedInterfaces()
	if sc := d.Superclass(); sc != nil {
		supers = []*sitter.Node{sc}
	}

	source := tree.DeclarationID(d)
	for _, s := range supers {
		fqn, err := tree.Resolver.ResolveType(s)
		if err != nil {
			slog.Debug("skipping unresolved supertype",
				slog.String("declaration", source),
				slog.String("supertype", tree.Unit.Text(s)),
				slog.String("error", err.Error()))
			continue
		}
		if _, err := g.AddEdge(source, fqn, graph.EdgeTypeExtends); err != nil {
			return err
		}
	}
	return nil
}

// Implements adds an Implements edge from each class, enum or record to
// every interface it implements. The first unresolvable interface fails
// the declaration; edges added before it are kept.
type Implements struct{}

// ExtractTargets returns declarations that can carry an implements clause.
func (Implements) ExtractTargets(tree *Tree) []*sitter.Node {
	return declarationsOf(tree, ast.DeclClass, ast.DeclInterface, ast.DeclEnum, ast.DeclRecord)
}

// ProcessOne adds the edges of one declaration.
func (Implements) ProcessOne(tree *Tree, target *sitter.Node, g *graph.CodeGraph) error {
	d, ok := tree.Unit.DeclarationOf(target)
	if !ok {
		return fmt.Errorf("line %d: not a declaration", Line(target))
	}
	source := tree.DeclarationID(d)
	for _, t := range d.ImplementedTypes() {
		fqn, err := tree.Resolver.ResolveType(t)
		if err != nil {
			return fmt.Errorf("implements %s: %w", tree.Unit.Text(t), err)
		}
		if _, err := g.AddEdge(source, fqn, graph.EdgeTypeImplements); err != nil {
			return err
		}
	}
	return nil
}
