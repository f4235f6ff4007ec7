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
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/DependViz/services/depviz/ast"
	"github.com/AleutianAI/DependViz/services/depviz/graph"
)

// TypeUse adds a TypeUse edge for every reference type written in a field,
// method signature, constructor signature or local variable declaration.
//
// Every type reference is its own target, so one unresolvable parameter or
// return type does not hide the others. Primitive and void types are not
// targets.
type TypeUse struct{}

// ExtractTargets collects the declared type nodes.
func (TypeUse) ExtractTargets(tree *Tree) []*sitter.Node {
	var out []*sitter.Node
	add := func(n *sitter.Node) {
		if n != nil && !ast.IsPrimitiveType(n) {
			out = append(out, n)
		}
	}

	nodes := tree.Unit.FindAll(
		ast.NodeFieldDeclaration,
		ast.NodeConstantDeclaration,
		ast.NodeMethodDeclaration,
		ast.NodeConstructorDeclaration,
		ast.NodeLocalVariable,
		ast.NodeEnhancedFor,
		ast.NodeResource,
	)
	for _, n := range nodes {
		switch n.Type() {
		case ast.NodeMethodDeclaration:
			add(n.ChildByFieldName("type"))
			for _, p := range parameterTypes(n) {
				add(p)
			}
		case ast.NodeConstructorDeclaration:
			for _, p := range parameterTypes(n) {
				add(p)
			}
		default:
			// Untyped resources (`try (existing)`) have no type field.
			add(n.ChildByFieldName("type"))
		}
	}
	return out
}

// parameterTypes returns the type nodes of a method or constructor's
// formal parameters, including a trailing varargs parameter.
func parameterTypes(decl *sitter.Node) []*sitter.Node {
	params := decl.ChildByFieldName("parameters")
	if params == nil {
		params = ast.FirstChildOfType(decl, ast.NodeFormalParameters)
	}
	var out []*sitter.Node
	for _, p := range ast.NamedChildren(params) {
		switch p.Type() {
		case ast.NodeFormalParameter:
			out = append(out, p.ChildByFieldName("type"))
		case ast.NodeSpreadParameter:
			out = append(out, ast.SpreadParameterType(p))
		}
	}
	return out
}

// ProcessOne resolves one type reference.
func (TypeUse) ProcessOne(tree *Tree, target *sitter.Node, g *graph.CodeGraph) error {
	fqn, err := tree.Resolver.ResolveType(target)
	if err != nil {
		return err
	}
	_, err = g.AddEdge(tree.SourceOf(target), fqn, graph.EdgeTypeTypeUse)
	return err
}
