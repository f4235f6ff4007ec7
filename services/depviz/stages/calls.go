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

// MethodCall adds a MethodCall edge from the enclosing declaration to the
// type declaring each invoked method.
type MethodCall struct{}

// ExtractTargets returns every method invocation.
func (MethodCall) ExtractTargets(tree *Tree) []*sitter.Node {
	return tree.Unit.FindAll(ast.NodeMethodInvocation)
}

// ProcessOne resolves the owner of one invocation.
func (MethodCall) ProcessOne(tree *Tree, target *sitter.Node, g *graph.CodeGraph) error {
	owner, err := tree.Resolver.ResolveMethodOwner(target)
	if err != nil {
		return err
	}
	_, err = g.AddEdge(tree.SourceOf(target), owner, graph.EdgeTypeMethodCall)
	return err
}

// ObjectCreation adds an ObjectCreate edge for every `new` expression.
type ObjectCreation struct{}

// ExtractTargets returns every object creation expression.
func (ObjectCreation) ExtractTargets(tree *Tree) []*sitter.Node {
	return tree.Unit.FindAll(ast.NodeObjectCreation)
}

// ProcessOne resolves the constructed type.
func (ObjectCreation) ProcessOne(tree *Tree, target *sitter.Node, g *graph.CodeGraph) error {
	fqn, err := tree.Resolver.ResolveCreatedType(target)
	if err != nil {
		return err
	}
	_, err = g.AddEdge(tree.SourceOf(target), fqn, graph.EdgeTypeObjectCreate)
	return err
}
