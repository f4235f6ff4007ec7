// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Tree-sitter Java node types used across the analysis.
const (
	NodeProgram               = "program"
	NodePackageDeclaration    = "package_declaration"
	NodeImportDeclaration     = "import_declaration"
	NodeClassDeclaration      = "class_declaration"
	NodeInterfaceDeclaration  = "interface_declaration"
	NodeEnumDeclaration       = "enum_declaration"
	NodeRecordDeclaration     = "record_declaration"
	NodeAnnotationDeclaration = "annotation_type_declaration"

	NodeFieldDeclaration       = "field_declaration"
	NodeConstantDeclaration    = "constant_declaration"
	NodeMethodDeclaration      = "method_declaration"
	NodeConstructorDeclaration = "constructor_declaration"
	NodeLocalVariable          = "local_variable_declaration"
	NodeEnhancedFor            = "enhanced_for_statement"
	NodeResource               = "resource"
	NodeFormalParameters       = "formal_parameters"
	NodeFormalParameter        = "formal_parameter"
	NodeSpreadParameter        = "spread_parameter"
	NodeCatchFormalParameter   = "catch_formal_parameter"
	NodeVariableDeclarator     = "variable_declarator"
	NodeLambda                 = "lambda_expression"

	NodeMethodInvocation = "method_invocation"
	NodeObjectCreation   = "object_creation_expression"
	NodeFieldAccess      = "field_access"

	NodeIdentifier           = "identifier"
	NodeScopedIdentifier     = "scoped_identifier"
	NodeTypeIdentifier       = "type_identifier"
	NodeScopedTypeIdentifier = "scoped_type_identifier"
	NodeGenericType          = "generic_type"
	NodeArrayType            = "array_type"
	NodeAnnotatedType        = "annotated_type"
	NodeVoidType             = "void_type"
	NodeIntegralType         = "integral_type"
	NodeFloatingPointType    = "floating_point_type"
	NodeBooleanType          = "boolean_type"
)

// NodeKey identifies a node within one tree independently of the Go
// pointer that wraps it.
type NodeKey struct {
	Start uint32
	End   uint32
	Type  string
}

// KeyOf returns the identity key of n.
func KeyOf(n *sitter.Node) NodeKey {
	return NodeKey{Start: n.StartByte(), End: n.EndByte(), Type: n.Type()}
}

// SameNode reports whether a and b denote the same node of one tree.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return KeyOf(a) == KeyOf(b)
}

// IsPrimitiveType reports whether n is a primitive or void type node, or an
// array whose element type is primitive.
func IsPrimitiveType(n *sitter.Node) bool {
	for n != nil && n.Type() == NodeArrayType {
		n = n.ChildByFieldName("element")
	}
	if n == nil {
		return false
	}
	switch n.Type() {
	case NodeVoidType, NodeIntegralType, NodeFloatingPointType, NodeBooleanType:
		return true
	default:
		return false
	}
}

// NamedChildren returns the named children of n.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// FirstNamedChild returns the first named child of n, or nil.
func FirstNamedChild(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}

// FirstChildOfType returns the first named child of n with type t, or nil.
func FirstChildOfType(n *sitter.Node, t string) *sitter.Node {
	for _, c := range NamedChildren(n) {
		if c.Type() == t {
			return c
		}
	}
	return nil
}

// ChildrenOfType returns the named children of n with type t.
func ChildrenOfType(n *sitter.Node, t string) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range NamedChildren(n) {
		if c.Type() == t {
			out = append(out, c)
		}
	}
	return out
}

// SpreadParameterType returns the element type node of a varargs
// spread_parameter, whose type child carries no field name.
func SpreadParameterType(p *sitter.Node) *sitter.Node {
	for _, c := range NamedChildren(p) {
		switch c.Type() {
		case "modifiers", NodeVariableDeclarator:
			continue
		}
		return c
	}
	return nil
}

// HasModifier reports whether n has a modifiers child containing keyword mod.
func HasModifier(n *sitter.Node, mod string) bool {
	mods := FirstChildOfType(n, "modifiers")
	if mods == nil {
		return false
	}
	for i := 0; i < int(mods.ChildCount()); i++ {
		if mods.Child(i).Type() == mod {
			return true
		}
	}
	return false
}

// FindAll returns every named node below and including root whose type is
// one of types, in preorder.
func FindAll(root *sitter.Node, types ...string) []*sitter.Node {
	want := make(map[string]struct{}, len(types))
	for _, t := range types {
		want[t] = struct{}{}
	}
	var out []*sitter.Node
	Walk(root, func(n *sitter.Node) bool {
		if _, ok := want[n.Type()]; ok {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Walk visits named nodes in preorder. Returning false from fn skips the
// node's subtree.
func Walk(root *sitter.Node, fn func(*sitter.Node) bool) {
	if root == nil {
		return
	}
	if !fn(root) {
		return
	}
	for _, c := range NamedChildren(root) {
		Walk(c, fn)
	}
}

// walkAll visits every node, named or not, in preorder.
func walkAll(root *sitter.Node, fn func(*sitter.Node) bool) {
	if root == nil {
		return
	}
	if !fn(root) {
		return
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		walkAll(root.Child(i), fn)
	}
}
