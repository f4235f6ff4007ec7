// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package symbols

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/DependViz/services/depviz/ast"
)

// FileContext is the name environment of one compilation unit.
type FileContext struct {
	// Package is the declared package, "" for the default package.
	Package string

	// Imports are the unit's import declarations in source order.
	Imports []ast.Import

	// TopLevel maps simple names of top-level types to their FQNs.
	TopLevel map[string]string
}

// TypeInfo is the resolution-relevant summary of one declared type.
//
// Type texts are erased: type arguments, array dimensions and annotations
// are stripped, leaving the dotted name as written in source. They are
// resolved lazily in the scope of the declaring type.
type TypeInfo struct {
	FQN  string
	Kind ast.DeclKind
	File string

	// Outer is the FQN of the enclosing type, "" at top level.
	Outer string

	// Superclass is the `extends` text of a class, "" if absent.
	Superclass string

	// Interfaces are the implemented interfaces of a class, enum or record,
	// or the extended interfaces of an interface.
	Interfaces []string

	// Fields maps field names, enum constants and record components to
	// their type text. Primitive fields map to "".
	Fields map[string]string

	// Methods maps method names to the return type text of the first
	// declaration with that name. Primitive and void returns map to "".
	Methods map[string]string

	TypeParams []string

	Context *FileContext
}

// HasMethod reports whether the type itself declares a method named name.
func (t *TypeInfo) HasMethod(name string) bool {
	_, ok := t.Methods[name]
	return ok
}

// Supertypes returns the declared supertype texts, superclass first.
func (t *TypeInfo) Supertypes() []string {
	out := make([]string, 0, len(t.Interfaces)+1)
	if t.Superclass != "" {
		out = append(out, t.Superclass)
	}
	return append(out, t.Interfaces...)
}

// ExtractTypes summarizes every named type declaration of unit.
//
// Local and anonymous-scope declarations are omitted; they cannot be
// referenced from other units.
func ExtractTypes(unit *ast.Unit) (*FileContext, []*TypeInfo) {
	fc := &FileContext{
		Package:  unit.Package,
		Imports:  unit.Imports,
		TopLevel: make(map[string]string),
	}

	var types []*TypeInfo
	for _, d := range unit.Declarations() {
		if !d.HasFQN() {
			continue
		}
		if d.Parent == nil {
			fc.TopLevel[d.Name] = d.FQN
		}
		types = append(types, summarize(unit, d, fc))
	}
	return fc, types
}

// summarize builds the TypeInfo of one declaration.
func summarize(unit *ast.Unit, d *ast.Declaration, fc *FileContext) *TypeInfo {
	ti := &TypeInfo{
		FQN:        d.FQN,
		Kind:       d.Kind,
		File:       unit.Path,
		Fields:     make(map[string]string),
		Methods:    make(map[string]string),
		TypeParams: d.TypeParams,
		Context:    fc,
	}
	if d.Parent != nil {
		ti.Outer = d.Parent.FQN
	}

	ti.Superclass = TypeName(unit, d.Superclass())
	supers := d.ImplementedTypes()
	if d.Kind == ast.DeclInterface {
		supers = d.ExtendedInterfaces()
	}
	for _, n := range supers {
		if name := TypeName(unit, n); name != "" {
			ti.Interfaces = append(ti.Interfaces, name)
		}
	}

	if d.Kind == ast.DeclRecord {
		params := d.Node.ChildByFieldName("parameters")
		if params == nil {
			params = ast.FirstChildOfType(d.Node, ast.NodeFormalParameters)
		}
		for _, p := range ast.ChildrenOfType(params, ast.NodeFormalParameter) {
			name := unit.Text(p.ChildByFieldName("name"))
			typ := TypeName(unit, p.ChildByFieldName("type"))
			ti.Fields[name] = typ
			ti.Methods[name] = typ
		}
	}

	for _, m := range memberNodes(d) {
		switch m.Type() {
		case ast.NodeFieldDeclaration, ast.NodeConstantDeclaration:
			typ := TypeName(unit, m.ChildByFieldName("type"))
			for _, v := range ast.ChildrenOfType(m, ast.NodeVariableDeclarator) {
				ti.Fields[unit.Text(v.ChildByFieldName("name"))] = typ
			}
		case ast.NodeMethodDeclaration, "annotation_type_element_declaration":
			name := unit.Text(m.ChildByFieldName("name"))
			if _, seen := ti.Methods[name]; !seen {
				ti.Methods[name] = TypeName(unit, m.ChildByFieldName("type"))
			}
		case "enum_constant":
			ti.Fields[unit.Text(m.ChildByFieldName("name"))] = d.FQN
		}
	}
	return ti
}

// memberNodes returns the member declarations in a type body.
func memberNodes(d *ast.Declaration) []*sitter.Node {
	body := d.Body()
	if body == nil {
		return nil
	}
	var out []*sitter.Node
	for _, c := range ast.NamedChildren(body) {
		if c.Type() == "enum_body_declarations" {
			out = append(out, ast.NamedChildren(c)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// TypeName returns the erased dotted name of a type node.
//
// Type arguments, array dimensions and annotations are dropped, so
// `@NonNull java.util.List<Foo>[]` yields "java.util.List". Primitive and
// void types, and nil, yield "".
func TypeName(unit *ast.Unit, n *sitter.Node) string {
	if n == nil || ast.IsPrimitiveType(n) {
		return ""
	}
	switch n.Type() {
	case ast.NodeTypeIdentifier, ast.NodeIdentifier:
		return unit.Text(n)
	case ast.NodeScopedTypeIdentifier, ast.NodeScopedIdentifier:
		var parts []string
		for _, c := range ast.NamedChildren(n) {
			if isAnnotation(c) {
				continue
			}
			if part := TypeName(unit, c); part != "" {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, ".")
	case ast.NodeGenericType:
		return TypeName(unit, ast.FirstNamedChild(n))
	case ast.NodeArrayType:
		elem := n.ChildByFieldName("element")
		if elem == nil {
			elem = ast.FirstNamedChild(n)
		}
		return TypeName(unit, elem)
	case ast.NodeAnnotatedType:
		children := ast.NamedChildren(n)
		for i := len(children) - 1; i >= 0; i-- {
			if !isAnnotation(children[i]) {
				return TypeName(unit, children[i])
			}
		}
		return ""
	default:
		return ""
	}
}

func isAnnotation(n *sitter.Node) bool {
	return n.Type() == "annotation" || n.Type() == "marker_annotation"
}
