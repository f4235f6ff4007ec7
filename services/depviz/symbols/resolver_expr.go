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
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/DependViz/services/depviz/ast"
)

// typeOfExpression returns the static reference type of an expression.
func (u *UnitResolver) typeOfExpression(e *sitter.Node) (string, error) {
	switch e.Type() {
	case ast.NodeIdentifier:
		return u.typeOfName(e, u.unit.Text(e))

	case "this":
		if t := u.thisType(e); t != nil {
			return t.FQN, nil
		}
		return "", ErrUnresolved

	case "super":
		if t := u.thisType(e); t != nil {
			return u.superclassOf(t), nil
		}
		return "", ErrUnresolved

	case ast.NodeFieldAccess:
		return u.typeOfFieldAccess(e)

	case ast.NodeMethodInvocation:
		owner, err := u.ResolveMethodOwner(e)
		if err != nil {
			return "", err
		}
		return u.methodReturn(owner, u.unit.Text(e.ChildByFieldName("name")))

	case ast.NodeObjectCreation:
		return u.ResolveCreatedType(e)

	case "string_literal", "text_block":
		return javaLangString, nil

	case "class_literal":
		return javaLangClass, nil

	case "parenthesized_expression":
		if inner := ast.FirstNamedChild(e); inner != nil {
			return u.typeOfExpression(inner)
		}

	case "cast_expression":
		return u.ResolveType(e.ChildByFieldName("type"))

	case "array_access":
		// Array dimensions are erased, so the element type is the array's type.
		if arr := e.ChildByFieldName("array"); arr != nil {
			return u.typeOfExpression(arr)
		}

	case "ternary_expression":
		if c := e.ChildByFieldName("consequence"); c != nil {
			return u.typeOfExpression(c)
		}

	case ast.NodeScopedIdentifier:
		return u.resolveName(u.unit.Text(e), u.scopeAt(e))
	}
	return "", ErrUnresolved
}

// typeOfName types a bare identifier: a local variable or parameter, then a
// field visible from the enclosing types, then a type name used as a
// static receiver.
func (u *UnitResolver) typeOfName(at *sitter.Node, name string) (string, error) {
	if typ, found := u.localVariable(at, name); found {
		if typ == nil {
			return "", ErrUnresolved
		}
		return u.ResolveType(typ)
	}
	sc := u.scopeAt(at)
	for _, t := range sc.chain {
		if fqn, found, err := u.fieldType(t.FQN, name, make(map[string]bool)); found {
			return fqn, err
		}
	}
	for _, imp := range sc.file.Imports {
		if imp.Static && !imp.OnDemand && ast.SimpleName(imp.Path) == name {
			owner := ast.QualifiedPrefix(imp.Path)
			if fqn, found, err := u.fieldType(owner, name, make(map[string]bool)); found {
				return fqn, err
			}
		}
	}
	return u.resolveName(name, sc)
}

// typeOfFieldAccess types `object.field`, which is either a field read or a
// qualified type name used as a receiver.
func (u *UnitResolver) typeOfFieldAccess(e *sitter.Node) (string, error) {
	obj := e.ChildByFieldName("object")
	field := u.unit.Text(e.ChildByFieldName("field"))

	if recv, err := u.typeOfExpression(obj); err == nil {
		if fqn, found, ferr := u.fieldType(recv, field, make(map[string]bool)); found {
			return fqn, ferr
		}
		if m, ok := u.memberType(recv, field, make(map[string]bool)); ok {
			return m, nil
		}
		return "", ErrUnresolved
	}

	name := dottedName(u.unit, e)
	if name == "" {
		return "", ErrUnresolved
	}
	return u.resolveName(name, u.scopeAt(e))
}

// dottedName renders a chain of identifiers and field accesses as a dotted
// name, or "" if the chain contains anything else.
func dottedName(unit *ast.Unit, n *sitter.Node) string {
	switch n.Type() {
	case ast.NodeIdentifier:
		return unit.Text(n)
	case ast.NodeFieldAccess:
		head := dottedName(unit, n.ChildByFieldName("object"))
		if head == "" {
			return ""
		}
		return head + "." + unit.Text(n.ChildByFieldName("field"))
	default:
		return ""
	}
}

// thisType returns the innermost named type whose body contains n.
func (u *UnitResolver) thisType(n *sitter.Node) *TypeInfo {
	if chain := u.scopeAt(n).chain; len(chain) > 0 {
		return chain[0]
	}
	return nil
}

// fieldType returns the type of field name declared in fqn or inherited.
// found reports whether a declaration was seen; err is set when the
// declared type is primitive or unresolvable.
func (u *UnitResolver) fieldType(fqn, name string, visited map[string]bool) (string, bool, error) {
	if visited[fqn] {
		return "", false, nil
	}
	visited[fqn] = true

	t, ok := u.lookup(fqn)
	if !ok {
		if ft, ok := u.r.catalog.StaticFieldType(fqn, name); ok {
			return ft, true, nil
		}
		return "", false, nil
	}
	if text, ok := t.Fields[name]; ok {
		if text == "" {
			return "", true, ErrNotReferenceType
		}
		resolved, err := u.resolveName(text, u.scopeOf(t))
		return resolved, true, err
	}
	for _, sup := range u.supertypesOf(fqn) {
		if ft, found, err := u.fieldType(sup, name, visited); found {
			return ft, true, err
		}
	}
	return "", false, nil
}

// methodReturn returns the return type of method name on its declaring type.
func (u *UnitResolver) methodReturn(owner, name string) (string, error) {
	if t, ok := u.lookup(owner); ok {
		text, ok := t.Methods[name]
		if !ok {
			if ret, ok := u.r.catalog.MethodReturn(javaLangObject, name); ok {
				return ret, nil
			}
			return "", ErrMethodNotFound
		}
		if text == "" {
			return "", ErrNotReferenceType
		}
		return u.resolveName(text, u.scopeOf(t))
	}
	if ret, ok := u.r.catalog.MethodReturn(owner, name); ok {
		return ret, nil
	}
	return "", ErrUnresolved
}

// ownerOf returns the type declaring method name as seen from recv.
func (u *UnitResolver) ownerOf(recv, name string) (string, error) {
	if _, isSource := u.lookup(recv); !isSource {
		return recv, nil
	}
	source, library := u.declaringType(recv, name)
	if source != "" {
		return source, nil
	}
	if _, ok := objectMethods[name]; ok {
		return javaLangObject, nil
	}
	if library != "" {
		return library, nil
	}
	return "", ErrMethodNotFound
}

// declaringType searches fqn and its source supertypes for a declaration
// of method name. source is the declaring source type, if any; library is
// the first library supertype met, which is assumed to own methods no
// source type declares.
func (u *UnitResolver) declaringType(fqn, name string) (source, library string) {
	visited := make(map[string]bool)

	var search func(cur string) bool
	search = func(cur string) bool {
		if visited[cur] {
			return false
		}
		visited[cur] = true

		t, ok := u.lookup(cur)
		if !ok {
			if library == "" {
				library = cur
			}
			return false
		}
		if t.HasMethod(name) {
			source = cur
			return true
		}
		for _, sup := range u.supertypesOf(cur) {
			if search(sup) {
				return true
			}
		}
		return false
	}

	search(fqn)
	return source, library
}

// unqualifiedOwner resolves the owner of `name(...)` without a receiver.
//
// Source members of the enclosing types win, then static imports, then
// java.lang.Object, then a library supertype of an enclosing type.
func (u *UnitResolver) unqualifiedOwner(call *sitter.Node, name string) (string, error) {
	sc := u.scopeAt(call)
	var library string
	for _, t := range sc.chain {
		source, lib := u.declaringType(t.FQN, name)
		if source != "" {
			return source, nil
		}
		if library == "" {
			library = lib
		}
	}

	for _, imp := range sc.file.Imports {
		if !imp.Static {
			continue
		}
		if !imp.OnDemand {
			if ast.SimpleName(imp.Path) == name {
				return ast.QualifiedPrefix(imp.Path), nil
			}
			continue
		}
		if t, ok := u.lookup(imp.Path); ok && t.HasMethod(name) {
			return imp.Path, nil
		}
	}

	if _, ok := objectMethods[name]; ok && len(sc.chain) > 0 {
		return javaLangObject, nil
	}
	if library != "" {
		return library, nil
	}
	return "", ErrMethodNotFound
}

// superOwner resolves the owner of `super.name(...)`.
func (u *UnitResolver) superOwner(super *sitter.Node, name string) (string, error) {
	t := u.thisType(super)
	if t == nil {
		return "", ErrUnresolved
	}
	return u.ownerOf(u.superclassOf(t), name)
}

// localVariable finds the declared type node of a local variable,
// parameter or resource named name that is visible at n. found is true
// with a nil type for parameters whose type is inferred.
func (u *UnitResolver) localVariable(n *sitter.Node, name string) (typ *sitter.Node, found bool) {
	prev := n
	for p := n.Parent(); p != nil; prev, p = p, p.Parent() {
		switch p.Type() {
		case "block", "constructor_body", "switch_block_statement_group", "switch_rule":
			for _, stmt := range ast.NamedChildren(p) {
				if stmt.StartByte() >= prev.StartByte() {
					break
				}
				if stmt.Type() == ast.NodeLocalVariable {
					if t, ok := u.declares(stmt, name); ok {
						return t, true
					}
				}
			}

		case "for_statement":
			if init := p.ChildByFieldName("init"); init != nil && init.Type() == ast.NodeLocalVariable {
				if t, ok := u.declares(init, name); ok {
					return t, true
				}
			}

		case ast.NodeEnhancedFor:
			if u.unit.Text(p.ChildByFieldName("name")) == name {
				return p.ChildByFieldName("type"), true
			}

		case "catch_clause":
			param := ast.FirstChildOfType(p, ast.NodeCatchFormalParameter)
			if param != nil && u.unit.Text(param.ChildByFieldName("name")) == name {
				return ast.FirstNamedChild(ast.FirstChildOfType(param, "catch_type")), true
			}

		case "try_with_resources_statement":
			spec := p.ChildByFieldName("resources")
			for _, res := range ast.ChildrenOfType(spec, ast.NodeResource) {
				if u.unit.Text(res.ChildByFieldName("name")) == name {
					return res.ChildByFieldName("type"), true
				}
			}

		case ast.NodeMethodDeclaration, ast.NodeConstructorDeclaration, ast.NodeLambda:
			if t, ok := u.parameter(p, name); ok {
				return t, true
			}
		}
	}
	return nil, false
}

// declares returns the type node of a local_variable_declaration if one of
// its declarators is named name.
func (u *UnitResolver) declares(decl *sitter.Node, name string) (*sitter.Node, bool) {
	for _, v := range ast.ChildrenOfType(decl, ast.NodeVariableDeclarator) {
		if u.unit.Text(v.ChildByFieldName("name")) == name {
			return decl.ChildByFieldName("type"), true
		}
	}
	return nil, false
}

// parameter finds a parameter named name on a method, constructor or lambda.
func (u *UnitResolver) parameter(owner *sitter.Node, name string) (*sitter.Node, bool) {
	params := owner.ChildByFieldName("parameters")
	if params == nil {
		return nil, false
	}
	switch params.Type() {
	case ast.NodeIdentifier:
		return nil, u.unit.Text(params) == name
	case "inferred_parameters":
		for _, id := range ast.ChildrenOfType(params, ast.NodeIdentifier) {
			if u.unit.Text(id) == name {
				return nil, true
			}
		}
		return nil, false
	}
	for _, p := range ast.NamedChildren(params) {
		switch p.Type() {
		case ast.NodeFormalParameter:
			if u.unit.Text(p.ChildByFieldName("name")) == name {
				return p.ChildByFieldName("type"), true
			}
		case ast.NodeSpreadParameter:
			decl := ast.FirstChildOfType(p, ast.NodeVariableDeclarator)
			if decl != nil && u.unit.Text(decl.ChildByFieldName("name")) == name {
				return ast.SpreadParameterType(p), true
			}
		}
	}
	return nil, false
}

// varInitializer returns the initializer of the single declarator of a
// `var` local variable declaration whose type node is n, or nil.
func varInitializer(n *sitter.Node) *sitter.Node {
	decl := n.Parent()
	if decl == nil || decl.Type() != ast.NodeLocalVariable {
		return nil
	}
	v := ast.FirstChildOfType(decl, ast.NodeVariableDeclarator)
	if v == nil {
		return nil
	}
	return v.ChildByFieldName("value")
}
