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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// DeclKind is the syntactic kind of a type declaration.
type DeclKind int

const (
	// DeclClass is a class_declaration.
	DeclClass DeclKind = iota

	// DeclInterface is an interface_declaration.
	DeclInterface

	// DeclEnum is an enum_declaration.
	DeclEnum

	// DeclRecord is a record_declaration.
	DeclRecord

	// DeclAnnotation is an annotation_type_declaration.
	DeclAnnotation
)

// String returns the lower-case name of the kind.
func (k DeclKind) String() string {
	switch k {
	case DeclClass:
		return "class"
	case DeclInterface:
		return "interface"
	case DeclEnum:
		return "enum"
	case DeclRecord:
		return "record"
	case DeclAnnotation:
		return "annotation"
	default:
		return "unknown"
	}
}

// declKinds maps tree-sitter node types to declaration kinds.
var declKinds = map[string]DeclKind{
	NodeClassDeclaration:      DeclClass,
	NodeInterfaceDeclaration:  DeclInterface,
	NodeEnumDeclaration:       DeclEnum,
	NodeRecordDeclaration:     DeclRecord,
	NodeAnnotationDeclaration: DeclAnnotation,
}

// IsDeclarationNode reports whether n is a type declaration node.
func IsDeclarationNode(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	_, ok := declKinds[n.Type()]
	return ok
}

// Import is one import declaration of a unit.
type Import struct {
	// Path is the dotted name without the trailing ".*".
	Path string

	// Static is true for `import static`.
	Static bool

	// OnDemand is true for wildcard imports.
	OnDemand bool
}

// Declaration is a named type declaration in a unit.
type Declaration struct {
	// Node is the declaration node.
	Node *sitter.Node

	// Kind is the syntactic declaration kind.
	Kind DeclKind

	// Name is the simple name.
	Name string

	// FQN is the fully-qualified name, or "" for local and anonymous-scope
	// declarations which have no canonical name.
	FQN string

	// Parent is the lexically enclosing declaration, nil at top level.
	Parent *Declaration

	// Abstract is true when the modifiers include `abstract`.
	Abstract bool

	// TypeParams are the declared type parameter names.
	TypeParams []string

	// StartLine and EndLine are 1-indexed and inclusive.
	StartLine int
	EndLine   int
}

// Lines returns the number of source lines the declaration spans.
func (d *Declaration) Lines() int {
	return d.EndLine - d.StartLine + 1
}

// HasFQN reports whether the declaration has a canonical name.
func (d *Declaration) HasFQN() bool {
	return d.FQN != ""
}

// Superclass returns the type node after `extends` on a class, or nil.
func (d *Declaration) Superclass() *sitter.Node {
	if d.Kind != DeclClass {
		return nil
	}
	sc := d.Node.ChildByFieldName("superclass")
	if sc == nil {
		sc = FirstChildOfType(d.Node, "superclass")
	}
	if sc == nil {
		return nil
	}
	return FirstNamedChild(sc)
}

// ImplementedTypes returns the type nodes after `implements`.
func (d *Declaration) ImplementedTypes() []*sitter.Node {
	si := d.Node.ChildByFieldName("interfaces")
	if si == nil {
		si = FirstChildOfType(d.Node, "super_interfaces")
	}
	return typeListOf(si)
}

// ExtendedInterfaces returns the type nodes after `extends` on an interface.
func (d *Declaration) ExtendedInterfaces() []*sitter.Node {
	if d.Kind != DeclInterface {
		return nil
	}
	return typeListOf(FirstChildOfType(d.Node, "extends_interfaces"))
}

// Body returns the declaration body node, or nil.
func (d *Declaration) Body() *sitter.Node {
	return d.Node.ChildByFieldName("body")
}

// typeListOf returns the types inside a super_interfaces/extends_interfaces node.
func typeListOf(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	list := FirstChildOfType(n, "type_list")
	if list == nil {
		return nil
	}
	return NamedChildren(list)
}

// Unit is one parsed Java compilation unit.
//
// Description:
//
//	Wraps the tree-sitter tree with the unit's package, imports and an index
//	of its type declarations. The tree stays alive until Close.
//
// Thread Safety:
//
//	Read-only after Parse returns; safe for concurrent reads. Close must not
//	race with readers.
type Unit struct {
	// Path is the absolute storage path, "" for in-memory sources.
	Path string

	// Content is the source bytes the tree was parsed from.
	Content []byte

	// Package is the declared package, "" for the default package.
	Package string

	// Imports lists the import declarations in source order.
	Imports []Import

	tree      *sitter.Tree
	root      *sitter.Node
	decls     []*Declaration
	declByKey map[NodeKey]*Declaration
}

// newUnit indexes a freshly parsed tree.
func newUnit(path string, content []byte, tree *sitter.Tree, root *sitter.Node) *Unit {
	u := &Unit{
		Path:      path,
		Content:   content,
		tree:      tree,
		root:      root,
		declByKey: make(map[NodeKey]*Declaration),
	}
	u.indexHeader()
	u.indexDeclarations(root, nil, u.Package, true)
	return u
}

// Root returns the program node.
func (u *Unit) Root() *sitter.Node {
	return u.root
}

// Text returns the source text of n.
func (u *Unit) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(u.Content)
}

// Close releases the tree-sitter tree. Safe to call more than once.
func (u *Unit) Close() {
	if u.tree != nil {
		u.tree.Close()
		u.tree = nil
	}
}

// Declarations returns every type declaration in preorder.
func (u *Unit) Declarations() []*Declaration {
	return u.decls
}

// DeclarationOf returns the Declaration for a declaration node.
func (u *Unit) DeclarationOf(n *sitter.Node) (*Declaration, bool) {
	if n == nil {
		return nil, false
	}
	d, ok := u.declByKey[KeyOf(n)]
	return d, ok
}

// EnclosingDeclaration returns the nearest declaration strictly containing
// n that has a fully-qualified name, or nil.
//
// Local and anonymous-scope declarations are skipped so that references
// inside them are attributed to the named declaration around them.
func (u *Unit) EnclosingDeclaration(n *sitter.Node) *Declaration {
	if n == nil {
		return nil
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		if d, ok := u.DeclarationOf(p); ok && d.HasFQN() {
			return d
		}
	}
	return nil
}

// InnermostDeclaration returns the nearest declaration containing n,
// including local and anonymous-scope ones, or nil.
func (u *Unit) InnermostDeclaration(n *sitter.Node) *Declaration {
	if n == nil {
		return nil
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		if d, ok := u.DeclarationOf(p); ok {
			return d
		}
	}
	return nil
}

// FindAll returns every node in the unit whose type is one of types,
// in preorder.
func (u *Unit) FindAll(types ...string) []*sitter.Node {
	return FindAll(u.root, types...)
}

// indexHeader reads the package and import declarations.
func (u *Unit) indexHeader() {
	for _, child := range NamedChildren(u.root) {
		switch child.Type() {
		case NodePackageDeclaration:
			for _, c := range NamedChildren(child) {
				if c.Type() == NodeIdentifier || c.Type() == NodeScopedIdentifier {
					u.Package = u.Text(c)
				}
			}
		case NodeImportDeclaration:
			imp := Import{}
			for i := 0; i < int(child.ChildCount()); i++ {
				c := child.Child(i)
				switch c.Type() {
				case "static":
					imp.Static = true
				case "asterisk":
					imp.OnDemand = true
				case NodeIdentifier, NodeScopedIdentifier:
					imp.Path = u.Text(c)
				}
			}
			if imp.Path != "" {
				u.Imports = append(u.Imports, imp)
			}
		}
	}
}

// indexDeclarations records declarations below n.
//
// named is true while every declaration between the program node and n
// has a canonical name and n is a member position (program or type body).
func (u *Unit) indexDeclarations(n *sitter.Node, parent *Declaration, prefix string, named bool) {
	for _, child := range NamedChildren(n) {
		kind, isDecl := declKinds[child.Type()]
		if !isDecl {
			// Member bodies keep the naming chain; any other construct
			// (blocks, anonymous class bodies, enum constant bodies) breaks it.
			keep := named && isMemberContainer(n, child)
			u.indexDeclarations(child, parent, prefix, keep)
			continue
		}

		name := u.Text(child.ChildByFieldName("name"))
		d := &Declaration{
			Node:       child,
			Kind:       kind,
			Name:       name,
			Parent:     parent,
			Abstract:   HasModifier(child, "abstract"),
			TypeParams: u.TypeParameters(child),
			StartLine:  int(child.StartPoint().Row) + 1,
			EndLine:    int(child.EndPoint().Row) + 1,
		}
		if named && name != "" {
			if prefix == "" {
				d.FQN = name
			} else {
				d.FQN = prefix + "." + name
			}
		}
		u.decls = append(u.decls, d)
		u.declByKey[KeyOf(child)] = d

		u.indexDeclarations(child, d, d.FQN, d.HasFQN())
	}
}

// isMemberContainer reports whether child, found under n, is a node through
// which member declarations keep their qualified names.
func isMemberContainer(n, child *sitter.Node) bool {
	switch child.Type() {
	case "class_body", "interface_body", "enum_body", "enum_body_declarations", "annotation_type_body":
		// A class_body directly under an object creation or enum constant is
		// anonymous.
		return IsDeclarationNode(n) || n.Type() == "enum_body"
	default:
		return false
	}
}

// TypeParameters returns the type parameter names declared directly on a
// type, method or constructor declaration node.
func (u *Unit) TypeParameters(decl *sitter.Node) []string {
	if decl == nil {
		return nil
	}
	tp := decl.ChildByFieldName("type_parameters")
	if tp == nil {
		tp = FirstChildOfType(decl, "type_parameters")
	}
	if tp == nil {
		return nil
	}
	var names []string
	for _, p := range ChildrenOfType(tp, "type_parameter") {
		for _, c := range NamedChildren(p) {
			if c.Type() == NodeTypeIdentifier || c.Type() == NodeIdentifier {
				names = append(names, u.Text(c))
				break
			}
		}
	}
	return names
}

// QualifiedPrefix returns the dotted prefix of name before its last
// segment, or "" for simple names.
func QualifiedPrefix(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

// SimpleName returns the last dotted segment of name.
func SimpleName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
