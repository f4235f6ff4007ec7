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

const (
	javaLangObject = "java.lang.Object"
	javaLangString = "java.lang.String"
	javaLangClass  = "java.lang.Class"
)

// objectMethods are the methods every reference type inherits from
// java.lang.Object.
var objectMethods = map[string]struct{}{
	"toString": {}, "equals": {}, "hashCode": {}, "getClass": {},
	"notify": {}, "notifyAll": {}, "wait": {}, "clone": {}, "finalize": {},
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// Catalog lists library types known without source. Default: the
	// embedded JDK catalog.
	Catalog *Catalog

	// TrustImports accepts single-type imports that neither the index nor
	// the catalog know. Imports under java. and javax. are always accepted.
	TrustImports bool
}

// ResolverOption is a functional option for configuring Resolver.
type ResolverOption func(*ResolverOptions)

// WithCatalog sets the library type catalog.
func WithCatalog(c *Catalog) ResolverOption {
	return func(o *ResolverOptions) {
		if c != nil {
			o.Catalog = c
		}
	}
}

// WithTrustImports sets whether unknown single-type imports resolve.
func WithTrustImports(trust bool) ResolverOption {
	return func(o *ResolverOptions) {
		o.TrustImports = trust
	}
}

// Resolver resolves references against a source index and a catalog.
//
// Thread Safety:
//
//	Safe for concurrent use. Per-unit state lives in UnitResolver.
type Resolver struct {
	index        *Index
	catalog      *Catalog
	trustImports bool
}

// NewResolver creates a resolver over index, which may be nil when no
// source root is available.
func NewResolver(index *Index, opts ...ResolverOption) (*Resolver, error) {
	options := ResolverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Catalog == nil {
		c, err := DefaultCatalog()
		if err != nil {
			return nil, err
		}
		options.Catalog = c
	}
	return &Resolver{
		index:        index,
		catalog:      options.Catalog,
		trustImports: options.TrustImports,
	}, nil
}

// Index returns the source index, possibly nil.
func (r *Resolver) Index() *Index {
	return r.index
}

// ForUnit returns a resolver bound to one compilation unit.
//
// The unit's own declarations shadow any index entries recorded for the
// same file, so a buffer that differs from disk resolves against itself.
func (r *Resolver) ForUnit(unit *ast.Unit) *UnitResolver {
	fc, types := ExtractTypes(unit)
	local := make(map[string]*TypeInfo, len(types))
	for _, t := range types {
		local[t.FQN] = t
	}
	return &UnitResolver{
		r:         r,
		unit:      unit,
		file:      fc,
		local:     local,
		supers:    make(map[string][]string),
		resolving: make(map[string]bool),
	}
}

// UnitResolver resolves references found in one unit's tree.
//
// Thread Safety:
//
//	Not safe for concurrent use; one analysis run owns it.
type UnitResolver struct {
	r    *Resolver
	unit *ast.Unit
	file *FileContext

	local map[string]*TypeInfo

	supers    map[string][]string
	resolving map[string]bool
}

// scope is the name environment at one point in a unit or index type.
type scope struct {
	file       *FileContext
	chain      []*TypeInfo
	typeParams map[string]struct{}
}

// ResolveType resolves a type node to the FQN of the reference type it
// names. Type arguments and array dimensions are erased. A `var` local is
// typed from its initializer.
//
// Outputs:
//   - string: Canonical FQN.
//   - error: *ResolutionError wrapping ErrNotReferenceType or ErrUnresolved.
func (u *UnitResolver) ResolveType(n *sitter.Node) (fqn string, err error) {
	defer func() { recordResolution("type", err) }()

	if n == nil {
		return "", &ResolutionError{Cause: ErrUnresolved}
	}
	if ast.IsPrimitiveType(n) {
		return "", u.fail(n, u.unit.Text(n), ErrNotReferenceType)
	}
	name := TypeName(u.unit, n)
	if name == "var" {
		if value := varInitializer(n); value != nil {
			return u.typeOfExpression(value)
		}
	}
	if name == "" {
		return "", u.fail(n, u.unit.Text(n), ErrUnresolved)
	}
	fqn, err = u.resolveName(name, u.scopeAt(n))
	if err != nil {
		return "", u.fail(n, name, err)
	}
	return fqn, nil
}

// ResolveCreatedType resolves the type constructed by an
// object_creation_expression.
func (u *UnitResolver) ResolveCreatedType(creation *sitter.Node) (string, error) {
	typ := creation.ChildByFieldName("type")
	if typ == nil {
		recordResolution("creation", ErrUnresolved)
		return "", u.fail(creation, u.unit.Text(creation), ErrUnresolved)
	}
	fqn, err := u.ResolveType(typ)
	recordResolution("creation", err)
	return fqn, err
}

// ResolveMethodOwner resolves the FQN of the type declaring the method a
// method_invocation calls.
//
// Description:
//
//	The receiver is typed first (variables, fields, this, super, type names,
//	chained calls, creations, literals, casts). The owner is the nearest
//	type in the receiver's hierarchy that declares the method. A library
//	receiver owns its own calls. Unqualified calls search the enclosing
//	types and then static imports.
func (u *UnitResolver) ResolveMethodOwner(call *sitter.Node) (owner string, err error) {
	defer func() { recordResolution("method", err) }()

	name := u.unit.Text(call.ChildByFieldName("name"))
	obj := call.ChildByFieldName("object")

	switch {
	case obj == nil:
		owner, err = u.unqualifiedOwner(call, name)
	case obj.Type() == "super":
		owner, err = u.superOwner(obj, name)
	default:
		var recv string
		recv, err = u.typeOfExpression(obj)
		if err == nil {
			owner, err = u.ownerOf(recv, name)
		}
	}
	if err != nil {
		return "", u.fail(call, name, err)
	}
	return owner, nil
}

// fail wraps cause into a positioned ResolutionError unless it already is one.
func (u *UnitResolver) fail(n *sitter.Node, name string, cause error) error {
	if re, ok := cause.(*ResolutionError); ok {
		return re
	}
	return &ResolutionError{Name: name, Line: int(n.StartPoint().Row) + 1, Cause: cause}
}

// lookup returns a source type by FQN. Index entries recorded for this
// unit's own file are ignored in favor of the unit's declarations.
func (u *UnitResolver) lookup(fqn string) (*TypeInfo, bool) {
	if t, ok := u.local[fqn]; ok {
		return t, true
	}
	t, ok := u.r.index.Lookup(fqn)
	if ok && u.unit.Path != "" && t.File == u.unit.Path {
		return nil, false
	}
	return t, ok
}

// known reports whether fqn names a source or catalog type.
func (u *UnitResolver) known(fqn string) bool {
	if _, ok := u.lookup(fqn); ok {
		return true
	}
	return u.r.catalog.HasType(fqn)
}

// scopeAt builds the scope for a node of the unit.
//
// A declaration contributes its type parameters everywhere inside it, but
// its member types only inside its body.
func (u *UnitResolver) scopeAt(n *sitter.Node) scope {
	sc := scope{file: u.file, typeParams: make(map[string]struct{})}
	prev := n
	for p := n.Parent(); p != nil; prev, p = p, p.Parent() {
		switch p.Type() {
		case ast.NodeMethodDeclaration, ast.NodeConstructorDeclaration:
			for _, tp := range u.unit.TypeParameters(p) {
				sc.typeParams[tp] = struct{}{}
			}
			continue
		}
		d, ok := u.unit.DeclarationOf(p)
		if !ok {
			continue
		}
		for _, tp := range d.TypeParams {
			sc.typeParams[tp] = struct{}{}
		}
		if !d.HasFQN() || !ast.SameNode(prev, d.Body()) {
			continue
		}
		if t, ok := u.local[d.FQN]; ok {
			sc.chain = append(sc.chain, t)
		}
	}
	return sc
}

// scopeOf builds the scope inside the body of a source type.
func (u *UnitResolver) scopeOf(t *TypeInfo) scope {
	sc := scope{file: t.Context, typeParams: make(map[string]struct{})}
	for cur := t; cur != nil; {
		sc.chain = append(sc.chain, cur)
		for _, tp := range cur.TypeParams {
			sc.typeParams[tp] = struct{}{}
		}
		if cur.Outer == "" {
			break
		}
		next, ok := u.lookup(cur.Outer)
		if !ok {
			break
		}
		cur = next
	}
	return sc
}

// headerScope is the scope of a type's own declaration header: its type
// parameters and the bodies of its enclosing types.
func (u *UnitResolver) headerScope(t *TypeInfo) scope {
	sc := scope{file: t.Context, typeParams: make(map[string]struct{})}
	for _, tp := range t.TypeParams {
		sc.typeParams[tp] = struct{}{}
	}
	if t.Outer != "" {
		if outer, ok := u.lookup(t.Outer); ok {
			inner := u.scopeOf(outer)
			sc.chain = inner.chain
			for tp := range inner.typeParams {
				sc.typeParams[tp] = struct{}{}
			}
		}
	}
	return sc
}

// resolveName resolves a dotted or simple type name in sc.
func (u *UnitResolver) resolveName(name string, sc scope) (string, error) {
	head, rest, qualified := strings.Cut(name, ".")
	if !qualified {
		return u.resolveSimple(name, sc)
	}

	if fqn, err := u.resolveSimple(head, sc); err == nil {
		if member, ok := u.resolveMember(fqn, rest); ok {
			return member, nil
		}
	}

	// Fully-qualified, possibly naming a nested type of a known type.
	if u.known(name) {
		return name, nil
	}
	for prefix := ast.QualifiedPrefix(name); prefix != ""; prefix = ast.QualifiedPrefix(prefix) {
		if u.known(prefix) {
			if _, isSource := u.lookup(prefix); !isSource {
				return name, nil
			}
			break
		}
	}
	return "", ErrUnresolved
}

// resolveMember resolves the dotted member path rest inside type fqn.
// Library types accept any member path.
func (u *UnitResolver) resolveMember(fqn, rest string) (string, bool) {
	segs := strings.Split(rest, ".")
	for i, seg := range segs {
		if _, isSource := u.lookup(fqn); !isSource {
			return fqn + "." + strings.Join(segs[i:], "."), true
		}
		next, ok := u.memberType(fqn, seg, make(map[string]bool))
		if !ok {
			return "", false
		}
		fqn = next
	}
	return fqn, true
}

// memberType finds a member type named simple in fqn or its supertypes.
func (u *UnitResolver) memberType(fqn, simple string, visited map[string]bool) (string, bool) {
	if visited[fqn] {
		return "", false
	}
	visited[fqn] = true

	cand := fqn + "." + simple
	if u.known(cand) {
		return cand, true
	}
	if _, ok := u.lookup(fqn); !ok {
		return "", false
	}
	for _, sup := range u.supertypesOf(fqn) {
		if m, ok := u.memberType(sup, simple, visited); ok {
			return m, true
		}
	}
	return "", false
}

// resolveSimple resolves a simple type name following Java's scoping order.
func (u *UnitResolver) resolveSimple(name string, sc scope) (string, error) {
	if _, ok := sc.typeParams[name]; ok {
		return "", ErrNotReferenceType
	}

	for _, t := range sc.chain {
		if ast.SimpleName(t.FQN) == name {
			return t.FQN, nil
		}
		if m, ok := u.memberType(t.FQN, name, make(map[string]bool)); ok {
			return m, nil
		}
	}

	fc := sc.file
	if fc == nil {
		fc = u.file
	}
	if fqn, ok := fc.TopLevel[name]; ok {
		return fqn, nil
	}

	for _, imp := range fc.Imports {
		if imp.Static || imp.OnDemand || ast.SimpleName(imp.Path) != name {
			continue
		}
		if u.known(imp.Path) || u.r.trustImports || isPlatformName(imp.Path) {
			return imp.Path, nil
		}
	}

	samePackage := name
	if fc.Package != "" {
		samePackage = fc.Package + "." + name
	}
	if u.known(samePackage) {
		return samePackage, nil
	}

	for _, imp := range fc.Imports {
		if !imp.OnDemand {
			continue
		}
		cand := imp.Path + "." + name
		if imp.Static {
			if m, ok := u.memberType(imp.Path, name, make(map[string]bool)); ok {
				return m, nil
			}
			continue
		}
		if u.known(cand) {
			return cand, nil
		}
	}

	if cand := "java.lang." + name; u.r.catalog.HasType(cand) {
		return cand, nil
	}
	return "", ErrUnresolved
}

// isPlatformName reports whether fqn belongs to the Java platform, which is
// always on the classpath.
func isPlatformName(fqn string) bool {
	return strings.HasPrefix(fqn, "java.") || strings.HasPrefix(fqn, "javax.")
}

// supertypesOf returns the resolved direct supertypes of a source type.
// Unresolvable supertypes are omitted.
func (u *UnitResolver) supertypesOf(fqn string) []string {
	if s, ok := u.supers[fqn]; ok {
		return s
	}
	t, ok := u.lookup(fqn)
	if !ok || u.resolving[fqn] {
		return nil
	}
	u.resolving[fqn] = true
	defer delete(u.resolving, fqn)

	sc := u.headerScope(t)
	var out []string
	for _, text := range t.Supertypes() {
		if sup, err := u.resolveName(text, sc); err == nil && sup != fqn {
			out = append(out, sup)
		}
	}
	u.supers[fqn] = out
	return out
}

// superclassOf returns the resolved superclass of a source class, or
// java.lang.Object.
func (u *UnitResolver) superclassOf(t *TypeInfo) string {
	if t.Superclass == "" {
		return javaLangObject
	}
	if sup, err := u.resolveName(t.Superclass, u.headerScope(t)); err == nil {
		return sup
	}
	return javaLangObject
}
