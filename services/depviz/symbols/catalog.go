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
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed jdk_catalog.yaml
var defaultCatalogYAML []byte

// catalogDocument is the YAML shape of a type catalog.
type catalogDocument struct {
	Packages      map[string][]string          `yaml:"packages"`
	StaticFields  map[string]string            `yaml:"static_fields"`
	MethodReturns map[string]map[string]string `yaml:"method_returns"`
}

// Catalog is a fixed set of library types known without source.
//
// Thread Safety:
//
//	Immutable after construction; safe for concurrent use.
type Catalog struct {
	types         map[string]struct{}
	packages      map[string]struct{}
	staticFields  map[string]string
	methodReturns map[string]map[string]string
}

var (
	defaultCatalogOnce sync.Once
	defaultCatalog     *Catalog
	defaultCatalogErr  error
)

// DefaultCatalog returns the embedded JDK catalog, decoded once.
func DefaultCatalog() (*Catalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = ParseCatalog(defaultCatalogYAML)
	})
	return defaultCatalog, defaultCatalogErr
}

// ParseCatalog decodes a catalog document.
//
// Inputs:
//   - data: YAML with `packages` (package → simple names), optional
//     `static_fields` (owner.FIELD → type) and `method_returns`
//     (owner → method → return type).
//
// Outputs:
//   - *Catalog: The decoded catalog.
//   - error: ErrInvalidCatalog wrapping the decode or validation problem.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(doc.Packages) == 0 {
		return nil, fmt.Errorf("%w: no packages", ErrInvalidCatalog)
	}

	c := &Catalog{
		types:         make(map[string]struct{}),
		packages:      make(map[string]struct{}),
		staticFields:  make(map[string]string, len(doc.StaticFields)),
		methodReturns: make(map[string]map[string]string, len(doc.MethodReturns)),
	}
	if err := c.addPackages(doc.Packages); err != nil {
		return nil, err
	}
	for k, v := range doc.StaticFields {
		c.staticFields[k] = v
	}
	for owner, methods := range doc.MethodReturns {
		m := make(map[string]string, len(methods))
		for name, ret := range methods {
			m[name] = ret
		}
		c.methodReturns[owner] = m
	}
	return c, nil
}

// Extend returns a copy of c with extra package → simple-name entries.
//
// Used for project libraries that are not on the source root, configured
// under resolution.catalog_extra.
func (c *Catalog) Extend(extra map[string][]string) (*Catalog, error) {
	if len(extra) == 0 {
		return c, nil
	}
	out := &Catalog{
		types:         make(map[string]struct{}, len(c.types)),
		packages:      make(map[string]struct{}, len(c.packages)),
		staticFields:  c.staticFields,
		methodReturns: c.methodReturns,
	}
	for k := range c.types {
		out.types[k] = struct{}{}
	}
	for k := range c.packages {
		out.packages[k] = struct{}{}
	}
	if err := out.addPackages(extra); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Catalog) addPackages(pkgs map[string][]string) error {
	for pkg, names := range pkgs {
		if pkg == "" {
			return fmt.Errorf("%w: empty package name", ErrInvalidCatalog)
		}
		c.packages[pkg] = struct{}{}
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				return fmt.Errorf("%w: empty type name in %s", ErrInvalidCatalog, pkg)
			}
			c.types[pkg+"."+name] = struct{}{}
		}
	}
	return nil
}

// HasType reports whether fqn is a catalog type.
func (c *Catalog) HasType(fqn string) bool {
	if c == nil {
		return false
	}
	_, ok := c.types[fqn]
	return ok
}

// HasPackage reports whether pkg is a catalog package.
func (c *Catalog) HasPackage(pkg string) bool {
	if c == nil {
		return false
	}
	_, ok := c.packages[pkg]
	return ok
}

// StaticFieldType returns the type of owner.field, if listed.
func (c *Catalog) StaticFieldType(owner, field string) (string, bool) {
	if c == nil {
		return "", false
	}
	t, ok := c.staticFields[owner+"."+field]
	return t, ok
}

// MethodReturn returns the return type of owner.method, if listed.
// java.lang.Object methods apply to every owner.
func (c *Catalog) MethodReturn(owner, method string) (string, bool) {
	if c == nil {
		return "", false
	}
	if t, ok := c.methodReturns[owner][method]; ok {
		return t, true
	}
	t, ok := c.methodReturns[javaLangObject][method]
	return t, ok
}

// Len returns the number of catalog types.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.types)
}
