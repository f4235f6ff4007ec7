// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "fmt"

// UnknownID is the node id used as edge source when no enclosing
// declaration can be determined.
const UnknownID = "Unknown"

// UnmeasuredLines is the LinesOfCode sentinel for "not yet measured".
const UnmeasuredLines = -1

// NodeType classifies a declaration.
type NodeType int

const (
	// NodeTypeUnknown is the type of a stub node.
	NodeTypeUnknown NodeType = iota

	// NodeTypeClass is a concrete class or record.
	NodeTypeClass

	// NodeTypeAbstractClass is a class with the abstract modifier.
	NodeTypeAbstractClass

	// NodeTypeInterface is an interface.
	NodeTypeInterface

	// NodeTypeEnum is an enum.
	NodeTypeEnum

	// NodeTypeAnnotation is an annotation type (@interface).
	NodeTypeAnnotation
)

// String returns the wire name of the node type.
func (t NodeType) String() string {
	switch t {
	case NodeTypeClass:
		return "Class"
	case NodeTypeAbstractClass:
		return "AbstractClass"
	case NodeTypeInterface:
		return "Interface"
	case NodeTypeEnum:
		return "Enum"
	case NodeTypeAnnotation:
		return "Annotation"
	default:
		return "Unknown"
	}
}

// Rank orders node types for conflict resolution within one run.
//
// Higher rank wins when type precedence is enabled on a CodeGraph:
// Annotation > Enum > Interface > AbstractClass > Class > Unknown.
func (t NodeType) Rank() int {
	switch t {
	case NodeTypeAnnotation:
		return 5
	case NodeTypeEnum:
		return 4
	case NodeTypeInterface:
		return 3
	case NodeTypeAbstractClass:
		return 2
	case NodeTypeClass:
		return 1
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t NodeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *NodeType) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseNodeType parses a wire node type name.
func ParseNodeType(s string) (NodeType, error) {
	switch s {
	case "Class":
		return NodeTypeClass, nil
	case "AbstractClass":
		return NodeTypeAbstractClass, nil
	case "Interface":
		return NodeTypeInterface, nil
	case "Enum":
		return NodeTypeEnum, nil
	case "Annotation":
		return NodeTypeAnnotation, nil
	case "Unknown", "":
		return NodeTypeUnknown, nil
	default:
		return NodeTypeUnknown, fmt.Errorf("%w: %q", ErrUnknownNodeType, s)
	}
}

// EdgeType classifies a relationship between two declarations.
type EdgeType int

const (
	// EdgeTypeExtends is class-to-superclass or interface-to-superinterface.
	EdgeTypeExtends EdgeType = iota

	// EdgeTypeImplements is class-to-implemented-interface.
	EdgeTypeImplements

	// EdgeTypeTypeUse is a field, parameter, return or local variable type.
	EdgeTypeTypeUse

	// EdgeTypeMethodCall points at the type owning an invoked method.
	EdgeTypeMethodCall

	// EdgeTypeObjectCreate points at the type of a `new` expression.
	EdgeTypeObjectCreate
)

// AllEdgeTypes lists every edge type in declaration order.
var AllEdgeTypes = []EdgeType{
	EdgeTypeExtends,
	EdgeTypeImplements,
	EdgeTypeTypeUse,
	EdgeTypeMethodCall,
	EdgeTypeObjectCreate,
}

// String returns the wire name of the edge type.
func (t EdgeType) String() string {
	switch t {
	case EdgeTypeExtends:
		return "Extends"
	case EdgeTypeImplements:
		return "Implements"
	case EdgeTypeTypeUse:
		return "TypeUse"
	case EdgeTypeMethodCall:
		return "MethodCall"
	case EdgeTypeObjectCreate:
		return "ObjectCreate"
	default:
		return fmt.Sprintf("EdgeType(%d)", int(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t EdgeType) MarshalText() ([]byte, error) {
	if t < EdgeTypeExtends || t > EdgeTypeObjectCreate {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEdgeType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EdgeType) UnmarshalText(text []byte) error {
	parsed, err := ParseEdgeType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseEdgeType parses a wire edge type name.
func ParseEdgeType(s string) (EdgeType, error) {
	for _, t := range AllEdgeTypes {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEdgeType, s)
}

// Node is a declaration site in the graph.
//
// Name currently always equals ID; it is kept separate so display names can
// diverge from the canonical id later.
type Node struct {
	// ID is the fully-qualified declaration name.
	ID string

	// Name is the display name.
	Name string

	// Type is the declaration kind. Unknown for stubs.
	Type NodeType

	// LinesOfCode is the declaration span in lines, or UnmeasuredLines.
	LinesOfCode int

	// FilePath is the absolute source path, nil until known.
	FilePath *string
}

// IsStub reports whether no declaration-derived field has been set yet.
func (n *Node) IsStub() bool {
	return n.Type == NodeTypeUnknown && n.LinesOfCode == UnmeasuredLines && n.FilePath == nil
}

// clone returns a deep copy of the node.
func (n *Node) clone() *Node {
	c := *n
	if n.FilePath != nil {
		p := *n.FilePath
		c.FilePath = &p
	}
	return &c
}

// Edge is a directed, typed relationship between two node ids.
type Edge struct {
	Source string
	Target string
	Type   EdgeType
}

// Key returns the identity triple of the edge.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, Type: e.Type}
}

// String formats the edge as Type(source,target).
func (e Edge) String() string {
	return fmt.Sprintf("%s(%s,%s)", e.Type, e.Source, e.Target)
}

// EdgeKey is the (source, target, type) identity of an edge.
type EdgeKey struct {
	Source string
	Target string
	Type   EdgeType
}
