// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the dependency graph model for Java declarations.
//
// The graph contains one node per declaration id (a fully-qualified type
// name) and typed, deduplicated edges between them (Extends, Implements,
// TypeUse, MethodCall, ObjectCreate).
//
// # Identity
//
// GetOrCreateNode is the only way a node comes into existence. A node that
// is referenced before its declaration has been analyzed is a stub: its type
// is Unknown, its line count is -1 and its file path is nil. Fields move from
// the stub values toward known values and are never reverted by Merge.
//
// # Ownership Model
//
// A CodeGraph is NOT safe for concurrent use. Each analysis run owns exactly
// one CodeGraph for its duration and hands it to Merge when done. Merge is
// the only operation that crosses graphs and it must be called from a single
// writer.
//
// # Wire Format
//
// ToWire/FromWire convert to the {"nodes": [...], "links": [...]} payload
// consumed by the visualization. Link endpoints are accepted either as a
// bare id or as an embedded node object.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrEmptyID is returned when a node or edge endpoint id is empty.
	ErrEmptyID = errors.New("empty node id")

	// ErrUnknownNodeType is returned when a node type string cannot be parsed.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrUnknownEdgeType is returned when an edge type string cannot be parsed.
	ErrUnknownEdgeType = errors.New("unknown edge type")

	// ErrInvalidEndpoint is returned when a wire link endpoint is neither
	// a string id nor an object carrying an "id" field.
	ErrInvalidEndpoint = errors.New("invalid link endpoint")
)
