// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package symbols resolves Java type and method references to canonical
// fully-qualified names.
//
// Resolution draws on three sources: the types declared in the unit being
// analyzed, an Index of every type declared under the project's source root,
// and a Catalog of well-known JDK types. Anything the three cannot see is
// reported as unresolved and the caller skips that reference.
package symbols

import (
	"errors"
	"fmt"
)

// Sentinel errors for resolution failures.
var (
	// ErrUnresolved indicates a name could not be mapped to a known type.
	ErrUnresolved = errors.New("symbol could not be resolved")

	// ErrNotReferenceType indicates a primitive, void or type variable where
	// a reference type was required.
	ErrNotReferenceType = errors.New("not a reference type")

	// ErrMethodNotFound indicates no type in the receiver's hierarchy
	// declares the invoked method.
	ErrMethodNotFound = errors.New("method declaration not found")

	// ErrSourceRootNotFound indicates no conventional source directory was
	// found above the workspace root.
	ErrSourceRootNotFound = errors.New("source root not found")

	// ErrInvalidCatalog indicates the JDK catalog document could not be decoded.
	ErrInvalidCatalog = errors.New("invalid type catalog")
)

// ResolutionError describes one failed resolution.
type ResolutionError struct {
	// Name is the source text that failed to resolve.
	Name string

	// Line is the 1-indexed line of the reference, 0 if unknown.
	Line int

	// Cause is one of the sentinel errors above.
	Cause error
}

// Error formats the error with the reference text and position.
func (e *ResolutionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %q: %v", e.Line, e.Name, e.Cause)
	}
	return fmt.Sprintf("%q: %v", e.Name, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ResolutionError) Unwrap() error {
	return e.Cause
}
