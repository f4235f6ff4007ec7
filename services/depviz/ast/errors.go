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
	"errors"
	"fmt"
)

// Sentinel errors for whole-file parse failures.
//
// Every one of these is fatal for the file being parsed. They can be checked
// with errors.Is() on the error returned by JavaParser.Parse.
var (
	// ErrParseFailed indicates tree-sitter could not produce a tree at all.
	ErrParseFailed = errors.New("parse failed")

	// ErrSyntax indicates the tree contains ERROR or MISSING nodes.
	ErrSyntax = errors.New("source contains syntax errors")

	// ErrInvalidContent indicates the content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrFileTooLarge indicates the content exceeds the configured limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")

	// ErrContextCanceled indicates that parsing was canceled via context.
	ErrContextCanceled = errors.New("parse canceled")
)

// ParseError locates a whole-file parse failure.
//
// Example:
//
//	unit, err := parser.Parse(ctx, path, content)
//	var parseErr *ParseError
//	if errors.As(err, &parseErr) {
//	    fmt.Printf("%s:%d:%d\n", parseErr.FilePath, parseErr.Line, parseErr.Column)
//	}
type ParseError struct {
	// FilePath is the file that failed to parse.
	FilePath string

	// Line is the 1-indexed line of the first error, 0 if unknown.
	Line int

	// Column is the 1-indexed column of the first error, 0 if unknown.
	Column int

	// Message describes the failure.
	Message string

	// Cause is the sentinel or underlying error.
	Cause error
}

// Error formats the error as path:line:column: message.
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.FilePath, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
