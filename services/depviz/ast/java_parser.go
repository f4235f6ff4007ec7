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
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultMaxFileSize is the largest Java file accepted by default (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the size above which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// JavaParserOption configures a JavaParser instance.
type JavaParserOption func(*JavaParser)

// WithMaxFileSize sets the maximum file size the parser will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Non-positive values are ignored.
func WithMaxFileSize(bytes int64) JavaParserOption {
	return func(p *JavaParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithTolerateSyntaxErrors makes Parse return a Unit for trees that contain
// ERROR or MISSING nodes instead of failing with ErrSyntax.
func WithTolerateSyntaxErrors(tolerate bool) JavaParserOption {
	return func(p *JavaParser) {
		p.tolerateSyntaxErrors = tolerate
	}
}

// JavaParser turns Java source into a navigable compilation Unit.
//
// Description:
//
//	Uses the tree-sitter Java grammar. A new tree-sitter parser is created
//	per call, so one JavaParser can serve many goroutines.
//
// Thread Safety:
//
//	Safe for concurrent use.
type JavaParser struct {
	maxFileSize          int64
	tolerateSyntaxErrors bool
}

// NewJavaParser creates a JavaParser with the given options.
func NewJavaParser(opts ...JavaParserOption) *JavaParser {
	p := &JavaParser{
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses one compilation unit.
//
// Description:
//
//	Validates size and encoding, parses with tree-sitter and indexes the
//	unit's package, imports and declarations. Any failure here is fatal for
//	the whole file.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//   - filePath: Absolute storage path of the unit. May be empty for
//     in-memory sources; the FilePath stage then tags nothing.
//   - content: Raw Java source bytes.
//
// Outputs:
//   - *Unit: The parsed unit. Caller must call Close when done.
//   - error: *ParseError wrapping ErrFileTooLarge, ErrInvalidContent,
//     ErrParseFailed, ErrSyntax or ErrContextCanceled.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (p *JavaParser) Parse(ctx context.Context, filePath string, content []byte) (*Unit, error) {
	ctx, span := startParseSpan(ctx, filePath, len(content))
	defer span.End()

	start := time.Now()
	fail := func(cause error, line, col int, msg string) (*Unit, error) {
		recordParseMetrics(ctx, time.Since(start), false)
		span.SetStatus(codes.Error, msg)
		return nil, &ParseError{FilePath: filePath, Line: line, Column: col, Message: msg, Cause: cause}
	}

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrContextCanceled, err), 0, 0, "parse canceled before start")
	}
	if int64(len(content)) > p.maxFileSize {
		return fail(ErrFileTooLarge, 0, 0, fmt.Sprintf("size %d exceeds limit %d", len(content), p.maxFileSize))
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}
	if !utf8.Valid(content) {
		return fail(ErrInvalidContent, 0, 0, "content is not valid UTF-8")
	}

	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrParseFailed, err), 0, 0, "tree-sitter parse failed")
	}
	if err := ctx.Err(); err != nil {
		tree.Close()
		return fail(fmt.Errorf("%w: %v", ErrContextCanceled, err), 0, 0, "parse canceled after tree-sitter")
	}

	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return fail(ErrParseFailed, 0, 0, "tree-sitter returned nil root node")
	}

	if root.HasError() && !p.tolerateSyntaxErrors {
		line, col := firstErrorPosition(root)
		tree.Close()
		return fail(ErrSyntax, line, col, "source contains syntax errors")
	}

	unit := newUnit(filePath, content, tree, root)

	span.SetAttributes(
		attribute.String("ast.package", unit.Package),
		attribute.Int("ast.declaration_count", len(unit.decls)),
	)
	recordParseMetrics(ctx, time.Since(start), true)
	return unit, nil
}

// firstErrorPosition returns the 1-indexed position of the first ERROR or
// MISSING node in preorder, or (0, 0) if none is found.
func firstErrorPosition(root *sitter.Node) (int, int) {
	var line, col int
	walkAll(root, func(n *sitter.Node) bool {
		if line > 0 {
			return false
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			pt := n.StartPoint()
			line, col = int(pt.Row)+1, int(pt.Column)+1
			return false
		}
		return n.HasError()
	})
	return line, col
}
