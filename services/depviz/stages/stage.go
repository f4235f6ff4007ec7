// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stages holds the single-responsibility passes that turn one parsed
// Java unit into graph nodes and edges.
//
// A stage is either a ListStage, which extracts target nodes and processes
// each one independently, or a WholeTreeStage, which walks the tree itself.
// Run applies either kind; a failure on one target is logged, counted and
// skipped so that sibling targets and later stages still run.
package stages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/DependViz/services/depviz/ast"
	"github.com/AleutianAI/DependViz/services/depviz/graph"
)

// Sentinel errors for stage configuration.
var (
	// ErrUnknownStage indicates a stage name that is not registered.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrTargetPanicked indicates a target's processing panicked.
	ErrTargetPanicked = errors.New("stage target panicked")
)

// Resolver maps syntax nodes of one unit to canonical names.
//
// symbols.UnitResolver is the production implementation; tests supply
// fakes.
type Resolver interface {
	// ResolveType resolves a type node to a reference type FQN.
	ResolveType(n *sitter.Node) (string, error)

	// ResolveMethodOwner resolves a method_invocation to the FQN of the
	// type declaring the invoked method.
	ResolveMethodOwner(call *sitter.Node) (string, error)

	// ResolveCreatedType resolves an object_creation_expression to the
	// FQN of the constructed type.
	ResolveCreatedType(creation *sitter.Node) (string, error)
}

// Tree is one parsed unit together with the resolver bound to it.
type Tree struct {
	Unit     *ast.Unit
	Resolver Resolver
}

// SourceOf returns the id edges found at n originate from: the FQN of the
// nearest enclosing named declaration, or graph.UnknownID.
func (t *Tree) SourceOf(n *sitter.Node) string {
	if d := t.Unit.EnclosingDeclaration(n); d != nil {
		return d.FQN
	}
	return graph.UnknownID
}

// DeclarationID returns the id of a declaration: its own FQN, or for local
// and anonymous-scope declarations the id of the named declaration around
// it.
func (t *Tree) DeclarationID(d *ast.Declaration) string {
	if d.HasFQN() {
		return d.FQN
	}
	return t.SourceOf(d.Node)
}

// Line returns the 1-indexed line of n.
func Line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// ListStage processes independently extracted targets.
type ListStage interface {
	// ExtractTargets returns the nodes to process, in source order.
	ExtractTargets(tree *Tree) []*sitter.Node

	// ProcessOne writes the facts of one target into g. An error marks
	// only this target as failed.
	ProcessOne(tree *Tree, target *sitter.Node, g *graph.CodeGraph) error
}

// WholeTreeStage processes the tree in one pass.
type WholeTreeStage interface {
	Run(tree *Tree, g *graph.CodeGraph) error
}

// StageKind discriminates the Stage variant.
type StageKind int

const (
	// KindList marks a Stage backed by a ListStage.
	KindList StageKind = iota

	// KindWholeTree marks a Stage backed by a WholeTreeStage.
	KindWholeTree
)

// String returns the kind name.
func (k StageKind) String() string {
	if k == KindWholeTree {
		return "whole_tree"
	}
	return "list"
}

// Stage is a named ListStage or WholeTreeStage.
type Stage struct {
	Name  string
	Kind  StageKind
	List  ListStage
	Whole WholeTreeStage
}

// NewListStage wraps a ListStage.
func NewListStage(name string, s ListStage) Stage {
	return Stage{Name: name, Kind: KindList, List: s}
}

// NewWholeTreeStage wraps a WholeTreeStage.
func NewWholeTreeStage(name string, s WholeTreeStage) Stage {
	return Stage{Name: name, Kind: KindWholeTree, Whole: s}
}

// TargetFailure records one failed target.
type TargetFailure struct {
	Line int
	Err  error
}

// StageReport summarizes one stage run over one unit.
type StageReport struct {
	Stage    string
	Targets  int
	Failures []TargetFailure
	Duration time.Duration
}

// Failed returns the number of failed targets.
func (r StageReport) Failed() int {
	return len(r.Failures)
}

// Run applies stage to tree, writing into g.
//
// Description:
//
//	For a list stage every target is processed in isolation: an error or a
//	panic is logged at debug level, recorded in the report and skipped. A
//	whole-tree stage counts as one target. Run itself never fails.
//
// Thread Safety:
//
//	g must be owned by the caller for the duration of the call.
func Run(ctx context.Context, stage Stage, tree *Tree, g *graph.CodeGraph) StageReport {
	ctx, span := tracer.Start(ctx, "stages.Run",
		trace.WithAttributes(
			attribute.String("stage.name", stage.Name),
			attribute.String("stage.kind", stage.Kind.String()),
		))
	defer span.End()

	start := time.Now()
	report := StageReport{Stage: stage.Name}

	switch stage.Kind {
	case KindList:
		targets := stage.List.ExtractTargets(tree)
		report.Targets = len(targets)
		for _, target := range targets {
			if err := processSafely(stage, tree, target, g); err != nil {
				report.Failures = append(report.Failures, TargetFailure{Line: Line(target), Err: err})
				slog.Debug("stage target failed",
					slog.String("stage", stage.Name),
					slog.String("file", tree.Unit.Path),
					slog.Int("line", Line(target)),
					slog.String("error", err.Error()))
			}
		}
	case KindWholeTree:
		report.Targets = 1
		if err := runSafely(stage, tree, g); err != nil {
			report.Failures = append(report.Failures, TargetFailure{Err: err})
			slog.Warn("stage failed",
				slog.String("stage", stage.Name),
				slog.String("file", tree.Unit.Path),
				slog.String("error", err.Error()))
		}
	}

	report.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("stage.targets", report.Targets),
		attribute.Int("stage.failures", report.Failed()),
	)
	recordStageMetrics(ctx, report)
	return report
}

func processSafely(stage Stage, tree *Tree, target *sitter.Node, g *graph.CodeGraph) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTargetPanicked, r)
		}
	}()
	return stage.List.ProcessOne(tree, target, g)
}

func runSafely(stage Stage, tree *Tree, g *graph.CodeGraph) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTargetPanicked, r)
		}
	}()
	return stage.Whole.Run(tree, g)
}
