// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/DependViz/services/depviz"
	"github.com/AleutianAI/DependViz/services/depviz/graph"
	"github.com/AleutianAI/DependViz/services/depviz/pipeline"
)

type analyzeOptions struct {
	pretty bool
}

func newAnalyzeCommand(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Print the dependency graph of Java files as JSON",
		Long: `Print the dependency graph of Java files as JSON.

Files are resolved against the workspace's source index. With more than
one file the graphs are merged.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Indent the JSON output")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, files []string) error {
	workspace, cfg, err := root.load()
	if err != nil {
		return err
	}
	setupLogging(cfg, os.Stderr)

	svc, err := depviz.New(workspace, cfg)
	if err != nil {
		return err
	}
	defer svc.Shutdown()

	for _, f := range files {
		if _, err := svc.Open(cmd.Context(), f); err != nil {
			return err
		}
	}
	merged, err := svc.MergedGraph(files...)
	if err != nil {
		return err
	}
	return writeGraph(cmd.OutOrStdout(), merged.ToWire(), opts.pretty)
}

type sweepOptions struct {
	workers int
	output  string
	jsonOut bool
	pretty  bool
}

func newSweepCommand(root *rootOptions) *cobra.Command {
	opts := &sweepOptions{}
	cmd := &cobra.Command{
		Use:   "sweep [DIR]",
		Short: "Analyze every Java file under a directory",
		Long: `Analyze every Java file under a directory and merge the graphs.

DIR defaults to the workspace's source root. The report goes to stdout;
--output writes the merged graph as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runSweep(cmd, root, opts, dir)
		},
	}
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent file analyses (default: workers from config)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the merged graph to this file")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Indent JSON output")
	return cmd
}

func runSweep(cmd *cobra.Command, root *rootOptions, opts *sweepOptions, dir string) error {
	workspace, cfg, err := root.load()
	if err != nil {
		return err
	}
	setupLogging(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := depviz.New(workspace, cfg)
	if err != nil {
		return err
	}
	defer svc.Shutdown()

	var sweepOpts []pipeline.SweepOption
	if opts.workers > 0 {
		sweepOpts = append(sweepOpts, pipeline.WithSweepWorkers(opts.workers))
	}
	if !opts.jsonOut && isTerminal(os.Stderr) {
		sweepOpts = append(sweepOpts, pipeline.WithProgress(progressPrinter(os.Stderr)))
	}

	result, err := svc.Sweep(ctx, dir, sweepOpts...)
	if err != nil {
		return err
	}

	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create %s: %w", opts.output, err)
		}
		werr := writeGraph(f, result.Graph.ToWire(), opts.pretty)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return fmt.Errorf("write %s: %w", opts.output, werr)
		}
	}

	out := cmd.OutOrStdout()
	if opts.jsonOut {
		return writeJSON(out, result, opts.pretty)
	}
	fmt.Fprint(out, renderSweepReport(result))
	if result.Cancelled {
		return fmt.Errorf("sweep canceled")
	}
	return nil
}

func writeGraph(w io.Writer, g *graph.WireGraph, pretty bool) error {
	return writeJSON(w, g, pretty)
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
