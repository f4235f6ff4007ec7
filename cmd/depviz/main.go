// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command depviz extracts type-level dependency graphs from Java sources.
//
// It runs as an HTTP API server, as a language server on stdio, or as a
// one-shot analyzer of files and source trees.
//
// Usage:
//
//	depviz serve --workspace /path/to/project
//	depviz lsp
//	depviz analyze src/main/java/com/acme/Circle.java
//	depviz sweep --workspace /path/to/project --output graph.json
//
// Example requests:
//
//	# Health check
//	curl http://localhost:12218/v1/depviz/health
//
//	# Graph of one file
//	curl "http://localhost:12218/v1/depviz/file?path=/path/to/Circle.java" | jq
//
//	# Sweep the source root
//	curl -X POST http://localhost:12218/v1/depviz/sweep | jq .report
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/DependViz/services/depviz"
	"github.com/AleutianAI/DependViz/services/depviz/config"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	workspace string
	config    string
	logLevel  string
	logFormat string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "depviz",
		Short:        "Java type dependency graphs for editors and tools",
		Version:      depviz.Version,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.workspace, "workspace", "w", "", "Workspace root (default: current directory)")
	flags.StringVarP(&opts.config, "config", "c", "", "Configuration file (default: <workspace>/"+config.WorkspaceFileName+")")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Override log format: auto, text, json")

	root.AddCommand(
		newServeCommand(opts),
		newLSPCommand(opts),
		newAnalyzeCommand(opts),
		newSweepCommand(opts),
		newVersionCommand(),
	)
	return root
}

// load resolves the workspace and its configuration, applying flag
// overrides.
func (o *rootOptions) load() (string, *config.Config, error) {
	workspace := o.workspace
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", nil, fmt.Errorf("resolve working directory: %w", err)
		}
		workspace = wd
	}
	workspace, err := filepath.Abs(workspace)
	if err != nil {
		return "", nil, fmt.Errorf("resolve workspace: %w", err)
	}

	cfg, err := o.loadConfig(workspace)
	if err != nil {
		return "", nil, err
	}
	return workspace, cfg, nil
}

// loadConfig loads the configuration of workspace, which may be empty.
func (o *rootOptions) loadConfig(workspace string) (*config.Config, error) {
	cfg, err := config.Load(workspace, o.config)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the default slog logger writing to w.
func setupLogging(cfg *config.Config, w io.Writer) {
	slog.SetDefault(slog.New(newLogHandler(w, cfg.Log.Format, cfg.SlogLevel())))
}

// newLogHandler picks text output for terminals and JSON otherwise, unless
// format forces one.
func newLogHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "json":
		return slog.NewJSONHandler(w, opts)
	case "text":
		return slog.NewTextHandler(w, opts)
	}
	if isTerminal(w) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), depviz.Version)
		},
	}
}
