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
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/DependViz/services/depviz"
	"github.com/AleutianAI/DependViz/services/depviz/lsp"
	"github.com/AleutianAI/DependViz/services/depviz/telemetry"
)

func newLSPCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Run the language server on stdin and stdout",
		Long: `Run the language server on stdin and stdout.

The workspace comes from the client's initialize request. Logs and
stdout telemetry exporters write to stderr; stdout carries only the
protocol stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Process-wide settings come from the explicit --config file, if
			// any. Each workspace's own file is read by the factory.
			cfg, err := root.loadConfig("")
			if err != nil {
				return err
			}
			setupLogging(cfg, os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			telCfg := depviz.TelemetryOptionsFromConfig(cfg)
			telCfg.Writer = os.Stderr
			shutdownTelemetry, err := telemetry.Setup(ctx, telCfg)
			if err != nil {
				return err
			}

			factory := func(workspace string) (*depviz.Service, error) {
				wsCfg, err := root.loadConfig(workspace)
				if err != nil {
					return nil, err
				}
				return depviz.New(workspace, wsCfg)
			}

			server := lsp.NewServer(os.Stdin, os.Stdout, factory)
			code, err := server.Run(ctx)
			if err != nil {
				slog.Error("Language server stopped", slog.String("error", err.Error()))
			}
			flushTelemetry(shutdownTelemetry)
			if code != 0 {
				stop()
				os.Exit(code)
			}
			return nil
		},
	}
}
