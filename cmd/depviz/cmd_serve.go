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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/DependViz/services/depviz"
	"github.com/AleutianAI/DependViz/services/depviz/telemetry"
)

// shutdownTimeout bounds graceful HTTP and telemetry shutdown.
const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	port  int
	watch bool
	debug bool
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dependency graph HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, root, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (default: http.port from config)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Watch the source root and keep cached graphs current")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable gin debug mode and request logging")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	workspace, cfg, err := root.load()
	if err != nil {
		return err
	}
	if opts.port > 0 {
		cfg.HTTP.Port = opts.port
	}
	if opts.debug {
		cfg.HTTP.Debug = true
	}
	if opts.watch {
		cfg.Watch.Enabled = true
	}
	setupLogging(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, depviz.TelemetryOptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer flushTelemetry(shutdownTelemetry)

	svc, err := depviz.New(workspace, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Shutdown(); err != nil {
			slog.Warn("Failed to close analysis cache", slog.String("error", err.Error()))
		}
	}()

	if cfg.Watch.Enabled {
		watcher, err := svc.Watch(ctx, depviz.WatcherOptionsFromConfig(cfg))
		if err != nil {
			slog.Warn("File watching unavailable, cached graphs refresh on request only",
				slog.String("error", err.Error()))
		} else {
			defer watcher.Stop()
		}
	}

	if cfg.HTTP.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := depviz.NewRouter(depviz.NewHandlers(svc), depviz.RouterOptions{
		ServiceName: cfg.Telemetry.ServiceName,
		Debug:       cfg.HTTP.Debug,
		Metrics:     true,
	})
	server := depviz.NewServer(router, cfg.HTTP.Port)

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	printBanner(os.Stderr, svc, cfg.HTTP.Port, cfg.Watch.Enabled)
	slog.Info("Starting DependViz server",
		slog.String("address", server.Addr),
		slog.String("workspace", workspace))

	select {
	case <-ctx.Done():
		slog.Info("Shutting down DependViz server")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// flushTelemetry runs the telemetry shutdown with a bounded context.
func flushTelemetry(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
	}
}
