// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depviz

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/DependViz/services/depviz/ast"
	"github.com/AleutianAI/DependViz/services/depviz/cache"
	"github.com/AleutianAI/DependViz/services/depviz/config"
	"github.com/AleutianAI/DependViz/services/depviz/pipeline"
	"github.com/AleutianAI/DependViz/services/depviz/stages"
	"github.com/AleutianAI/DependViz/services/depviz/symbols"
	"github.com/AleutianAI/DependViz/services/depviz/telemetry"
)

// EngineOptionsFromConfig maps a configuration onto engine options.
//
// Outputs:
//   - []pipeline.EngineOption: Options for pipeline.NewEngine.
//   - error: Unknown disabled stage or invalid catalog extension.
func EngineOptionsFromConfig(cfg *config.Config) ([]pipeline.EngineOption, error) {
	enabled, err := stages.WithoutDisabled(cfg.Stages.Disabled)
	if err != nil {
		return nil, fmt.Errorf("stages: %w", err)
	}

	catalog, err := symbols.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	catalog, err = catalog.Extend(cfg.Resolution.CatalogExtra)
	if err != nil {
		return nil, fmt.Errorf("extend catalog: %w", err)
	}

	return []pipeline.EngineOption{
		pipeline.WithSourceRoots(cfg.SourceRoots...),
		pipeline.WithParser(ast.NewJavaParser(ast.WithMaxFileSize(cfg.Parser.MaxFileSizeBytes))),
		pipeline.WithStages(enabled),
		pipeline.WithCatalog(catalog),
		pipeline.WithTrustImports(cfg.Resolution.TrustImports),
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithDiscoverOptions(symbols.DiscoverOptions{
			Exclude:          cfg.Sweep.Exclude,
			RespectGitignore: cfg.Sweep.RespectGitignore,
		}),
		pipeline.WithTypePrecedence(cfg.Resolution.TypePrecedence),
	}, nil
}

// CacheOptionsFromConfig maps the cache section onto cache options.
func CacheOptionsFromConfig(cfg *config.Config) cache.Options {
	return cache.Options{
		Backend:   cfg.Cache.Backend,
		Capacity:  cfg.Cache.Capacity,
		BadgerDir: cfg.Cache.BadgerDir,
		Logger:    slog.Default().With(slog.String("component", "badger")),
	}
}

// WatcherOptionsFromConfig maps the watch section onto watcher options.
func WatcherOptionsFromConfig(cfg *config.Config) WatcherOptions {
	opts := DefaultWatcherOptions()
	opts.Debounce = time.Duration(cfg.Watch.DebounceMS) * time.Millisecond
	opts.MaxEventsPerSecond = cfg.Watch.MaxEventsPerSecond
	opts.IgnorePatterns = append(opts.IgnorePatterns, cfg.Sweep.Exclude...)
	return opts
}

// TelemetryOptionsFromConfig maps the telemetry section onto exporter
// settings.
func TelemetryOptionsFromConfig(cfg *config.Config) telemetry.Config {
	return telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Traces:         cfg.Telemetry.Traces,
		Metrics:        cfg.Telemetry.Metrics,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
	}
}
