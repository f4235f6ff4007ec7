// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads DependViz settings from YAML.
//
// Embedded defaults are overlaid by a workspace file (depviz.config.yaml)
// or an explicit file, then validated with struct tags.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/DependViz/services/depviz/stages"
)

//go:embed default_config.yaml
var defaultConfigYAML []byte

// WorkspaceFileName is looked up in the workspace root.
const WorkspaceFileName = "depviz.config.yaml"

// MaxConfigFileSize bounds config files read from disk (1MB).
const MaxConfigFileSize = 1 << 20

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete DependViz configuration.
//
// Thread Safety: Immutable after Load; safe for concurrent reads.
type Config struct {
	// SourceRoots are relative directories marking the Java package root.
	SourceRoots []string `yaml:"source_roots" validate:"required,min=1,dive,required"`

	// Workers bounds parallel analyses. 0 means GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0,lte=512"`

	Parser     ParserConfig     `yaml:"parser"`
	Cache      CacheConfig      `yaml:"cache"`
	Resolution ResolutionConfig `yaml:"resolution"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Stages     StagesConfig     `yaml:"stages"`
	Watch      WatchConfig      `yaml:"watch"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ParserConfig configures the Java parser.
type ParserConfig struct {
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes" validate:"gt=0"`
}

// CacheConfig selects the per-file analysis cache.
type CacheConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=memory badger"`
	Capacity  int    `yaml:"capacity" validate:"gt=0"`
	BadgerDir string `yaml:"badger_dir"`
}

// ResolutionConfig tunes symbol resolution.
type ResolutionConfig struct {
	// TrustImports resolves single-type imports nothing else knows.
	TrustImports bool `yaml:"trust_imports"`

	// TypePrecedence resolves conflicting node types by rank.
	TypePrecedence bool `yaml:"type_precedence"`

	// CatalogExtra adds library packages and their simple type names.
	CatalogExtra map[string][]string `yaml:"catalog_extra" validate:"dive,keys,required,endkeys,dive,required"`
}

// SweepConfig selects files for sweeps and the source index.
type SweepConfig struct {
	RespectGitignore bool     `yaml:"respect_gitignore"`
	Exclude          []string `yaml:"exclude" validate:"dive,required"`
}

// StagesConfig enables or disables analysis stages.
type StagesConfig struct {
	Disabled []string `yaml:"disabled" validate:"dive,stagename"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	Enabled            bool    `yaml:"enabled"`
	DebounceMS         int     `yaml:"debounce_ms" validate:"gte=0,lte=60000"`
	MaxEventsPerSecond float64 `yaml:"max_events_per_second" validate:"gt=0"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Port  int  `yaml:"port" validate:"min=1,max=65535"`
	Debug bool `yaml:"debug"`
}

// LogConfig configures the default slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=auto text json"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Traces       string `yaml:"traces" validate:"oneof=none stdout otlp"`
	Metrics      string `yaml:"metrics" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=Traces otlp"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	ServiceName  string `yaml:"service_name" validate:"required"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// validatorInstance returns the shared validator with custom rules.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("stagename", validateStageName)
	})
	return validate
}

// validateStageName accepts the names of the shipped stages, any case.
func validateStageName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	for _, known := range stages.Names() {
		if strings.EqualFold(name, known) {
			return true
		}
	}
	return false
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return &cfg, nil
}

// Load returns the effective configuration.
//
// Description:
//
//	Starts from the embedded defaults. If explicit is set the file must
//	exist and is overlaid. Otherwise <workspace>/depviz.config.yaml is
//	overlaid when present; its absence is not an error.
//
// Outputs:
//   - *Config: Validated configuration.
//   - error: Read, parse or ErrInvalidConfig failure.
func Load(workspace, explicit string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	path, required := explicit, true
	if path == "" {
		if workspace == "" {
			return cfg, cfg.Validate()
		}
		path, required = filepath.Join(workspace, WorkspaceFileName), false
	}

	data, err := readConfigFile(path)
	switch {
	case err == nil:
		if err := cfg.Overlay(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		slog.Debug("configuration loaded", slog.String("path", path))
	case !required && errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	default:
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("config %s exceeds maximum size (%d > %d)", path, info.Size(), MaxConfigFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return data, nil
}

// Overlay applies YAML data on top of cfg. Keys absent from data keep
// their current values; lists present in data replace the current list.
func (c *Config) Overlay(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validatorInstance().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
