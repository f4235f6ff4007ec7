// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("embedded defaults invalid: %v", err)
	}
	if len(cfg.SourceRoots) != 1 || cfg.SourceRoots[0] != "src/main/java" {
		t.Errorf("source_roots = %v", cfg.SourceRoots)
	}
	if cfg.Cache.Backend != "memory" || cfg.Cache.Capacity != 512 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Resolution.TrustImports {
		t.Error("trust_imports should default to false")
	}
	if !cfg.Sweep.RespectGitignore {
		t.Error("respect_gitignore should default to true")
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("level = %v", cfg.SlogLevel())
	}
}

func TestLoad_WorkspaceFileOptional(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Load without workspace file: %v", err)
	}
	if cfg.HTTP.Port != 12218 {
		t.Errorf("port = %d, want default", cfg.HTTP.Port)
	}
}

func TestLoad_WorkspaceOverlay(t *testing.T) {
	ws := t.TempDir()
	overlay := `
workers: 4
cache:
  backend: badger
resolution:
  trust_imports: true
  catalog_extra:
    org.slf4j: [Logger, LoggerFactory]
stages:
  disabled: [linesofcode]
log:
  level: debug
`
	if err := os.WriteFile(filepath.Join(ws, WorkspaceFileName), []byte(overlay), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(ws, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 4 || cfg.Cache.Backend != "badger" || !cfg.Resolution.TrustImports {
		t.Errorf("overlay not applied: %+v", cfg)
	}
	// Keys absent from the overlay keep their defaults.
	if cfg.Cache.Capacity != 512 || cfg.HTTP.Port != 12218 {
		t.Errorf("defaults lost: cache=%+v http=%+v", cfg.Cache, cfg.HTTP)
	}
	if got := cfg.Resolution.CatalogExtra["org.slf4j"]; len(got) != 2 {
		t.Errorf("catalog_extra = %v", cfg.Resolution.CatalogExtra)
	}
	if len(cfg.Stages.Disabled) != 1 || cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("stages=%v level=%v", cfg.Stages.Disabled, cfg.SlogLevel())
	}
}

func TestLoad_ExplicitFileRequired(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		field   string
		invalid bool
	}{
		{"bad backend", "cache:\n  backend: redis\n", "Backend", true},
		{"bad port", "http:\n  port: 70000\n", "Port", true},
		{"unknown stage", "stages:\n  disabled: [Nope]\n", "Disabled", true},
		{"otlp without endpoint", "telemetry:\n  traces: otlp\n  otlp_endpoint: \"\"\n", "OTLPEndpoint", true},
		{"empty source roots", "source_roots: []\n", "SourceRoots", true},
		{"malformed yaml", "workers: [\n", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load("", path)
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrInvalidConfig) != tt.invalid {
				t.Errorf("errors.Is(ErrInvalidConfig) = %v, want %v (err: %v)", !tt.invalid, tt.invalid, err)
			}
			if tt.field != "" && !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}
