// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package symbols

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultSourceRoots are the conventional source directories searched for
// above a workspace root, in order.
var DefaultSourceRoots = []string{"src/main/java"}

// FindSourceRoot walks upward from workspace looking for one of candidates.
//
// Description:
//
//	At each directory from workspace to the filesystem root, the candidates
//	are tried in order; the first existing directory wins.
//
// Outputs:
//   - string: Absolute path of the source root.
//   - error: ErrSourceRootNotFound if no candidate exists at any level.
func FindSourceRoot(workspace string, candidates []string) (string, error) {
	if len(candidates) == 0 {
		candidates = DefaultSourceRoots
	}
	current, err := filepath.Abs(workspace)
	if err != nil {
		return "", err
	}
	for {
		for _, rel := range candidates {
			candidate := filepath.Join(current, filepath.FromSlash(rel))
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrSourceRootNotFound
		}
		current = parent
	}
}

// DiscoverOptions selects which files DiscoverSources returns.
type DiscoverOptions struct {
	// Exclude holds gitignore-style patterns relative to the root.
	Exclude []string

	// RespectGitignore also applies <root>/.gitignore when present.
	RespectGitignore bool
}

// DiscoverSources returns every .java file under root in lexical order.
//
// Description:
//
//	Hidden directories are always skipped. Unreadable entries are skipped
//	with a debug log; only cancellation aborts the walk.
//
// Outputs:
//   - []string: Absolute file paths.
//   - error: ctx.Err() on cancellation, or a walk error for root itself.
func DiscoverSources(ctx context.Context, root string, opts DiscoverOptions) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	matchers := make([]*ignore.GitIgnore, 0, 2)
	if len(opts.Exclude) > 0 {
		matchers = append(matchers, ignore.CompileIgnoreLines(opts.Exclude...))
	}
	if opts.RespectGitignore {
		gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
		switch {
		case err == nil:
			matchers = append(matchers, gi)
		case !errors.Is(err, fs.ErrNotExist):
			slog.Warn("ignoring unreadable .gitignore",
				slog.String("root", root),
				slog.String("error", err.Error()))
		}
	}
	ignored := func(rel string, dir bool) bool {
		for _, m := range matchers {
			if m.MatchesPath(rel) || (dir && m.MatchesPath(rel+"/")) {
				return true
			}
		}
		return false
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			slog.Debug("skipping unreadable path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsJavaFile(path) || ignored(rel, false) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// IsJavaFile reports whether path names a Java source file.
func IsJavaFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".java")
}
