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
	"net/url"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/AleutianAI/DependViz/services/depviz/symbols"
)

// PathFromURI converts a file:// document URI to an absolute path.
//
// Percent-encoded characters are decoded. On Windows the leading slash
// before a drive letter is dropped.
func PathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedURI, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: scheme %q", ErrUnsupportedURI, u.Scheme)
	}
	p := u.Path
	if runtime.GOOS == "windows" && len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.Clean(filepath.FromSlash(p)), nil
}

// URIFromPath converts a path to a file:// URI.
func URIFromPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	slashed := filepath.ToSlash(abs)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String()
}

// normalizeDocument turns a path or file URI into the absolute path used
// as the cache key, rejecting anything that is not a .java file.
func normalizeDocument(pathOrURI string) (string, error) {
	if pathOrURI == "" {
		return "", fmt.Errorf("%w: empty path", ErrNotJavaFile)
	}

	var (
		path string
		err  error
	)
	if strings.Contains(pathOrURI, "://") {
		path, err = PathFromURI(pathOrURI)
	} else {
		path, err = filepath.Abs(pathOrURI)
	}
	if err != nil {
		return "", err
	}
	if !symbols.IsJavaFile(path) {
		return "", fmt.Errorf("%w: %s", ErrNotJavaFile, path)
	}
	return path, nil
}
