// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for file analysis.
var (
	// ErrFileNotAnalyzable indicates a whole-file failure: the file could
	// not be read or parsed, so no stage ran and no graph was produced.
	ErrFileNotAnalyzable = errors.New("file not analyzable")
)

// FileAnalysisError reports a whole-file failure.
//
// errors.Is(err, ErrFileNotAnalyzable) holds for every FileAnalysisError;
// the Cause is reachable through Unwrap (e.g. ast.ErrSyntax, fs.ErrNotExist).
type FileAnalysisError struct {
	// Path is the file that failed.
	Path string

	// Cause is the read or parse error.
	Cause error
}

// Error formats the error with its path.
func (e *FileAnalysisError) Error() string {
	return fmt.Sprintf("analyze %s: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *FileAnalysisError) Unwrap() error {
	return e.Cause
}

// Is reports true for ErrFileNotAnalyzable.
func (e *FileAnalysisError) Is(target error) bool {
	return target == ErrFileNotAnalyzable
}
