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

import "errors"

// Sentinel errors for the request service.
var (
	// ErrNotJavaFile indicates a path that does not name a .java file.
	ErrNotJavaFile = errors.New("not a java source file")

	// ErrUnsupportedURI indicates a document URI with a scheme other
	// than file.
	ErrUnsupportedURI = errors.New("unsupported document uri")

	// ErrServiceClosed indicates the service was used after Shutdown.
	ErrServiceClosed = errors.New("service closed")

	// ErrSweepInProgress indicates a second sweep was requested while one
	// is running.
	ErrSweepInProgress = errors.New("sweep already in progress")
)
