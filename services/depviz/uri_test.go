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
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURIRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix paths")
	}
	path := "/work/my project/src/A.java"
	uri := URIFromPath(path)
	assert.Equal(t, "file:///work/my%20project/src/A.java", uri)

	back, err := PathFromURI(uri)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(path), back)
}

func TestPathFromURI_Errors(t *testing.T) {
	_, err := PathFromURI("untitled:Untitled-1")
	assert.ErrorIs(t, err, ErrUnsupportedURI)

	_, err = PathFromURI("http://example.com/A.java")
	assert.ErrorIs(t, err, ErrUnsupportedURI)
}

func TestNormalizeDocument(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix paths")
	}
	got, err := normalizeDocument("file:///w/src/../src/A.java")
	require.NoError(t, err)
	assert.Equal(t, "/w/src/A.java", got)

	got, err = normalizeDocument("/w/B.JAVA")
	require.NoError(t, err)
	assert.Equal(t, "/w/B.JAVA", got)

	_, err = normalizeDocument("/w/build.gradle")
	assert.ErrorIs(t, err, ErrNotJavaFile)
}
