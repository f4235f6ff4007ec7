// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import (
	"errors"
	"fmt"
)

// JSON-RPC and LSP error codes.
const (
	CodeParseError           = -32700
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInvalidParams        = -32602
	CodeInternalError        = -32603
	CodeServerNotInitialized = -32002
)

// Sentinel errors for the language server.
var (
	// ErrMissingContentLength indicates a message header without a usable
	// Content-Length.
	ErrMissingContentLength = errors.New("missing or zero Content-Length header")

	// ErrInvalidParams indicates request parameters that could not be decoded.
	ErrInvalidParams = errors.New("invalid params")

	// ErrNoWorkspace indicates initialize carried no workspace folder,
	// root URI or root path.
	ErrNoWorkspace = errors.New("no workspace root in initialize params")
)

// ResponseError is a JSON-RPC error object.
type ResponseError struct {
	// Code is the JSON-RPC error code.
	Code int `json:"code"`

	// Message is a short description of the error.
	Message string `json:"message"`

	// Data contains additional error information.
	Data any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}
