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
	"encoding/json"
	"fmt"
	"strings"
)

// LSP method names handled by the server.
const (
	MethodInitialize             = "initialize"
	MethodInitialized            = "initialized"
	MethodShutdown               = "shutdown"
	MethodExit                   = "exit"
	MethodDidOpen                = "textDocument/didOpen"
	MethodDidChange              = "textDocument/didChange"
	MethodDidClose               = "textDocument/didClose"
	MethodDidSave                = "textDocument/didSave"
	MethodLogMessage             = "window/logMessage"
	MethodFileDependencyGraph    = "dependviz/getFileDependencyGraph"
	MethodProjectDependencyGraph = "dependviz/getProjectDependencyGraph"
)

// TextDocumentSyncKindFull sends the whole document on every change.
const TextDocumentSyncKindFull = 1

// MessageType is the severity of a window/logMessage notification.
type MessageType int

const (
	MessageTypeError   MessageType = 1
	MessageTypeWarning MessageType = 2
	MessageTypeInfo    MessageType = 3
	MessageTypeLog     MessageType = 4
)

// InitializeParams holds the fields of initialize the server uses.
type InitializeParams struct {
	ProcessID        *int              `json:"processId"`
	RootURI          *string           `json:"rootUri,omitempty"`
	RootPath         *string           `json:"rootPath,omitempty"`
	WorkspaceFolders []WorkspaceFolder `json:"workspaceFolders,omitempty"`
}

// WorkspaceFolder is one folder of a multi-root workspace.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// WorkspaceRoot picks the workspace root: the first workspace folder, then
// rootUri, then the deprecated rootPath.
func (p *InitializeParams) WorkspaceRoot() (string, error) {
	if len(p.WorkspaceFolders) > 0 && p.WorkspaceFolders[0].URI != "" {
		return p.WorkspaceFolders[0].URI, nil
	}
	if p.RootURI != nil && *p.RootURI != "" {
		return *p.RootURI, nil
	}
	if p.RootPath != nil && *p.RootPath != "" {
		return *p.RootPath, nil
	}
	return "", ErrNoWorkspace
}

// InitializeResult is the response to initialize.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   ServerInfo         `json:"serverInfo"`
}

// ServerCapabilities advertises what the server supports.
type ServerCapabilities struct {
	TextDocumentSync TextDocumentSyncOptions `json:"textDocumentSync"`
}

// TextDocumentSyncOptions describes document synchronization.
type TextDocumentSyncOptions struct {
	OpenClose bool `json:"openClose"`
	Change    int  `json:"change"`
}

// ServerInfo names the server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// TextDocumentIdentifier names a document.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// TextDocumentItem is an opened document.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// DidOpenTextDocumentParams is sent with textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// TextDocumentContentChangeEvent carries full text under full sync.
type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

// DidChangeTextDocumentParams is sent with textDocument/didChange.
type DidChangeTextDocumentParams struct {
	TextDocument   TextDocumentIdentifier           `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// DidCloseTextDocumentParams is sent with textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidSaveTextDocumentParams is sent with textDocument/didSave.
type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         *string                `json:"text,omitempty"`
}

// LogMessageParams is sent with window/logMessage.
type LogMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// decodeDocumentURI reads the document URI of a dependviz request.
//
// Accepted forms: "uri", ["uri"], {"uri": "..."} and
// {"textDocument": {"uri": "..."}}.
func decodeDocumentURI(params json.RawMessage) (string, error) {
	raw := strings.TrimSpace(string(params))
	if raw == "" {
		return "", fmt.Errorf("%w: missing uri", ErrInvalidParams)
	}

	var uri string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(params, &uri); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
	case '[':
		var list []string
		if err := json.Unmarshal(params, &list); err != nil || len(list) == 0 {
			return "", fmt.Errorf("%w: expected [uri]", ErrInvalidParams)
		}
		uri = list[0]
	case '{':
		var obj struct {
			URI          string                  `json:"uri"`
			TextDocument *TextDocumentIdentifier `json:"textDocument"`
		}
		if err := json.Unmarshal(params, &obj); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		uri = obj.URI
		if uri == "" && obj.TextDocument != nil {
			uri = obj.TextDocument.URI
		}
	}
	if uri == "" {
		return "", fmt.Errorf("%w: missing uri", ErrInvalidParams)
	}
	return uri, nil
}
