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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	depviz "github.com/AleutianAI/DependViz/services/depviz"
	"github.com/AleutianAI/DependViz/services/depviz/graph"
	"github.com/AleutianAI/DependViz/services/depviz/symbols"
	"go.opentelemetry.io/otel/codes"
)

// ServiceFactory creates the analysis service for a workspace directory.
type ServiceFactory func(workspace string) (*depviz.Service, error)

// serverState tracks the LSP lifecycle.
type serverState int

const (
	stateUninitialized serverState = iota
	stateRunning
	stateShutdown
)

// Server is a language server exposing dependency graphs over stdio.
//
// Description:
//
//	Reads framed JSON-RPC messages from the client, keeps the per-file
//	analysis cache current from document notifications and answers the
//	dependviz/* requests. Notifications are handled in arrival order;
//	dependviz requests run concurrently.
//
// Thread Safety:
//
//	Run must be called once. Handlers may run concurrently with Run.
type Server struct {
	conn    *Conn
	factory ServiceFactory
	logger  *slog.Logger

	mu               sync.Mutex
	state            serverState
	svc              *depviz.Service
	shutdownReceived bool

	inflight sync.WaitGroup
}

// NewServer creates a server reading from r and writing to w.
//
// Inputs:
//   - r: Client input, usually stdin.
//   - w: Client output, usually stdout. Nothing else may write to it.
//   - factory: Creates the service once the workspace root is known.
func NewServer(r io.Reader, w io.Writer, factory ServiceFactory) *Server {
	return &Server{
		conn:    NewConn(r, w),
		factory: factory,
		logger:  slog.Default().With(slog.String("component", "lsp")),
	}
}

// Run serves messages until exit or end of input.
//
// Outputs:
//   - int: The process exit code. 0 when shutdown preceded exit, 1
//     otherwise.
//   - error: Non-nil when the input stream broke.
func (s *Server) Run(ctx context.Context) (int, error) {
	for {
		body, err := s.conn.Read()
		if err != nil {
			s.finish()
			if errors.Is(err, io.EOF) {
				s.logger.Info("client closed input")
				return s.exitCode(), nil
			}
			return 1, fmt.Errorf("read message: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(body, &msg); err != nil {
			s.replyError(json.RawMessage("null"), CodeParseError, "parse error: "+err.Error())
			continue
		}

		if msg.Method == MethodExit {
			s.finish()
			return s.exitCode(), nil
		}
		s.dispatch(ctx, &msg)
	}
}

// dispatch routes one message by lifecycle state and method.
func (s *Server) dispatch(ctx context.Context, msg *Message) {
	switch msg.Method {
	case MethodInitialize:
		s.track(ctx, msg, s.handleInitialize)
		return
	case MethodInitialized:
		return
	case MethodShutdown:
		s.track(ctx, msg, s.handleShutdown)
		return
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case stateUninitialized:
		if !msg.IsNotification() {
			s.replyError(msg.ID, CodeServerNotInitialized, "server not initialized")
		}
		return
	case stateShutdown:
		if !msg.IsNotification() {
			s.replyError(msg.ID, CodeInvalidRequest, "server is shutting down")
		}
		return
	}

	switch msg.Method {
	case MethodDidOpen:
		s.track(ctx, msg, s.handleDidOpen)
	case MethodDidChange:
		s.track(ctx, msg, s.handleDidChange)
	case MethodDidClose:
		s.track(ctx, msg, s.handleDidClose)
	case MethodDidSave:
		s.track(ctx, msg, s.handleDidSave)
	case MethodFileDependencyGraph:
		s.goTrack(ctx, msg, s.handleFileGraph)
	case MethodProjectDependencyGraph:
		s.goTrack(ctx, msg, s.handleProjectGraph)
	default:
		if msg.IsNotification() {
			s.logger.Debug("ignoring notification", slog.String("method", msg.Method))
			return
		}
		s.replyError(msg.ID, CodeMethodNotFound, "method not found: "+msg.Method)
	}
}

// track runs h inside a span and records its outcome.
func (s *Server) track(ctx context.Context, msg *Message, h func(context.Context, *Message) error) {
	ctx, span := startMessageSpan(ctx, msg.Method)
	defer span.End()

	start := time.Now()
	err := h(ctx, msg)
	recordMessage(ctx, msg.Method, time.Since(start), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// goTrack runs h on its own goroutine. shutdown and exit wait for it.
func (s *Server) goTrack(ctx context.Context, msg *Message, h func(context.Context, *Message) error) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.track(ctx, msg, h)
	}()
}

// finish waits for running requests and releases the service.
func (s *Server) finish() {
	s.inflight.Wait()

	s.mu.Lock()
	svc := s.svc
	s.mu.Unlock()
	if svc != nil {
		if err := svc.Shutdown(); err != nil {
			s.logger.Warn("service shutdown failed", slog.String("error", err.Error()))
		}
	}
}

func (s *Server) exitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdownReceived {
		return 0
	}
	return 1
}

func (s *Server) service() *depviz.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.svc
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func (s *Server) handleInitialize(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	if s.state != stateUninitialized {
		s.mu.Unlock()
		s.replyError(msg.ID, CodeInvalidRequest, "server already initialized")
		return errors.New("duplicate initialize")
	}
	s.state = stateRunning
	s.mu.Unlock()

	var params InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.replyError(msg.ID, CodeInvalidParams, err.Error())
			return fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
	}

	initErr := s.startService(ctx, &params)

	s.replyResult(msg.ID, InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
			},
		},
		ServerInfo: ServerInfo{Name: "depviz", Version: depviz.Version},
	})
	return initErr
}

// startService creates the service for the client's workspace. Failures
// are reported to the client and leave the server answering with empty
// graphs.
func (s *Server) startService(ctx context.Context, params *InitializeParams) error {
	root, err := params.WorkspaceRoot()
	if err == nil && strings.Contains(root, "://") {
		root, err = depviz.PathFromURI(root)
	}
	if err != nil {
		s.clientError(ctx, MethodInitialize, fmt.Sprintf("DependViz could not determine the workspace: %v", err))
		return err
	}

	svc, err := s.factory(root)
	if err != nil {
		s.clientError(ctx, MethodInitialize, fmt.Sprintf("DependViz failed to start for %s: %v", root, err))
		return err
	}

	s.mu.Lock()
	s.svc = svc
	s.mu.Unlock()

	s.logger.Info("workspace initialized",
		slog.String("workspace", svc.Workspace()),
		slog.String("source_root", svc.Engine().SourceRoot()))
	return nil
}

func (s *Server) handleShutdown(_ context.Context, msg *Message) error {
	s.mu.Lock()
	s.state = stateShutdown
	s.shutdownReceived = true
	s.mu.Unlock()

	s.finish()
	s.replyResult(msg.ID, nil)
	return nil
}

// =============================================================================
// DOCUMENT SYNCHRONIZATION
// =============================================================================

func (s *Server) handleDidOpen(ctx context.Context, msg *Message) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	uri := params.TextDocument.URI
	svc := s.service()
	if svc == nil || !symbols.IsJavaFile(uri) {
		return nil
	}

	var err error
	if params.TextDocument.Text != "" {
		_, err = svc.Change(ctx, uri, []byte(params.TextDocument.Text))
	} else {
		_, err = svc.Open(ctx, uri)
	}
	return s.reportDocumentError(ctx, msg.Method, uri, err)
}

func (s *Server) handleDidChange(ctx context.Context, msg *Message) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	uri := params.TextDocument.URI
	svc := s.service()
	if svc == nil || !symbols.IsJavaFile(uri) {
		return nil
	}

	// Full sync: the last change carries the whole document.
	var content []byte
	if n := len(params.ContentChanges); n > 0 {
		content = []byte(params.ContentChanges[n-1].Text)
	}
	_, err := svc.Change(ctx, uri, content)
	return s.reportDocumentError(ctx, msg.Method, uri, err)
}

func (s *Server) handleDidClose(ctx context.Context, msg *Message) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	uri := params.TextDocument.URI
	svc := s.service()
	if svc == nil || !symbols.IsJavaFile(uri) {
		return nil
	}
	return s.reportDocumentError(ctx, msg.Method, uri, svc.Close(uri))
}

// handleDidSave refreshes the saved file's entries in the source index so
// other files resolve against its new declarations.
func (s *Server) handleDidSave(ctx context.Context, msg *Message) error {
	var params DidSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	uri := params.TextDocument.URI
	svc := s.service()
	if svc == nil || !symbols.IsJavaFile(uri) {
		return nil
	}

	path, err := depviz.PathFromURI(uri)
	if err != nil {
		return s.reportDocumentError(ctx, msg.Method, uri, err)
	}
	if _, err := svc.Engine().Reindex(ctx, path); err != nil {
		s.logger.Warn("reindex failed", slog.String("path", path), slog.String("error", err.Error()))
	}

	if params.Text != nil {
		_, err = svc.Change(ctx, uri, []byte(*params.Text))
	}
	return s.reportDocumentError(ctx, msg.Method, uri, err)
}

// reportDocumentError logs err and forwards it to the client.
func (s *Server) reportDocumentError(ctx context.Context, method, uri string, err error) error {
	if err == nil {
		return nil
	}
	s.logger.Warn("document update failed",
		slog.String("method", method),
		slog.String("uri", uri),
		slog.String("error", err.Error()))
	s.clientError(ctx, method, fmt.Sprintf("DependViz failed to analyze %s: %v", uri, err))
	return err
}

// =============================================================================
// DEPENDVIZ REQUESTS
// =============================================================================

// handleFileGraph answers dependviz/getFileDependencyGraph with the wire
// graph serialized as a JSON string. Failures produce the empty graph and
// a logMessage.
func (s *Server) handleFileGraph(ctx context.Context, msg *Message) error {
	uri, err := decodeDocumentURI(msg.Params)
	if err != nil {
		s.replyError(msg.ID, CodeInvalidParams, err.Error())
		return err
	}

	svc := s.service()
	if svc == nil {
		s.clientError(ctx, msg.Method, "DependViz is not initialized for this workspace")
		s.replyGraph(msg.ID, graph.EmptyWire())
		return ErrNoWorkspace
	}

	g, err := svc.FileGraph(ctx, uri)
	if err != nil {
		s.clientError(ctx, msg.Method, fmt.Sprintf("Failed to build dependency graph for %s: %v", uri, err))
		s.replyGraph(msg.ID, graph.EmptyWire())
		return err
	}
	s.replyGraph(msg.ID, g.ToWire())
	return nil
}

// handleProjectGraph answers dependviz/getProjectDependencyGraph with the
// graph of the whole source root.
func (s *Server) handleProjectGraph(ctx context.Context, msg *Message) error {
	svc := s.service()
	if svc == nil {
		s.clientError(ctx, msg.Method, "DependViz is not initialized for this workspace")
		s.replyGraph(msg.ID, graph.EmptyWire())
		return ErrNoWorkspace
	}

	g, err := svc.ProjectGraph(ctx)
	if err != nil {
		s.clientError(ctx, msg.Method, fmt.Sprintf("Failed to build project dependency graph: %v", err))
		s.replyGraph(msg.ID, graph.EmptyWire())
		return err
	}
	s.replyGraph(msg.ID, g.ToWire())
	return nil
}

// =============================================================================
// OUTPUT
// =============================================================================

// replyGraph sends w as a JSON string result.
func (s *Server) replyGraph(id json.RawMessage, w *graph.WireGraph) {
	data, err := json.Marshal(w)
	if err != nil {
		s.replyError(id, CodeInternalError, err.Error())
		return
	}
	s.replyResult(id, string(data))
}

func (s *Server) replyResult(id json.RawMessage, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		s.replyError(id, CodeInternalError, err.Error())
		return
	}
	raw := json.RawMessage(data)
	s.write(Response{JSONRPC: JSONRPCVersion, ID: id, Result: &raw})
}

func (s *Server) replyError(id json.RawMessage, code int, message string) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	s.write(Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &ResponseError{Code: code, Message: message},
	})
}

// clientError shows message to the user with window/logMessage.
func (s *Server) clientError(ctx context.Context, method, message string) {
	recordClientError(ctx, method)
	s.write(Notification{
		JSONRPC: JSONRPCVersion,
		Method:  MethodLogMessage,
		Params:  LogMessageParams{Type: MessageTypeError, Message: message},
	})
}

func (s *Server) write(v any) {
	if err := s.conn.Write(v); err != nil {
		s.logger.Error("write to client failed", slog.String("error", err.Error()))
	}
}
