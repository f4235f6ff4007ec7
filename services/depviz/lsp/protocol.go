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
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// JSONRPCVersion is the JSON-RPC version used by LSP.
const JSONRPCVersion = "2.0"

// =============================================================================
// JSON-RPC MESSAGE TYPES
// =============================================================================

// Message is any incoming JSON-RPC message. A message without an ID is a
// notification.
type Message struct {
	// JSONRPC is the protocol version, always "2.0".
	JSONRPC string `json:"jsonrpc"`

	// ID is the request identifier, a number or a string. Absent for
	// notifications.
	ID json.RawMessage `json:"id,omitempty"`

	// Method is the method to invoke.
	Method string `json:"method"`

	// Params contains the raw method parameters.
	Params json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the message expects no response.
func (m *Message) IsNotification() bool {
	return len(m.ID) == 0
}

// Response is an outgoing JSON-RPC response.
type Response struct {
	// JSONRPC is the protocol version, always "2.0".
	JSONRPC string `json:"jsonrpc"`

	// ID echoes the request identifier; null when it could not be read.
	ID json.RawMessage `json:"id"`

	// Result is present on success, possibly as JSON null.
	Result *json.RawMessage `json:"result,omitempty"`

	// Error is present on failure.
	Error *ResponseError `json:"error,omitempty"`
}

// Notification is an outgoing JSON-RPC notification.
type Notification struct {
	// JSONRPC is the protocol version, always "2.0".
	JSONRPC string `json:"jsonrpc"`

	// Method is the notification method.
	Method string `json:"method"`

	// Params contains the method parameters.
	Params any `json:"params,omitempty"`
}

// =============================================================================
// FRAMING
// =============================================================================

// Conn reads and writes Content-Length framed JSON-RPC messages.
//
// Thread Safety:
//
//	Read must be called from one goroutine. Write is safe for concurrent
//	use.
type Conn struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex
}

// NewConn creates a connection over r and w.
func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{reader: bufio.NewReader(r), writer: w}
}

// Read returns the body of the next message.
//
// Outputs:
//   - json.RawMessage: The message body.
//   - error: io.EOF at end of input, ErrMissingContentLength, or a read
//     failure.
func (c *Conn) Read() (json.RawMessage, error) {
	contentLength := -1

	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)

		// Empty line marks end of headers
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			// Content-Type and unknown headers are ignored.
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Content-Length value %q", value)
		}
		contentLength = n
	}

	if contentLength <= 0 {
		return nil, ErrMissingContentLength
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// Write marshals v and writes it with a Content-Length header.
func (c *Conn) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := io.WriteString(c.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}
