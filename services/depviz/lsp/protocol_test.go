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
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConn_WriteThenRead(t *testing.T) {
	var buf bytes.Buffer
	conn := NewConn(&buf, &buf)

	require.NoError(t, conn.Write(Notification{
		JSONRPC: JSONRPCVersion,
		Method:  MethodLogMessage,
		Params:  LogMessageParams{Type: MessageTypeInfo, Message: "héllo"},
	}))
	assert.True(t, strings.HasPrefix(buf.String(), "Content-Length: "))

	body, err := conn.Read()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, MethodLogMessage, msg.Method)
	assert.True(t, msg.IsNotification())

	_, err = conn.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_ReadHeaders(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":7,"method":"shutdown"}`

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:  "lower case header",
			input: "content-length: 44\r\n\r\n" + body,
		},
		{
			name:  "content type ignored",
			input: "Content-Type: application/vscode-jsonrpc; charset=utf-8\r\nContent-Length: 44\r\n\r\n" + body,
		},
		{
			name:    "missing length",
			input:   "Content-Type: x\r\n\r\n" + body,
			wantErr: ErrMissingContentLength,
		},
		{
			name:    "zero length",
			input:   "Content-Length: 0\r\n\r\n",
			wantErr: ErrMissingContentLength,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := NewConn(strings.NewReader(tt.input), io.Discard)
			got, err := conn.Read()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			var msg Message
			require.NoError(t, json.Unmarshal(got, &msg))
			assert.Equal(t, "7", string(msg.ID))
			assert.False(t, msg.IsNotification())
		})
	}
}

func TestConn_TruncatedBody(t *testing.T) {
	conn := NewConn(strings.NewReader("Content-Length: 50\r\n\r\n{}"), io.Discard)
	_, err := conn.Read()
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestResponse_NullResult(t *testing.T) {
	null := json.RawMessage("null")
	data, err := json.Marshal(Response{JSONRPC: JSONRPCVersion, ID: json.RawMessage("1"), Result: &null})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":null}`, string(data))
}
