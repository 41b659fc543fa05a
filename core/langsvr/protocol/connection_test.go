// Copyright (C) 2024 The gscls Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeStream couples a scripted client input with a capture buffer for the
// server's output.
type pipeStream struct {
	in  io.Reader
	mu  sync.Mutex
	out bytes.Buffer
}

func (s *pipeStream) Read(p []byte) (int, error) { return s.in.Read(p) }

func (s *pipeStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Write(p)
}

func (s *pipeStream) output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.String()
}

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

type echoHandler struct {
	notified chan string
}

func (h *echoHandler) Request(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	if method == "boom" {
		return nil, fmt.Errorf("kaput")
	}
	return map[string]string{"method": method}, nil
}

func (h *echoHandler) Notification(ctx context.Context, method string, params json.RawMessage) {
	h.notified <- method
}

func TestServeRequestResponse(t *testing.T) {
	input := frame(`{"jsonrpc":"2.0","id":1,"method":"ping"}`) +
		frame(`{"jsonrpc":"2.0","method":"note"}`)
	stream := &pipeStream{in: strings.NewReader(input)}
	h := &echoHandler{notified: make(chan string, 1)}

	conn := NewConnection(stream)
	err := conn.Serve(context.Background(), h)
	assert.Equal(t, ErrStopped, err)

	assert.Equal(t, "note", <-h.notified)

	// The response is framed and carries the result. The request handler
	// runs on its own goroutine; poll until the write lands.
	var out string
	for i := 0; i < 100; i++ {
		if out = stream.output(); strings.Contains(out, `"result"`) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.Contains(t, out, "Content-Length: ")
	assert.Contains(t, out, `"method":"ping"`)
}

func TestErrorResponse(t *testing.T) {
	input := frame(`{"jsonrpc":"2.0","id":7,"method":"boom"}`)
	stream := &pipeStream{in: strings.NewReader(input)}
	h := &echoHandler{notified: make(chan string, 1)}

	conn := NewConnection(stream)
	conn.Serve(context.Background(), h)

	var out string
	for i := 0; i < 100; i++ {
		if out = stream.output(); strings.Contains(out, "kaput") {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.Contains(t, out, `"error"`)
	assert.Contains(t, out, "kaput")
}

func TestPublishDiagnostics(t *testing.T) {
	stream := &pipeStream{in: strings.NewReader("")}
	conn := NewConnection(stream)

	require.NoError(t, conn.PublishDiagnostics("file:///a.gsc", nil))
	out := stream.output()
	assert.Contains(t, out, "textDocument/publishDiagnostics")
	assert.Contains(t, out, `"diagnostics":[]`)
}

func TestReadPacketRejectsMissingLength(t *testing.T) {
	stream := &pipeStream{in: strings.NewReader("\r\n{}")}
	conn := NewConnection(stream)
	_, err := conn.readPacket()
	assert.Error(t, err)
}
