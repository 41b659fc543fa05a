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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/gscode/gscls/core/app/crash"
	"github.com/gscode/gscls/core/event/task"
	"github.com/gscode/gscls/core/fault"
	"github.com/gscode/gscls/core/log"
)

const (
	// ErrStopped is returned by Serve when the peer closes the stream.
	ErrStopped = fault.Const("stopped")
)

// Handler processes decoded messages. Requests return a result or an
// error; notifications return nothing.
type Handler interface {
	// Request handles a request. The context is cancelled if the client
	// sends $/cancelRequest for the request's id.
	Request(ctx context.Context, method string, params json.RawMessage) (interface{}, error)

	// Notification handles a notification.
	Notification(ctx context.Context, method string, params json.RawMessage)
}

// Connection speaks JSON-RPC 2.0 with Content-Length framing over a byte
// stream.
type Connection struct {
	reader *bufio.Reader

	writeMu sync.Mutex
	writer  io.Writer

	cancelMu sync.Mutex
	cancels  map[string]task.CancelFunc
}

// NewConnection wraps a client stream.
func NewConnection(stream io.ReadWriter) *Connection {
	return &Connection{
		reader:  bufio.NewReader(stream),
		writer:  stream,
		cancels: map[string]task.CancelFunc{},
	}
}

// Serve reads messages until the stream closes or ctx is cancelled.
// Requests are dispatched on their own goroutines so slow features never
// block the read loop; each URI's work is serialized further down by the
// script manager's locks.
func (c *Connection) Serve(ctx context.Context, h Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf, err := c.readPacket()
		if err != nil {
			if err == io.EOF {
				return ErrStopped
			}
			return err
		}

		var msg Message
		if err := json.Unmarshal(buf, &msg); err != nil {
			log.W(ctx, "malformed packet: %v", err)
			continue
		}

		switch {
		case msg.Method == "$/cancelRequest":
			c.cancel(msg.Params)

		case msg.ID != nil && msg.Method != "":
			c.serveRequest(ctx, h, msg)

		case msg.Method != "":
			h.Notification(ctx, msg.Method, msg.Params)

		default:
			// A response to a server originated request; none are tracked.
		}
	}
}

func (c *Connection) serveRequest(ctx context.Context, h Handler, msg Message) {
	id := string(*msg.ID)
	rctx, cancel := task.WithCancel(ctx)
	c.cancelMu.Lock()
	c.cancels[id] = cancel
	c.cancelMu.Unlock()

	crash.Go(func() {
		defer func() {
			c.cancelMu.Lock()
			delete(c.cancels, id)
			c.cancelMu.Unlock()
			cancel()
		}()

		result, err := h.Request(rctx, msg.Method, msg.Params)
		resp := Message{JSONRPC: "2.0", ID: msg.ID}
		switch {
		case task.Stopped(rctx):
			resp.Error = &ResponseError{Code: RequestCancelled, Message: "request cancelled"}
		case err != nil:
			if re, ok := err.(*ResponseError); ok {
				resp.Error = re
			} else {
				resp.Error = &ResponseError{Code: InternalError, Message: err.Error()}
			}
		default:
			resp.Result = result
		}
		if err := c.send(resp); err != nil {
			log.W(ctx, "failed to send response: %v", err)
		}
	})
}

func (c *Connection) cancel(params json.RawMessage) {
	var p CancelParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	if cancel, ok := c.cancels[string(p.ID)]; ok {
		cancel()
	}
}

// Notify sends a server originated notification.
func (c *Connection) Notify(method string, params interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return c.send(Message{JSONRPC: "2.0", Method: method, Params: raw})
}

// PublishDiagnostics sends the diagnostics set for a document revision.
func (c *Connection) PublishDiagnostics(uri string, diagnostics []Diagnostic) error {
	if diagnostics == nil {
		diagnostics = []Diagnostic{}
	}
	return c.Notify("textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// LogMessage asks the client to log a message.
func (c *Connection) LogMessage(ty int, message string) error {
	return c.Notify("window/logMessage", LogMessageParams{Type: ty, Message: message})
}

// ShowMessage asks the client to display a message.
func (c *Connection) ShowMessage(ty int, message string) error {
	return c.Notify("window/showMessage", ShowMessageParams{Type: ty, Message: message})
}

// readPacket reads one Content-Length framed payload.
func (c *Connection) readPacket() ([]byte, error) {
	length := -1
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok {
			if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
				length, err = strconv.Atoi(strings.TrimSpace(value))
				if err != nil {
					return nil, fmt.Errorf("bad Content-Length: %v", err)
				}
			}
		}
	}
	if length < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(c.reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *Connection) send(msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := fmt.Fprintf(c.writer, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err = c.writer.Write(body)
	return err
}
