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

package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type contextKey string

const (
	handlerKey contextKey = "log.handler"
	filterKey  contextKey = "log.filter"
	scopeKey   contextKey = "log.scope"
	valuesKey  contextKey = "log.values"
)

// Message is a single log record handed to a Handler.
type Message struct {
	Time     time.Time
	Severity Severity
	Scope    string
	Text     string
	Values   []Value
}

// Value is a named value attached to a message.
type Value struct {
	Name  string
	Value interface{}
}

// Handler is the interface implemented by types that process log messages.
type Handler interface {
	Handle(m Message)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(m Message)

// Handle calls f with m.
func (f HandlerFunc) Handle(m Message) { f(m) }

var (
	defaultMutex   sync.RWMutex
	defaultHandler Handler = writerHandler{os.Stderr}
)

// SetDefaultHandler replaces the process-wide fallback handler used when the
// context carries none.
func SetDefaultHandler(h Handler) {
	defaultMutex.Lock()
	defer defaultMutex.Unlock()
	defaultHandler = h
}

type writerHandler struct{ w io.Writer }

func (h writerHandler) Handle(m Message) {
	line := &strings.Builder{}
	fmt.Fprintf(line, "%s %s", m.Time.Format("15:04:05.000"), m.Severity.Short())
	if m.Scope != "" {
		fmt.Fprintf(line, " [%s]", m.Scope)
	}
	fmt.Fprintf(line, " %s", m.Text)
	for _, v := range m.Values {
		fmt.Fprintf(line, " %s=%v", v.Name, v.Value)
	}
	fmt.Fprintln(h.w, line.String())
}

// NewWriterHandler returns a Handler that formats messages to w.
func NewWriterHandler(w io.Writer) Handler { return writerHandler{w} }

// PutHandler returns a context with h attached as the message handler.
func PutHandler(ctx context.Context, h Handler) context.Context {
	return context.WithValue(ctx, handlerKey, h)
}

// PutFilter returns a context that drops messages below min severity.
func PutFilter(ctx context.Context, min Severity) context.Context {
	return context.WithValue(ctx, filterKey, min)
}

// Enter returns a context with name appended to the logging scope.
func Enter(ctx context.Context, name string) context.Context {
	if scope := scopeOf(ctx); scope != "" {
		name = scope + "." + name
	}
	return context.WithValue(ctx, scopeKey, name)
}

// V is a map of name to value pairs that can be bound to a context, attaching
// the values to every message logged through it.
type V map[string]interface{}

// Bind returns a context carrying the values of v.
func (v V) Bind(ctx context.Context) context.Context {
	values := append([]Value{}, valuesOf(ctx)...)
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values = append(values, Value{name, v[name]})
	}
	return context.WithValue(ctx, valuesKey, values)
}

func handlerOf(ctx context.Context) Handler {
	if h, ok := ctx.Value(handlerKey).(Handler); ok {
		return h
	}
	defaultMutex.RLock()
	defer defaultMutex.RUnlock()
	return defaultHandler
}

func filterOf(ctx context.Context) Severity {
	if s, ok := ctx.Value(filterKey).(Severity); ok {
		return s
	}
	return Info
}

func scopeOf(ctx context.Context) string {
	if s, ok := ctx.Value(scopeKey).(string); ok {
		return s
	}
	return ""
}

func valuesOf(ctx context.Context) []Value {
	if v, ok := ctx.Value(valuesKey).([]Value); ok {
		return v
	}
	return nil
}

func emit(ctx context.Context, s Severity, format string, args ...interface{}) {
	if s < filterOf(ctx) {
		return
	}
	handlerOf(ctx).Handle(Message{
		Time:     time.Now(),
		Severity: s,
		Scope:    scopeOf(ctx),
		Text:     fmt.Sprintf(format, args...),
		Values:   valuesOf(ctx),
	})
}
