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

// Package log provides a context bound logging system.
//
// Handlers, severity filters, scopes and tagged values are all carried on the
// context, so a single context argument threads the full logging state
// through call chains:
//
//	ctx = log.Enter(ctx, "parse")
//	ctx = log.V{"file": path}.Bind(ctx)
//	log.W(ctx, "unbalanced braces at %v", pos)
package log

import (
	"context"
	"fmt"
)

// D logs a debug message to the context's handler.
func D(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, Debug, format, args...)
}

// I logs an informational message to the context's handler.
func I(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, Info, format, args...)
}

// W logs a warning message to the context's handler.
func W(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, Warning, format, args...)
}

// E logs an error message to the context's handler.
func E(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, Error, format, args...)
}

// F logs a fatal message to the context's handler.
func F(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, Fatal, format, args...)
}

// Err logs the message and cause as an error, and returns an error that
// carries both. If cause is nil, the returned error wraps just the message.
func Err(ctx context.Context, cause error, msg string) error {
	if cause != nil {
		E(ctx, "%s: %v", msg, cause)
		return fmt.Errorf("%s: %w", msg, cause)
	}
	E(ctx, "%s", msg)
	return fmt.Errorf("%s", msg)
}

// Errf logs and returns a formatted error.
func Errf(ctx context.Context, cause error, format string, args ...interface{}) error {
	return Err(ctx, cause, fmt.Sprintf(format, args...))
}
