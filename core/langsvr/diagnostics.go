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

package langsvr

import "github.com/gscode/gscls/core/langsvr/protocol"

// Diagnostics is a list of Diagnostic.
type Diagnostics []Diagnostic

// Error appends an error diagnostic at rng.
func (l *Diagnostics) Error(rng Range, msg string) {
	*l = append(*l, Diagnostic{Range: rng, Severity: SeverityError, Message: msg})
}

// Warning appends a warning diagnostic at rng.
func (l *Diagnostics) Warning(rng Range, msg string) {
	*l = append(*l, Diagnostic{Range: rng, Severity: SeverityWarning, Message: msg})
}

// Info appends an info diagnostic at rng.
func (l *Diagnostics) Info(rng Range, msg string) {
	*l = append(*l, Diagnostic{Range: rng, Severity: SeverityInformation, Message: msg})
}

// Hint appends a hint diagnostic at rng.
func (l *Diagnostics) Hint(rng Range, msg string) {
	*l = append(*l, Diagnostic{Range: rng, Severity: SeverityHint, Message: msg})
}

// Diagnostic represents a compiler diagnostic, such as a warning or error.
type Diagnostic struct {
	// The range at which the message applies.
	Range Range

	// The diagnostic's severity.
	Severity Severity

	// The diagnostic's message.
	Message string

	// The diagnostic's code (optional).
	Code string

	// The source of the diagnostic.
	Source string

	// Unnecessary marks the range as dead code for the client to fade.
	Unnecessary bool
}

func (d Diagnostic) toProtocol() protocol.Diagnostic {
	out := protocol.Diagnostic{
		Range:    d.Range.toProtocol(),
		Severity: d.Severity.toProtocol(),
		Message:  d.Message,
		Source:   d.Source,
	}
	if d.Code != "" {
		out.Code = d.Code
	}
	if d.Unnecessary {
		out.Tags = []protocol.DiagnosticTag{protocol.TagUnnecessary}
	}
	return out
}

// Severity represents the severity level of a diagnostic.
type Severity int

const (
	// SeverityError reports an error.
	SeverityError Severity = iota
	// SeverityWarning reports a warning.
	SeverityWarning
	// SeverityInformation reports information.
	SeverityInformation
	// SeverityHint reports a hint.
	SeverityHint
)

func (s Severity) toProtocol() protocol.DiagnosticSeverity {
	switch s {
	case SeverityError:
		return protocol.SeverityError
	case SeverityWarning:
		return protocol.SeverityWarning
	case SeverityInformation:
		return protocol.SeverityInformation
	default:
		return protocol.SeverityHint
	}
}
