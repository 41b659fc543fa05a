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

package script

import (
	"github.com/gscode/gscls/gsc/token"
)

// SemanticToken is one coloured span, in absolute document coordinates.
// The protocol layer converts runs of these into LSP relative deltas.
type SemanticToken struct {
	Line      int
	Character int
	Length    int
	Kind      token.SemanticKind
	Modifiers token.SemanticModifier
}

// SemanticTokens derives the document's semantic tokens: the sense
// definitions attached by the signature and data flow passes, plus the
// decorative classifications for keywords, literals and comments.
// Tokens produced by the preprocessor are skipped; their visible range
// belongs to the directive that spawned them.
func (s *Script) SemanticTokens() []SemanticToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil {
		return nil
	}

	out := []SemanticToken{}
	emit := func(t *token.Token, kind token.SemanticKind, mods token.SemanticModifier) {
		if t.Range.End.Line != t.Range.Start.Line {
			return // Multi line trivia is left to the client grammar.
		}
		out = append(out, SemanticToken{
			Line:      t.Range.Start.Line,
			Character: t.Range.Start.Character,
			Length:    t.Range.End.Character - t.Range.Start.Character,
			Kind:      kind,
			Modifiers: mods,
		})
	}

	for t := s.tokens.First(); t != s.tokens.End(); t = t.Next() {
		if t.FromPreprocessor {
			continue
		}
		if sense := t.Sense(); sense != nil && sense.Kind != token.SemanticNone {
			emit(t, sense.Kind, sense.Modifiers)
			continue
		}
		switch {
		case t.Kind.IsKeyword() || t.Kind.IsDirective():
			emit(t, token.SemanticKeyword, 0)
		case t.Is(token.Integer, token.Hex, token.Float):
			emit(t, token.SemanticNumber, 0)
		case t.Is(token.String, token.IString, token.CompilerHash, token.AnimIdentifier):
			emit(t, token.SemanticString, 0)
		case t.Is(token.LineComment, token.BlockComment, token.DocComment):
			emit(t, token.SemanticComment, 0)
		}
	}
	return out
}

// HoverAt returns the hover markdown for the token at pos, if any.
func (s *Script) HoverAt(pos token.Position) (string, token.Range, bool) {
	t := s.TokenAt(pos)
	if t == nil {
		return "", token.Range{}, false
	}
	if sense := t.Sense(); sense != nil && sense.Hover != "" {
		return sense.Hover, t.Range, true
	}
	return "", token.Range{}, false
}

// DefinitionAt returns the definition location for the token at pos.
func (s *Script) DefinitionAt(pos token.Position) (string, token.Range, bool) {
	t := s.TokenAt(pos)
	if t == nil {
		return "", token.Range{}, false
	}
	if sense := t.Sense(); sense != nil && sense.DefURI != "" {
		return sense.DefURI, sense.DefRange, true
	}
	return "", token.Range{}, false
}

// TokenAt returns the non-trivia token covering pos, or nil.
func (s *Script) TokenAt(pos token.Position) *token.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil {
		return nil
	}
	for t := s.tokens.First(); t != s.tokens.End(); t = t.Next() {
		if t.Kind.IsTrivia() || t.FromPreprocessor {
			continue
		}
		if t.Range.Contains(pos) {
			return t
		}
	}
	return nil
}
