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

// Package token defines the lexical tokens of the GSC and CSC dialects and
// the doubly linked stream they are threaded on.
//
// The stream is intrusive so that the preprocessor can splice macro
// expansions and #insert content in place without disturbing any token the
// parser already holds.
package token

import "fmt"

// Token is the smallest consumed unit of input. Tokens form a doubly linked
// sequence bracketed by Start and End sentinels.
type Token struct {
	Kind   Kind
	Lexeme string

	// Range is the visible span of the token in the document being analyzed.
	Range Range

	// SourceRange is the span of the token in the file that produced it. It
	// equals Range unless the token was spliced in by an #insert or expanded
	// from a macro body, in which case it points into the original file or
	// the macro definition.
	SourceRange Range

	// SourceFile names the file SourceRange refers to. Empty when the token
	// comes from the document itself.
	SourceFile string

	// FromPreprocessor marks tokens manufactured by macro expansion or
	// #insert splicing.
	FromPreprocessor bool

	prev, next *Token
	sense      *SenseDefinition
}

// NewToken returns an unlinked token.
func NewToken(kind Kind, lexeme string, rng Range) *Token {
	return &Token{Kind: kind, Lexeme: lexeme, Range: rng, SourceRange: rng}
}

// Next returns the following token, or nil on the End sentinel.
func (t *Token) Next() *Token { return t.next }

// Prev returns the preceding token, or nil on the Start sentinel.
func (t *Token) Prev() *Token { return t.prev }

// NextCode returns the next non-trivia token, or the End sentinel.
func (t *Token) NextCode() *Token {
	n := t.next
	for n != nil && n.Kind.IsTrivia() {
		n = n.next
	}
	return n
}

// PrevCode returns the previous non-trivia token, or the Start sentinel.
func (t *Token) PrevCode() *Token {
	p := t.prev
	for p != nil && p.Kind.IsTrivia() {
		p = p.prev
	}
	return p
}

// Is returns true if the token has any of the given kinds.
func (t *Token) Is(kinds ...Kind) bool {
	for _, k := range kinds {
		if t.Kind == k {
			return true
		}
	}
	return false
}

// Sense returns the sense definition attached to the token, or nil.
func (t *Token) Sense() *SenseDefinition { return t.sense }

// AttachSense attaches a sense definition to the token. Attaching is one shot
// and idempotent: the first definition wins and later calls are ignored.
func (t *Token) AttachSense(d *SenseDefinition) {
	if t.sense == nil {
		t.sense = d
	}
}

// Clone returns an unlinked copy of the token without its sense definition.
func (t *Token) Clone() *Token {
	return &Token{
		Kind:             t.Kind,
		Lexeme:           t.Lexeme,
		Range:            t.Range,
		SourceRange:      t.SourceRange,
		SourceFile:       t.SourceFile,
		FromPreprocessor: t.FromPreprocessor,
	}
}

func (t *Token) String() string {
	return fmt.Sprintf("%v(%q)@%v", t.Kind, t.Lexeme, t.Range)
}

// SemanticKind classifies a token for editor colouring.
type SemanticKind int

const (
	SemanticNone SemanticKind = iota
	SemanticFunction
	SemanticMethod
	SemanticClass
	SemanticNamespace
	SemanticParameter
	SemanticVariable
	SemanticProperty
	SemanticMacro
	SemanticKeyword
	SemanticString
	SemanticNumber
	SemanticComment
	SemanticOperator
)

// SemanticModifier is a bit set of extra classifications.
type SemanticModifier int

const (
	ModifierDeclaration SemanticModifier = 1 << iota
	ModifierReadonly
	ModifierStatic
	ModifierDefaultLibrary
	ModifierDeprecated
)

// SenseDefinition carries the editor decorations derived for one token:
// colouring, hover text and the location of the symbol's definition.
type SenseDefinition struct {
	Kind      SemanticKind
	Modifiers SemanticModifier

	// Hover is markdown shown when the cursor rests on the token. Empty
	// means no hover.
	Hover string

	// DefURI and DefRange locate the definition of the symbol this token
	// refers to, for go-to-definition. DefURI empty means no definition.
	DefURI   string
	DefRange Range
}
