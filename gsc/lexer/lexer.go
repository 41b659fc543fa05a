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

// Package lexer turns GSC/CSC source text into a linked token stream.
//
// The lexer is a single left-to-right pass using longest match. Whitespace
// and comments are preserved in the stream so that later stages can
// reconstitute the source and extract doc comments.
package lexer

import (
	"strings"

	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/token"
)

type lexer struct {
	r     *reader
	list  *token.List
	diags diag.Diagnostics
	pos   token.Position

	// forced, when set, stamps every produced token with this visible range
	// while the real scanned range moves to SourceRange. Used when re-lexing
	// content pulled in by an #insert.
	forced     *token.Range
	sourceFile string
}

// Lex scans data and returns the token stream and any lexical diagnostics.
// Concatenating the lexemes of the returned stream reproduces data exactly.
func Lex(data string) (*token.List, diag.Diagnostics) {
	l := &lexer{r: newReader(data), list: token.NewList()}
	l.run()
	return l.list, l.diags
}

// LexWithRange scans data that originated in sourceFile but is being spliced
// into another document at visible. Every produced token is stamped with the
// visible range; its real position within sourceFile is retained in
// SourceRange so diagnostics can point at the original file.
func LexWithRange(data, sourceFile string, visible token.Range) (*token.List, diag.Diagnostics) {
	l := &lexer{
		r:          newReader(data),
		list:       token.NewList(),
		forced:     &visible,
		sourceFile: sourceFile,
	}
	l.run()
	return l.list, l.diags
}

// emit closes the reader's scan window as a token of the given kind.
func (l *lexer) emit(kind token.Kind) *token.Token {
	lexeme := l.r.Consume()
	start := l.pos
	for _, r := range lexeme {
		if r == '\n' {
			l.pos.Line++
			l.pos.Character = 0
		} else {
			l.pos.Character++
		}
	}
	rng := token.Range{Start: start, End: l.pos}
	t := token.NewToken(kind, lexeme, rng)
	if l.forced != nil {
		t.Range = *l.forced
		t.SourceRange = rng
		t.SourceFile = l.sourceFile
		t.FromPreprocessor = true
	}
	l.list.Append(t)
	return t
}

func (l *lexer) errorAt(t *token.Token, code diag.Code, args ...interface{}) {
	rng := t.Range
	if l.forced != nil {
		rng = *l.forced
	}
	l.diags.Add(rng, code, args...)
}

func (l *lexer) run() {
	for !l.r.IsEOF() {
		l.next()
	}
}

func (l *lexer) next() {
	r := l.r
	switch {
	case r.EOL():
		l.emit(token.LineBreak)

	case r.Space():
		l.emit(token.Whitespace)

	case r.String("//"):
		for !r.IsEOF() && !r.IsEOL() {
			r.Advance()
		}
		l.emit(token.LineComment)

	case r.String("/@"):
		l.blockComment("@/", token.DocComment)

	case r.String("/*"):
		l.blockComment("*/", token.BlockComment)

	case r.String("/#"):
		l.emit(token.DevBlockStart)

	case r.String("#/"):
		l.emit(token.DevBlockEnd)

	case r.Peek() == '#' && r.PeekN(1) == '"':
		r.Advance()
		l.scanString(token.CompilerHash)

	case r.Peek() == '#':
		l.directive()

	case r.Peek() == '&' && r.PeekN(1) == '"':
		r.Advance()
		l.scanString(token.IString)

	case r.Peek() == '"':
		l.scanString(token.String)

	case r.Peek() == '%' && (r.PeekN(1) == '_' || isWordStart(r.PeekN(1))):
		r.Advance()
		r.AlphaNumeric()
		l.emit(token.AnimIdentifier)

	case r.String("..."):
		l.emit(token.VarargDots)

	default:
		if kind := r.Numeric(); kind != notNumeric {
			switch kind {
			case hexadecimal:
				l.emit(token.Hex)
			case floating:
				l.emit(token.Float)
			default:
				l.emit(token.Integer)
			}
			return
		}
		if r.AlphaNumeric() {
			l.word()
			return
		}
		l.operator()
	}
}

func isWordStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// blockComment consumes until terminator or EOF. The opening delimiter has
// already been consumed.
func (l *lexer) blockComment(terminator string, kind token.Kind) {
	for !l.r.IsEOF() {
		if l.r.String(terminator) {
			l.emit(kind)
			return
		}
		l.r.Advance()
	}
	t := l.emit(kind)
	l.errorAt(t, diag.UnterminatedBlockComment)
}

// scanString consumes a quoted string. The cursor sits on the opening quote;
// any prefix rune (& or #) has already been advanced past. Embedded newlines
// fail the literal with kind ErrorString.
func (l *lexer) scanString(kind token.Kind) {
	l.r.Advance() // opening quote
	for {
		switch {
		case l.r.IsEOF() || l.r.IsEOL():
			t := l.emit(token.ErrorString)
			l.errorAt(t, diag.UnterminatedString)
			return
		case l.r.Rune('\\'):
			l.r.Advance() // the escaped rune
		case l.r.Rune('"'):
			l.emit(kind)
			return
		default:
			l.r.Advance()
		}
	}
}

func (l *lexer) directive() {
	l.r.Advance() // '#'
	if !l.r.AlphaNumeric() {
		t := l.emit(token.Unknown)
		l.errorAt(t, diag.UnexpectedCharacter, t.Lexeme)
		return
	}
	// Peek the scanned text without consuming so the emit covers it whole.
	lexeme := string(l.r.runes[l.r.offset:l.r.cursor])
	if kind, ok := token.Directives[strings.ToLower(lexeme)]; ok {
		l.emit(kind)
		return
	}
	t := l.emit(token.Unknown)
	l.errorAt(t, diag.UnexpectedCharacter, t.Lexeme)
}

func (l *lexer) word() {
	lexeme := string(l.r.runes[l.r.offset:l.r.cursor])
	if kind, ok := token.Keywords[strings.ToLower(lexeme)]; ok {
		l.emit(kind)
		return
	}
	l.emit(token.Identifier)
}

var operators = []struct {
	text string
	kind token.Kind
}{
	// Longest first.
	{"<<=", token.ShiftLeftAssign},
	{">>=", token.ShiftRightAssign},
	{"===", token.IdentityEquals},
	{"!==", token.IdentityNotEquals},
	{"==", token.Equals},
	{"!=", token.NotEquals},
	{"<=", token.LessThanEquals},
	{">=", token.GreaterThanEquals},
	{"<<", token.ShiftLeft},
	{">>", token.ShiftRight},
	{"&&", token.And},
	{"||", token.Or},
	{"++", token.Increment},
	{"--", token.Decrement},
	{"+=", token.PlusAssign},
	{"-=", token.MinusAssign},
	{"*=", token.MultiplyAssign},
	{"/=", token.DivideAssign},
	{"%=", token.ModuloAssign},
	{"&=", token.BitAndAssign},
	{"|=", token.BitOrAssign},
	{"^=", token.BitXorAssign},
	{"::", token.ScopeResolution},
	{"+", token.Plus},
	{"-", token.Minus},
	{"*", token.Multiply},
	{"/", token.Divide},
	{"%", token.Modulo},
	{"&", token.BitAnd},
	{"|", token.BitOr},
	{"^", token.BitXor},
	{"~", token.BitNot},
	{"!", token.Not},
	{"<", token.LessThan},
	{">", token.GreaterThan},
	{"=", token.Assign},
	{"(", token.OpenParen},
	{")", token.CloseParen},
	{"{", token.OpenBrace},
	{"}", token.CloseBrace},
	{"[", token.OpenBracket},
	{"]", token.CloseBracket},
	{",", token.Comma},
	{";", token.Semicolon},
	{":", token.Colon},
	{".", token.Dot},
	{"\\", token.Backslash},
}

func (l *lexer) operator() {
	for _, op := range operators {
		if l.r.String(op.text) {
			l.emit(op.kind)
			return
		}
	}
	l.r.Advance()
	t := l.emit(token.Unknown)
	l.errorAt(t, diag.UnexpectedCharacter, t.Lexeme)
}
