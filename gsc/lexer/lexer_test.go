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

package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/lexer"
	"github.com/gscode/gscls/gsc/token"
)

// kinds strips trivia and returns the remaining token kinds.
func kinds(list *token.List) []token.Kind {
	out := []token.Kind{}
	for t := list.First(); t != list.End(); t = t.Next() {
		if !t.Kind.IsTrivia() {
			out = append(out, t.Kind)
		}
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	sources := []string{
		"function foo(a, b) { return a + b; }",
		"x = .5 + 0x1F;\r\ny = \"str\\\"ing\";",
		"/* block */ // line\n/@ doc @/ %anim_name &\"istr\" #\"hash\"",
		"#using scripts\\lib;\n#namespace test;\n",
		"a <<= 3; b !== c; d === e;",
	}
	for _, src := range sources {
		list, _ := lexer.Lex(src)
		assert.Equal(t, src, list.Text(), "concatenated lexemes must reproduce the input")
	}
}

func TestKinds(t *testing.T) {
	for _, tc := range []struct {
		src  string
		want []token.Kind
	}{
		{".5", []token.Kind{token.Float}},
		{"...", []token.Kind{token.VarargDots}},
		{"0x1F", []token.Kind{token.Hex}},
		{"123", []token.Kind{token.Integer}},
		{"1.25", []token.Kind{token.Float}},
		{"%idle_anim", []token.Kind{token.AnimIdentifier}},
		{"&\"HINT\"", []token.Kind{token.IString}},
		{"#\"hashed\"", []token.Kind{token.CompilerHash}},
		{"a === b", []token.Kind{token.Identifier, token.IdentityEquals, token.Identifier}},
		{"a !== b", []token.Kind{token.Identifier, token.IdentityNotEquals, token.Identifier}},
		{"x <<= 2", []token.Kind{token.Identifier, token.ShiftLeftAssign, token.Integer}},
		{"ns::fn", []token.Kind{token.Identifier, token.ScopeResolution, token.Identifier}},
		{"#using", []token.Kind{token.PreUsing}},
		{"#Namespace", []token.Kind{token.PreNamespace}},
		{"/# x = 1; #/", []token.Kind{token.DevBlockStart, token.Identifier, token.Assign, token.Integer, token.Semicolon, token.DevBlockEnd}},
		{"Function WHILE", []token.Kind{token.Function, token.While}},
		// Keywords only match on a word boundary.
		{"functions", []token.Kind{token.Identifier}},
		{"waittill", []token.Kind{token.Waittill}},
	} {
		list, diags := lexer.Lex(tc.src)
		require.Empty(t, diags, "%q", tc.src)
		assert.Equal(t, tc.want, kinds(list), "%q", tc.src)
	}
}

func TestCRLFIsOneLineBreak(t *testing.T) {
	list, _ := lexer.Lex("a\r\nb")
	breaks := 0
	for _, tok := range list.Tokens() {
		if tok.Kind == token.LineBreak {
			breaks++
			assert.Equal(t, "\r\n", tok.Lexeme)
		}
	}
	assert.Equal(t, 1, breaks)
}

func TestStringWithNewlineFails(t *testing.T) {
	list, diags := lexer.Lex("x = \"broken\ny = 2;")
	require.Len(t, diags, 1)
	assert.Equal(t, diag.UnterminatedString, diags[0].Code)

	found := false
	for _, tok := range list.Tokens() {
		if tok.Kind == token.ErrorString {
			found = true
		}
	}
	assert.True(t, found, "expected an ErrorString token")
}

func TestUnknownCharacter(t *testing.T) {
	_, diags := lexer.Lex("x = 1 @ 2;")
	require.Len(t, diags, 1)
	assert.Equal(t, diag.UnexpectedCharacter, diags[0].Code)
}

func TestRangesMonotonic(t *testing.T) {
	src := "function foo() {\n\twait 0.5;\n\tx = (1, 2, 3);\n}"
	list, _ := lexer.Lex(src)
	prev := token.Position{}
	for _, tok := range list.Tokens() {
		assert.False(t, tok.Range.End.Before(tok.Range.Start), "end must not precede start: %v", tok)
		assert.False(t, tok.Range.Start.Before(prev), "starts must be non-decreasing: %v", tok)
		prev = tok.Range.Start
	}
}

func TestRelexRoundTrip(t *testing.T) {
	src := "x = a + b; // trailing\nwait 1;"
	first, _ := lexer.Lex(src)
	second, _ := lexer.Lex(first.Text())

	a, b := first.Tokens(), second.Tokens()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Kind, b[i].Kind)
		assert.Equal(t, a[i].Lexeme, b[i].Lexeme)
	}
}

func TestForcedRange(t *testing.T) {
	visible := token.Range{
		Start: token.Position{Line: 4, Character: 0},
		End:   token.Position{Line: 4, Character: 20},
	}
	list, _ := lexer.LexWithRange("x = 1;\ny = 2;", "scripts/defs.gsh", visible)
	for _, tok := range list.Tokens() {
		assert.Equal(t, visible, tok.Range, "visible range is forced")
		assert.True(t, tok.FromPreprocessor)
		assert.Equal(t, "scripts/defs.gsh", tok.SourceFile)
	}
	// Source ranges still track the real content.
	toks := list.Tokens()
	last := toks[len(toks)-1]
	assert.Equal(t, 1, last.SourceRange.Start.Line)
}
