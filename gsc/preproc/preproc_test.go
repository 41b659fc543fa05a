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

package preproc_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/lexer"
	"github.com/gscode/gscls/gsc/preproc"
	"github.com/gscode/gscls/gsc/token"
)

func process(t *testing.T, src string, opts preproc.Options) (*token.List, *preproc.Result) {
	t.Helper()
	list, diags := lexer.Lex(src)
	require.Empty(t, diags)
	return list, preproc.Process(list, opts)
}

func codes(diags diag.Diagnostics) []diag.Code {
	out := []diag.Code{}
	for _, d := range diags {
		out = append(out, d.Code)
	}
	return out
}

func codeKinds(list *token.List) []token.Kind {
	out := []token.Kind{}
	for _, t := range list.Tokens() {
		if !t.Kind.IsTrivia() {
			out = append(out, t.Kind)
		}
	}
	return out
}

func TestDefineAndExpand(t *testing.T) {
	src := "#define LIMIT 314\nx = LIMIT;"
	list, res := process(t, src, preproc.Options{})
	assert.Empty(t, res.Diagnostics)

	require.Contains(t, res.Macros, "limit")
	assert.Len(t, res.Outlines, 1)

	assert.Equal(t, []token.Kind{
		token.Identifier, token.Assign, token.Integer, token.Semicolon,
	}, codeKinds(list))

	var expanded *token.Token
	for _, tok := range list.Tokens() {
		if tok.Kind == token.Integer {
			expanded = tok
		}
	}
	require.NotNil(t, expanded)
	assert.True(t, expanded.FromPreprocessor)
	// The visible range points at the invocation; the source range points
	// inside the definition.
	assert.Equal(t, 1, expanded.Range.Start.Line)
	assert.Equal(t, 0, expanded.SourceRange.Start.Line)
}

func TestParametricMacro(t *testing.T) {
	src := "#define SQR(v) ((v) * (v))\ny = SQR(5);"
	list, res := process(t, src, preproc.Options{})
	assert.Empty(t, res.Diagnostics)

	assert.Equal(t, []token.Kind{
		token.Identifier, token.Assign,
		token.OpenParen, token.OpenParen, token.Integer, token.CloseParen,
		token.Multiply,
		token.OpenParen, token.Integer, token.CloseParen, token.CloseParen,
		token.Semicolon,
	}, codeKinds(list))
}

func TestMacroArity(t *testing.T) {
	_, res := process(t, "#define F(a, b) a\nx = F(1);", preproc.Options{})
	assert.Equal(t, []diag.Code{diag.TooFewMacroArguments}, codes(res.Diagnostics))

	_, res = process(t, "#define F(a) a\nx = F(1, 2);", preproc.Options{})
	assert.Equal(t, []diag.Code{diag.TooManyMacroArguments}, codes(res.Diagnostics))
}

func TestMacroMissingParameterList(t *testing.T) {
	list, res := process(t, "#define F(a) a\nx = F;", preproc.Options{})
	assert.Equal(t, []diag.Code{diag.MissingMacroParameterList}, codes(res.Diagnostics))
	// The identifier is left unexpanded.
	assert.Contains(t, codeKinds(list), token.Identifier)
}

func TestDuplicateMacro(t *testing.T) {
	_, res := process(t, "#define A 1\n#define A 2\n", preproc.Options{})
	assert.Equal(t, []diag.Code{diag.DuplicateMacroDefinition}, codes(res.Diagnostics))
}

func TestDuplicateMacroParameter(t *testing.T) {
	_, res := process(t, "#define F(a, a) a\n", preproc.Options{})
	assert.Equal(t, []diag.Code{diag.DuplicateMacroParameter}, codes(res.Diagnostics))
}

func TestMissingMacroIdentifier(t *testing.T) {
	_, res := process(t, "#define\n", preproc.Options{})
	assert.Equal(t, []diag.Code{diag.ExpectedMacroIdentifier}, codes(res.Diagnostics))
}

func TestInsertSplicesTokens(t *testing.T) {
	loader := preproc.LoaderFunc(func(path string) ([]byte, error) {
		assert.Equal(t, "scripts/defs.gsh", path)
		return []byte("CONSTANT = 7;"), nil
	})
	list, res := process(t, "#insert scripts\\defs.gsh;\nx = 1;", preproc.Options{Loader: loader})
	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.InsertRegions, 1)
	assert.Equal(t, "scripts/defs.gsh", res.InsertRegions[0].Path)

	// Spliced tokens carry the original file and its real positions.
	spliced := 0
	for _, tok := range list.Tokens() {
		if tok.SourceFile == "scripts/defs.gsh" {
			spliced++
			assert.True(t, tok.FromPreprocessor)
			assert.Equal(t, res.InsertRegions[0].Range, tok.Range)
		}
	}
	assert.NotZero(t, spliced)
}

func TestInsertMissingFile(t *testing.T) {
	loader := preproc.LoaderFunc(func(path string) ([]byte, error) {
		return nil, errors.New("file does not exist")
	})
	_, res := process(t, "#insert scripts\\missing.gsh;", preproc.Options{Loader: loader})
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diag.MissingInsertFile, res.Diagnostics[0].Code)
	assert.Contains(t, res.Diagnostics[0].Message, "scripts\\missing.gsh")
}

func TestInsertPathEscapesRoot(t *testing.T) {
	_, res := process(t, "#insert ..\\evil.gsh;", preproc.Options{})
	assert.Equal(t, []diag.Code{diag.InvalidInsertPath}, codes(res.Diagnostics))
}

func TestInsertCycle(t *testing.T) {
	loader := preproc.LoaderFunc(func(path string) ([]byte, error) {
		// Every insert pulls in the same file again.
		return []byte("#insert scripts\\loop.gsh;"), nil
	})
	_, res := process(t, "#insert scripts\\loop.gsh;", preproc.Options{Loader: loader})
	assert.Contains(t, codes(res.Diagnostics), diag.CircularDependency)
}

func TestPreprocessorIf(t *testing.T) {
	src := "#if DEBUG\nx = 1;\n#else\nx = 2;\n#endif\n"
	list, res := process(t, src, preproc.Options{})

	got := codes(res.Diagnostics)
	assert.Contains(t, got, diag.PreprocessorIfAnalysisUnsupported)
	assert.Contains(t, got, diag.InactivePreprocessorBranch)

	// Both branches stay in the stream; the directives are removed.
	assert.Equal(t, []token.Kind{
		token.Identifier, token.Assign, token.Integer, token.Semicolon,
		token.Identifier, token.Assign, token.Integer, token.Semicolon,
	}, codeKinds(list))
}

func TestUnterminatedIf(t *testing.T) {
	_, res := process(t, "#if DEBUG\nx = 1;\n", preproc.Options{})
	assert.Contains(t, codes(res.Diagnostics), diag.UnterminatedPreprocessorDirective)
}

func TestUsingPassesThrough(t *testing.T) {
	list, res := process(t, "#using scripts\\lib;\n", preproc.Options{})
	assert.Empty(t, res.Diagnostics)
	assert.Contains(t, codeKinds(list), token.PreUsing)
}
