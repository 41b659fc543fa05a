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

package script_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/preproc"
	"github.com/gscode/gscls/gsc/script"
	"github.com/gscode/gscls/gsc/token"
)

func newScript(t *testing.T, text string) *script.Script {
	t.Helper()
	s := script.New("scripts/main.gsc", "gsc", script.Environment{})
	require.True(t, s.SetText(text))
	return s
}

func TestPipelineStages(t *testing.T) {
	ctx := context.Background()
	s := newScript(t, `#namespace main;

function start(n) {
	if (n) {
		wait 0.25;
	}
	return n;
}
`)
	assert.False(t, s.Parsed())
	require.NoError(t, s.Parse(ctx))
	assert.True(t, s.Parsed())

	table := s.Table()
	require.NotNil(t, table)
	_, ok := table.Function("main", "start")
	assert.True(t, ok)

	require.NoError(t, s.Analyse(ctx))
	assert.Empty(t, s.Diagnostics())
	assert.NotEmpty(t, s.FoldingRanges())
	assert.NotEmpty(t, s.SemanticTokens())
}

func TestRevisionHashSkipsReparse(t *testing.T) {
	ctx := context.Background()
	s := newScript(t, "function f() {}")
	require.NoError(t, s.Parse(ctx))

	// Setting identical text keeps the parsed artifacts.
	assert.False(t, s.SetText("function f() {}"))
	assert.True(t, s.Parsed())

	// A real change resets the pipeline.
	assert.True(t, s.SetText("function g() {}"))
	assert.False(t, s.Parsed())
}

func TestApplyEdits(t *testing.T) {
	ctx := context.Background()
	s := newScript(t, "function f() { x = 1; }")
	require.NoError(t, s.Parse(ctx))

	changed := s.ApplyEdits([]script.Edit{{
		Range: token.Range{
			Start: token.Position{Line: 0, Character: 19},
			End:   token.Position{Line: 0, Character: 20},
		},
		Text: "42",
	}})
	assert.True(t, changed)
	assert.Equal(t, "function f() { x = 42; }", s.Text())

	// A no-op edit batch reports no change.
	assert.False(t, s.ApplyEdits(nil))
}

func TestDiagnosticsUnionAcrossStages(t *testing.T) {
	ctx := context.Background()
	s := newScript(t, `#define DUP 1
#define DUP 2
function f( {
	x = "unterminated
	y = 1 / 0;
}
`)
	require.NoError(t, s.Parse(ctx))
	require.NoError(t, s.Analyse(ctx))

	sources := map[string]bool{}
	for _, d := range s.Diagnostics() {
		sources[d.Source] = true
	}
	assert.True(t, sources["preprocessor"], "preprocessor diagnostics present")
	assert.True(t, sources["lexer"], "lexer diagnostics present")
	assert.True(t, sources["parser"], "parser diagnostics present")
}

func TestInsertRegionsAndOutlines(t *testing.T) {
	ctx := context.Background()
	env := script.Environment{
		Loader: preproc.LoaderFunc(func(path string) ([]byte, error) {
			return []byte("INSERTED = 1;"), nil
		}),
	}
	s := script.New("scripts/main.gsc", "gsc", env)
	s.SetText("#define LIMIT 10\n#insert scripts\\defs.gsh;\nfunction f() { x = LIMIT; }\n")
	require.NoError(t, s.Parse(ctx))

	outlines := s.MacroOutlines()
	require.Len(t, outlines, 1)
	assert.Equal(t, "LIMIT", outlines[0].Name)

	regions := s.InsertRegions()
	require.Len(t, regions, 1)
	assert.Equal(t, "scripts/defs.gsh", regions[0].Path)
}

func TestMonotonicStateTransitions(t *testing.T) {
	ctx := context.Background()
	s := newScript(t, "function f() {}")

	// Analyse before parse is a no-op.
	require.NoError(t, s.Analyse(ctx))
	assert.Empty(t, s.SemanticTokens())

	require.NoError(t, s.Parse(ctx))
	require.NoError(t, s.Analyse(ctx))
	// Re-running either stage on the same revision is a no-op.
	require.NoError(t, s.Parse(ctx))
	require.NoError(t, s.Analyse(ctx))
	assert.True(t, s.Parsed())
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newScript(t, "function f() {}")
	assert.Error(t, s.Parse(ctx))
	assert.False(t, s.Parsed())
}

func TestFoldingRegions(t *testing.T) {
	ctx := context.Background()
	s := newScript(t, `// region setup
function f() {
	x = 1;
}
// endregion
/* multi
line
comment */
`)
	require.NoError(t, s.Parse(ctx))
	require.NoError(t, s.Analyse(ctx))

	folds := s.FoldingRanges()
	hasComment := false
	hasRegion := false
	for _, f := range folds {
		if f.Kind == script.FoldComment {
			hasComment = true
		}
		if f.Kind == script.FoldRegion && f.StartLine == 0 && f.EndLine == 4 {
			hasRegion = true
		}
	}
	assert.True(t, hasComment, "multi line comment folds")
	assert.True(t, hasRegion, "// region banner folds")
}

func TestHoverAndDefinition(t *testing.T) {
	ctx := context.Background()
	s := newScript(t, "function foo(a) { return a; }\n")
	require.NoError(t, s.Parse(ctx))
	require.NoError(t, s.Analyse(ctx))

	// Position inside 'foo'.
	pos := token.Position{Line: 0, Character: 10}
	hover, _, ok := s.HoverAt(pos)
	require.True(t, ok)
	assert.Contains(t, hover, "function foo(a)")

	uri, rng, ok := s.DefinitionAt(pos)
	require.True(t, ok)
	assert.Equal(t, "scripts/main.gsc", uri)
	assert.Equal(t, 0, rng.Start.Line)

	var _ diag.Diagnostics = s.Diagnostics()
}
