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

package manager_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/manager"
	"github.com/gscode/gscls/gsc/script"
	"github.com/gscode/gscls/gsc/token"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// workspace writes the given files under a temp root and returns a manager
// over it plus the published diagnostics, guarded by mu.
func workspace(t *testing.T, files map[string]string) (*manager.Manager, *sync.Mutex, map[string]diag.Diagnostics) {
	t.Helper()
	root := t.TempDir()
	for rel, text := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}

	mu := &sync.Mutex{}
	published := map[string]diag.Diagnostics{}
	m := manager.New(manager.Config{
		Root: root,
		Publish: func(uri string, diags diag.Diagnostics) {
			mu.Lock()
			defer mu.Unlock()
			published[uri] = diags
		},
	})
	return m, mu, published
}

func TestAddEditorPublishesDiagnostics(t *testing.T) {
	m, mu, published := workspace(t, nil)
	ctx := context.Background()

	diags, err := m.AddEditor(ctx, "scripts/main.gsc", "gsc", "function f() { x = 1 / 0; }")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.DivisionByZero, diags[0].Code)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, published["scripts/main.gsc"], 1)
}

func TestCrossFileDependency(t *testing.T) {
	m, _, _ := workspace(t, map[string]string{
		"scripts/lib.gsc": "function helper(a) {}\nprivate function hidden() { helper(1); }\n",
	})
	ctx := context.Background()

	main := "#using scripts\\lib;\n\nfunction f() {\n\tlib::helper(1);\n}\n"
	diags, err := m.AddEditor(ctx, "scripts/main.gsc", "gsc", main)
	require.NoError(t, err)
	assert.Empty(t, diags, "the dependency's exports must resolve the call")

	// Go to definition resolves into the dependency.
	loc, ok := m.FindSymbolLocation("lib", "helper")
	require.True(t, ok)
	assert.Equal(t, "scripts/lib.gsc", loc.URI)
	assert.Equal(t, 0, loc.Range.Start.Line)
}

func TestPrivateFunctionsAreInvisible(t *testing.T) {
	m, _, _ := workspace(t, map[string]string{
		"scripts/lib.gsc": "function helper() { hidden(); }\nprivate function hidden() {}\n",
	})
	ctx := context.Background()

	main := "#using scripts\\lib;\nfunction f() { lib::hidden(); }\n"
	diags, err := m.AddEditor(ctx, "scripts/main.gsc", "gsc", main)
	require.NoError(t, err)

	require.Len(t, diags, 1)
	assert.Equal(t, diag.NotDefined, diags[0].Code)
}

func TestMissingDependency(t *testing.T) {
	m, _, _ := workspace(t, nil)
	ctx := context.Background()

	diags, err := m.AddEditor(ctx, "scripts/main.gsc", "gsc", "#using scripts\\ghost;\nfunction f() {}\n")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.MissingUsingFile, diags[0].Code)
}

func TestUpdateEditorIncremental(t *testing.T) {
	m, _, _ := workspace(t, nil)
	ctx := context.Background()

	_, err := m.AddEditor(ctx, "scripts/main.gsc", "gsc", "function f() { x = 1; }")
	require.NoError(t, err)

	diags, err := m.UpdateEditor(ctx, "scripts/main.gsc", []script.Edit{{
		Range: token.Range{
			Start: token.Position{Line: 0, Character: 19},
			End:   token.Position{Line: 0, Character: 20},
		},
		Text: "1 / 0",
	}})
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.DivisionByZero, diags[0].Code)

	// An empty edit batch does not re-run the pipeline.
	diags, err = m.UpdateEditor(ctx, "scripts/main.gsc", nil)
	require.NoError(t, err)
	assert.Len(t, diags, 1)
}

func TestRemoveEditorEvictsDependencies(t *testing.T) {
	m, _, _ := workspace(t, map[string]string{
		"scripts/lib.gsc": "function helper() {}\n",
	})
	ctx := context.Background()

	_, err := m.AddEditor(ctx, "scripts/main.gsc", "gsc", "#using scripts\\lib;\nfunction f() { lib::helper(); }\n")
	require.NoError(t, err)

	dep, ok := m.Get("scripts/lib.gsc")
	require.True(t, ok)
	assert.Equal(t, manager.Dependency, dep.Kind())

	m.RemoveEditor(ctx, "scripts/main.gsc")

	_, ok = m.Get("scripts/main.gsc")
	assert.False(t, ok, "editor entry dropped")
	_, ok = m.Get("scripts/lib.gsc")
	assert.False(t, ok, "orphaned dependency evicted")
}

func TestEditorSurvivesOtherRemovals(t *testing.T) {
	m, _, _ := workspace(t, map[string]string{
		"scripts/lib.gsc": "function helper() {}\n",
	})
	ctx := context.Background()

	_, err := m.AddEditor(ctx, "scripts/a.gsc", "gsc", "#using scripts\\lib;\nfunction fa() { lib::helper(); }\n")
	require.NoError(t, err)
	_, err = m.AddEditor(ctx, "scripts/b.gsc", "gsc", "#using scripts\\lib;\nfunction fb() { lib::helper(); }\n")
	require.NoError(t, err)

	m.RemoveEditor(ctx, "scripts/a.gsc")
	_, ok := m.Get("scripts/lib.gsc")
	assert.True(t, ok, "lib still referenced by b")

	m.RemoveEditor(ctx, "scripts/b.gsc")
	_, ok = m.Get("scripts/lib.gsc")
	assert.False(t, ok)
}

func TestIndexWorkspace(t *testing.T) {
	m, mu, published := workspace(t, map[string]string{
		"scripts/one.gsc":      "function one() {}\n",
		"scripts/two.csc":      "function two() {}\n",
		"scripts/bad.gsc":      "function broken( {}\n",
		"scripts/ignored.txt":  "not a script",
		"scripts/deep/three.gsc": "function three() {}\n",
	})
	ctx := context.Background()

	require.NoError(t, m.IndexWorkspace(ctx, ""))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, published, "scripts/one.gsc")
	assert.Contains(t, published, "scripts/two.csc")
	assert.Contains(t, published, "scripts/deep/three.gsc")
	assert.NotContains(t, published, "scripts/ignored.txt")
	assert.NotEmpty(t, published["scripts/bad.gsc"])

	// Indexed symbols are findable.
	_, ok := m.FindSymbolLocation("", "three")
	assert.True(t, ok)
}

func TestIndexAsyncSignalsCompletion(t *testing.T) {
	m, mu, published := workspace(t, map[string]string{
		"scripts/one.gsc": "function one() {}\n",
	})
	ctx := context.Background()

	done := m.IndexAsync(ctx, "")
	require.True(t, done.Wait(ctx), "the signal fires when the sweep completes")
	assert.True(t, done.Fired())

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, published, "scripts/one.gsc")
}

func TestConcurrentEditsSerialize(t *testing.T) {
	m, _, _ := workspace(t, nil)
	ctx := context.Background()

	_, err := m.AddEditor(ctx, "scripts/main.gsc", "gsc", "function f() {}")
	require.NoError(t, err)

	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := "function f() { x = 1; }"
			if i%2 == 0 {
				text = "function f() { x = 2; }"
			}
			_, err := m.AddEditor(ctx, "scripts/main.gsc", "gsc", text)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	cs, ok := m.Get("scripts/main.gsc")
	require.True(t, ok)
	assert.True(t, cs.Script().Parsed(), "last writer leaves a parsed revision")
}
