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

package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gscode/gscls/gsc/ast"
	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/lexer"
	"github.com/gscode/gscls/gsc/parser"
	"github.com/gscode/gscls/gsc/preproc"
	"github.com/gscode/gscls/gsc/resolver"
)

func analyze(t *testing.T, src string, opts resolver.Options) (*resolver.Table, diag.Diagnostics) {
	t.Helper()
	list, lexDiags := lexer.Lex(src)
	require.Empty(t, lexDiags)
	preproc.Process(list, preproc.Options{})
	tree, parseDiags := parser.Parse(list)
	require.Empty(t, parseDiags)
	if opts.URI == "" {
		opts.URI = "scripts/test.gsc"
	}
	if opts.LanguageID == "" {
		opts.LanguageID = "gsc"
	}
	return resolver.Analyze(tree, opts)
}

func TestFunctionTable(t *testing.T) {
	src := `#namespace util;

/@
Summary: Adds two numbers.
MandatoryArg: <a> the first operand
OptionalArg: [b] the second operand
Example: util::add(1, 2);
@/
function add(a, b = 0) {
	helper();
	return a + b;
}

private function helper() {}
`
	table, diags := analyze(t, src, resolver.Options{})
	assert.Empty(t, diags)

	fn, ok := table.Function("util", "add")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, fn.Params)
	assert.Equal(t, 1, fn.MinArgs)
	assert.Equal(t, 2, fn.MaxArgs)
	assert.True(t, fn.UserDefined)
	assert.False(t, fn.Private)
	assert.Contains(t, fn.Doc, "Adds two numbers.")
	assert.Contains(t, fn.Doc, "`a`")
	assert.Contains(t, fn.Doc, "*(optional)*")
	assert.Contains(t, fn.Doc, "util::add(1, 2);")

	// Case insensitive resolution.
	upper, ok := table.Function("UTIL", "ADD")
	require.True(t, ok)
	assert.Same(t, fn, upper)

	// Only the non private function is exported.
	require.Len(t, table.Exported, 1)
	assert.Equal(t, "util", table.Exported[0].Namespace)
	assert.Equal(t, "add", table.Exported[0].Function.Name)

	helper, ok := table.Function("util", "helper")
	require.True(t, ok)
	assert.True(t, helper.Private)
}

func TestNamespaceCursor(t *testing.T) {
	src := `function early() {}
#namespace late;
function after() {}
`
	table, _ := analyze(t, src, resolver.Options{URI: "scripts/host.gsc"})

	// Before any directive, symbols land in the file stem namespace.
	_, ok := table.Function("host", "early")
	assert.True(t, ok)
	_, ok = table.Function("late", "after")
	assert.True(t, ok)
	assert.Equal(t, "late", table.CurrentNamespace)
}

func TestClassTable(t *testing.T) {
	src := `#namespace zm;
class zombie : actor {
	var health;
	constructor() {}
	function bite(target) {}
}
`
	table, diags := analyze(t, src, resolver.Options{})
	assert.Empty(t, diags)

	c, ok := table.Class("zm", "zombie")
	require.True(t, ok)
	assert.Equal(t, "actor", c.InheritsFrom)
	assert.Contains(t, c.Members, "health")
	require.NotNil(t, c.Constructor)

	// Methods resolve under both the class and the namespace qualifier.
	_, ok = table.Function("zombie", "bite")
	assert.True(t, ok)
	_, ok = table.Function("zm", "bite")
	assert.True(t, ok)

	// Classes are always exported.
	exportedClass := false
	for _, e := range table.Exported {
		if e.Class != nil && e.Class.Name == "zombie" {
			exportedClass = true
		}
	}
	assert.True(t, exportedClass)
}

func TestDependencyResolution(t *testing.T) {
	exists := map[string]bool{
		"scripts/zm/zm_utility.gsc": true,
		"shared/scripts/common.gsc": true,
	}
	src := "#using scripts\\zm\\zm_utility;\n#using scripts\\common;\n#using scripts\\absent;\nfunction f() {}\n"
	table, diags := analyze(t, src, resolver.Options{
		SharedRoot: "shared",
		Exists:     func(path string) bool { return exists[path] },
	})

	assert.Equal(t, []string{
		"scripts/zm/zm_utility.gsc",
		"shared/scripts/common.gsc",
	}, table.Dependencies)

	require.Len(t, diags, 1)
	assert.Equal(t, diag.MissingUsingFile, diags[0].Code)
	assert.Contains(t, diags[0].Message, "scripts\\absent")
}

func TestLanguageIDSelectsSuffix(t *testing.T) {
	seen := []string{}
	src := "#using scripts\\ui;\nfunction f() {}\n"
	analyze(t, src, resolver.Options{
		URI:        "scripts/hud.csc",
		LanguageID: "csc",
		Exists: func(path string) bool {
			seen = append(seen, path)
			return false
		},
	})
	require.NotEmpty(t, seen)
	assert.Equal(t, "scripts/ui.csc", seen[0])
}

func TestUnusedPrivateFunction(t *testing.T) {
	src := `function used() { secret(); }
private function secret() {}
private function dead() {}
`
	_, diags := analyze(t, src, resolver.Options{})
	require.Len(t, diags, 1)
	assert.Equal(t, diag.UnusedPrivateFunction, diags[0].Code)
	assert.Contains(t, diags[0].Message, "dead")
	assert.Equal(t, diag.SeverityInformation, diags[0].Severity)
	assert.True(t, diags[0].Unnecessary)
}

func TestDeclarationSenses(t *testing.T) {
	src := "function foo(bar) {}"
	list, _ := lexer.Lex(src)
	tree, _ := parser.Parse(list)
	resolver.Analyze(tree, resolver.Options{URI: "a.gsc", LanguageID: "gsc"})

	fn := tree.Definitions[0].(*ast.FunctionDef)
	sense := fn.Name.Sense()
	require.NotNil(t, sense)
	assert.Contains(t, sense.Hover, "function foo(bar)")
	assert.Equal(t, "a.gsc", sense.DefURI)

	param := fn.Params.Params[0].Name.Sense()
	require.NotNil(t, param)
	assert.Contains(t, param.Hover, "parameter")
}

func TestDocArgumentForms(t *testing.T) {
	src := `/@
Summary: Test fields.
MandatoryArg: <one>: angle bracket with colon
MandatoryArg: [two] square bracket form
MandatoryArg: three bare form
CallOn: the player
@/
function f(one, two, three) {}
`
	table, _ := analyze(t, src, resolver.Options{URI: "scripts/doc.gsc"})
	fn, ok := table.Function("doc", "f")
	require.True(t, ok)
	assert.Contains(t, fn.Doc, "`one`")
	assert.Contains(t, fn.Doc, "`two`")
	assert.Contains(t, fn.Doc, "`three`")
	assert.Contains(t, fn.Doc, "**Called on:** `the player`")
}
