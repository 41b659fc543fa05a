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

package analysis_test

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gscode/gscls/gsc/analysis"
	"github.com/gscode/gscls/gsc/ast"
	"github.com/gscode/gscls/gsc/cfg"
	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/lexer"
	"github.com/gscode/gscls/gsc/parser"
	"github.com/gscode/gscls/gsc/preproc"
	"github.com/gscode/gscls/gsc/resolver"
)

// stubBuiltins provides a tiny builtin API for tests.
type stubBuiltins map[string]*resolver.Function

func (s stubBuiltins) Lookup(name string) (*resolver.Function, bool) {
	fn, ok := s[name]
	return fn, ok
}

func builtin(name string, min, max int) *resolver.Function {
	return &resolver.Function{
		Name: name, Namespace: "sys", Implicit: true,
		MinArgs: min, MaxArgs: max,
	}
}

// run parses the source and analyzes every function graph, returning the
// union of semantic diagnostics.
func run(t *testing.T, src string, builtins analysis.Builtins) diag.Diagnostics {
	t.Helper()
	list, lexDiags := lexer.Lex(src)
	require.Empty(t, lexDiags)
	preproc.Process(list, preproc.Options{})
	tree, parseDiags := parser.Parse(list)
	require.Empty(t, parseDiags)

	table, _ := resolver.Analyze(tree, resolver.Options{URI: "scripts/test.gsc", LanguageID: "gsc"})

	out := diag.Diagnostics{}
	for _, def := range tree.Definitions {
		switch n := def.(type) {
		case *ast.FunctionDef:
			g, cfgDiags := cfg.BuildFunction(n, 0)
			require.Empty(t, cfgDiags)
			out.Merge(analysis.Analyze(g, analysis.Options{
				URI: "scripts/test.gsc", LanguageID: "gsc",
				Table: table, Builtins: builtins,
			}))
		case *ast.ClassDef:
			for _, member := range n.Body {
				m, ok := member.(*ast.FunctionDef)
				if !ok {
					continue
				}
				opts := analysis.Options{
					URI: "scripts/test.gsc", LanguageID: "gsc",
					Table: table, Builtins: builtins,
				}
				if c, found := table.ClassByName(n.Name.Lexeme); found {
					opts.Class = c
				}
				g, _ := cfg.BuildFunction(m, 1)
				out.Merge(analysis.Analyze(g, opts))
			}
		}
	}
	return out
}

func sortedCodes(diags diag.Diagnostics) []int {
	out := []int{}
	for _, d := range diags {
		out = append(out, int(d.Code))
	}
	sort.Ints(out)
	return out
}

func TestCleanFunction(t *testing.T) {
	diags := run(t, "function foo(a, b) { return a + b; }", nil)
	assert.Empty(t, diags)
}

func TestConstRules(t *testing.T) {
	src := `function f() {
	x = 1;
	const x = 2;
	x = 3;
}`
	diags := run(t, src, nil)
	want := []int{int(diag.CannotAssignToConstant), int(diag.RedefinitionOfSymbol)}
	if diff := cmp.Diff(want, sortedCodes(diags)); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestDivisionByZero(t *testing.T) {
	diags := run(t, "function f() { x = 10 / 0; }", nil)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.DivisionByZero, diags[0].Code)
}

func TestOperatorTypeChecks(t *testing.T) {
	src := `function f() {
	s = "text";
	x = s - 2;
}`
	diags := run(t, src, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.OperatorNotSupportedOnTypes, diags[0].Code)
	assert.Contains(t, diags[0].Message, "string")

	// String concatenation is allowed.
	diags = run(t, `function f() { s = "a" + "b"; }`, nil)
	assert.Empty(t, diags)

	// Bitwise operators want integers.
	diags = run(t, `function f() { x = 1.5 | 2; }`, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.OperatorNotSupportedOnTypes, diags[0].Code)
}

func TestIntegerRange(t *testing.T) {
	diags := run(t, "function f() { x = 2147483648; }", nil)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.IntegerTooLarge, diags[0].Code)

	diags = run(t, "function f() { x = 2147483647; }", nil)
	assert.Empty(t, diags)
}

func TestWaitChecks(t *testing.T) {
	diags := run(t, "function f() { wait -1; }", nil)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.CannotWaitNegativeDuration, diags[0].Code)

	diags = run(t, "function f() { wait 0.01; }", nil)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.BelowVmRefreshRate, diags[0].Code)
	assert.Contains(t, diags[0].Message, "0.05")

	diags = run(t, "function f() { wait 0.1; }", nil)
	assert.Empty(t, diags)
}

func TestArityScriptFunction(t *testing.T) {
	src := `function callee(a, b) {}
function f() {
	callee(1);
	callee(1, 2, 3);
	callee(1, 2);
}`
	diags := run(t, src, nil)
	want := []int{int(diag.TooManyArguments), int(diag.TooFewArguments)}
	sort.Ints(want)
	assert.Equal(t, want, sortedCodes(diags))
	for _, d := range diags {
		assert.Equal(t, diag.SeverityError, d.Severity)
	}
}

func TestArityBuiltinIsWarning(t *testing.T) {
	builtins := stubBuiltins{"iprintln": builtin("iprintln", 1, 2)}
	diags := run(t, "function f() { iprintln(); }", builtins)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.TooFewArgumentsUnverified, diags[0].Code)
	assert.Equal(t, diag.SeverityWarning, diags[0].Severity)
}

func TestNotDefined(t *testing.T) {
	diags := run(t, "function f() { vanished(); }", nil)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.NotDefined, diags[0].Code)
}

func TestDependencyExportsResolveUnqualified(t *testing.T) {
	list, lexDiags := lexer.Lex("function f() { helper(1); }")
	require.Empty(t, lexDiags)
	preproc.Process(list, preproc.Options{})
	tree, parseDiags := parser.Parse(list)
	require.Empty(t, parseDiags)

	table, _ := resolver.Analyze(tree, resolver.Options{URI: "scripts/test.gsc", LanguageID: "gsc"})
	table.MergeExports([]resolver.Export{{
		Namespace: "lib",
		Function:  &resolver.Function{Name: "helper", Namespace: "lib", MinArgs: 1, MaxArgs: 1, UserDefined: true},
	}})

	fn := tree.Definitions[0].(*ast.FunctionDef)
	g, cfgDiags := cfg.BuildFunction(fn, 0)
	require.Empty(t, cfgDiags)
	diags := analysis.Analyze(g, analysis.Options{
		URI: "scripts/test.gsc", LanguageID: "gsc", Table: table,
	})
	assert.Empty(t, diags, "merged dependency exports resolve without qualification")
}

func TestUnexportedNamespaceDoesNotResolve(t *testing.T) {
	// A symbol sitting in the table under a namespace this file never
	// imported must not satisfy an unqualified call.
	list, _ := lexer.Lex("function f() { stranger(); }")
	preproc.Process(list, preproc.Options{})
	tree, _ := parser.Parse(list)

	table, _ := resolver.Analyze(tree, resolver.Options{URI: "scripts/test.gsc", LanguageID: "gsc"})
	table.PutFunction("elsewhere", &resolver.Function{
		Name: "stranger", Namespace: "elsewhere", UserDefined: true,
	})

	fn := tree.Definitions[0].(*ast.FunctionDef)
	g, _ := cfg.BuildFunction(fn, 0)
	diags := analysis.Analyze(g, analysis.Options{
		URI: "scripts/test.gsc", LanguageID: "gsc", Table: table,
	})
	require.Len(t, diags, 1)
	assert.Equal(t, diag.NotDefined, diags[0].Code)
}

func TestUnknownNamespace(t *testing.T) {
	diags := run(t, "function f() { nowhere::fn(); }", nil)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.UnknownNamespace, diags[0].Code)
}

func TestSysNamespaceAlwaysResolves(t *testing.T) {
	builtins := stubBuiltins{"gettime": builtin("gettime", 0, 0)}
	diags := run(t, "function f() { t = sys::gettime(); }", builtins)
	assert.Empty(t, diags)
}

func TestReservedNames(t *testing.T) {
	diags := run(t, "function f() { waittill = 1; }", nil)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.ReservedSymbol, diags[0].Code)

	// Reserved pseudo functions accept untyped argument lists.
	diags = run(t, `function f() { self waittill("x", "y", "z"); isdefined(a); }`, nil)
	assert.Empty(t, diags)
}

func TestThreadChecks(t *testing.T) {
	src := `function worker() {}
function f() {
	thread worker;
}`
	diags := run(t, src, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.InvalidThreadCall, diags[0].Code)

	src = `function worker() {}
function f() {
	h = thread worker();
}`
	diags = run(t, src, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.AssignOnThreadedFunction, diags[0].Code)
}

func TestClassMembers(t *testing.T) {
	src := `class point {
	var x;
	var y;

	function norm() {
		return 0;
	}
}
function f() {
	p = new point();
	a = p.x;
	b = p.missing;
}`
	diags := run(t, src, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.DoesNotContainMember, diags[0].Code)
	assert.Contains(t, diags[0].Message, "missing")
}

func TestInheritedMembers(t *testing.T) {
	src := `class base {
	var root;
}
class derived : base {
	var leaf;
}
function f() {
	d = new derived();
	a = d.leaf;
	b = d.root;
}`
	diags := run(t, src, nil)
	assert.Empty(t, diags)
}

func TestMethodResolvesThroughInheritance(t *testing.T) {
	src := `class base {
	function ping() {}
}
class derived : base {
	function poke() {
		ping();
	}
}`
	diags := run(t, src, nil)
	assert.Empty(t, diags)
}

func TestBuiltinGlobals(t *testing.T) {
	diags := run(t, `function f() { level.round = 1; x = self; game["count"] = 2; }`, nil)
	assert.Empty(t, diags)
}

func TestLoopFixpointTerminates(t *testing.T) {
	src := `function f(n) {
	x = 0;
	while (n) {
		x = x + 1;
		n = n - 1;
	}
	return x;
}`
	diags := run(t, src, nil)
	assert.Empty(t, diags)
}

func TestMergeLattice(t *testing.T) {
	a := analysis.IntOf(1)
	b := analysis.IntOf(1)
	assert.True(t, analysis.Merge(a, b).Equal(analysis.IntOf(1)))

	c := analysis.Merge(analysis.IntOf(1), analysis.IntOf(2))
	assert.Equal(t, analysis.TypeInt, c.Type)
	assert.False(t, c.Known)

	d := analysis.Merge(analysis.IntOf(1), analysis.StringOf("s"))
	assert.Equal(t, analysis.TypeAny, d.Type)

	// Copy is independent of the original.
	orig := analysis.IntOf(7)
	cp := orig.Copy()
	cp.IntVal = 9
	assert.Equal(t, int64(7), orig.IntVal)
}

func TestJoinDropsDeeperScopes(t *testing.T) {
	outer := analysis.NewSymbolTable()
	outer.Bind(&analysis.Variable{Name: "a", Data: analysis.IntOf(1), Scope: 0})
	outer.Bind(&analysis.Variable{Name: "deep", Data: analysis.IntOf(2), Scope: 3})

	joined := analysis.Join([]*analysis.SymbolTable{outer}, 1)
	_, ok := joined.Get("a")
	assert.True(t, ok)
	_, ok = joined.Get("deep")
	assert.False(t, ok)
}
