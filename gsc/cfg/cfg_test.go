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

package cfg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gscode/gscls/gsc/ast"
	"github.com/gscode/gscls/gsc/cfg"
	"github.com/gscode/gscls/gsc/lexer"
	"github.com/gscode/gscls/gsc/parser"
)

// buildFirst parses the source and builds the CFG of its first function.
func buildFirst(t *testing.T, src string) *cfg.Graph {
	t.Helper()
	list, lexDiags := lexer.Lex(src)
	require.Empty(t, lexDiags)
	script, parseDiags := parser.Parse(list)
	require.Empty(t, parseDiags)
	require.NotEmpty(t, script.Definitions)
	fn, ok := script.Definitions[0].(*ast.FunctionDef)
	require.True(t, ok)
	g, diags := cfg.BuildFunction(fn, 0)
	require.Empty(t, diags)
	return g
}

// checkWellFormed asserts the structural CFG invariants: one entry, one
// exit, every reachable intermediate node has a predecessor and a
// successor, and every edge is symmetric.
func checkWellFormed(t *testing.T, g *cfg.Graph) {
	t.Helper()
	require.NotNil(t, g.Entry)
	require.NotNil(t, g.Exit)

	reached := map[*cfg.Node]bool{}
	stack := []*cfg.Node{g.Entry}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[n] {
			continue
		}
		reached[n] = true
		for _, succ := range n.Outgoing() {
			stack = append(stack, succ)
		}
	}
	assert.True(t, reached[g.Exit], "exit must be reachable from entry")

	for n := range reached {
		if n != g.Entry {
			assert.NotEmpty(t, n.Incoming(), "%v has no predecessor", n.Kind)
		}
		if n != g.Exit {
			assert.NotEmpty(t, n.Outgoing(), "%v has no successor", n.Kind)
		}
		for _, succ := range n.Outgoing() {
			assert.Contains(t, succ.Incoming(), n, "edge %v->%v not symmetric", n.Kind, succ.Kind)
		}
		for _, pred := range n.Incoming() {
			assert.Contains(t, pred.Outgoing(), n, "edge %v->%v not symmetric", pred.Kind, n.Kind)
		}
	}
}

func TestConnectDisconnect(t *testing.T) {
	a := &cfg.Node{Kind: cfg.BasicBlock}
	b := &cfg.Node{Kind: cfg.BasicBlock}

	cfg.Connect(a, b)
	assert.Contains(t, a.Outgoing(), b)
	assert.Contains(t, b.Incoming(), a)

	// Connect is idempotent per edge.
	cfg.Connect(a, b)
	assert.Len(t, a.Outgoing(), 1)

	cfg.Disconnect(a, b)
	assert.Empty(t, a.Outgoing())
	assert.Empty(t, b.Incoming())
}

func TestStraightLine(t *testing.T) {
	g := buildFirst(t, "function foo(a, b) { return a + b; }")
	checkWellFormed(t, g)

	// entry -> block(return) -> exit.
	require.Len(t, g.Entry.Outgoing(), 1)
	block := g.Entry.Outgoing()[0]
	assert.Equal(t, cfg.BasicBlock, block.Kind)
	require.Len(t, block.Statements, 1)
	require.Len(t, block.Outgoing(), 1)
	assert.Same(t, g.Exit, block.Outgoing()[0])
}

func TestIfElse(t *testing.T) {
	g := buildFirst(t, `function f(a) {
	if (a) {
		x = 1;
	} else {
		x = 2;
	}
	y = 3;
}`)
	checkWellFormed(t, g)

	d := g.Entry.Outgoing()[0]
	require.Equal(t, cfg.Decision, d.Kind)
	require.NotNil(t, d.True)
	require.NotNil(t, d.False)
	assert.NotSame(t, d.True, d.False)

	// Both arms merge on the continuation block before the exit.
	assert.Equal(t, d.True.Outgoing()[0], d.False.Outgoing()[0])
}

func TestWhileLoop(t *testing.T) {
	g := buildFirst(t, `function f(a) {
	while (a) {
		a = a - 1;
	}
	done();
}`)
	checkWellFormed(t, g)

	d := g.Entry.Outgoing()[0]
	require.Equal(t, cfg.Decision, d.Kind)

	body := d.True
	require.Equal(t, cfg.BasicBlock, body.Kind)
	// The body loops back to the decision.
	assert.Contains(t, body.Outgoing(), d)
}

func TestForLoop(t *testing.T) {
	g := buildFirst(t, `function f() {
	for (i = 0; i; i++) {
		work();
	}
}`)
	checkWellFormed(t, g)

	it := g.Entry.Outgoing()[0]
	require.Equal(t, cfg.Iteration, it.Kind)
	assert.NotNil(t, it.Init)
	assert.NotNil(t, it.Cond)
	assert.NotNil(t, it.Incr)

	body := it.True
	assert.Contains(t, body.Outgoing(), it, "increment runs on the back edge")
}

func TestForeach(t *testing.T) {
	g := buildFirst(t, `function f(arr) {
	foreach (v in arr) {
		use(v);
	}
}`)
	checkWellFormed(t, g)
	en := g.Entry.Outgoing()[0]
	assert.Equal(t, cfg.Enumeration, en.Kind)
	assert.NotNil(t, en.Foreach)
}

func TestBreakAndContinue(t *testing.T) {
	g := buildFirst(t, `function f(a) {
	while (a) {
		if (a) {
			break;
		}
		continue;
	}
}`)
	checkWellFormed(t, g)
}

func TestSwitch(t *testing.T) {
	g := buildFirst(t, `function f(x) {
	switch (x) {
	case 1:
		a();
		break;
	case 2:
	default:
		b();
		break;
	}
}`)
	checkWellFormed(t, g)

	sw := g.Entry.Outgoing()[0]
	require.Equal(t, cfg.Switch, sw.Kind)
	require.NotNil(t, sw.FirstCase)
	require.NotNil(t, sw.Continuation)

	first := sw.FirstCase
	require.Equal(t, cfg.SwitchCaseDecision, first.Kind)
	require.Len(t, first.Labels, 1)
	assert.Same(t, sw, first.Parent)

	// The first decision's false edge reaches the default bearing case
	// decision, whose body is b().
	second := first.False
	require.Equal(t, cfg.SwitchCaseDecision, second.Kind)
	assert.True(t, second.HasDefault)
	assert.Equal(t, cfg.BasicBlock, second.True.Kind)
}

func TestSwitchFallthrough(t *testing.T) {
	g := buildFirst(t, `function f(x) {
	switch (x) {
	case 1:
		a();
	case 2:
		b();
		break;
	}
}`)
	checkWellFormed(t, g)

	sw := g.Entry.Outgoing()[0]
	first := sw.FirstCase
	// The first case's body falls through to the second case's body.
	firstBody := first.True
	secondBody := first.False.True
	assert.Contains(t, firstBody.Outgoing(), secondBody)
}

func TestClassGraph(t *testing.T) {
	list, _ := lexer.Lex("class c { var m1; var m2; constructor() {} }")
	script, _ := parser.Parse(list)
	c := script.Definitions[0].(*ast.ClassDef)
	g, diags := cfg.BuildClass(c)
	require.Empty(t, diags)

	require.Equal(t, cfg.ClassEntry, g.Entry.Kind)
	require.Equal(t, cfg.ClassExit, g.Exit.Kind)
	members := g.Entry.Outgoing()[0]
	assert.Equal(t, cfg.ClassMembersBlock, members.Kind)
	assert.Len(t, members.Statements, 2)
	assert.Same(t, g.Exit, members.Outgoing()[0])
	assert.Equal(t, 0, members.Scope)
}

func TestScopeDepth(t *testing.T) {
	list, _ := lexer.Lex("class c { function m() { x = 1; } }")
	script, _ := parser.Parse(list)
	c := script.Definitions[0].(*ast.ClassDef)
	m := c.Body[0].(*ast.FunctionDef)

	g, _ := cfg.BuildFunction(m, 1)
	for _, n := range g.Nodes {
		assert.Equal(t, 1, n.Scope)
	}
}

func TestUnreachableAfterReturn(t *testing.T) {
	g := buildFirst(t, `function f() {
	return;
	x = 1;
}`)
	// The block closes at the return; the trailing statement is dropped.
	block := g.Entry.Outgoing()[0]
	require.Equal(t, cfg.BasicBlock, block.Kind)
	assert.Len(t, block.Statements, 1)
	assert.Same(t, g.Exit, block.Outgoing()[0])
}
