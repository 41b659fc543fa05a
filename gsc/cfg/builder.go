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

package cfg

import (
	"github.com/gscode/gscls/gsc/ast"
	"github.com/gscode/gscls/gsc/diag"
)

// targets carries the four context nodes through construction: where
// return, continue and break jump, and where straight line code falls
// through. Successors are always built before their predecessors are wired.
type targets struct {
	returnTarget   *Node
	continueTarget *Node
	breakTarget    *Node
	continuation   *Node
}

type builder struct {
	graph *Graph
	scope int
	diags diag.Diagnostics
}

// BuildFunction constructs the control flow graph for a function, method,
// constructor or destructor body. scope is 0 for free functions and 1 for
// class methods.
func BuildFunction(fn *ast.FunctionDef, scope int) (*Graph, diag.Diagnostics) {
	g := &Graph{Function: fn}
	b := &builder{graph: g, scope: scope}

	entry := g.newNode(FunctionEntry, scope)
	exit := g.newNode(FunctionExit, scope)
	g.Entry, g.Exit = entry, exit

	t := targets{returnTarget: exit, continuation: exit}
	var head *Node
	if fn.Body != nil {
		head = b.construct(fn.Body.Statements, t)
	} else {
		head = exit
	}
	Connect(entry, head)
	return g, b.diags
}

// BuildClass constructs the control flow graph for a class body: entry,
// a members block holding the var declarations, and exit. Methods get
// their own function graphs.
func BuildClass(c *ast.ClassDef) (*Graph, diag.Diagnostics) {
	g := &Graph{Class: c}
	b := &builder{graph: g, scope: 0}

	entry := g.newNode(ClassEntry, 0)
	exit := g.newNode(ClassExit, 0)
	g.Entry, g.Exit = entry, exit

	members := g.newNode(ClassMembersBlock, 0)
	for _, n := range c.Body {
		if m, ok := n.(*ast.MemberDecl); ok {
			members.Statements = append(members.Statements, memberAsStatement(m))
		}
	}
	Connect(entry, members)
	Connect(members, exit)
	return g, b.diags
}

// memberAsStatement wraps a member declaration so the members block can
// carry it in its statement list.
func memberAsStatement(m *ast.MemberDecl) ast.Statement {
	s := &ast.ExprStmt{}
	id := &ast.Identifier{Name: m.Name}
	if m.Name != nil {
		id.SetRange(m.Name.Range)
		s.SetRange(m.Name.Range)
	}
	s.Expr = id
	return s
}

// construct builds the graph for a statement sequence and returns its head
// node. The continuation is built by the caller, so successors exist before
// predecessors are wired.
func (b *builder) construct(stmts []ast.Statement, t targets) *Node {
	if len(stmts) == 0 {
		return t.continuation
	}

	first := stmts[0]
	rest := stmts[1:]

	if isControlFlow(first) {
		cont := b.construct(rest, t)
		inner := t
		inner.continuation = cont
		return b.constructControl(first, inner)
	}

	// Accumulate a maximal basic block of straight line statements. A jump
	// closes the block; statements after it in the same sequence are
	// unreachable and dropped.
	block := b.graph.newNode(BasicBlock, b.scope)
	i := 0
	for ; i < len(stmts); i++ {
		s := stmts[i]
		if isControlFlow(s) {
			break
		}
		block.Statements = append(block.Statements, s)
		if target, isJump := b.jumpTarget(s, t); isJump {
			Connect(block, target)
			return block
		}
	}

	cont := b.construct(stmts[i:], t)
	Connect(block, cont)
	return block
}

// jumpTarget resolves break/continue/return to their target node.
func (b *builder) jumpTarget(s ast.Statement, t targets) (*Node, bool) {
	switch s.(type) {
	case *ast.Break:
		if t.breakTarget != nil {
			return t.breakTarget, true
		}
		return t.continuation, true
	case *ast.Continue:
		if t.continueTarget != nil {
			return t.continueTarget, true
		}
		return t.continuation, true
	case *ast.Return:
		return t.returnTarget, true
	}
	return nil, false
}

func isControlFlow(s ast.Statement) bool {
	switch s.(type) {
	case *ast.If, *ast.While, *ast.DoWhile, *ast.For, *ast.Foreach,
		*ast.Switch, *ast.Block, *ast.DevBlock:
		return true
	}
	return false
}

// single constructs the graph for one statement used as a loop or branch
// body.
func (b *builder) single(s ast.Statement, t targets) *Node {
	if s == nil {
		return t.continuation
	}
	return b.construct([]ast.Statement{s}, t)
}

// constructControl builds the node(s) for one control flow statement. The
// continuation in t is already built.
func (b *builder) constructControl(s ast.Statement, t targets) *Node {
	switch n := s.(type) {
	case *ast.Block:
		// Brace blocks do not open a new scope depth; the language has no
		// lexical scoping within functions.
		return b.construct(n.Statements, t)

	case *ast.DevBlock:
		return b.construct(n.Body.Statements, t)

	case *ast.If:
		return b.constructIf(n, t)

	case *ast.While:
		return b.constructWhile(n, t)

	case *ast.DoWhile:
		return b.constructDoWhile(n, t)

	case *ast.For:
		return b.constructFor(n, t)

	case *ast.Foreach:
		return b.constructForeach(n, t)

	case *ast.Switch:
		return b.constructSwitch(n, t)

	default:
		return t.continuation
	}
}

// constructIf wires a decision whose true edge enters the then body and
// whose false edge enters the else chain or the continuation. An else-if is
// a nested decision sharing the continuation.
func (b *builder) constructIf(n *ast.If, t targets) *Node {
	d := b.graph.newNode(Decision, b.scope)
	d.Source = n
	d.Condition = n.Cond

	inner := t
	thenHead := b.single(n.Then, inner)

	elseHead := t.continuation
	if n.Else != nil {
		elseHead = b.single(n.Else, inner)
	}

	d.True, d.False = thenHead, elseHead
	Connect(d, thenHead)
	Connect(d, elseHead)
	return d
}

func (b *builder) constructWhile(n *ast.While, t targets) *Node {
	d := b.graph.newNode(Decision, b.scope)
	d.Source = n
	d.Condition = n.Cond

	body := targets{
		returnTarget:   t.returnTarget,
		continueTarget: d,
		breakTarget:    t.continuation,
		continuation:   d,
	}
	bodyHead := b.single(n.Body, body)

	d.True, d.False = bodyHead, t.continuation
	Connect(d, bodyHead)
	Connect(d, t.continuation)
	return d
}

// constructDoWhile wires the same shape as while, but the body is the
// entry.
func (b *builder) constructDoWhile(n *ast.DoWhile, t targets) *Node {
	d := b.graph.newNode(Decision, b.scope)
	d.Source = n
	d.Condition = n.Cond

	body := targets{
		returnTarget:   t.returnTarget,
		continueTarget: d,
		breakTarget:    t.continuation,
		continuation:   d,
	}
	bodyHead := b.single(n.Body, body)

	d.True, d.False = bodyHead, t.continuation
	Connect(d, bodyHead)
	Connect(d, t.continuation)
	return bodyHead
}

// constructFor builds an iteration node carrying init/cond/incr. The body
// connects back to the iteration so the increment runs on the back edge.
func (b *builder) constructFor(n *ast.For, t targets) *Node {
	it := b.graph.newNode(Iteration, b.scope)
	it.Source = n
	it.Init, it.Cond, it.Incr = n.Init, n.Cond, n.Incr

	body := targets{
		returnTarget:   t.returnTarget,
		continueTarget: it,
		breakTarget:    t.continuation,
		continuation:   it,
	}
	bodyHead := b.single(n.Body, body)

	it.True, it.False = bodyHead, t.continuation
	Connect(it, bodyHead)
	Connect(it, t.continuation)
	return it
}

func (b *builder) constructForeach(n *ast.Foreach, t targets) *Node {
	en := b.graph.newNode(Enumeration, b.scope)
	en.Source = n
	en.Foreach = n

	body := targets{
		returnTarget:   t.returnTarget,
		continueTarget: en,
		breakTarget:    t.continuation,
		continuation:   en,
	}
	bodyHead := b.single(n.Body, body)

	en.True, en.False = bodyHead, t.continuation
	Connect(en, bodyHead)
	Connect(en, t.continuation)
	return en
}

// constructSwitch builds the switch head and its case decision chain. The
// decisions are built right to left so each false edge points at the next
// decision, and the last false edge lands on the unmatched target: the
// default bearing clause's body if there is one, else the continuation.
// Case bodies fall through to the following clause's body.
func (b *builder) constructSwitch(n *ast.Switch, t targets) *Node {
	sw := b.graph.newNode(Switch, b.scope)
	sw.Source = n
	sw.Continuation = t.continuation

	count := len(n.Cases)
	bodyHeads := make([]*Node, count)
	for i := count - 1; i >= 0; i-- {
		fallthroughTo := t.continuation
		if i+1 < count {
			fallthroughTo = bodyHeads[i+1]
		}
		body := targets{
			returnTarget:   t.returnTarget,
			continueTarget: t.continueTarget,
			breakTarget:    t.continuation,
			continuation:   fallthroughTo,
		}
		bodyHeads[i] = b.construct(n.Cases[i].Body, body)
	}

	unmatched := t.continuation
	for i, c := range n.Cases {
		if c.HasDefault {
			unmatched = bodyHeads[i]
			break
		}
	}

	next := unmatched
	var first *Node
	for i := count - 1; i >= 0; i-- {
		c := n.Cases[i]
		if len(c.Labels) == 0 {
			// A default only clause has no decision of its own.
			continue
		}
		d := b.graph.newNode(SwitchCaseDecision, b.scope)
		d.Source = c
		d.Labels = c.Labels
		d.HasDefault = c.HasDefault
		d.Parent = sw
		d.True, d.False = bodyHeads[i], next
		Connect(d, bodyHeads[i])
		Connect(d, next)
		next = d
		first = d
	}

	if first == nil {
		first = unmatched
	}
	sw.FirstCase = first
	Connect(sw, first)
	return sw
}
