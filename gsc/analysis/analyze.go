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

// Package analysis runs a worklist based forward data flow analysis over a
// function's control flow graph, tracking per variable abstract values and
// reporting the semantic diagnostics.
//
// Diagnostic and sense token emission is suppressed while the worklist
// iterates; a final pass over the fixpoint states produces the observable
// output, so editor decorations never reflect an intermediate state.
package analysis

import (
	"strings"

	"github.com/gscode/gscls/gsc/ast"
	"github.com/gscode/gscls/gsc/cfg"
	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/resolver"
	"github.com/gscode/gscls/gsc/token"
)

// Builtins resolves builtin API functions by name.
type Builtins interface {
	Lookup(name string) (*resolver.Function, bool)
}

// Options configure one analysis run.
type Options struct {
	// URI identifies the analyzed document.
	URI string

	// LanguageID selects the VM timing constants: "gsc" or "csc".
	LanguageID string

	// Table is the script's definitions table, already merged with its
	// dependencies' exports.
	Table *resolver.Table

	// Builtins resolves the sys namespace. Nil disables builtin lookup.
	Builtins Builtins

	// Class is the enclosing class when analyzing a method body.
	Class *resolver.Class
}

// vmRefreshHz is the server frame rate per language id. Waits shorter than
// one frame round up to a full frame.
var vmRefreshHz = map[string]float64{
	"gsc": 20,
	"csc": 20,
}

type analyzer struct {
	opts      Options
	diags     diag.Diagnostics
	reporting bool
}

// Analyze runs the data flow analysis over the graph and returns the
// semantic diagnostics.
func Analyze(g *cfg.Graph, opts Options) diag.Diagnostics {
	a := &analyzer{opts: opts}
	a.run(g)
	return a.diags
}

// report records a diagnostic, but only during the reporting pass.
func (a *analyzer) report(rng token.Range, code diag.Code, args ...interface{}) {
	if !a.reporting {
		return
	}
	a.diags.Add(rng, code, args...)
}

func (a *analyzer) run(g *cfg.Graph) {
	if g == nil || g.Entry == nil {
		return
	}

	initial := a.initialState(g)
	out := map[*cfg.Node]*SymbolTable{}

	// Fixpoint iteration with reporting suppressed.
	work := []*cfg.Node{g.Entry}
	queued := map[*cfg.Node]bool{g.Entry: true}
	for len(work) > 0 {
		n := work[0]
		work = work[1:]
		queued[n] = false

		in := a.inState(n, g, out, initial)
		newOut := a.transfer(n, in)
		if newOut.Equal(out[n]) {
			continue
		}
		out[n] = newOut
		for _, succ := range n.Outgoing() {
			if !queued[succ] {
				queued[succ] = true
				work = append(work, succ)
			}
		}
	}

	// Reporting pass over the fixpoint states, in node creation order so
	// diagnostics are deterministic.
	a.reporting = true
	for _, n := range g.Nodes {
		if n != g.Entry && len(n.Incoming()) == 0 {
			continue
		}
		in := a.inState(n, g, out, initial)
		a.transfer(n, in)
	}
	a.reporting = false
}

// initialState binds the function's parameters and nothing else; builtin
// globals resolve lazily through the table.
func (a *analyzer) initialState(g *cfg.Graph) *SymbolTable {
	st := NewSymbolTable()
	if g.Function == nil || g.Function.Params == nil {
		return st
	}
	scope := g.Entry.Scope
	for _, p := range g.Function.Params.Params {
		if p.Name == nil {
			continue
		}
		data := Any()
		st.Bind(&Variable{
			Name:     strings.ToLower(p.Name.Lexeme),
			Data:     data,
			Scope:    scope,
			Source:   DefParameter,
			Location: p.Name.Range,
		})
	}
	return st
}

// inState joins the predecessors' out states, dropping symbols from deeper
// scopes.
func (a *analyzer) inState(n *cfg.Node, g *cfg.Graph, out map[*cfg.Node]*SymbolTable, initial *SymbolTable) *SymbolTable {
	if n == g.Entry {
		return initial.Copy()
	}
	states := []*SymbolTable{}
	for _, pred := range n.Incoming() {
		if st, ok := out[pred]; ok {
			states = append(states, st)
		}
	}
	return Join(states, n.Scope)
}

// transfer interprets the node's payload against the in state and returns
// the out state.
func (a *analyzer) transfer(n *cfg.Node, st *SymbolTable) *SymbolTable {
	switch n.Kind {
	case cfg.BasicBlock, cfg.ClassMembersBlock:
		for _, s := range n.Statements {
			a.statement(s, st, n.Scope)
		}

	case cfg.Decision:
		a.eval(n.Condition, st)

	case cfg.Iteration:
		if n.Init != nil {
			a.statement(n.Init, st, n.Scope)
		}
		if n.Cond != nil {
			a.eval(n.Cond, st)
		}
		if n.Incr != nil {
			a.statement(n.Incr, st, n.Scope)
		}

	case cfg.Enumeration:
		fe := n.Foreach
		a.eval(fe.Collection, st)
		if fe.Key != nil {
			st.Bind(&Variable{
				Name:     strings.ToLower(fe.Key.Lexeme),
				Data:     Any(),
				Scope:    n.Scope,
				Source:   DefIterator,
				Location: fe.Key.Range,
			})
		}
		if fe.Value != nil {
			st.Bind(&Variable{
				Name:     strings.ToLower(fe.Value.Lexeme),
				Data:     Any(),
				Scope:    n.Scope,
				Source:   DefIterator,
				Location: fe.Value.Range,
			})
		}

	case cfg.Switch:
		if sw, ok := n.Source.(*ast.Switch); ok {
			a.eval(sw.Value, st)
		}

	case cfg.SwitchCaseDecision:
		for _, l := range n.Labels {
			a.eval(l, st)
		}

	case cfg.FunctionEntry, cfg.FunctionExit, cfg.ClassEntry, cfg.ClassExit:
		// No effect.
	}
	return st
}

// statement interprets one straight line statement.
func (a *analyzer) statement(s ast.Statement, st *SymbolTable, scope int) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		a.eval(n.Expr, st)

	case *ast.Assign:
		a.assign(n, st, scope)

	case *ast.ConstDecl:
		a.constDecl(n, st, scope)

	case *ast.Return:
		if n.Value != nil {
			a.eval(n.Value, st)
		}

	case *ast.Wait:
		a.wait(n.Duration, st)

	case *ast.WaitRealTime:
		a.wait(n.Duration, st)

	case *ast.WaittillFrameEnd, *ast.Break, *ast.Continue:
		// No data flow effect.
	}
}

// assign interprets an assignment or compound assignment statement.
func (a *analyzer) assign(n *ast.Assign, st *SymbolTable, scope int) {
	value := a.eval(n.Value, st)

	if call, ok := n.Value.(*ast.Call); ok && call.Thread {
		a.report(n.Range(), diag.AssignOnThreadedFunction)
	}

	switch target := n.Target.(type) {
	case *ast.Identifier:
		if target.Name == nil {
			return
		}
		name := strings.ToLower(target.Name.Lexeme)
		if ReservedNames[name] || target.Name.Kind != token.Identifier {
			a.report(target.Name.Range, diag.ReservedSymbol, target.Name.Lexeme)
			return
		}

		existing, bound := st.Get(name)
		if bound && existing.Const {
			a.report(target.Name.Range, diag.CannotAssignToConstant, name)
			return
		}

		if n.Op != nil && n.Op.Kind != token.Assign {
			// Compound assignment reads the old value first.
			old := Undefined()
			if bound {
				old = existing.Data
			}
			value = a.binaryOp(compoundBase(n.Op), old, value, n.Range())
		}

		v := &Variable{
			Name:     name,
			Data:     value,
			Scope:    scope,
			Source:   DefAssignment,
			Location: target.Name.Range,
		}
		if bound && existing.Source != DefBuiltin {
			v.Location = existing.Location
			v.Scope = existing.Scope
		}
		st.Bind(v)
		a.attachVariableSense(target.Name, v)

	case *ast.Member:
		a.member(target, st)

	case *ast.Index:
		a.eval(target.Object, st)
		a.eval(target.Index, st)

	default:
		a.report(n.Target.Range(), diag.InvalidAssignmentTarget)
	}
}

// compoundBase maps a compound assignment token to its base operator for
// the type compatibility check.
func compoundBase(op *token.Token) *token.Token {
	base := map[token.Kind]token.Kind{
		token.PlusAssign:       token.Plus,
		token.MinusAssign:      token.Minus,
		token.MultiplyAssign:   token.Multiply,
		token.DivideAssign:     token.Divide,
		token.ModuloAssign:     token.Modulo,
		token.BitAndAssign:     token.BitAnd,
		token.BitOrAssign:      token.BitOr,
		token.BitXorAssign:     token.BitXor,
		token.ShiftLeftAssign:  token.ShiftLeft,
		token.ShiftRightAssign: token.ShiftRight,
	}
	kind, ok := base[op.Kind]
	if !ok {
		return op
	}
	return &token.Token{Kind: kind, Lexeme: kind.String(), Range: op.Range}
}

// constDecl binds a constant, reporting a redefinition when the name is
// already bound.
func (a *analyzer) constDecl(n *ast.ConstDecl, st *SymbolTable, scope int) {
	if n.Name == nil {
		return
	}
	value := Any()
	if n.Value != nil {
		value = a.eval(n.Value, st)
	}
	name := strings.ToLower(n.Name.Lexeme)

	if ReservedNames[name] {
		a.report(n.Name.Range, diag.ReservedSymbol, n.Name.Lexeme)
		return
	}
	if _, bound := st.Get(name); bound {
		a.report(n.Name.Range, diag.RedefinitionOfSymbol, n.Name.Lexeme)
	}

	v := &Variable{
		Name:     name,
		Data:     value,
		Scope:    scope,
		Const:    true,
		Source:   DefConstant,
		Location: n.Name.Range,
	}
	st.Bind(v)
	if a.reporting {
		n.Name.AttachSense(&token.SenseDefinition{
			Kind:      token.SemanticVariable,
			Modifiers: token.ModifierReadonly | token.ModifierDeclaration,
			Hover:     "```gsc\nconst " + name + ": " + value.Type.String() + "\n```",
			DefURI:    a.opts.URI,
			DefRange:  n.Name.Range,
		})
	}
}

// wait checks a wait duration: non positive durations are errors and
// durations below the VM refresh period round up to one frame.
func (a *analyzer) wait(duration ast.Expression, st *SymbolTable) {
	d := a.eval(duration, st)
	v, known := d.AsFloat()
	if !known {
		if !d.IsNumeric() && d.Type != TypeAny {
			a.report(duration.Range(), diag.OperatorNotSupportedOn, "wait", d.Type)
		}
		return
	}
	if v <= 0 {
		a.report(duration.Range(), diag.CannotWaitNegativeDuration)
		return
	}
	hz, ok := vmRefreshHz[a.opts.LanguageID]
	if !ok {
		hz = vmRefreshHz["gsc"]
	}
	frame := 1 / hz
	if v < frame {
		a.report(duration.Range(), diag.BelowVmRefreshRate, frame)
	}
}
