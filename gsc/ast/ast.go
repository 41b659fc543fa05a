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

// Package ast holds the syntax tree nodes produced by parsing a GSC/CSC
// script.
package ast

import "github.com/gscode/gscls/gsc/token"

// Node is the interface implemented by all syntax tree nodes.
type Node interface {
	Range() token.Range
}

type node struct {
	rng token.Range
}

func (n *node) Range() token.Range     { return n.rng }
func (n *node) SetRange(r token.Range) { n.rng = r }

// Statement is implemented by all statement nodes.
type Statement interface {
	Node
	isStatement()
}

// Expression is implemented by all expression nodes.
type Expression interface {
	Node
	isExpression()
}

// Script is the root of a parsed file: its dependencies followed by its
// definitions.
type Script struct {
	node
	Dependencies []*Dependency
	Definitions  []Node
}

// Dependency is a single '#using path;' directive.
type Dependency struct {
	node
	Path *token.Token // The raw path token run, joined.
	Text string       // The backslash separated script path.
}

// Namespace is a '#namespace name;' directive. The active namespace applies
// to every definition that follows it.
type Namespace struct {
	node
	Name *token.Token
}

// Precache is a '#precache(type, name);' directive.
type Precache struct {
	node
	Args []Expression
}

// UsingAnimTree is a '#using_animtree(name);' directive.
type UsingAnimTree struct {
	node
	Name Expression
}

// AnimTree is the '#animtree' value directive.
type AnimTree struct{ node }

// FunctionDef is a function, method, constructor or destructor definition.
type FunctionDef struct {
	node
	Private     bool
	Autoexec    bool
	Constructor bool
	Destructor  bool
	Name        *token.Token // nil when the definition is malformed.
	Params      *ParameterList
	Body        *Block
	Doc         *token.Token // The preceding /@ ... @/ token, if any.
}

// ParameterList is a function's declared parameters.
type ParameterList struct {
	node
	Params []*Parameter
	Vararg *token.Token // The '...' token, if present.
}

// Parameter is one declared parameter, optionally by-reference and
// optionally defaulted.
type Parameter struct {
	node
	ByRef   bool
	Name    *token.Token
	Default Expression
}

// ClassDef is a 'class name [: parent] { ... }' definition.
type ClassDef struct {
	node
	Name   *token.Token // nil when malformed.
	Parent *token.Token // nil when the class has no parent.
	Body   []Node       // MemberDecl and FunctionDef entries in order.
}

// MemberDecl is a 'var name;' member declaration inside a class body.
type MemberDecl struct {
	node
	Name *token.Token
}

// DevBlock is a '/# ... #/' region, compiled only in debug builds.
type DevBlock struct {
	node
	Body *Block
}

// Statements.

// Block is a brace delimited statement list.
type Block struct {
	node
	Statements []Statement
}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	node
	Expr Expression
}

// Assign is an assignment or compound assignment statement.
type Assign struct {
	node
	Target Expression
	Op     *token.Token
	Value  Expression
}

// ConstDecl is a 'const name = value;' declaration.
type ConstDecl struct {
	node
	Name  *token.Token
	Value Expression
}

// If is an if/else chain. Else is either another *If, a Statement, or nil.
type If struct {
	node
	Cond Expression
	Then Statement
	Else Statement
}

// While is a 'while (cond) body' loop.
type While struct {
	node
	Cond Expression
	Body Statement
}

// DoWhile is a 'do body while (cond);' loop.
type DoWhile struct {
	node
	Body Statement
	Cond Expression
}

// For is a 'for (init; cond; incr) body' loop. Init, Cond and Incr may each
// be nil.
type For struct {
	node
	Init Statement
	Cond Expression
	Incr Statement
	Body Statement
}

// Foreach is a 'foreach (value in collection)' or
// 'foreach (key, value in collection)' loop.
type Foreach struct {
	node
	Key        *token.Token // nil for the single name form.
	Value      *token.Token
	Collection Expression
	Body       Statement
}

// Switch is a 'switch (value) { case ...: }' statement.
type Switch struct {
	node
	Value Expression
	Cases []*CaseClause
}

// CaseClause is a run of stacked 'case expr:' and 'default:' labels followed
// by the statements up to the next label.
type CaseClause struct {
	node
	Labels     []Expression
	HasDefault bool
	Body       []Statement
}

// Break is a 'break;' statement.
type Break struct{ node }

// Continue is a 'continue;' statement.
type Continue struct{ node }

// Return is a 'return [value];' statement.
type Return struct {
	node
	Value Expression // nil for a bare return.
}

// Wait is a 'wait duration;' statement.
type Wait struct {
	node
	Duration Expression
}

// WaitRealTime is a 'waitrealtime duration;' statement.
type WaitRealTime struct {
	node
	Duration Expression
}

// WaittillFrameEnd is a 'waittillframeend;' statement.
type WaittillFrameEnd struct{ node }

// Expressions.

// Binary is a binary operator expression.
type Binary struct {
	node
	LHS Expression
	Op  *token.Token
	RHS Expression
}

// Unary is a prefix operator expression.
type Unary struct {
	node
	Op      *token.Token
	Operand Expression
}

// Postfix is a postfix increment or decrement.
type Postfix struct {
	node
	Operand Expression
	Op      *token.Token
}

// Call is a function or method invocation. CalledOn is the implicit
// receiver for the 'obj fn(args)' form and nil otherwise. Thread marks
// 'thread fn(args)'.
type Call struct {
	node
	CalledOn Expression
	Thread   bool
	Callee   Expression
	Args     []Expression

	// ArgList is false when no parenthesised argument list followed the
	// callee, which only parses under 'thread' and is diagnosed later.
	ArgList bool
}

// Member is an 'object.name' access.
type Member struct {
	node
	Object Expression
	Name   *token.Token
}

// Index is an 'object[index]' access.
type Index struct {
	node
	Object Expression
	Index  Expression
}

// NamespacedRef is a 'namespace::name' reference.
type NamespacedRef struct {
	node
	Namespace *token.Token
	Name      *token.Token
}

// FuncPointer is a '&name' or '&namespace::name' function pointer.
type FuncPointer struct {
	node
	Namespace *token.Token // nil for the unqualified form.
	Name      *token.Token
}

// Identifier is a bare name reference.
type Identifier struct {
	node
	Name *token.Token
}

// Literal is a literal token: integer, hex, float, string flavours, bool,
// undefined or anim identifier.
type Literal struct {
	node
	Token *token.Token
}

// Vector is an '(x, y, z)' vector literal.
type Vector struct {
	node
	X, Y, Z Expression
}

// Group is a parenthesised expression.
type Group struct {
	node
	Expr Expression
}

// EmptyArray is the '[]' literal.
type EmptyArray struct{ node }

// New is a 'new ClassName()' instantiation. Arguments are recorded but
// rejected by the parser.
type New struct {
	node
	Class *token.Token
	Args  []Expression
}

// Invalid is a placeholder produced during error recovery.
type Invalid struct{ node }

func (*Block) isStatement()            {}
func (*ExprStmt) isStatement()         {}
func (*Assign) isStatement()           {}
func (*ConstDecl) isStatement()        {}
func (*If) isStatement()               {}
func (*While) isStatement()            {}
func (*DoWhile) isStatement()          {}
func (*For) isStatement()              {}
func (*Foreach) isStatement()          {}
func (*Switch) isStatement()           {}
func (*Break) isStatement()            {}
func (*Continue) isStatement()         {}
func (*Return) isStatement()           {}
func (*Wait) isStatement()             {}
func (*WaitRealTime) isStatement()     {}
func (*WaittillFrameEnd) isStatement() {}
func (*DevBlock) isStatement()         {}
func (*Invalid) isStatement()          {}

func (*Binary) isExpression()        {}
func (*Unary) isExpression()         {}
func (*Postfix) isExpression()       {}
func (*Call) isExpression()          {}
func (*Member) isExpression()        {}
func (*Index) isExpression()         {}
func (*NamespacedRef) isExpression() {}
func (*FuncPointer) isExpression()   {}
func (*Identifier) isExpression()    {}
func (*Literal) isExpression()       {}
func (*Vector) isExpression()        {}
func (*Group) isExpression()         {}
func (*EmptyArray) isExpression()    {}
func (*AnimTree) isExpression()      {}
func (*New) isExpression()           {}
func (*Invalid) isExpression()       {}
