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

// Package parser implements a recursive descent parser converting an
// expanded token stream into the abstract syntax tree of a script.
//
// On an unexpected token the parser records a diagnostic and skips to the
// nearest statement terminator or closing brace, so later statements still
// parse. Malformed definitions become placeholder nodes with nil name
// tokens; downstream stages skip them.
package parser

import (
	"github.com/gscode/gscls/gsc/ast"
	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/token"
)

type parser struct {
	list  *token.List
	cur   *token.Token
	diags diag.Diagnostics
}

// Parse converts the expanded token stream into a script AST. The returned
// tree is always non-nil; syntax errors surface in the diagnostics and as
// placeholder nodes.
func Parse(list *token.List) (*ast.Script, diag.Diagnostics) {
	p := &parser{list: list, cur: list.Start().NextCode()}
	script := p.script()
	return script, p.diags
}

// advance moves to the next non-trivia token and returns the token that was
// current.
func (p *parser) advance() *token.Token {
	t := p.cur
	if p.cur.Kind != token.End {
		p.cur = p.cur.NextCode()
	}
	return t
}

func (p *parser) at(kinds ...token.Kind) bool {
	return p.cur.Is(kinds...)
}

// accept consumes and returns the current token if it has the given kind.
func (p *parser) accept(kind token.Kind) (*token.Token, bool) {
	if p.cur.Kind == kind {
		return p.advance(), true
	}
	return nil, false
}

// expect consumes the current token if it has the given kind, otherwise it
// records an ExpectedToken diagnostic and leaves the stream untouched.
func (p *parser) expect(kind token.Kind) (*token.Token, bool) {
	if t, ok := p.accept(kind); ok {
		return t, true
	}
	p.diags.Add(p.cur.Range, diag.ExpectedToken, kind, p.cur.Lexeme)
	return nil, false
}

// skipTo advances until one of the kinds (or End) is current. Used for
// error recovery.
func (p *parser) skipTo(kinds ...token.Kind) {
	for p.cur.Kind != token.End && !p.cur.Is(kinds...) {
		p.advance()
	}
}

// recoverStatement skips past the nearest ';' or stops before a '}'.
func (p *parser) recoverStatement() {
	p.skipTo(token.Semicolon, token.CloseBrace)
	if p.cur.Kind == token.Semicolon {
		p.advance()
	}
}

// docBefore returns the doc comment token directly preceding t, if any.
// Only trivia may sit between the doc comment and t.
func docBefore(t *token.Token) *token.Token {
	for prev := t.Prev(); prev != nil; prev = prev.Prev() {
		switch prev.Kind {
		case token.DocComment:
			return prev
		case token.Whitespace, token.LineBreak, token.LineComment, token.BlockComment:
			continue
		default:
			return nil
		}
	}
	return nil
}

// script parses the root production: '#using' directives followed by any
// mix of namespaces, functions, classes and the remaining directives.
func (p *parser) script() *ast.Script {
	s := &ast.Script{}
	start := p.cur.Range
	sawDefinition := false

	for p.cur.Kind != token.End {
		switch p.cur.Kind {
		case token.PreUsing:
			d := p.dependency()
			if sawDefinition {
				p.diags.Add(d.Range(), diag.UnexpectedUsing)
			}
			s.Dependencies = append(s.Dependencies, d)

		case token.PreNamespace:
			s.Definitions = append(s.Definitions, p.namespace())
			sawDefinition = true

		case token.PrePrecache:
			s.Definitions = append(s.Definitions, p.precache())
			sawDefinition = true

		case token.PreUsingAnimTree:
			s.Definitions = append(s.Definitions, p.usingAnimTree())
			sawDefinition = true

		case token.PreAnimTree:
			t := p.advance()
			at := &ast.AnimTree{}
			at.SetRange(t.Range)
			p.accept(token.Semicolon)
			s.Definitions = append(s.Definitions, at)
			sawDefinition = true

		case token.Function, token.Private, token.Autoexec:
			s.Definitions = append(s.Definitions, p.functionDef())
			sawDefinition = true

		case token.Class:
			s.Definitions = append(s.Definitions, p.classDef())
			sawDefinition = true

		case token.DevBlockStart, token.DevBlockEnd:
			// Top level dev block delimiters bracket ordinary definitions;
			// the contents parse as if the delimiters were absent.
			p.advance()

		case token.Semicolon:
			p.advance()

		default:
			p.diags.Add(p.cur.Range, diag.UnexpectedToken, p.cur.Lexeme)
			p.advance()
			p.skipTo(token.Function, token.Private, token.Autoexec, token.Class,
				token.PreUsing, token.PreNamespace, token.PrePrecache,
				token.PreUsingAnimTree, token.PreAnimTree, token.DevBlockStart)
		}
	}

	s.SetRange(token.RangeBetween(start, p.cur.Range))
	return s
}

// dependency parses '#using path\to\script;'.
func (p *parser) dependency() *ast.Dependency {
	directive := p.advance()
	d := &ast.Dependency{}
	text := ""
	var first, last *token.Token
	for p.at(token.Identifier, token.Backslash, token.Divide, token.Dot) {
		t := p.advance()
		if first == nil {
			first = t
		}
		last = t
		if t.Kind == token.Divide {
			// Forward slashes are tolerated and normalised.
			text += "\\"
		} else {
			text += t.Lexeme
		}
	}
	d.Text = text
	if first != nil {
		d.Path = first
		d.SetRange(token.RangeBetween(directive.Range, last.Range))
	} else {
		p.diags.Add(directive.Range, diag.ExpectedToken, "script path", p.cur.Lexeme)
		d.SetRange(directive.Range)
	}
	p.accept(token.Semicolon)
	return d
}

// namespace parses '#namespace name;'.
func (p *parser) namespace() *ast.Namespace {
	directive := p.advance()
	n := &ast.Namespace{}
	if name, ok := p.expect(token.Identifier); ok {
		n.Name = name
		n.SetRange(token.RangeBetween(directive.Range, name.Range))
	} else {
		n.SetRange(directive.Range)
	}
	p.accept(token.Semicolon)
	return n
}

// precache parses '#precache(args);'.
func (p *parser) precache() *ast.Precache {
	directive := p.advance()
	n := &ast.Precache{}
	end := directive.Range
	if _, ok := p.expect(token.OpenParen); ok {
		for p.cur.Kind != token.CloseParen && p.cur.Kind != token.End {
			n.Args = append(n.Args, p.expression())
			if _, ok := p.accept(token.Comma); !ok {
				break
			}
		}
		if t, ok := p.expect(token.CloseParen); ok {
			end = t.Range
		}
	}
	n.SetRange(token.RangeBetween(directive.Range, end))
	p.accept(token.Semicolon)
	return n
}

// usingAnimTree parses '#using_animtree(name);'.
func (p *parser) usingAnimTree() *ast.UsingAnimTree {
	directive := p.advance()
	n := &ast.UsingAnimTree{}
	end := directive.Range
	if _, ok := p.expect(token.OpenParen); ok {
		n.Name = p.expression()
		if t, ok := p.expect(token.CloseParen); ok {
			end = t.Range
		}
	}
	n.SetRange(token.RangeBetween(directive.Range, end))
	p.accept(token.Semicolon)
	return n
}

// functionDef parses '[private] [autoexec] function name(params) { ... }'.
func (p *parser) functionDef() *ast.FunctionDef {
	f := &ast.FunctionDef{}
	start := p.cur.Range

	for p.at(token.Private, token.Autoexec) {
		t := p.advance()
		if t.Kind == token.Private {
			f.Private = true
		} else {
			f.Autoexec = true
		}
	}

	kw, ok := p.expect(token.Function)
	if !ok {
		f.SetRange(start)
		p.recoverStatement()
		return f
	}
	f.Doc = docBefore(firstOf(kw, start))

	// Modifiers are only legal before the keyword.
	for p.at(token.Private, token.Autoexec) {
		t := p.advance()
		p.diags.Add(t.Range, diag.UnexpectedFunctionModifier, t.Lexeme)
		if t.Kind == token.Private {
			f.Private = true
		} else {
			f.Autoexec = true
		}
	}

	if name, ok := p.accept(token.Identifier); ok {
		f.Name = name
	} else {
		p.diags.Add(p.cur.Range, diag.ExpectedToken, token.Identifier, p.cur.Lexeme)
	}

	f.Params = p.parameterList()
	if p.at(token.OpenBrace) {
		f.Body = p.block()
	} else {
		p.diags.Add(p.cur.Range, diag.ExpectedToken, token.OpenBrace, p.cur.Lexeme)
		p.recoverStatement()
	}

	end := start
	if f.Body != nil {
		end = f.Body.Range()
	} else if f.Params != nil {
		end = f.Params.Range()
	}
	f.SetRange(token.RangeBetween(start, end))
	return f
}

// firstOf returns the token whose range starts first; used to anchor the doc
// comment search at the first modifier rather than the keyword.
func firstOf(kw *token.Token, start token.Range) *token.Token {
	if kw.Range.Start.After(start.Start) {
		// A modifier preceded the keyword; walk back to it.
		t := kw
		for prev := t.PrevCode(); prev != nil && prev.Is(token.Private, token.Autoexec); prev = t.PrevCode() {
			t = prev
		}
		return t
	}
	return kw
}

// parameterList parses '(param, param, ...)'.
func (p *parser) parameterList() *ast.ParameterList {
	l := &ast.ParameterList{}
	open, ok := p.expect(token.OpenParen)
	if !ok {
		l.SetRange(p.cur.Range)
		return l
	}
	end := open.Range

	for p.cur.Kind != token.CloseParen && p.cur.Kind != token.End {
		if vararg, ok := p.accept(token.VarargDots); ok {
			if l.Vararg != nil || p.cur.Kind == token.Comma {
				p.diags.Add(vararg.Range, diag.VarargNotLastParameter)
			}
			l.Vararg = vararg
			if _, ok := p.accept(token.Comma); ok {
				continue
			}
			break
		}

		param := &ast.Parameter{}
		pstart := p.cur.Range
		if _, ok := p.accept(token.BitAnd); ok {
			param.ByRef = true
		}
		if name, ok := p.expect(token.Identifier); ok {
			param.Name = name
		} else {
			p.skipTo(token.Comma, token.CloseParen, token.OpenBrace)
			if p.cur.Kind != token.Comma {
				break
			}
			p.advance()
			continue
		}
		pend := param.Name.Range
		if _, ok := p.accept(token.Assign); ok {
			param.Default = p.expression()
			pend = param.Default.Range()
		}
		param.SetRange(token.RangeBetween(pstart, pend))
		l.Params = append(l.Params, param)
		if l.Vararg != nil {
			p.diags.Add(l.Vararg.Range, diag.VarargNotLastParameter)
		}
		if _, ok := p.accept(token.Comma); !ok {
			break
		}
	}

	if t, ok := p.expect(token.CloseParen); ok {
		end = t.Range
	}
	l.SetRange(token.RangeBetween(open.Range, end))
	return l
}

// classDef parses 'class name [: parent] { members }'.
func (p *parser) classDef() *ast.ClassDef {
	kw := p.advance()
	c := &ast.ClassDef{}
	end := kw.Range

	if name, ok := p.accept(token.Identifier); ok {
		c.Name = name
		end = name.Range
	} else {
		p.diags.Add(p.cur.Range, diag.ExpectedToken, token.Identifier, p.cur.Lexeme)
	}

	if _, ok := p.accept(token.Colon); ok {
		if parent, ok := p.expect(token.Identifier); ok {
			c.Parent = parent
			end = parent.Range
		}
	}

	if _, ok := p.expect(token.OpenBrace); !ok {
		c.SetRange(token.RangeBetween(kw.Range, end))
		p.recoverStatement()
		return c
	}

	for p.cur.Kind != token.CloseBrace && p.cur.Kind != token.End {
		switch p.cur.Kind {
		case token.Var:
			c.Body = append(c.Body, p.memberDecl())

		case token.Constructor:
			c.Body = append(c.Body, p.specialMethod(true))

		case token.Destructor:
			c.Body = append(c.Body, p.specialMethod(false))

		case token.Function, token.Private, token.Autoexec:
			c.Body = append(c.Body, p.functionDef())

		case token.Semicolon:
			p.advance()

		default:
			p.diags.Add(p.cur.Range, diag.UnexpectedToken, p.cur.Lexeme)
			p.advance()
			p.skipTo(token.Var, token.Constructor, token.Destructor,
				token.Function, token.Private, token.Autoexec, token.CloseBrace)
		}
	}
	if t, ok := p.expect(token.CloseBrace); ok {
		end = t.Range
	}
	c.SetRange(token.RangeBetween(kw.Range, end))
	return c
}

// memberDecl parses 'var name;'.
func (p *parser) memberDecl() *ast.MemberDecl {
	kw := p.advance()
	m := &ast.MemberDecl{}
	end := kw.Range
	if name, ok := p.expect(token.Identifier); ok {
		m.Name = name
		end = name.Range
	}
	m.SetRange(token.RangeBetween(kw.Range, end))
	p.accept(token.Semicolon)
	return m
}

// specialMethod parses 'constructor() { ... }' or 'destructor() { ... }'.
func (p *parser) specialMethod(isConstructor bool) *ast.FunctionDef {
	kw := p.advance()
	f := &ast.FunctionDef{
		Name:        kw,
		Constructor: isConstructor,
		Destructor:  !isConstructor,
		Doc:         docBefore(kw),
	}
	f.Params = p.parameterList()
	if len(f.Params.Params) > 0 || f.Params.Vararg != nil {
		p.diags.Add(f.Params.Range(), diag.UnexpectedConstructorParameter)
	}
	if p.at(token.OpenBrace) {
		f.Body = p.block()
	} else {
		p.diags.Add(p.cur.Range, diag.ExpectedToken, token.OpenBrace, p.cur.Lexeme)
		p.recoverStatement()
	}
	end := kw.Range
	if f.Body != nil {
		end = f.Body.Range()
	}
	f.SetRange(token.RangeBetween(kw.Range, end))
	return f
}
