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

package parser

import (
	"github.com/gscode/gscls/gsc/ast"
	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/token"
)

// Binding powers, loosest first: logical, equality, relational, bitwise,
// shift, additive, multiplicative.
var binaryPrecedence = map[token.Kind]int{
	token.Or:  1,
	token.And: 2,

	token.Equals:            3,
	token.NotEquals:         3,
	token.IdentityEquals:    3,
	token.IdentityNotEquals: 3,

	token.LessThan:          4,
	token.GreaterThan:       4,
	token.LessThanEquals:    4,
	token.GreaterThanEquals: 4,

	token.BitOr:  5,
	token.BitXor: 6,
	token.BitAnd: 7,

	token.ShiftLeft:  8,
	token.ShiftRight: 8,

	token.Plus:  9,
	token.Minus: 9,

	token.Multiply: 10,
	token.Divide:   10,
	token.Modulo:   10,
}

// expression parses a full expression.
func (p *parser) expression() ast.Expression {
	return p.binary(0)
}

// binary is a precedence climbing loop over binaryPrecedence. Operators are
// left associative.
func (p *parser) binary(min int) ast.Expression {
	lhs := p.unary()
	for {
		prec, ok := binaryPrecedence[p.cur.Kind]
		if !ok || prec <= min {
			return lhs
		}
		op := p.advance()
		rhs := p.binary(prec)
		b := &ast.Binary{LHS: lhs, Op: op, RHS: rhs}
		b.SetRange(token.RangeBetween(lhs.Range(), rhs.Range()))
		lhs = b
	}
}

// unary parses prefix operators and function pointers.
func (p *parser) unary() ast.Expression {
	switch p.cur.Kind {
	case token.Not, token.BitNot, token.Minus, token.Increment, token.Decrement:
		op := p.advance()
		operand := p.unary()
		u := &ast.Unary{Op: op, Operand: operand}
		u.SetRange(token.RangeBetween(op.Range, operand.Range()))
		return u

	case token.BitAnd:
		return p.funcPointer()

	default:
		return p.postfix()
	}
}

// funcPointer parses '&name' or '&namespace::name'.
func (p *parser) funcPointer() ast.Expression {
	amp := p.advance()
	f := &ast.FuncPointer{}
	end := amp.Range
	if name, ok := p.expect(token.Identifier); ok {
		f.Name = name
		end = name.Range
		if _, ok := p.accept(token.ScopeResolution); ok {
			f.Namespace = f.Name
			if name, ok := p.expect(token.Identifier); ok {
				f.Name = name
				end = name.Range
			}
		}
	}
	f.SetRange(token.RangeBetween(amp.Range, end))
	return f
}

// postfix parses a primary expression and its postfix extensions: member
// access, indexing, calls, increments, and the juxtaposed method call forms
// 'obj fn(args)' and 'obj thread fn(args)'.
func (p *parser) postfix() ast.Expression {
	lhs := p.primary()
	for {
		switch p.cur.Kind {
		case token.Dot:
			p.advance()
			m := &ast.Member{Object: lhs}
			end := lhs.Range()
			if name, ok := p.expect(token.Identifier); ok {
				m.Name = name
				end = name.Range
			}
			m.SetRange(token.RangeBetween(lhs.Range(), end))
			lhs = m

		case token.OpenBracket:
			p.advance()
			ix := &ast.Index{Object: lhs, Index: p.expression()}
			end := ix.Index.Range()
			if t, ok := p.expect(token.CloseBracket); ok {
				end = t.Range
			}
			ix.SetRange(token.RangeBetween(lhs.Range(), end))
			lhs = ix

		case token.OpenParen:
			lhs = p.call(lhs, nil, false)

		case token.Increment, token.Decrement:
			op := p.advance()
			pf := &ast.Postfix{Operand: lhs, Op: op}
			pf.SetRange(token.RangeBetween(lhs.Range(), op.Range))
			lhs = pf

		case token.Thread:
			p.advance()
			lhs = p.threadTarget(lhs)

		case token.Identifier, token.Waittill, token.WaittillMatch:
			lhs = p.methodCall(lhs)

		default:
			return lhs
		}
	}
}

// threadTarget parses the call following 'thread'. A non-call target still
// produces a Call node (with ArgList false) so the analyzer can report it.
func (p *parser) threadTarget(calledOn ast.Expression) ast.Expression {
	target := p.methodTarget()
	if p.cur.Kind == token.OpenParen {
		c := p.call(target, calledOn, true)
		return c
	}
	c := &ast.Call{CalledOn: calledOn, Thread: true, Callee: target}
	c.SetRange(target.Range())
	return c
}

// methodCall parses the 'obj fn(args)' juxtaposed invocation with lhs as
// the implicit receiver.
func (p *parser) methodCall(calledOn ast.Expression) ast.Expression {
	target := p.methodTarget()
	if p.cur.Kind != token.OpenParen {
		p.diags.Add(p.cur.Range, diag.ExpectedToken, token.OpenParen, p.cur.Lexeme)
		c := &ast.Call{CalledOn: calledOn, Callee: target}
		c.SetRange(target.Range())
		return c
	}
	return p.call(target, calledOn, false)
}

// methodTarget parses the callee of a method call: a plain or namespace
// qualified name. The reserved waittill flavours scan as keywords but act
// as function names here.
func (p *parser) methodTarget() ast.Expression {
	switch p.cur.Kind {
	case token.Identifier, token.Waittill, token.WaittillMatch:
		name := p.advance()
		if _, ok := p.accept(token.ScopeResolution); ok {
			ref := &ast.NamespacedRef{Namespace: name}
			end := name.Range
			if n, ok := p.expect(token.Identifier); ok {
				ref.Name = n
				end = n.Range
			}
			ref.SetRange(token.RangeBetween(name.Range, end))
			return ref
		}
		id := &ast.Identifier{Name: name}
		id.SetRange(name.Range)
		return id

	default:
		p.diags.Add(p.cur.Range, diag.ExpectedExpression)
		inv := &ast.Invalid{}
		inv.SetRange(p.cur.Range)
		if p.cur.Kind != token.End {
			p.advance()
		}
		return inv
	}
}

// call parses a parenthesised argument list applied to callee.
func (p *parser) call(callee ast.Expression, calledOn ast.Expression, threaded bool) ast.Expression {
	open := p.advance() // '('
	c := &ast.Call{CalledOn: calledOn, Thread: threaded, Callee: callee, ArgList: true}
	end := open.Range
	for p.cur.Kind != token.CloseParen && p.cur.Kind != token.End {
		c.Args = append(c.Args, p.expression())
		if _, ok := p.accept(token.Comma); !ok {
			break
		}
	}
	if t, ok := p.expect(token.CloseParen); ok {
		end = t.Range
	}
	start := callee.Range()
	if calledOn != nil {
		start = calledOn.Range()
	}
	c.SetRange(token.RangeBetween(start, end))
	return c
}

// primary parses the leaf expression forms.
func (p *parser) primary() ast.Expression {
	switch p.cur.Kind {
	case token.OpenParen:
		return p.groupOrVector()

	case token.Integer, token.Hex, token.Float, token.String, token.IString,
		token.CompilerHash, token.AnimIdentifier, token.ErrorString,
		token.True, token.False, token.Undefined:
		t := p.advance()
		lit := &ast.Literal{Token: t}
		lit.SetRange(t.Range)
		return lit

	case token.PreAnimTree:
		t := p.advance()
		at := &ast.AnimTree{}
		at.SetRange(t.Range)
		return at

	case token.Identifier, token.Waittill, token.WaittillMatch:
		name := p.advance()
		if _, ok := p.accept(token.ScopeResolution); ok {
			ref := &ast.NamespacedRef{Namespace: name}
			end := name.Range
			if n, ok := p.expect(token.Identifier); ok {
				ref.Name = n
				end = n.Range
			}
			ref.SetRange(token.RangeBetween(name.Range, end))
			return ref
		}
		id := &ast.Identifier{Name: name}
		id.SetRange(name.Range)
		return id

	case token.OpenBracket:
		open := p.advance()
		if t, ok := p.accept(token.CloseBracket); ok {
			arr := &ast.EmptyArray{}
			arr.SetRange(token.RangeBetween(open.Range, t.Range))
			return arr
		}
		// '[a, b]' style initialisation is not part of the language.
		for p.cur.Kind != token.CloseBracket && p.cur.Kind != token.End {
			p.expression()
			if _, ok := p.accept(token.Comma); !ok {
				break
			}
		}
		end := p.cur.Range
		if t, ok := p.accept(token.CloseBracket); ok {
			end = t.Range
		}
		rng := token.RangeBetween(open.Range, end)
		p.diags.Add(rng, diag.SquareBracketInitialisationNotSupported)
		arr := &ast.EmptyArray{}
		arr.SetRange(rng)
		return arr

	case token.New:
		return p.newExpression()

	case token.Thread:
		p.advance()
		return p.threadTarget(nil)

	default:
		p.diags.Add(p.cur.Range, diag.ExpectedExpression)
		inv := &ast.Invalid{}
		inv.SetRange(p.cur.Range)
		if p.cur.Kind != token.End {
			p.advance()
		}
		return inv
	}
}

// groupOrVector parses '(expr)' or the '(x, y, z)' vector literal.
func (p *parser) groupOrVector() ast.Expression {
	open := p.advance()
	first := p.expression()

	if _, ok := p.accept(token.Comma); !ok {
		end := first.Range()
		if t, ok := p.expect(token.CloseParen); ok {
			end = t.Range
		}
		g := &ast.Group{Expr: first}
		g.SetRange(token.RangeBetween(open.Range, end))
		return g
	}

	v := &ast.Vector{X: first}
	v.Y = p.expression()
	if _, ok := p.expect(token.Comma); ok {
		v.Z = p.expression()
	} else {
		inv := &ast.Invalid{}
		inv.SetRange(p.cur.Range)
		v.Z = inv
	}
	end := v.Z.Range()
	if t, ok := p.expect(token.CloseParen); ok {
		end = t.Range
	}
	v.SetRange(token.RangeBetween(open.Range, end))
	return v
}

// newExpression parses 'new ClassName()'. Constructor arguments are parsed
// for recovery but rejected.
func (p *parser) newExpression() ast.Expression {
	kw := p.advance()
	n := &ast.New{}
	end := kw.Range
	if name, ok := p.expect(token.Identifier); ok {
		n.Class = name
		end = name.Range
	}
	if _, ok := p.accept(token.OpenParen); ok {
		for p.cur.Kind != token.CloseParen && p.cur.Kind != token.End {
			n.Args = append(n.Args, p.expression())
			if _, ok := p.accept(token.Comma); !ok {
				break
			}
		}
		if t, ok := p.expect(token.CloseParen); ok {
			end = t.Range
		}
		if len(n.Args) > 0 {
			p.diags.Add(token.RangeBetween(n.Args[0].Range(), end), diag.UnexpectedConstructorParameter)
		}
	}
	n.SetRange(token.RangeBetween(kw.Range, end))
	return n
}
