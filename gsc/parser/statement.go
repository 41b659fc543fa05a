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

// block parses '{ statements }'.
func (p *parser) block() *ast.Block {
	open, _ := p.expect(token.OpenBrace)
	b := &ast.Block{}
	start := p.cur.Range
	if open != nil {
		start = open.Range
	}
	for p.cur.Kind != token.CloseBrace && p.cur.Kind != token.End {
		if s := p.statement(); s != nil {
			b.Statements = append(b.Statements, s)
		}
	}
	end := p.cur.Range
	if t, ok := p.expect(token.CloseBrace); ok {
		end = t.Range
	}
	b.SetRange(token.RangeBetween(start, end))
	return b
}

// statement parses a single statement, consuming its terminator.
func (p *parser) statement() ast.Statement {
	switch p.cur.Kind {
	case token.OpenBrace:
		return p.block()

	case token.If:
		return p.ifStatement()

	case token.While:
		return p.whileStatement()

	case token.Do:
		return p.doWhileStatement()

	case token.For:
		return p.forStatement()

	case token.Foreach:
		return p.foreachStatement()

	case token.Switch:
		return p.switchStatement()

	case token.Break:
		t := p.advance()
		s := &ast.Break{}
		s.SetRange(t.Range)
		p.expectSemicolon()
		return s

	case token.Continue:
		t := p.advance()
		s := &ast.Continue{}
		s.SetRange(t.Range)
		p.expectSemicolon()
		return s

	case token.Return:
		t := p.advance()
		s := &ast.Return{}
		end := t.Range
		if p.cur.Kind != token.Semicolon {
			s.Value = p.expression()
			end = s.Value.Range()
		}
		s.SetRange(token.RangeBetween(t.Range, end))
		p.expectSemicolon()
		return s

	case token.Wait:
		t := p.advance()
		s := &ast.Wait{Duration: p.expression()}
		s.SetRange(token.RangeBetween(t.Range, s.Duration.Range()))
		p.expectSemicolon()
		return s

	case token.WaitRealTime:
		t := p.advance()
		s := &ast.WaitRealTime{Duration: p.expression()}
		s.SetRange(token.RangeBetween(t.Range, s.Duration.Range()))
		p.expectSemicolon()
		return s

	case token.WaittillFrameEnd:
		t := p.advance()
		s := &ast.WaittillFrameEnd{}
		s.SetRange(t.Range)
		p.expectSemicolon()
		return s

	case token.Const:
		return p.constDecl()

	case token.DevBlockStart:
		return p.devBlock()

	case token.Semicolon:
		p.advance()
		return nil

	default:
		s := p.simpleStatement()
		p.expectSemicolon()
		return s
	}
}

// expectSemicolon consumes a ';', recovering to the next statement boundary
// when it is missing.
func (p *parser) expectSemicolon() {
	if _, ok := p.accept(token.Semicolon); ok {
		return
	}
	p.diags.Add(p.cur.Range, diag.ExpectedToken, token.Semicolon, p.cur.Lexeme)
	p.skipTo(token.Semicolon, token.CloseBrace)
	p.accept(token.Semicolon)
}

// simpleStatement parses an expression, assignment or increment statement
// without consuming a terminator. Used directly for for-loop headers.
func (p *parser) simpleStatement() ast.Statement {
	start := p.cur.Range
	expr := p.expression()

	if p.cur.Kind.IsAssignOp() {
		op := p.advance()
		value := p.expression()
		s := &ast.Assign{Target: expr, Op: op, Value: value}
		s.SetRange(token.RangeBetween(start, value.Range()))
		return s
	}

	s := &ast.ExprStmt{Expr: expr}
	s.SetRange(expr.Range())
	return s
}

func (p *parser) ifStatement() ast.Statement {
	kw := p.advance()
	s := &ast.If{}
	p.expect(token.OpenParen)
	s.Cond = p.expression()
	p.expect(token.CloseParen)
	s.Then = p.statement()

	end := kw.Range
	if s.Then != nil {
		end = s.Then.Range()
	}
	if _, ok := p.accept(token.Else); ok {
		s.Else = p.statement()
		if s.Else != nil {
			end = s.Else.Range()
		}
	}
	s.SetRange(token.RangeBetween(kw.Range, end))
	return s
}

func (p *parser) whileStatement() ast.Statement {
	kw := p.advance()
	s := &ast.While{}
	p.expect(token.OpenParen)
	s.Cond = p.expression()
	p.expect(token.CloseParen)
	s.Body = p.statement()
	end := kw.Range
	if s.Body != nil {
		end = s.Body.Range()
	}
	s.SetRange(token.RangeBetween(kw.Range, end))
	return s
}

func (p *parser) doWhileStatement() ast.Statement {
	kw := p.advance()
	s := &ast.DoWhile{}
	s.Body = p.statement()
	p.expect(token.While)
	p.expect(token.OpenParen)
	s.Cond = p.expression()
	end := p.cur.Range
	if t, ok := p.expect(token.CloseParen); ok {
		end = t.Range
	}
	p.expectSemicolon()
	s.SetRange(token.RangeBetween(kw.Range, end))
	return s
}

func (p *parser) forStatement() ast.Statement {
	kw := p.advance()
	s := &ast.For{}
	p.expect(token.OpenParen)
	if p.cur.Kind != token.Semicolon {
		s.Init = p.simpleStatement()
	}
	p.expect(token.Semicolon)
	if p.cur.Kind != token.Semicolon {
		s.Cond = p.expression()
	}
	p.expect(token.Semicolon)
	if p.cur.Kind != token.CloseParen {
		s.Incr = p.simpleStatement()
	}
	p.expect(token.CloseParen)
	s.Body = p.statement()
	end := kw.Range
	if s.Body != nil {
		end = s.Body.Range()
	}
	s.SetRange(token.RangeBetween(kw.Range, end))
	return s
}

func (p *parser) foreachStatement() ast.Statement {
	kw := p.advance()
	s := &ast.Foreach{}
	p.expect(token.OpenParen)
	if name, ok := p.expect(token.Identifier); ok {
		s.Value = name
	}
	if _, ok := p.accept(token.Comma); ok {
		// 'foreach (key, value in ...)'.
		s.Key = s.Value
		if name, ok := p.expect(token.Identifier); ok {
			s.Value = name
		}
	}
	p.expect(token.In)
	s.Collection = p.expression()
	p.expect(token.CloseParen)
	s.Body = p.statement()
	end := kw.Range
	if s.Body != nil {
		end = s.Body.Range()
	}
	s.SetRange(token.RangeBetween(kw.Range, end))
	return s
}

func (p *parser) switchStatement() ast.Statement {
	kw := p.advance()
	s := &ast.Switch{}
	p.expect(token.OpenParen)
	s.Value = p.expression()
	p.expect(token.CloseParen)
	p.expect(token.OpenBrace)

	sawDefault := false
	seenLabels := map[string]bool{}

	for p.cur.Kind != token.CloseBrace && p.cur.Kind != token.End {
		if !p.at(token.Case, token.Default) {
			p.diags.Add(p.cur.Range, diag.UnexpectedToken, p.cur.Lexeme)
			p.recoverStatement()
			continue
		}

		clause := &ast.CaseClause{}
		cstart := p.cur.Range

		// Stacked labels share one clause and one decision.
		for p.at(token.Case, token.Default) {
			if kwTok, ok := p.accept(token.Default); ok {
				if sawDefault {
					p.diags.Add(kwTok.Range, diag.MultipleDefaultLabels)
				}
				sawDefault = true
				clause.HasDefault = true
				p.expect(token.Colon)
				continue
			}
			p.advance() // 'case'
			label := p.expression()
			if lit, ok := label.(*ast.Literal); ok {
				key := lit.Token.Lexeme
				if seenLabels[key] {
					p.diags.Add(label.Range(), diag.DuplicateCaseLabel, key)
				}
				seenLabels[key] = true
			}
			clause.Labels = append(clause.Labels, label)
			p.expect(token.Colon)
		}

		cend := cstart
		for !p.at(token.Case, token.Default, token.CloseBrace) && p.cur.Kind != token.End {
			if stmt := p.statement(); stmt != nil {
				clause.Body = append(clause.Body, stmt)
				cend = stmt.Range()
			}
		}
		clause.SetRange(token.RangeBetween(cstart, cend))
		s.Cases = append(s.Cases, clause)
	}

	end := p.cur.Range
	if t, ok := p.expect(token.CloseBrace); ok {
		end = t.Range
	}
	s.SetRange(token.RangeBetween(kw.Range, end))
	return s
}

func (p *parser) constDecl() ast.Statement {
	kw := p.advance()
	s := &ast.ConstDecl{}
	end := kw.Range
	if name, ok := p.expect(token.Identifier); ok {
		s.Name = name
		end = name.Range
	}
	if _, ok := p.expect(token.Assign); ok {
		s.Value = p.expression()
		end = s.Value.Range()
	}
	s.SetRange(token.RangeBetween(kw.Range, end))
	p.expectSemicolon()
	return s
}

func (p *parser) devBlock() ast.Statement {
	open := p.advance()
	s := &ast.DevBlock{Body: &ast.Block{}}
	for p.cur.Kind != token.DevBlockEnd && p.cur.Kind != token.End {
		if stmt := p.statement(); stmt != nil {
			s.Body.Statements = append(s.Body.Statements, stmt)
		}
	}
	end := p.cur.Range
	if t, ok := p.accept(token.DevBlockEnd); ok {
		end = t.Range
	} else {
		p.diags.Add(open.Range, diag.UnterminatedDevBlock)
	}
	s.Body.SetRange(token.RangeBetween(open.Range, end))
	s.SetRange(token.RangeBetween(open.Range, end))
	return s
}
