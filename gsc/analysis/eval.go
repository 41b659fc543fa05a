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

package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gscode/gscls/gsc/ast"
	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/resolver"
	"github.com/gscode/gscls/gsc/token"
)

// eval computes the abstract value of an expression in the given state,
// reporting diagnostics and attaching sense tokens when the analyzer is in
// its reporting pass.
func (a *analyzer) eval(e ast.Expression, st *SymbolTable) *ScrData {
	switch n := e.(type) {
	case *ast.Literal:
		return a.literal(n)

	case *ast.Identifier:
		return a.identifier(n, st)

	case *ast.Binary:
		lhs := a.eval(n.LHS, st)
		rhs := a.eval(n.RHS, st)
		return a.binaryOp(n.Op, lhs, rhs, n.Range())

	case *ast.Unary:
		return a.unaryOp(n, st)

	case *ast.Postfix:
		operand := a.eval(n.Operand, st)
		if !operand.IsNumeric() && operand.Type != TypeAny {
			a.report(n.Range(), diag.OperatorNotSupportedOn, n.Op.Lexeme, operand.Type)
		}
		return operand

	case *ast.Group:
		return a.eval(n.Expr, st)

	case *ast.Vector:
		a.eval(n.X, st)
		a.eval(n.Y, st)
		a.eval(n.Z, st)
		return UnknownOf(TypeVector)

	case *ast.EmptyArray:
		return UnknownOf(TypeArray)

	case *ast.Call:
		return a.call(n, st)

	case *ast.Member:
		return a.member(n, st)

	case *ast.Index:
		a.eval(n.Object, st)
		a.eval(n.Index, st)
		return Any()

	case *ast.NamespacedRef:
		fn, _ := a.resolveQualified(n.Namespace, n.Name, n.Range())
		return FunctionOf(fn)

	case *ast.FuncPointer:
		return a.funcPointer(n)

	case *ast.New:
		return a.newInstance(n)

	case *ast.AnimTree:
		return UnknownOf(TypeString)

	case *ast.Invalid, nil:
		return Any()

	default:
		return Any()
	}
}

func (a *analyzer) literal(n *ast.Literal) *ScrData {
	t := n.Token
	switch t.Kind {
	case token.Integer:
		v, err := strconv.ParseInt(t.Lexeme, 10, 64)
		if err != nil || v > math.MaxInt32 {
			a.report(t.Range, diag.IntegerTooLarge)
			return UnknownOf(TypeInt)
		}
		return IntOf(v)
	case token.Hex:
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(t.Lexeme), "0x"), 16, 64)
		if err != nil || v > math.MaxUint32 {
			a.report(t.Range, diag.IntegerTooLarge)
			return UnknownOf(TypeInt)
		}
		return IntOf(int64(int32(uint32(v))))
	case token.Float:
		v, err := strconv.ParseFloat(t.Lexeme, 64)
		if err != nil {
			return UnknownOf(TypeFloat)
		}
		return FloatOf(v)
	case token.String:
		return StringOf(unquote(t.Lexeme))
	case token.IString, token.CompilerHash, token.ErrorString:
		return UnknownOf(TypeString)
	case token.AnimIdentifier:
		return Any()
	case token.True:
		return BoolOf(true)
	case token.False:
		return BoolOf(false)
	case token.Undefined:
		return Undefined()
	default:
		return Any()
	}
}

func unquote(lexeme string) string {
	s := strings.TrimPrefix(lexeme, "\"")
	s = strings.TrimSuffix(s, "\"")
	return s
}

func (a *analyzer) identifier(n *ast.Identifier, st *SymbolTable) *ScrData {
	if n.Name == nil {
		return Any()
	}
	name := strings.ToLower(n.Name.Lexeme)

	if ReservedNames[name] || n.Name.Kind != token.Identifier {
		// Reserved pseudo functions referenced outside a call.
		return FunctionOf(nil)
	}

	if v, ok := st.Get(name); ok {
		a.attachVariableSense(n.Name, v)
		return v.Data
	}
	// An unbound read evaluates to undefined at runtime.
	return Undefined()
}

func (a *analyzer) attachVariableSense(t *token.Token, v *Variable) {
	if !a.reporting {
		return
	}
	t.AttachSense(&token.SenseDefinition{
		Kind:     token.SemanticVariable,
		Hover:    fmt.Sprintf("```gsc\n%s: %s\n```", v.Name, v.Data.Type),
		DefURI:   a.opts.URI,
		DefRange: v.Location,
	})
}

func (a *analyzer) attachFunctionSense(t *token.Token, fn *resolver.Function) {
	if !a.reporting || t == nil || fn == nil {
		return
	}
	kind := token.SemanticFunction
	mods := token.SemanticModifier(0)
	if fn.Implicit {
		mods |= token.ModifierDefaultLibrary
	}
	hover := fmt.Sprintf("```gsc\nfunction %s\n```", fn.Signature())
	if fn.Doc != "" {
		hover += "\n\n" + fn.Doc
	}
	t.AttachSense(&token.SenseDefinition{
		Kind:      kind,
		Modifiers: mods,
		Hover:     hover,
		DefURI:    fn.Location.URI,
		DefRange:  fn.Location.Range,
	})
}

// unaryOp folds and checks !, ~ and unary minus.
func (a *analyzer) unaryOp(n *ast.Unary, st *SymbolTable) *ScrData {
	operand := a.eval(n.Operand, st)
	switch n.Op.Kind {
	case token.Not:
		if operand.Known && operand.Type == TypeBool {
			return BoolOf(!operand.BoolVal)
		}
		return UnknownOf(TypeBool)

	case token.BitNot:
		if operand.Type != TypeInt && operand.Type != TypeAny {
			a.report(n.Range(), diag.OperatorNotSupportedOn, n.Op.Lexeme, operand.Type)
			return UnknownOf(TypeInt)
		}
		if operand.Known && operand.Type == TypeInt {
			return IntOf(^operand.IntVal)
		}
		return UnknownOf(TypeInt)

	case token.Minus:
		switch operand.Type {
		case TypeInt:
			if operand.Known {
				v := -operand.IntVal
				if v < math.MinInt32 {
					a.report(n.Range(), diag.IntegerTooSmall)
					return UnknownOf(TypeInt)
				}
				return IntOf(v)
			}
			return UnknownOf(TypeInt)
		case TypeFloat:
			if operand.Known {
				return FloatOf(-operand.FloatVal)
			}
			return UnknownOf(TypeFloat)
		case TypeVector, TypeAny:
			return UnknownOf(operand.Type)
		default:
			a.report(n.Range(), diag.OperatorNotSupportedOn, n.Op.Lexeme, operand.Type)
			return Any()
		}

	case token.Increment, token.Decrement:
		if !operand.IsNumeric() && operand.Type != TypeAny {
			a.report(n.Range(), diag.OperatorNotSupportedOn, n.Op.Lexeme, operand.Type)
		}
		return operand

	default:
		return Any()
	}
}

// binaryOp checks operand type compatibility against the operator table and
// folds statically known operands.
func (a *analyzer) binaryOp(op *token.Token, lhs, rhs *ScrData, rng token.Range) *ScrData {
	anyside := lhs.Type == TypeAny || rhs.Type == TypeAny

	switch op.Kind {
	case token.And, token.Or:
		return UnknownOf(TypeBool)

	case token.Equals, token.NotEquals, token.IdentityEquals, token.IdentityNotEquals:
		return UnknownOf(TypeBool)

	case token.LessThan, token.GreaterThan, token.LessThanEquals, token.GreaterThanEquals:
		if !anyside && (!lhs.IsNumeric() || !rhs.IsNumeric()) {
			a.report(rng, diag.OperatorNotSupportedOnTypes, op.Lexeme, lhs.Type, rhs.Type)
		}
		return UnknownOf(TypeBool)

	case token.BitAnd, token.BitOr, token.BitXor, token.ShiftLeft, token.ShiftRight:
		if !anyside && (lhs.Type != TypeInt || rhs.Type != TypeInt) {
			a.report(rng, diag.OperatorNotSupportedOnTypes, op.Lexeme, lhs.Type, rhs.Type)
			return UnknownOf(TypeInt)
		}
		if lhs.Known && rhs.Known && lhs.Type == TypeInt && rhs.Type == TypeInt {
			return foldIntOp(op.Kind, lhs.IntVal, rhs.IntVal)
		}
		return UnknownOf(TypeInt)

	case token.Plus:
		if lhs.Type == TypeString && rhs.Type == TypeString {
			if lhs.Known && rhs.Known {
				return StringOf(lhs.StrVal + rhs.StrVal)
			}
			return UnknownOf(TypeString)
		}
		fallthrough

	case token.Minus:
		if lhs.Type == TypeVector && rhs.Type == TypeVector {
			return UnknownOf(TypeVector)
		}
		return a.arithmetic(op, lhs, rhs, rng)

	case token.Multiply:
		if (lhs.Type == TypeVector && rhs.IsNumeric()) || (lhs.IsNumeric() && rhs.Type == TypeVector) {
			return UnknownOf(TypeVector)
		}
		return a.arithmetic(op, lhs, rhs, rng)

	case token.Divide:
		if z, ok := rhs.AsFloat(); ok && z == 0 {
			a.report(rng, diag.DivisionByZero)
			return Any()
		}
		if lhs.Type == TypeVector && rhs.IsNumeric() {
			return UnknownOf(TypeVector)
		}
		return a.arithmetic(op, lhs, rhs, rng)

	case token.Modulo:
		if z, ok := rhs.AsFloat(); ok && z == 0 {
			a.report(rng, diag.DivisionByZero)
			return Any()
		}
		if !anyside && (lhs.Type != TypeInt || rhs.Type != TypeInt) {
			a.report(rng, diag.OperatorNotSupportedOnTypes, op.Lexeme, lhs.Type, rhs.Type)
			return UnknownOf(TypeInt)
		}
		if lhs.Known && rhs.Known && lhs.Type == TypeInt && rhs.Type == TypeInt {
			return IntOf(lhs.IntVal % rhs.IntVal)
		}
		return UnknownOf(TypeInt)

	default:
		return Any()
	}
}

// arithmetic handles the numeric +, -, *, / combinations.
func (a *analyzer) arithmetic(op *token.Token, lhs, rhs *ScrData, rng token.Range) *ScrData {
	anyside := lhs.Type == TypeAny || rhs.Type == TypeAny
	if anyside {
		return Any()
	}
	if !lhs.IsNumeric() || !rhs.IsNumeric() {
		a.report(rng, diag.OperatorNotSupportedOnTypes, op.Lexeme, lhs.Type, rhs.Type)
		return Any()
	}

	if lhs.Type == TypeInt && rhs.Type == TypeInt {
		if lhs.Known && rhs.Known {
			switch op.Kind {
			case token.Plus:
				return IntOf(lhs.IntVal + rhs.IntVal)
			case token.Minus:
				return IntOf(lhs.IntVal - rhs.IntVal)
			case token.Multiply:
				return IntOf(lhs.IntVal * rhs.IntVal)
			case token.Divide:
				return IntOf(lhs.IntVal / rhs.IntVal)
			}
		}
		return UnknownOf(TypeInt)
	}

	lv, lok := lhs.AsFloat()
	rv, rok := rhs.AsFloat()
	if lok && rok {
		switch op.Kind {
		case token.Plus:
			return FloatOf(lv + rv)
		case token.Minus:
			return FloatOf(lv - rv)
		case token.Multiply:
			return FloatOf(lv * rv)
		case token.Divide:
			return FloatOf(lv / rv)
		}
	}
	return UnknownOf(TypeFloat)
}

func foldIntOp(kind token.Kind, l, r int64) *ScrData {
	switch kind {
	case token.BitAnd:
		return IntOf(l & r)
	case token.BitOr:
		return IntOf(l | r)
	case token.BitXor:
		return IntOf(l ^ r)
	case token.ShiftLeft:
		return IntOf(int64(int32(l) << (uint(r) & 31)))
	case token.ShiftRight:
		return IntOf(int64(int32(l) >> (uint(r) & 31)))
	}
	return UnknownOf(TypeInt)
}

// member evaluates 'object.name'. A receiver known to be a class instance
// only accepts declared members; any other receiver is dynamic.
func (a *analyzer) member(n *ast.Member, st *SymbolTable) *ScrData {
	obj := a.eval(n.Object, st)
	if n.Name == nil {
		return Any()
	}
	name := strings.ToLower(n.Name.Lexeme)

	if obj.Type == TypeObject && obj.Class != nil {
		if loc, ok := a.findMember(obj.Class, name); ok {
			if a.reporting {
				n.Name.AttachSense(&token.SenseDefinition{
					Kind:     token.SemanticProperty,
					Hover:    fmt.Sprintf("```gsc\nvar %s\n```", name),
					DefURI:   loc.URI,
					DefRange: loc.Range,
				})
			}
			return Any()
		}
		a.report(n.Name.Range, diag.DoesNotContainMember, obj.Class.Name, name)
	}
	return Any()
}

// findMember resolves a member by walking the inheritance chain.
func (a *analyzer) findMember(c *resolver.Class, name string) (resolver.Location, bool) {
	seen := map[*resolver.Class]bool{}
	for c != nil && !seen[c] {
		seen[c] = true
		if loc, ok := c.Members[name]; ok {
			return loc, true
		}
		if m, ok := c.Methods[name]; ok {
			return m.Location, true
		}
		if c.InheritsFrom == "" {
			break
		}
		parent, ok := a.opts.Table.ClassByName(c.InheritsFrom)
		if !ok {
			break
		}
		c = parent
	}
	return resolver.Location{}, false
}

func (a *analyzer) funcPointer(n *ast.FuncPointer) *ScrData {
	if n.Name == nil {
		return FunctionOf(nil)
	}
	if n.Namespace != nil {
		fn, _ := a.resolveQualified(n.Namespace, n.Name, n.Range())
		return FunctionOf(fn)
	}
	fn, ok := a.resolveUnqualified(strings.ToLower(n.Name.Lexeme))
	if !ok {
		a.report(n.Name.Range, diag.NotDefined, n.Name.Lexeme)
		return FunctionOf(nil)
	}
	a.attachFunctionSense(n.Name, fn)
	return FunctionOf(fn)
}

func (a *analyzer) newInstance(n *ast.New) *ScrData {
	if n.Class == nil {
		return Any()
	}
	c, ok := a.opts.Table.ClassByName(n.Class.Lexeme)
	if !ok {
		a.report(n.Class.Range, diag.NotDefined, n.Class.Lexeme)
		return UnknownOf(TypeObject)
	}
	if a.reporting {
		n.Class.AttachSense(&token.SenseDefinition{
			Kind:     token.SemanticClass,
			Hover:    fmt.Sprintf("```gsc\nclass %s\n```", c.Name),
			DefURI:   c.Location.URI,
			DefRange: c.Location.Range,
		})
	}
	return ObjectOf(c)
}
