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
	"strings"

	"github.com/gscode/gscls/gsc/ast"
	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/resolver"
	"github.com/gscode/gscls/gsc/token"
)

// call evaluates an invocation: receiver, arguments, callee resolution and
// arity checking.
func (a *analyzer) call(n *ast.Call, st *SymbolTable) *ScrData {
	if n.CalledOn != nil {
		a.eval(n.CalledOn, st)
	}
	for _, arg := range n.Args {
		a.eval(arg, st)
	}

	if n.Thread && !n.ArgList {
		a.report(n.Range(), diag.InvalidThreadCall)
		return Any()
	}

	switch callee := n.Callee.(type) {
	case *ast.Identifier:
		return a.callNamed(n, callee.Name)

	case *ast.NamespacedRef:
		fn, known := a.resolveQualified(callee.Namespace, callee.Name, n.Range())
		if fn != nil {
			a.checkArity(n, fn, callee.Name)
			a.attachFunctionSense(callee.Name, fn)
		} else if known && callee.Name != nil {
			a.report(callee.Name.Range, diag.NotDefined, callee.Name.Lexeme)
		}
		return Any()

	default:
		// Dynamic callee: a member, an index or a recovered fragment.
		a.eval(n.Callee, st)
		return Any()
	}
}

// callNamed resolves an unqualified call through the lookup precedence,
// starting with the reserved pseudo functions.
func (a *analyzer) callNamed(n *ast.Call, nameTok *token.Token) *ScrData {
	if nameTok == nil {
		return Any()
	}
	name := strings.ToLower(nameTok.Lexeme)

	if ReservedNames[name] || nameTok.Kind != token.Identifier {
		// Reserved pseudo functions take untyped argument lists.
		if a.reporting {
			nameTok.AttachSense(&token.SenseDefinition{
				Kind:      token.SemanticFunction,
				Modifiers: token.ModifierDefaultLibrary,
				Hover:     "```gsc\n" + name + "(...)\n```\n\nEngine reserved function.",
			})
		}
		if name == "isdefined" {
			return UnknownOf(TypeBool)
		}
		return Any()
	}

	fn, ok := a.resolveUnqualified(name)
	if !ok {
		a.report(nameTok.Range, diag.NotDefined, nameTok.Lexeme)
		return Any()
	}

	a.checkArity(n, fn, nameTok)
	a.attachFunctionSense(nameTok, fn)
	return Any()
}

// resolveUnqualified applies the symbol resolution precedence for a bare
// function name: enclosing class methods, this file's declarations, the
// exported symbols table (own exports plus merged dependency exports),
// the current namespace, then the builtin API. A wrong arity match is
// still returned so the arity check can fire.
func (a *analyzer) resolveUnqualified(name string) (*resolver.Function, bool) {
	t := a.opts.Table

	// Enclosing class methods, walking the inheritance chain.
	seen := map[*resolver.Class]bool{}
	for c := a.opts.Class; c != nil && !seen[c]; {
		seen[c] = true
		if m, ok := c.Method(name); ok {
			return m, true
		}
		if c.InheritsFrom == "" {
			break
		}
		parent, ok := t.ClassByName(c.InheritsFrom)
		if !ok {
			break
		}
		c = parent
	}

	if fn, ok := t.LocalFunctions[name]; ok {
		return fn, true
	}
	// The exported symbols table: this file's exports plus those merged
	// from its dependencies. Symbols living only in namespaces this file
	// never imported do not resolve here.
	if fn, ok := t.ExportedFunctions[name]; ok {
		return fn, true
	}
	if fn, ok := t.Functions[resolver.KeyOf(t.CurrentNamespace, name)]; ok {
		return fn, true
	}
	if a.opts.Builtins != nil {
		if fn, ok := a.opts.Builtins.Lookup(name); ok {
			return fn, true
		}
	}
	return nil, false
}

// resolveQualified resolves 'namespace::name'. The second return is true
// when the namespace itself is known; an unknown namespace has already been
// reported.
func (a *analyzer) resolveQualified(nsTok, nameTok *token.Token, rng token.Range) (*resolver.Function, bool) {
	if nsTok == nil || nameTok == nil {
		return nil, false
	}
	ns := strings.ToLower(nsTok.Lexeme)
	name := strings.ToLower(nameTok.Lexeme)
	t := a.opts.Table

	if ns == "sys" {
		// sys:: always resolves.
		if a.opts.Builtins != nil {
			if fn, ok := a.opts.Builtins.Lookup(name); ok {
				return fn, true
			}
		}
		return nil, true
	}

	if c, ok := t.ClassByName(ns); ok {
		// Class qualified method reference.
		seen := map[*resolver.Class]bool{}
		for c != nil && !seen[c] {
			seen[c] = true
			if m, ok := c.Method(name); ok {
				return m, true
			}
			if c.InheritsFrom == "" {
				break
			}
			parent, ok := t.ClassByName(c.InheritsFrom)
			if !ok {
				break
			}
			c = parent
		}
		return nil, true
	}

	if !t.Namespaces[ns] {
		a.report(nsTok.Range, diag.UnknownNamespace, nsTok.Lexeme)
		return nil, false
	}
	if a.reporting {
		nsTok.AttachSense(&token.SenseDefinition{
			Kind:  token.SemanticNamespace,
			Hover: "namespace `" + ns + "`",
		})
	}
	if fn, ok := t.Functions[resolver.KeyOf(ns, name)]; ok {
		return fn, true
	}
	return nil, true
}

// checkArity compares the call's argument count against the signature.
// Mismatches on script defined functions are errors; on builtin API
// functions they are warnings, because the builtin signatures are known to
// be imperfect.
func (a *analyzer) checkArity(n *ast.Call, fn *resolver.Function, nameTok *token.Token) {
	got := len(n.Args)
	rng := n.Range()
	if nameTok != nil {
		rng = nameTok.Range
	}
	switch {
	case got < fn.MinArgs:
		if fn.Implicit {
			a.report(rng, diag.TooFewArgumentsUnverified, fn.Name, fn.MinArgs, got)
		} else {
			a.report(rng, diag.TooFewArguments, fn.Name, fn.MinArgs, got)
		}
	case !fn.Variadic() && got > fn.MaxArgs:
		if fn.Implicit {
			a.report(rng, diag.TooManyArgumentsUnverified, fn.Name, fn.MaxArgs, got)
		} else {
			a.report(rng, diag.TooManyArguments, fn.Name, fn.MaxArgs, got)
		}
	}
}
