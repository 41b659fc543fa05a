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

// Package resolver runs the signature pass: a single walk over a script's
// AST that populates the per file definitions table, issues exported
// symbols, resolves #using dependencies and attaches declaration level
// editor decorations to the name tokens.
package resolver

import (
	"fmt"
	"path"
	"strings"

	"github.com/gscode/gscls/gsc/ast"
	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/token"
)

// Options configure a signature pass.
type Options struct {
	// URI identifies the document being analyzed.
	URI string

	// Root is the workspace root used to resolve #using paths.
	Root string

	// SharedRoot is an optional shared scripts directory searched after
	// Root.
	SharedRoot string

	// LanguageID selects the dependency suffix: "gsc" or "csc".
	LanguageID string

	// Exists tests whether a workspace relative script path exists. Nil
	// treats every dependency as missing.
	Exists func(path string) bool
}

type pass struct {
	opts  Options
	table *Table
	diags diag.Diagnostics

	namespace string

	// used tracks bare function names referenced anywhere in the file, for
	// the unused private function convention.
	used map[string]bool
}

// Analyze runs the signature pass over the script.
func Analyze(script *ast.Script, opts Options) (*Table, diag.Diagnostics) {
	p := &pass{
		opts:      opts,
		table:     NewTable(opts.URI, opts.LanguageID),
		namespace: defaultNamespace(opts.URI),
		used:      map[string]bool{},
	}
	p.run(script)
	return p.table, p.diags
}

// defaultNamespace is the file's stem, which is how the engine buckets
// symbols declared before any #namespace directive.
func defaultNamespace(uri string) string {
	base := path.Base(strings.ReplaceAll(uri, "\\", "/"))
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return strings.ToLower(base)
}

func (p *pass) run(script *ast.Script) {
	for _, d := range script.Dependencies {
		p.dependency(d)
	}

	for _, def := range script.Definitions {
		switch n := def.(type) {
		case *ast.Namespace:
			p.namespaceDirective(n)
		case *ast.FunctionDef:
			p.function(n, nil)
		case *ast.ClassDef:
			p.class(n)
		}
	}

	p.collectReferences(script)
	p.conventions()
	p.table.CurrentNamespace = p.namespace
}

func (p *pass) namespaceDirective(n *ast.Namespace) {
	if n.Name == nil {
		return
	}
	p.namespace = strings.ToLower(n.Name.Lexeme)
	p.table.Namespaces[p.namespace] = true
	n.Name.AttachSense(&token.SenseDefinition{
		Kind:      token.SemanticNamespace,
		Modifiers: token.ModifierDeclaration,
		Hover:     fmt.Sprintf("namespace `%s`", p.namespace),
	})
}

// dependency resolves a '#using' path against the workspace root and the
// shared scripts directory, matched to the document's language id.
func (p *pass) dependency(d *ast.Dependency) {
	if d.Text == "" {
		return
	}
	rel := strings.ReplaceAll(d.Text, "\\", "/") + "." + p.opts.LanguageID
	candidates := []string{rel}
	if p.opts.SharedRoot != "" {
		candidates = append(candidates, path.Join(p.opts.SharedRoot, rel))
	}
	for _, c := range candidates {
		if p.opts.Exists != nil && p.opts.Exists(c) {
			p.table.Dependencies = append(p.table.Dependencies, c)
			return
		}
	}
	p.diags.Add(d.Range(), diag.MissingUsingFile, d.Text)
}

// function records a function or method definition. class is non nil for
// methods, constructors and destructors.
func (p *pass) function(n *ast.FunctionDef, class *Class) {
	if n.Name == nil {
		return
	}

	fn := &Function{
		Name:        strings.ToLower(n.Name.Lexeme),
		Namespace:   p.namespace,
		Location:    Location{URI: p.opts.URI, Range: n.Name.Range},
		UserDefined: true,
		Private:     n.Private,
		Autoexec:    n.Autoexec,
	}
	if class != nil {
		fn.Namespace = class.Name
	}

	if n.Params != nil {
		for _, param := range n.Params.Params {
			if param.Name == nil {
				continue
			}
			name := strings.ToLower(param.Name.Lexeme)
			fn.Params = append(fn.Params, name)
			if param.Default == nil {
				fn.MinArgs++
			}
			param.Name.AttachSense(&token.SenseDefinition{
				Kind:      token.SemanticParameter,
				Modifiers: token.ModifierDeclaration,
				Hover:     fmt.Sprintf("parameter `%s`", name),
				DefURI:    p.opts.URI,
				DefRange:  param.Name.Range,
			})
		}
		if n.Params.Vararg != nil {
			fn.MaxArgs = -1
		} else {
			fn.MaxArgs = len(fn.Params)
		}
	}

	if n.Doc != nil {
		fn.Doc = parseDocComment(n.Doc.Lexeme)
	}

	kind := token.SemanticFunction
	if class != nil {
		kind = token.SemanticMethod
	}
	n.Name.AttachSense(&token.SenseDefinition{
		Kind:      kind,
		Modifiers: token.ModifierDeclaration,
		Hover:     p.functionHover(fn, n),
		DefURI:    p.opts.URI,
		DefRange:  n.Name.Range,
	})

	switch {
	case class != nil && n.Constructor:
		class.Constructor = fn
	case class != nil && n.Destructor:
		class.Destructor = fn
	case class != nil:
		class.Methods[fn.Name] = fn
		// Methods resolve both as Class::method and ns::method.
		p.table.PutFunction(class.Name, fn)
		p.table.PutFunction(p.namespace, fn)
	default:
		p.table.PutFunction(p.namespace, fn)
		p.table.LocalFunctions[fn.Name] = fn
		if !fn.Private {
			p.table.Exported = append(p.table.Exported, Export{Namespace: p.namespace, Function: fn})
			p.table.ExportedFunctions[fn.Name] = fn
		}
	}
}

func (p *pass) functionHover(fn *Function, n *ast.FunctionDef) string {
	mods := ""
	if fn.Private {
		mods += "private "
	}
	if fn.Autoexec {
		mods += "autoexec "
	}
	head := fmt.Sprintf("```gsc\n%sfunction %s\n```", mods, fn.Signature())
	if fn.Doc != "" {
		return head + "\n\n" + fn.Doc
	}
	return head
}

func (p *pass) class(n *ast.ClassDef) {
	if n.Name == nil {
		return
	}
	c := &Class{
		Name:      strings.ToLower(n.Name.Lexeme),
		Namespace: p.namespace,
		Location:  Location{URI: p.opts.URI, Range: n.Name.Range},
		Members:   map[string]Location{},
		Methods:   map[string]*Function{},
	}
	if n.Parent != nil {
		c.InheritsFrom = strings.ToLower(n.Parent.Lexeme)
		n.Parent.AttachSense(&token.SenseDefinition{
			Kind:  token.SemanticClass,
			Hover: fmt.Sprintf("```gsc\nclass %s\n```", c.InheritsFrom),
		})
	}

	for _, member := range n.Body {
		switch m := member.(type) {
		case *ast.MemberDecl:
			if m.Name == nil {
				continue
			}
			name := strings.ToLower(m.Name.Lexeme)
			c.Members[name] = Location{URI: p.opts.URI, Range: m.Name.Range}
			m.Name.AttachSense(&token.SenseDefinition{
				Kind:      token.SemanticProperty,
				Modifiers: token.ModifierDeclaration,
				Hover:     fmt.Sprintf("```gsc\nvar %s\n```", name),
				DefURI:    p.opts.URI,
				DefRange:  m.Name.Range,
			})
		case *ast.FunctionDef:
			p.function(m, c)
		}
	}

	hover := fmt.Sprintf("```gsc\nclass %s", c.Name)
	if c.InheritsFrom != "" {
		hover += " : " + c.InheritsFrom
	}
	hover += "\n```"
	n.Name.AttachSense(&token.SenseDefinition{
		Kind:      token.SemanticClass,
		Modifiers: token.ModifierDeclaration,
		Hover:     hover,
		DefURI:    p.opts.URI,
		DefRange:  n.Name.Range,
	})

	p.table.PutClass(p.namespace, c)
	p.table.LocalClasses[c.Name] = c
	// Classes are always exported.
	p.table.Exported = append(p.table.Exported, Export{Namespace: p.namespace, Class: c})
}

// collectReferences marks every bare function name referenced in the file,
// feeding the unused private function convention.
func (p *pass) collectReferences(script *ast.Script) {
	ast.Walk(script, func(n ast.Node) {
		switch n := n.(type) {
		case *ast.Call:
			switch callee := n.Callee.(type) {
			case *ast.Identifier:
				if callee.Name != nil {
					p.used[strings.ToLower(callee.Name.Lexeme)] = true
				}
			case *ast.NamespacedRef:
				if callee.Name != nil {
					p.used[strings.ToLower(callee.Name.Lexeme)] = true
				}
			}
		case *ast.FuncPointer:
			if n.Name != nil {
				p.used[strings.ToLower(n.Name.Lexeme)] = true
			}
		}
	})
}

// conventions reports the 8xxx IDE convention diagnostics.
func (p *pass) conventions() {
	for name, fn := range p.table.LocalFunctions {
		if fn.Private && !p.used[name] {
			p.diags.Add(fn.Location.Range, diag.UnusedPrivateFunction, name)
		}
	}
}
