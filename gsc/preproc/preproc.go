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

// Package preproc expands the preprocessor layer of a token stream: macro
// definition and expansion, #insert splicing and #if branch tracking.
//
// The walk mutates the token list in place, splicing expansions where the
// directives sat. Directives the parser consumes (#using, #namespace,
// #precache, #using_animtree, #animtree) pass through untouched.
package preproc

import (
	"path/filepath"
	"strings"

	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/lexer"
	"github.com/gscode/gscls/gsc/token"
)

// maxExpansionDepth bounds recursive macro expansion.
const maxExpansionDepth = 32

// Loader reads files referenced by #insert directives.
type Loader interface {
	Load(path string) ([]byte, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path string) ([]byte, error)

// Load calls f.
func (f LoaderFunc) Load(path string) ([]byte, error) { return f(path) }

// Options configure a preprocessing run.
type Options struct {
	// Path is the path of the file being preprocessed, relative to Root.
	Path string

	// Root is the workspace root that #insert paths resolve against.
	// #insert paths escaping Root are rejected.
	Root string

	// Loader reads inserted files. Nil disables #insert resolution, turning
	// every insert into a MissingInsertFile diagnostic.
	Loader Loader
}

// InsertRegion records where an #insert spliced foreign content.
type InsertRegion struct {
	// Range is the visible span of the directive in the document.
	Range token.Range
	// Path is the resolved path of the inserted file.
	Path string
}

// MacroOutline names a macro definition for the outline view.
type MacroOutline struct {
	Name  string
	Range token.Range
}

// Result is the outcome of a preprocessing run.
type Result struct {
	Macros        map[string]*Macro
	Outlines      []MacroOutline
	InsertRegions []InsertRegion
	Diagnostics   diag.Diagnostics
}

type processor struct {
	list *token.List
	opts Options
	res  *Result

	// inserts tracks the files currently being spliced, innermost last.
	// Each entry is popped once the walk passes the end of its region.
	inserts []insertFrame

	// branches tracks open #if/#elif/#else nesting.
	branches []*token.Token

	ifHinted bool
	depth    int
}

type insertFrame struct {
	path string
	end  *token.Token
}

// Process walks the token stream expanding the preprocessor layer in place.
func Process(list *token.List, opts Options) *Result {
	p := &processor{
		list: list,
		opts: opts,
		res:  &Result{Macros: map[string]*Macro{}},
	}
	p.run()
	return p.res
}

func (p *processor) run() {
	t := p.list.First()
	for t != p.list.End() {
		t = p.step(t)
	}
	for _, open := range p.branches {
		p.res.Diagnostics.Add(open.Range, diag.UnterminatedPreprocessorDirective, open.Lexeme)
	}
}

// step processes the token at t and returns the next token to visit.
func (p *processor) step(t *token.Token) *token.Token {
	for len(p.inserts) > 0 && t == p.inserts[len(p.inserts)-1].end {
		p.inserts = p.inserts[:len(p.inserts)-1]
	}

	switch t.Kind {
	case token.PreDefine:
		return p.define(t)
	case token.PreInsert:
		return p.insert(t)
	case token.PreIf:
		return p.branchOpen(t)
	case token.PreElIf, token.PreElse:
		return p.branchAlt(t)
	case token.PreEndIf:
		return p.branchClose(t)
	case token.Identifier:
		return p.maybeExpand(t)
	default:
		return t.Next()
	}
}

// endOfLine returns the first LineBreak or End sentinel at or after t.
func endOfLine(t *token.Token) *token.Token {
	for t.Kind != token.LineBreak && t.Kind != token.End {
		t = t.Next()
	}
	return t
}

// define registers a '#define NAME[(params)] body' macro and removes the
// directive from the stream.
func (p *processor) define(directive *token.Token) *token.Token {
	eol := endOfLine(directive)
	last := eol.Prev()

	remove := func() *token.Token {
		if last == directive.Prev() {
			return p.list.RemoveSpan(directive, directive)
		}
		return p.list.RemoveSpan(directive, last)
	}

	name := directive.NextCode()
	if name.Kind != token.Identifier || name == eol || name.Range.Start.After(eol.Range.Start) {
		p.res.Diagnostics.Add(directive.Range, diag.ExpectedMacroIdentifier)
		return remove()
	}

	m := &Macro{
		Name:      strings.ToLower(name.Lexeme),
		NameToken: name,
		Location:  token.RangeBetween(directive.Range, last.Range),
	}

	bodyStart := name.Next()
	// A parameter list only counts when the paren hugs the name.
	if paren := name.Next(); paren != nil && paren.Kind == token.OpenParen {
		m.Parametric = true
		seen := map[string]bool{}
		t := paren.NextCode()
		for t.Kind != token.CloseParen && t.Kind != token.End && t != eol {
			if t.Kind == token.Identifier {
				lower := strings.ToLower(t.Lexeme)
				if seen[lower] {
					p.res.Diagnostics.Add(t.Range, diag.DuplicateMacroParameter, t.Lexeme)
				} else {
					seen[lower] = true
					m.Params = append(m.Params, lower)
				}
			}
			t = t.NextCode()
		}
		bodyStart = t.Next()
	}

	for t := bodyStart; t != nil && t != eol && t.Kind != token.LineBreak && t.Kind != token.End; t = t.Next() {
		if !t.Kind.IsTrivia() {
			m.Body = append(m.Body, t.Clone())
		}
	}

	table := macroTable(p.res.Macros)
	if !table.put(m) {
		p.res.Diagnostics.Add(name.Range, diag.DuplicateMacroDefinition, name.Lexeme)
	} else {
		p.res.Outlines = append(p.res.Outlines, MacroOutline{Name: name.Lexeme, Range: m.Location})
	}
	return remove()
}

// insert resolves an '#insert path;' directive, splicing the referenced
// file's tokens in its place.
func (p *processor) insert(directive *token.Token) *token.Token {
	pathEnd := directive
	parts := []string{}
	t := directive.Next()
	for t.Kind != token.Semicolon && t.Kind != token.LineBreak && t.Kind != token.End {
		if !t.Kind.IsTrivia() {
			parts = append(parts, t.Lexeme)
			pathEnd = t
		}
		t = t.Next()
	}
	if t.Kind == token.Semicolon {
		pathEnd = t
	}
	raw := strings.Join(parts, "")
	rng := token.RangeBetween(directive.Range, pathEnd.Range)

	remove := func() *token.Token {
		return p.list.RemoveSpan(directive, pathEnd)
	}

	resolved, ok := ResolvePath(p.opts.Root, raw)
	if !ok {
		p.res.Diagnostics.Add(rng, diag.InvalidInsertPath, raw)
		return remove()
	}
	for _, f := range p.inserts {
		if f.path == resolved {
			p.res.Diagnostics.Add(rng, diag.CircularDependency, raw)
			return remove()
		}
	}
	if rel, ok := relativeTo(p.opts.Root, p.opts.Path); ok && rel == resolved {
		p.res.Diagnostics.Add(rng, diag.CircularDependency, raw)
		return remove()
	}
	if p.opts.Loader == nil {
		p.res.Diagnostics.Add(rng, diag.MissingInsertFile, raw)
		return remove()
	}

	data, err := p.opts.Loader.Load(resolved)
	if err != nil {
		if isNotFound(err) {
			p.res.Diagnostics.Add(rng, diag.MissingInsertFile, raw)
		} else {
			p.res.Diagnostics.Add(rng, diag.FailedToReadInsertFile, raw, err)
		}
		return remove()
	}

	spliced, lexDiags := lexer.LexWithRange(string(data), resolved, rng)
	p.res.Diagnostics.Merge(lexDiags)
	p.res.InsertRegions = append(p.res.InsertRegions, InsertRegion{Range: rng, Path: resolved})

	anchor := directive.Prev()
	next := remove()
	first := p.list.SpliceAfter(anchor, spliced)
	if first == next {
		return next
	}
	p.inserts = append(p.inserts, insertFrame{path: resolved, end: next})
	return first
}

func (p *processor) branchOpen(t *token.Token) *token.Token {
	if !p.ifHinted {
		p.ifHinted = true
		p.res.Diagnostics.Add(t.Range, diag.PreprocessorIfAnalysisUnsupported)
	}
	p.branches = append(p.branches, t)
	return p.removeDirectiveLine(t)
}

func (p *processor) branchAlt(t *token.Token) *token.Token {
	if len(p.branches) == 0 {
		p.res.Diagnostics.Add(t.Range, diag.UnexpectedToken, t.Lexeme)
		return p.removeDirectiveLine(t)
	}
	// Without condition evaluation the first branch is treated as active
	// and the alternatives are kept but flagged.
	eol := endOfLine(t)
	branchEnd := p.branchBodyEnd(eol.Next())
	if eol.Kind != token.End && branchEnd != eol.Next() {
		rng := token.RangeBetween(eol.Next().Range, branchEnd.Range)
		p.res.Diagnostics.Add(rng, diag.InactivePreprocessorBranch)
	}
	return p.removeDirectiveLine(t)
}

// branchBodyEnd returns the last token before the next branch directive at
// this nesting level, or from itself when the branch body is empty.
func (p *processor) branchBodyEnd(from *token.Token) *token.Token {
	depth := 0
	last := from
	for t := from; t.Kind != token.End; t = t.Next() {
		switch t.Kind {
		case token.PreIf:
			depth++
		case token.PreEndIf:
			if depth == 0 {
				return last
			}
			depth--
		case token.PreElIf, token.PreElse:
			if depth == 0 {
				return last
			}
		}
		last = t
	}
	return last
}

func (p *processor) branchClose(t *token.Token) *token.Token {
	if len(p.branches) == 0 {
		p.res.Diagnostics.Add(t.Range, diag.UnexpectedToken, t.Lexeme)
	} else {
		p.branches = p.branches[:len(p.branches)-1]
	}
	return p.removeDirectiveLine(t)
}

// removeDirectiveLine removes the directive and the rest of its line,
// returning the token after the removed span.
func (p *processor) removeDirectiveLine(directive *token.Token) *token.Token {
	eol := endOfLine(directive)
	last := eol.Prev()
	if last == directive.Prev() {
		last = directive
	}
	return p.list.RemoveSpan(directive, last)
}

// maybeExpand expands t when it names a macro in scope.
func (p *processor) maybeExpand(t *token.Token) *token.Token {
	m, ok := macroTable(p.res.Macros).get(t.Lexeme)
	if !ok {
		return t.Next()
	}
	if p.depth >= maxExpansionDepth {
		return t.Next()
	}

	site := t.Range
	last := t
	var args [][]*token.Token

	if m.Parametric {
		open := t.NextCode()
		if open.Kind != token.OpenParen {
			p.res.Diagnostics.Add(t.Range, diag.MissingMacroParameterList, t.Lexeme)
			return t.Next()
		}
		var closed bool
		args, last, closed = collectArguments(open)
		if !closed {
			p.res.Diagnostics.Add(t.Range, diag.UnexpectedToken, t.Lexeme)
			return t.Next()
		}
		site = token.RangeBetween(t.Range, last.Range)
		switch {
		case len(args) > len(m.Params):
			p.res.Diagnostics.Add(site, diag.TooManyMacroArguments, t.Lexeme, len(m.Params))
			return last.Next()
		case len(args) < len(m.Params):
			p.res.Diagnostics.Add(site, diag.TooFewMacroArguments, t.Lexeme, len(m.Params))
			return last.Next()
		}
	}

	expansion := m.expand(site, args)
	anchor := t.Prev()
	next := p.list.RemoveSpan(t, last)
	first := p.list.SpliceAfter(anchor, expansion)
	if first == next {
		return next
	}

	// Rescan the spliced tokens so nested macro uses expand too, bounded by
	// the expansion depth.
	p.depth++
	for cur := first; cur != next && cur != p.list.End(); {
		cur = p.step(cur)
	}
	p.depth--
	return next
}

// collectArguments gathers comma separated argument token runs from an
// argument list starting at open ('('), honouring nested parentheses,
// brackets and braces. Returns the argument runs, the closing paren and
// whether the list was properly closed.
func collectArguments(open *token.Token) (args [][]*token.Token, closeTok *token.Token, ok bool) {
	depth := 1
	current := []*token.Token{}
	empty := true
	for t := open.Next(); t.Kind != token.End; t = t.Next() {
		switch t.Kind {
		case token.OpenParen, token.OpenBracket, token.OpenBrace:
			depth++
		case token.CloseParen, token.CloseBracket, token.CloseBrace:
			depth--
			if depth == 0 {
				if !empty || len(args) > 0 {
					args = append(args, current)
				}
				return args, t, true
			}
		case token.Comma:
			if depth == 1 {
				args = append(args, current)
				current = []*token.Token{}
				empty = false
				continue
			}
		}
		if !t.Kind.IsTrivia() {
			current = append(current, t)
			empty = false
		}
	}
	return nil, nil, false
}

// ResolvePath normalises a backslash separated script path against root,
// rejecting paths that escape it. The returned path is slash separated and
// relative to root.
func ResolvePath(root, raw string) (string, bool) {
	cleaned := filepath.ToSlash(strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/"))
	cleaned = filepath.Clean(cleaned)
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", false
	}
	return filepath.ToSlash(cleaned), true
}

func relativeTo(root, path string) (string, bool) {
	if path == "" {
		return "", false
	}
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel), true
		}
	}
	return filepath.ToSlash(path), true
}

func isNotFound(err error) bool {
	s := err.Error()
	return strings.Contains(s, "no such file") || strings.Contains(s, "not exist") ||
		strings.Contains(s, "not found")
}
