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

// Package script aggregates one file's pipeline state: source text, token
// stream, AST, definitions table, control flow graphs and every editor
// facing artifact derived from them.
//
// A script is either empty, parsed, or parsed and analyzed; the transitions
// are monotonic within a revision and reset on every edit. No stage panics
// escape: unexpected failures become 9xxx diagnostics and the pipeline
// continues with the artifacts of the earlier stages.
package script

import (
	"context"
	"strings"
	"sync"

	"github.com/minio/highwayhash"

	"github.com/gscode/gscls/core/event/task"
	"github.com/gscode/gscls/gsc/analysis"
	"github.com/gscode/gscls/gsc/ast"
	"github.com/gscode/gscls/gsc/cfg"
	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/lexer"
	"github.com/gscode/gscls/gsc/parser"
	"github.com/gscode/gscls/gsc/preproc"
	"github.com/gscode/gscls/gsc/resolver"
	"github.com/gscode/gscls/gsc/token"
)

// hashKey seeds the revision hash. The value is arbitrary but fixed so
// hashes are comparable across scripts.
var hashKey = []byte("gscls.revision.hash.0123456789ab")

// Environment is what a script needs from the workspace around it.
type Environment struct {
	// Root is the workspace root path.
	Root string

	// SharedRoot is the optional shared scripts directory.
	SharedRoot string

	// Loader reads files for #insert directives.
	Loader preproc.Loader

	// Exists tests whether a workspace relative script path exists, for
	// #using resolution.
	Exists func(path string) bool

	// Builtins resolves the builtin API for this script's language.
	Builtins analysis.Builtins
}

// Script is the per file pipeline aggregate.
type Script struct {
	mu sync.Mutex

	uri        string
	languageID string
	env        Environment

	text string
	hash uint64

	parsed   bool
	analyzed bool

	tokens *token.List
	tree   *ast.Script
	table  *resolver.Table
	graphs []*cfg.Graph

	insertRegions []preproc.InsertRegion
	macroOutlines []preproc.MacroOutline
	folding       []FoldingRange

	lexDiags   diag.Diagnostics
	preDiags   diag.Diagnostics
	parseDiags diag.Diagnostics
	sigDiags   diag.Diagnostics
	flowDiags  diag.Diagnostics
}

// New creates an empty script for the document.
func New(uri, languageID string, env Environment) *Script {
	return &Script{uri: uri, languageID: languageID, env: env}
}

// URI returns the script's document identifier.
func (s *Script) URI() string { return s.uri }

// LanguageID returns "gsc" or "csc".
func (s *Script) LanguageID() string { return s.languageID }

// Text returns the current source text.
func (s *Script) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Parsed reports whether the current revision has been parsed.
func (s *Script) Parsed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parsed
}

// SetText replaces the source text. It returns false when the current
// revision is parsed and the text hashes identically to it, in which case
// the pipeline state is left untouched and a re-parse can be skipped. An
// unparsed revision always reports true.
func (s *Script) SetText(text string) bool {
	sum := revisionHash(text)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.parsed && sum == s.hash && text == s.text {
		return false
	}
	s.text = text
	s.hash = sum
	s.reset()
	return true
}

func revisionHash(text string) uint64 {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0
	}
	h.Write([]byte(text))
	return h.Sum64()
}

// reset drops every pipeline artifact. Callers hold s.mu.
func (s *Script) reset() {
	s.parsed = false
	s.analyzed = false
	s.tokens = nil
	s.tree = nil
	s.table = nil
	s.graphs = nil
	s.insertRegions = nil
	s.macroOutlines = nil
	s.folding = nil
	s.lexDiags = nil
	s.preDiags = nil
	s.parseDiags = nil
	s.sigDiags = nil
	s.flowDiags = nil
}

// Edit is one incremental text change: the range is replaced with the new
// text.
type Edit struct {
	Range token.Range
	Text  string
}

// ApplyEdits performs range replacement edits against the current text and
// returns whether the resulting text differs from the current revision.
// Edits are applied in order against the evolving text.
func (s *Script) ApplyEdits(edits []Edit) bool {
	s.mu.Lock()
	text := s.text
	s.mu.Unlock()
	original := text

	for _, e := range edits {
		start := offsetOf(text, e.Range.Start)
		end := offsetOf(text, e.Range.End)
		if start > len(text) {
			start = len(text)
		}
		if end > len(text) {
			end = len(text)
		}
		if end < start {
			end = start
		}
		text = text[:start] + e.Text + text[end:]
	}
	if text == original {
		return false
	}
	return s.SetText(text)
}

// offsetOf converts a position to a byte offset within text.
func offsetOf(text string, pos token.Position) int {
	offset := 0
	line := 0
	for line < pos.Line {
		i := strings.IndexByte(text[offset:], '\n')
		if i < 0 {
			return len(text)
		}
		offset += i + 1
		line++
	}
	// Character positions count runes.
	runes := []rune(text[offset:])
	char := pos.Character
	if char > len(runes) {
		char = len(runes)
	}
	for i := 0; i < char; i++ {
		if runes[i] == '\n' {
			return offset
		}
		offset += len(string(runes[i]))
	}
	return offset
}

// runStage runs one pipeline stage, converting panics into the stage's
// internal failure diagnostic.
func runStage(code diag.Code, diags *diag.Diagnostics, f func()) {
	defer func() {
		if r := recover(); r != nil {
			diags.Add(token.Range{}, code, r)
		}
	}()
	f()
}

// Parse runs the front half of the pipeline: lex, preprocess, parse and
// the signature pass. It is a no-op when the revision is already parsed.
func (s *Script) Parse(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.parsed {
		return nil
	}
	if task.Stopped(ctx) {
		return task.StopReason(ctx)
	}

	text := s.text

	runStage(diag.LexerFailure, &s.lexDiags, func() {
		s.tokens, s.lexDiags = lexer.Lex(text)
	})
	if s.tokens == nil {
		s.tokens = token.NewList()
	}
	if task.Stopped(ctx) {
		return task.StopReason(ctx)
	}

	runStage(diag.PreprocessorFailure, &s.preDiags, func() {
		res := preproc.Process(s.tokens, preproc.Options{
			Path:   s.uri,
			Root:   s.env.Root,
			Loader: s.env.Loader,
		})
		s.preDiags = res.Diagnostics
		s.insertRegions = res.InsertRegions
		s.macroOutlines = res.Outlines
		for _, m := range res.Macros {
			if m.NameToken != nil {
				m.NameToken.AttachSense(&token.SenseDefinition{
					Kind:      token.SemanticMacro,
					Modifiers: token.ModifierDeclaration,
					Hover:     "```gsc\n#define " + m.NameToken.Lexeme + "\n```",
					DefURI:    s.uri,
					DefRange:  m.NameToken.Range,
				})
			}
		}
	})
	if task.Stopped(ctx) {
		return task.StopReason(ctx)
	}

	runStage(diag.ParserFailure, &s.parseDiags, func() {
		s.tree, s.parseDiags = parser.Parse(s.tokens)
	})
	if s.tree == nil {
		s.tree = &ast.Script{}
	}
	if task.Stopped(ctx) {
		return task.StopReason(ctx)
	}

	runStage(diag.SignatureFailure, &s.sigDiags, func() {
		s.table, s.sigDiags = resolver.Analyze(s.tree, resolver.Options{
			URI:        s.uri,
			Root:       s.env.Root,
			SharedRoot: s.env.SharedRoot,
			LanguageID: s.languageID,
			Exists:     s.env.Exists,
		})
	})
	if s.table == nil {
		s.table = resolver.NewTable(s.uri, s.languageID)
	}

	s.parsed = true
	s.analyzed = false
	return nil
}

// Table returns the definitions table of the parsed revision. The table is
// mutated by MergeDependency; the manager guards it with the script's
// analysis lock.
func (s *Script) Table() *resolver.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table
}

// Tree returns the parsed AST, or nil.
func (s *Script) Tree() *ast.Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// Tokens returns the expanded token stream, or nil.
func (s *Script) Tokens() *token.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// Dependencies returns the resolved dependency paths of the parsed
// revision.
func (s *Script) Dependencies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table == nil {
		return nil
	}
	return append([]string{}, s.table.Dependencies...)
}

// ExportedSymbols issues the symbols visible to dependents.
func (s *Script) ExportedSymbols() []resolver.Export {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table == nil {
		return nil
	}
	return append([]resolver.Export{}, s.table.Exported...)
}

// MergeDependency merges a dependency's exported symbols into this
// script's definitions table. Called under this script's analysis lock.
func (s *Script) MergeDependency(exports []resolver.Export) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table != nil {
		s.table.MergeExports(exports)
	}
}

// Analyse runs the back half of the pipeline: control flow graphs, data
// flow analysis and folding. The script must be parsed; dependencies
// should have been merged first.
func (s *Script) Analyse(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.parsed || s.analyzed {
		return nil
	}
	if task.Stopped(ctx) {
		return task.StopReason(ctx)
	}

	s.graphs = nil
	s.flowDiags = nil

	var cfgDiags, flowDiags diag.Diagnostics
	runStage(diag.CfgFailure, &cfgDiags, func() {
		s.buildGraphs(&cfgDiags)
	})
	if task.Stopped(ctx) {
		return task.StopReason(ctx)
	}

	runStage(diag.DataFlowFailure, &flowDiags, func() {
		s.runDataFlow(ctx, &flowDiags)
	})
	s.flowDiags = append(cfgDiags, flowDiags...)

	runStage(diag.FoldingFailure, &s.flowDiags, func() {
		s.folding = computeFolding(s.tree, s.tokens, s.insertRegions)
	})

	s.analyzed = true
	return nil
}

// buildGraphs constructs a CFG for every function, method and class body.
func (s *Script) buildGraphs(diags *diag.Diagnostics) {
	for _, def := range s.tree.Definitions {
		switch n := def.(type) {
		case *ast.FunctionDef:
			g, d := cfg.BuildFunction(n, 0)
			diags.Merge(d)
			s.graphs = append(s.graphs, g)

		case *ast.ClassDef:
			g, d := cfg.BuildClass(n)
			diags.Merge(d)
			s.graphs = append(s.graphs, g)
			for _, member := range n.Body {
				if m, ok := member.(*ast.FunctionDef); ok {
					mg, md := cfg.BuildFunction(m, 1)
					diags.Merge(md)
					s.graphs = append(s.graphs, mg)
				}
			}
		}
	}
}

// runDataFlow analyzes every graph against the merged definitions table.
func (s *Script) runDataFlow(ctx context.Context, diags *diag.Diagnostics) {
	for _, g := range s.graphs {
		if task.Stopped(ctx) {
			return
		}
		opts := analysis.Options{
			URI:        s.uri,
			LanguageID: s.languageID,
			Table:      s.table,
			Builtins:   s.env.Builtins,
		}
		if g.Class != nil && g.Class.Name != nil {
			if c, ok := s.table.ClassByName(g.Class.Name.Lexeme); ok {
				opts.Class = c
			}
		}
		if g.Function != nil {
			if owner := s.enclosingClass(g.Function); owner != nil {
				opts.Class = owner
			}
		}
		diags.Merge(analysis.Analyze(g, opts))
	}
}

// enclosingClass finds the class a method graph belongs to.
func (s *Script) enclosingClass(fn *ast.FunctionDef) *resolver.Class {
	for _, def := range s.tree.Definitions {
		class, ok := def.(*ast.ClassDef)
		if !ok || class.Name == nil {
			continue
		}
		for _, member := range class.Body {
			if member == ast.Node(fn) {
				if c, ok := s.table.ClassByName(class.Name.Lexeme); ok {
					return c
				}
				return nil
			}
		}
	}
	return nil
}

// Diagnostics snapshots the union of every stage's diagnostics for the
// current revision.
func (s *Script) Diagnostics() diag.Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := diag.Diagnostics{}
	out.Merge(s.lexDiags)
	out.Merge(s.preDiags)
	out.Merge(s.parseDiags)
	out.Merge(s.sigDiags)
	out.Merge(s.flowDiags)
	return out
}

// MacroOutlines returns the macro definitions for the outline view.
func (s *Script) MacroOutlines() []preproc.MacroOutline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]preproc.MacroOutline{}, s.macroOutlines...)
}

// InsertRegions returns the spans where #insert spliced foreign content.
func (s *Script) InsertRegions() []preproc.InsertRegion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]preproc.InsertRegion{}, s.insertRegions...)
}

// FoldingRanges returns the folding ranges of the analyzed revision.
func (s *Script) FoldingRanges() []FoldingRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FoldingRange{}, s.folding...)
}
