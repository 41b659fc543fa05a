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

package main

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gscode/gscls/core/app/crash"
	"github.com/gscode/gscls/core/event/task"
	ls "github.com/gscode/gscls/core/langsvr"
	"github.com/gscode/gscls/core/log"
	"github.com/gscode/gscls/gsc/api"
	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/manager"
	"github.com/gscode/gscls/gsc/resolver"
	"github.com/gscode/gscls/gsc/token"
)

// Interface compliance checks.
var (
	_ ls.Server                 = (*server)(nil)
	_ ls.HoverProvider          = (*server)(nil)
	_ ls.DefinitionProvider     = (*server)(nil)
	_ ls.ReferencesProvider     = (*server)(nil)
	_ ls.CompletionProvider     = (*server)(nil)
	_ ls.SignatureProvider      = (*server)(nil)
	_ ls.SymbolsProvider        = (*server)(nil)
	_ ls.FoldingProvider        = (*server)(nil)
	_ ls.SemanticTokensProvider = (*server)(nil)
)

// semanticTokenTypes is the legend announced to the client; indices match
// semanticTypeIndex.
var semanticTokenTypes = []string{
	"namespace", "class", "parameter", "variable", "property",
	"function", "method", "macro", "keyword", "string", "number",
	"comment", "operator",
}

var semanticTokenModifiers = []string{
	"declaration", "readonly", "static", "defaultLibrary", "deprecated",
}

func semanticTypeIndex(k token.SemanticKind) (int, bool) {
	switch k {
	case token.SemanticNamespace:
		return 0, true
	case token.SemanticClass:
		return 1, true
	case token.SemanticParameter:
		return 2, true
	case token.SemanticVariable:
		return 3, true
	case token.SemanticProperty:
		return 4, true
	case token.SemanticFunction:
		return 5, true
	case token.SemanticMethod:
		return 6, true
	case token.SemanticMacro:
		return 7, true
	case token.SemanticKeyword:
		return 8, true
	case token.SemanticString:
		return 9, true
	case token.SemanticNumber:
		return 10, true
	case token.SemanticComment:
		return 11, true
	case token.SemanticOperator:
		return 12, true
	default:
		return 0, false
	}
}

type server struct {
	workspaceRoot string

	mu   sync.Mutex
	docs map[string]*ls.Document // workspace relative path -> document

	manager     *manager.Manager
	registry    *api.Registry
	debugLogger *debugLogger
	debug       bool

	// indexDone fires when the initial workspace sweep completes. It
	// starts fired so shutdown never mistakes "not started" for "still
	// running".
	indexDone task.Signal
	stopIndex task.CancelFunc
}

// rel converts a document path to the manager's workspace relative slash
// form.
func (s *server) rel(path string) string {
	if r, err := filepath.Rel(s.workspaceRoot, path); err == nil && !strings.HasPrefix(r, "..") {
		return filepath.ToSlash(r)
	}
	return filepath.ToSlash(path)
}

func (s *server) abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(s.workspaceRoot, filepath.FromSlash(rel))
}

// Initialize loads the API libraries, builds the workspace manager and
// kicks off background indexing and watching.
func (s *server) Initialize(ctx context.Context, rootPath string) (ls.InitConfig, error) {
	s.workspaceRoot = rootPath
	s.docs = map[string]*ls.Document{}

	if err := s.registry.LoadRegistry(ctx, defaultAPISources()); err != nil {
		// Startup cannot proceed without any API library.
		return ls.InitConfig{}, log.Err(ctx, err, "failed to load script API libraries")
	}

	s.manager = manager.New(manager.Config{
		Root:     rootPath,
		Builtins: s.registry,
		Publish:  s.publish,
	})

	ictx, cancel := task.WithCancel(context.WithoutCancel(ctx))
	s.stopIndex = cancel

	// Index in the background; the watcher only starts once the initial
	// sweep lands so events never race the first parse of a file.
	s.indexDone = s.manager.IndexAsync(ictx, rootPath)
	crash.Go(func() {
		if !s.indexDone.Wait(ictx) {
			return
		}
		if err := s.manager.Watch(ictx); err != nil {
			log.W(ictx, "workspace watching failed: %v", err)
		}
	})

	return ls.InitConfig{
		LanguageID:                  "gsc",
		CompletionTriggerCharacters: []rune{'.', ':'},
		SignatureTriggerCharacters:  []rune{'(', ','},
		SemanticTokenTypes:          semanticTokenTypes,
		SemanticTokenModifiers:      semanticTokenModifiers,
	}, nil
}

// Shutdown stops the background workers.
func (s *server) Shutdown(ctx context.Context) error {
	if s.indexDone != nil && !s.indexDone.Fired() {
		log.I(ctx, "shutting down before workspace indexing finished")
	}
	if s.stopIndex != nil {
		s.stopIndex()
	}
	if s.manager != nil {
		s.manager.StopWatching()
	}
	return nil
}

// publish forwards a script's diagnostics to the client when the document
// is open.
func (s *server) publish(uri string, diags diag.Diagnostics) {
	s.mu.Lock()
	doc := s.docs[uri]
	s.mu.Unlock()
	if doc == nil {
		return
	}
	doc.SetDiagnostics(toLSDiagnostics(diags))
}

func toLSDiagnostics(diags diag.Diagnostics) ls.Diagnostics {
	out := make(ls.Diagnostics, 0, len(diags))
	for _, d := range diags {
		out = append(out, ls.Diagnostic{
			Range:       toLSRange(d.Range),
			Severity:    toLSSeverity(d.Severity),
			Message:     d.Message,
			Code:        codeString(d.Code),
			Source:      "gscls." + d.Source,
			Unnecessary: d.Unnecessary,
		})
	}
	return out
}

func codeString(c diag.Code) string {
	return "GSC" + itoa(int(c))
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	buf := [8]byte{}
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func toLSSeverity(s diag.Severity) ls.Severity {
	switch s {
	case diag.SeverityError:
		return ls.SeverityError
	case diag.SeverityWarning:
		return ls.SeverityWarning
	case diag.SeverityInformation:
		return ls.SeverityInformation
	default:
		return ls.SeverityHint
	}
}

func toLSRange(r token.Range) ls.Range {
	return ls.Range{
		Start: ls.Position{Line: r.Start.Line + 1, Column: r.Start.Character + 1},
		End:   ls.Position{Line: r.End.Line + 1, Column: r.End.Character + 1},
	}
}

func toTokenPosition(p ls.Position) token.Position {
	return token.Position{Line: p.Line - 1, Character: p.Column - 1}
}

// OnDocumentsAdded roots each opened document as an editor script.
func (s *server) OnDocumentsAdded(ctx context.Context, docs []*ls.Document) error {
	for _, doc := range docs {
		doc := doc
		rel := s.rel(doc.Path())
		s.mu.Lock()
		s.docs[rel] = doc
		s.mu.Unlock()
		text := doc.Body().Text()
		crash.Go(func() {
			if _, err := s.manager.AddEditor(ctx, rel, doc.Language(), text); err != nil {
				log.W(ctx, "add editor %s failed: %v", rel, err)
			}
		})
	}
	return nil
}

// OnDocumentsChanged reruns the pipeline for each edited document. The
// revision hash makes no-op batches cheap.
func (s *server) OnDocumentsChanged(ctx context.Context, docs []*ls.Document) error {
	for _, doc := range docs {
		doc := doc
		rel := s.rel(doc.Path())
		text := doc.Body().Text()
		crash.Go(func() {
			if _, err := s.manager.AddEditor(ctx, rel, doc.Language(), text); err != nil {
				log.W(ctx, "update editor %s failed: %v", rel, err)
			}
		})
	}
	return nil
}

// OnDocumentsRemoved drops the editor entries, evicting unreferenced
// dependencies.
func (s *server) OnDocumentsRemoved(ctx context.Context, docs []*ls.Document) error {
	for _, doc := range docs {
		rel := s.rel(doc.Path())
		s.mu.Lock()
		delete(s.docs, rel)
		s.mu.Unlock()
		s.manager.RemoveEditor(ctx, rel)
	}
	return nil
}

// scriptFor returns the cached script behind an open document.
func (s *server) scriptFor(doc *ls.Document) (*manager.CachedScript, string, bool) {
	rel := s.rel(doc.Path())
	cs, ok := s.manager.Get(rel)
	return cs, rel, ok
}

// Hover returns the markdown for the symbol under the cursor.
func (s *server) Hover(ctx context.Context, doc *ls.Document, pos ls.Position) (string, ls.Range, error) {
	cs, _, ok := s.scriptFor(doc)
	if !ok {
		return "", ls.Range{}, nil
	}
	markdown, rng, ok := cs.Script().HoverAt(toTokenPosition(pos))
	if !ok {
		return "", ls.Range{}, nil
	}
	return markdown, toLSRange(rng), nil
}

// Definitions resolves go to definition through the token's sense
// definition, falling back to the workspace wide symbol scan.
func (s *server) Definitions(ctx context.Context, doc *ls.Document, pos ls.Position) ([]ls.Location, error) {
	cs, _, ok := s.scriptFor(doc)
	if !ok {
		return nil, nil
	}

	if uri, rng, ok := cs.Script().DefinitionAt(toTokenPosition(pos)); ok {
		return []ls.Location{{URI: ls.PathToURI(s.abs(uri)), Range: toLSRange(rng)}}, nil
	}

	// Fall back to a workspace symbol search on the identifier's text,
	// honouring a namespace qualifier when present.
	t := cs.Script().TokenAt(toTokenPosition(pos))
	if t == nil || t.Kind != token.Identifier {
		return nil, nil
	}
	namespace := ""
	if prev := t.PrevCode(); prev != nil && prev.Kind == token.ScopeResolution {
		if ns := prev.PrevCode(); ns != nil && ns.Kind == token.Identifier {
			namespace = ns.Lexeme
		}
	}
	if loc, ok := s.manager.FindSymbolLocation(namespace, t.Lexeme); ok {
		return []ls.Location{{URI: ls.PathToURI(s.abs(loc.URI)), Range: toLSRange(loc.Range)}}, nil
	}
	return nil, nil
}

// References lists every token whose sense points at the same definition
// as the token under the cursor.
func (s *server) References(ctx context.Context, doc *ls.Document, pos ls.Position) ([]ls.Location, error) {
	cs, _, ok := s.scriptFor(doc)
	if !ok {
		return nil, nil
	}
	t := cs.Script().TokenAt(toTokenPosition(pos))
	if t == nil {
		return nil, nil
	}
	sense := t.Sense()
	if sense == nil || sense.DefURI == "" {
		return nil, nil
	}
	refs := s.manager.FindReferences(sense.DefURI, sense.DefRange)
	out := make([]ls.Location, 0, len(refs))
	for _, r := range refs {
		out = append(out, ls.Location{URI: ls.PathToURI(s.abs(r.URI)), Range: toLSRange(r.Range)})
	}
	return out, nil
}

// FoldingRanges returns the script's folding ranges.
func (s *server) FoldingRanges(ctx context.Context, doc *ls.Document) ([]ls.FoldingRange, error) {
	cs, _, ok := s.scriptFor(doc)
	if !ok {
		return nil, nil
	}
	folds := cs.Script().FoldingRanges()
	out := make([]ls.FoldingRange, 0, len(folds))
	for _, f := range folds {
		out = append(out, ls.FoldingRange{
			StartLine: f.StartLine + 1,
			EndLine:   f.EndLine + 1,
			Kind:      ls.FoldingKind(f.Kind),
		})
	}
	return out, nil
}

// SemanticTokens returns the document's semantic colouring.
func (s *server) SemanticTokens(ctx context.Context, doc *ls.Document) ([]ls.SemanticToken, error) {
	cs, _, ok := s.scriptFor(doc)
	if !ok {
		return nil, nil
	}
	tokens := cs.Script().SemanticTokens()
	out := make([]ls.SemanticToken, 0, len(tokens))
	for _, t := range tokens {
		idx, ok := semanticTypeIndex(t.Kind)
		if !ok {
			continue
		}
		out = append(out, ls.SemanticToken{
			Line:      t.Line + 1,
			Column:    t.Character + 1,
			Length:    t.Length,
			Type:      idx,
			Modifiers: int(t.Modifiers),
		})
	}
	return out, nil
}

// Symbols returns the document outline: macros, functions and classes with
// their members.
func (s *server) Symbols(ctx context.Context, doc *ls.Document) (ls.SymbolList, error) {
	cs, _, ok := s.scriptFor(doc)
	if !ok {
		return nil, nil
	}
	sc := cs.Script()
	syms := ls.SymbolList{}

	for _, m := range sc.MacroOutlines() {
		syms.Add(m.Name, ls.KindConstant, toLSRange(m.Range))
	}

	table := sc.Table()
	if table == nil {
		return syms, nil
	}
	for _, fn := range table.LocalFunctions {
		syms.Add(fn.Name, ls.KindFunction, toLSRange(fn.Location.Range))
	}
	for _, c := range table.LocalClasses {
		classSym := syms.Add(c.Name, ls.KindClass, toLSRange(c.Location.Range))
		for name, loc := range c.Members {
			classSym.Children = append(classSym.Children, ls.Symbol{
				Name: name, Kind: ls.KindProperty, Range: toLSRange(loc.Range),
			})
		}
		for name, m := range c.Methods {
			classSym.Children = append(classSym.Children, ls.Symbol{
				Name: name, Kind: ls.KindMethod, Range: toLSRange(m.Location.Range),
			})
		}
		if c.Constructor != nil {
			classSym.Children = append(classSym.Children, ls.Symbol{
				Name: "constructor", Kind: ls.KindConstructor, Range: toLSRange(c.Constructor.Location.Range),
			})
		}
		if c.Destructor != nil {
			classSym.Children = append(classSym.Children, ls.Symbol{
				Name: "destructor", Kind: ls.KindMethod, Range: toLSRange(c.Destructor.Location.Range),
			})
		}
	}
	return syms, nil
}

// Completions offers keywords, macros, script functions and builtin API
// functions at the cursor.
func (s *server) Completions(ctx context.Context, doc *ls.Document, pos ls.Position) (ls.CompletionList, error) {
	list := ls.CompletionList{}
	cs, _, ok := s.scriptFor(doc)
	if !ok {
		return list, nil
	}
	sc := cs.Script()

	for kw := range token.Keywords {
		list.Add(kw, ls.Keyword, "keyword")
	}
	for _, m := range sc.MacroOutlines() {
		list.Add(m.Name, ls.Constant, "macro")
	}

	if table := sc.Table(); table != nil {
		seen := map[string]bool{}
		for key, fn := range table.Functions {
			if seen[key.Name] {
				continue
			}
			seen[key.Name] = true
			detail := fn.Signature()
			kind := ls.Function
			if fn.Implicit {
				continue // Builtins are appended from the library below.
			}
			list.AddDocumented(key.Name, kind, detail, fn.Doc)
		}
		for key := range table.Classes {
			list.Add(key.Name, ls.Class, "class")
		}
	}

	if lib := s.registry.Library(doc.Language()); lib != nil {
		for _, fn := range lib.Functions() {
			list.AddDocumented(fn.Name, ls.Function, fn.Signature(), fn.Doc)
		}
	}
	return list, nil
}

// Signatures finds the innermost open call at the cursor and returns its
// candidate signatures with the active parameter index.
func (s *server) Signatures(ctx context.Context, doc *ls.Document, pos ls.Position) (ls.SignatureList, int, int, error) {
	sigs := ls.SignatureList{}
	cs, _, ok := s.scriptFor(doc)
	if !ok {
		return sigs, 0, 0, nil
	}
	sc := cs.Script()
	tokens := sc.Tokens()
	if tokens == nil {
		return sigs, 0, 0, nil
	}
	target := toTokenPosition(pos)

	stack := []callFrame{}

	for t := tokens.First(); t != tokens.End(); t = t.Next() {
		if t.Range.Start.After(target) {
			break
		}
		switch t.Kind {
		case token.OpenParen:
			f := callFrame{}
			callee := t.PrevCode()
			if callee != nil && callee.Is(token.Identifier, token.Waittill, token.WaittillMatch) {
				f.callee = callee
				if sep := callee.PrevCode(); sep != nil && sep.Kind == token.ScopeResolution {
					if ns := sep.PrevCode(); ns != nil && ns.Kind == token.Identifier {
						f.ns = ns
					}
				}
			}
			stack = append(stack, f)
		case token.CloseParen:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case token.Comma:
			if len(stack) > 0 {
				stack[len(stack)-1].commas++
			}
		}
	}

	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		if f.callee == nil {
			continue
		}
		fn := s.lookupSignature(sc.Table(), doc.Language(), f)
		if fn == nil {
			continue
		}
		params := ls.ParameterList{}
		for _, p := range fn.Params {
			params.Add(p, "")
		}
		sigs.Add(fn.Signature(), fn.Doc, params)
		active := f.commas
		if !fn.Variadic() && len(fn.Params) > 0 && active >= len(fn.Params) {
			active = len(fn.Params) - 1
		}
		return sigs, 0, active, nil
	}
	return sigs, 0, 0, nil
}

// callFrame tracks one unclosed argument list while scanning for the
// signature help context.
type callFrame struct {
	callee *token.Token
	ns     *token.Token
	commas int
}

func (s *server) lookupSignature(table *resolver.Table, language string, f callFrame) *resolver.Function {
	name := strings.ToLower(f.callee.Lexeme)
	if f.ns != nil {
		ns := strings.ToLower(f.ns.Lexeme)
		if ns == "sys" {
			if lib := s.registry.Library(language); lib != nil {
				if fn, ok := lib.Lookup(name); ok {
					return fn
				}
			}
			return nil
		}
		if table != nil {
			if fn, ok := table.Functions[resolver.KeyOf(ns, name)]; ok {
				return fn
			}
		}
		return nil
	}
	if table != nil {
		if fn, ok := table.Function("", name); ok {
			return fn
		}
	}
	if lib := s.registry.Library(language); lib != nil {
		if fn, ok := lib.Lookup(name); ok {
			return fn
		}
	}
	return nil
}
