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

// Package langsvr provides a language server protocol front end: it owns
// the JSON-RPC connection and document store, and forwards feature
// requests to a Server implementation through typed provider interfaces.
package langsvr

import (
	"context"
	"encoding/json"
	"io"

	"github.com/gscode/gscls/core/langsvr/protocol"
	"github.com/gscode/gscls/core/log"
)

// Server is the interface implemented by language servers.
type Server interface {
	// Initialize is called when the server is first initialized.
	Initialize(ctx context.Context, rootPath string) (InitConfig, error)

	// Shutdown is called to shut the server down.
	Shutdown(ctx context.Context) error

	// OnDocumentsAdded is called when documents of interest are opened or
	// discovered.
	OnDocumentsAdded(ctx context.Context, docs []*Document) error

	// OnDocumentsChanged is called when open documents are edited.
	OnDocumentsChanged(ctx context.Context, docs []*Document) error

	// OnDocumentsRemoved is called when documents are closed.
	OnDocumentsRemoved(ctx context.Context, docs []*Document) error
}

// InitConfig is the configuration returned by Server.Initialize.
type InitConfig struct {
	LanguageID                  string
	CompletionTriggerCharacters []rune
	SignatureTriggerCharacters  []rune

	// SemanticTokenTypes and SemanticTokenModifiers name the legend the
	// server's SemanticToken type/modifier indices refer to.
	SemanticTokenTypes     []string
	SemanticTokenModifiers []string
}

// HoverProvider is implemented by servers that provide hover text.
type HoverProvider interface {
	// Hover returns the markdown to show for the symbol at pos.
	Hover(ctx context.Context, doc *Document, pos Position) (string, Range, error)
}

// DefinitionProvider is implemented by servers that provide go to
// definition.
type DefinitionProvider interface {
	Definitions(ctx context.Context, doc *Document, pos Position) ([]Location, error)
}

// ReferencesProvider is implemented by servers that provide find
// references.
type ReferencesProvider interface {
	References(ctx context.Context, doc *Document, pos Position) ([]Location, error)
}

// CompletionProvider is implemented by servers that provide completion.
type CompletionProvider interface {
	Completions(ctx context.Context, doc *Document, pos Position) (CompletionList, error)
}

// SignatureProvider is implemented by servers that provide signature help.
type SignatureProvider interface {
	Signatures(ctx context.Context, doc *Document, pos Position) (sigs SignatureList, activeSig, activeParam int, err error)
}

// SymbolsProvider is implemented by servers that provide document symbols.
type SymbolsProvider interface {
	Symbols(ctx context.Context, doc *Document) (SymbolList, error)
}

// FoldingProvider is implemented by servers that provide folding ranges.
type FoldingProvider interface {
	FoldingRanges(ctx context.Context, doc *Document) ([]FoldingRange, error)
}

// SemanticTokensProvider is implemented by servers that provide semantic
// token colouring.
type SemanticTokensProvider interface {
	SemanticTokens(ctx context.Context, doc *Document) ([]SemanticToken, error)
}

type langsvr struct {
	conn      *protocol.Connection
	server    Server
	documents map[string]*Document
	config    InitConfig
}

// Connect drives a language server over the given stream until the client
// disconnects.
func Connect(ctx context.Context, stream io.ReadWriter, server Server) error {
	s := &langsvr{
		conn:      protocol.NewConnection(stream),
		server:    server,
		documents: map[string]*Document{},
	}
	err := s.conn.Serve(ctx, s)
	if err == protocol.ErrStopped {
		return nil
	}
	return err
}

// Connection exposes the underlying connection for server originated
// notifications.
func (s *langsvr) Connection() *protocol.Connection { return s.conn }

func decode(params json.RawMessage, into interface{}) error {
	if len(params) == 0 {
		return nil
	}
	return json.Unmarshal(params, into)
}

// Request implements protocol.Handler.
func (s *langsvr) Request(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case "initialize":
		return s.initialize(ctx, params)

	case "shutdown":
		return nil, s.server.Shutdown(ctx)

	case "textDocument/hover":
		return s.hover(ctx, params)

	case "textDocument/definition":
		return s.definition(ctx, params)

	case "textDocument/references":
		return s.references(ctx, params)

	case "textDocument/completion":
		return s.completion(ctx, params)

	case "textDocument/signatureHelp":
		return s.signatureHelp(ctx, params)

	case "textDocument/documentSymbol":
		return s.documentSymbol(ctx, params)

	case "textDocument/foldingRange":
		return s.foldingRange(ctx, params)

	case "textDocument/semanticTokens/full":
		return s.semanticTokens(ctx, params)

	default:
		return nil, &protocol.ResponseError{Code: protocol.MethodNotFound, Message: "unknown method " + method}
	}
}

// Notification implements protocol.Handler.
func (s *langsvr) Notification(ctx context.Context, method string, params json.RawMessage) {
	var err error
	switch method {
	case "initialized", "exit":
		// Nothing to do.

	case "textDocument/didOpen":
		err = s.didOpen(ctx, params)

	case "textDocument/didChange":
		err = s.didChange(ctx, params)

	case "textDocument/didClose":
		err = s.didClose(ctx, params)
	}
	if err != nil {
		log.W(ctx, "%s failed: %v", method, err)
	}
}

func (s *langsvr) initialize(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.InitializeParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	root := p.RootPath
	if p.RootURI != "" {
		if path, err := URItoPath(p.RootURI); err == nil {
			root = path
		}
	}

	cfg, err := s.server.Initialize(ctx, root)
	if err != nil {
		return nil, err
	}
	s.config = cfg

	caps := protocol.ServerCapabilities{
		TextDocumentSync:       2, // Incremental.
		HoverProvider:          true,
		DefinitionProvider:     true,
		ReferencesProvider:     true,
		DocumentSymbolProvider: true,
		FoldingRangeProvider:   true,
	}
	if len(cfg.CompletionTriggerCharacters) > 0 {
		chars := make([]string, len(cfg.CompletionTriggerCharacters))
		for i, r := range cfg.CompletionTriggerCharacters {
			chars[i] = string(r)
		}
		caps.CompletionProvider = &protocol.CompletionOptions{TriggerCharacters: chars}
	}
	if len(cfg.SignatureTriggerCharacters) > 0 {
		chars := make([]string, len(cfg.SignatureTriggerCharacters))
		for i, r := range cfg.SignatureTriggerCharacters {
			chars[i] = string(r)
		}
		caps.SignatureHelpProvider = &protocol.SignatureHelpOptions{TriggerCharacters: chars}
	}
	if len(cfg.SemanticTokenTypes) > 0 {
		caps.SemanticTokensProvider = &protocol.SemanticTokensOptions{
			Legend: protocol.SemanticTokensLegend{
				TokenTypes:     cfg.SemanticTokenTypes,
				TokenModifiers: cfg.SemanticTokenModifiers,
			},
			Full: true,
		}
	}
	return protocol.InitializeResult{Capabilities: caps}, nil
}

func (s *langsvr) didOpen(ctx context.Context, params json.RawMessage) error {
	var p protocol.DidOpenTextDocumentParams
	if err := decode(params, &p); err != nil {
		return err
	}
	doc := s.newDocument(p.TextDocument.URI, p.TextDocument.LanguageID,
		p.TextDocument.Version, NewBody(p.TextDocument.Text))
	doc.open = true
	return s.server.OnDocumentsAdded(ctx, []*Document{doc})
}

func (s *langsvr) didChange(ctx context.Context, params json.RawMessage) error {
	var p protocol.DidChangeTextDocumentParams
	if err := decode(params, &p); err != nil {
		return err
	}
	doc, ok := s.documents[p.TextDocument.URI]
	if !ok {
		return log.Errf(ctx, nil, "change for unopened document %s", p.TextDocument.URI)
	}
	for _, change := range p.ContentChanges {
		if change.Range == nil {
			doc.body = NewBody(change.Text)
		} else {
			doc.body = doc.body.Replace(rng(*change.Range), change.Text)
		}
	}
	doc.version = p.TextDocument.Version
	return s.server.OnDocumentsChanged(ctx, []*Document{doc})
}

func (s *langsvr) didClose(ctx context.Context, params json.RawMessage) error {
	var p protocol.DidCloseTextDocumentParams
	if err := decode(params, &p); err != nil {
		return err
	}
	doc, ok := s.documents[p.TextDocument.URI]
	if !ok {
		return nil
	}
	delete(s.documents, p.TextDocument.URI)
	return s.server.OnDocumentsRemoved(ctx, []*Document{doc})
}

// docPos resolves the document and position of a positional request.
func (s *langsvr) docPos(params json.RawMessage) (*Document, Position, error) {
	var p protocol.TextDocumentPositionParams
	if err := decode(params, &p); err != nil {
		return nil, Position{}, err
	}
	doc, ok := s.documents[p.TextDocument.URI]
	if !ok {
		return nil, Position{}, &protocol.ResponseError{
			Code:    protocol.InvalidParams,
			Message: "unknown document " + p.TextDocument.URI,
		}
	}
	return doc, pos(p.Position), nil
}

// doc resolves the document of a document scoped request.
func (s *langsvr) doc(params json.RawMessage) (*Document, error) {
	var p protocol.DocumentSymbolParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	doc, ok := s.documents[p.TextDocument.URI]
	if !ok {
		return nil, &protocol.ResponseError{
			Code:    protocol.InvalidParams,
			Message: "unknown document " + p.TextDocument.URI,
		}
	}
	return doc, nil
}

func (s *langsvr) hover(ctx context.Context, params json.RawMessage) (interface{}, error) {
	provider, ok := s.server.(HoverProvider)
	if !ok {
		return nil, nil
	}
	doc, position, err := s.docPos(params)
	if err != nil {
		return nil, err
	}
	markdown, rng, err := provider.Hover(ctx, doc, position)
	if err != nil || markdown == "" {
		return nil, err
	}
	r := rng.toProtocol()
	return protocol.Hover{
		Contents: protocol.MarkupContent{Kind: "markdown", Value: markdown},
		Range:    &r,
	}, nil
}

func (s *langsvr) definition(ctx context.Context, params json.RawMessage) (interface{}, error) {
	provider, ok := s.server.(DefinitionProvider)
	if !ok {
		return nil, nil
	}
	doc, position, err := s.docPos(params)
	if err != nil {
		return nil, err
	}
	locations, err := provider.Definitions(ctx, doc, position)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.Location, len(locations))
	for i, l := range locations {
		out[i] = l.toProtocol()
	}
	return out, nil
}

func (s *langsvr) references(ctx context.Context, params json.RawMessage) (interface{}, error) {
	provider, ok := s.server.(ReferencesProvider)
	if !ok {
		return nil, nil
	}
	doc, position, err := s.docPos(params)
	if err != nil {
		return nil, err
	}
	locations, err := provider.References(ctx, doc, position)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.Location, len(locations))
	for i, l := range locations {
		out[i] = l.toProtocol()
	}
	return out, nil
}

func (s *langsvr) completion(ctx context.Context, params json.RawMessage) (interface{}, error) {
	provider, ok := s.server.(CompletionProvider)
	if !ok {
		return nil, nil
	}
	doc, position, err := s.docPos(params)
	if err != nil {
		return nil, err
	}
	list, err := provider.Completions(ctx, doc, position)
	if err != nil {
		return nil, err
	}
	items := list.items
	if items == nil {
		items = []protocol.CompletionItem{}
	}
	return protocol.CompletionList{Items: items}, nil
}

func (s *langsvr) signatureHelp(ctx context.Context, params json.RawMessage) (interface{}, error) {
	provider, ok := s.server.(SignatureProvider)
	if !ok {
		return nil, nil
	}
	doc, position, err := s.docPos(params)
	if err != nil {
		return nil, err
	}
	sigs, activeSig, activeParam, err := provider.Signatures(ctx, doc, position)
	if err != nil || sigs.Len() == 0 {
		return nil, err
	}
	return protocol.SignatureHelp{
		Signatures:      sigs.sigs,
		ActiveSignature: activeSig,
		ActiveParameter: activeParam,
	}, nil
}

func (s *langsvr) documentSymbol(ctx context.Context, params json.RawMessage) (interface{}, error) {
	provider, ok := s.server.(SymbolsProvider)
	if !ok {
		return nil, nil
	}
	doc, err := s.doc(params)
	if err != nil {
		return nil, err
	}
	symbols, err := provider.Symbols(ctx, doc)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.DocumentSymbol, len(symbols))
	for i, sym := range symbols {
		out[i] = sym.toProtocol()
	}
	return out, nil
}

func (s *langsvr) foldingRange(ctx context.Context, params json.RawMessage) (interface{}, error) {
	provider, ok := s.server.(FoldingProvider)
	if !ok {
		return nil, nil
	}
	doc, err := s.doc(params)
	if err != nil {
		return nil, err
	}
	ranges, err := provider.FoldingRanges(ctx, doc)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.FoldingRange, len(ranges))
	for i, r := range ranges {
		out[i] = protocol.FoldingRange{
			StartLine: r.StartLine - 1,
			EndLine:   r.EndLine - 1,
			Kind:      r.Kind.toProtocol(),
		}
	}
	return out, nil
}

func (s *langsvr) semanticTokens(ctx context.Context, params json.RawMessage) (interface{}, error) {
	provider, ok := s.server.(SemanticTokensProvider)
	if !ok {
		return nil, nil
	}
	doc, err := s.doc(params)
	if err != nil {
		return nil, err
	}
	tokens, err := provider.SemanticTokens(ctx, doc)
	if err != nil {
		return nil, err
	}
	return EncodeSemanticTokens(tokens), nil
}
