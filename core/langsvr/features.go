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

package langsvr

import "github.com/gscode/gscls/core/langsvr/protocol"

// CompletionKind classifies a completion item.
type CompletionKind int

const (
	Text CompletionKind = iota
	Function
	Method
	Field
	Variable
	Class
	Module
	Keyword
	Snippet
	Constant
)

func (k CompletionKind) toProtocol() protocol.CompletionItemKind {
	switch k {
	case Function:
		return protocol.CompletionFunction
	case Method:
		return protocol.CompletionMethod
	case Field:
		return protocol.CompletionField
	case Variable:
		return protocol.CompletionVariable
	case Class:
		return protocol.CompletionClass
	case Module:
		return protocol.CompletionModule
	case Keyword:
		return protocol.CompletionKeyword
	case Snippet:
		return protocol.CompletionSnippet
	case Constant:
		return protocol.CompletionConstant
	default:
		return protocol.CompletionText
	}
}

// CompletionList is a list of completion items.
type CompletionList struct {
	items []protocol.CompletionItem
}

// Add appends a completion item to the list.
func (l *CompletionList) Add(name string, kind CompletionKind, detail string) {
	l.items = append(l.items, protocol.CompletionItem{
		Label:  name,
		Kind:   kind.toProtocol(),
		Detail: detail,
	})
}

// AddDocumented appends a completion item with markdown documentation.
func (l *CompletionList) AddDocumented(name string, kind CompletionKind, detail, doc string) {
	item := protocol.CompletionItem{
		Label:  name,
		Kind:   kind.toProtocol(),
		Detail: detail,
	}
	if doc != "" {
		item.Documentation = &protocol.MarkupContent{Kind: "markdown", Value: doc}
	}
	l.items = append(l.items, item)
}

// Len returns the number of items in the list.
func (l *CompletionList) Len() int { return len(l.items) }

// ParameterList is the ordered parameters of one signature.
type ParameterList struct {
	params []protocol.ParameterInformation
}

// Add appends a parameter with documentation.
func (l *ParameterList) Add(name, doc string) {
	p := protocol.ParameterInformation{Label: name}
	if doc != "" {
		p.Documentation = &protocol.MarkupContent{Kind: "markdown", Value: doc}
	}
	l.params = append(l.params, p)
}

// SignatureList is the candidate signatures at a call site.
type SignatureList struct {
	sigs []protocol.SignatureInformation
}

// Add appends a signature with its parameters.
func (l *SignatureList) Add(label, doc string, params ParameterList) {
	sig := protocol.SignatureInformation{
		Label:      label,
		Parameters: params.params,
	}
	if doc != "" {
		sig.Documentation = &protocol.MarkupContent{Kind: "markdown", Value: doc}
	}
	l.sigs = append(l.sigs, sig)
}

// Len returns the number of signatures.
func (l *SignatureList) Len() int { return len(l.sigs) }

// SymbolKind classifies a document symbol.
type SymbolKind int

const (
	KindFile SymbolKind = iota
	KindNamespace
	KindClass
	KindMethod
	KindProperty
	KindFunction
	KindVariable
	KindConstant
	KindConstructor
)

func (k SymbolKind) toProtocol() protocol.SymbolKind {
	switch k {
	case KindNamespace:
		return protocol.SymbolNamespace
	case KindClass:
		return protocol.SymbolClass
	case KindMethod:
		return protocol.SymbolMethod
	case KindProperty:
		return protocol.SymbolProperty
	case KindFunction:
		return protocol.SymbolFunction
	case KindVariable:
		return protocol.SymbolVariable
	case KindConstant:
		return protocol.SymbolConstant
	case KindConstructor:
		return protocol.SymbolConstructor
	default:
		return protocol.SymbolFile
	}
}

// Symbol is one outline entry.
type Symbol struct {
	Name     string
	Detail   string
	Kind     SymbolKind
	Range    Range
	Children []Symbol
}

// SymbolList is a list of document symbols.
type SymbolList []Symbol

// Add appends a symbol and returns a pointer to it so children can be
// attached.
func (l *SymbolList) Add(name string, kind SymbolKind, rng Range) *Symbol {
	*l = append(*l, Symbol{Name: name, Kind: kind, Range: rng})
	return &(*l)[len(*l)-1]
}

func (s Symbol) toProtocol() protocol.DocumentSymbol {
	out := protocol.DocumentSymbol{
		Name:           s.Name,
		Detail:         s.Detail,
		Kind:           s.Kind.toProtocol(),
		Range:          s.Range.toProtocol(),
		SelectionRange: s.Range.toProtocol(),
	}
	for _, c := range s.Children {
		out.Children = append(out.Children, c.toProtocol())
	}
	return out
}

// FoldingKind classifies a folding range.
type FoldingKind int

const (
	FoldRegion FoldingKind = iota
	FoldComment
	FoldImports
)

func (k FoldingKind) toProtocol() string {
	switch k {
	case FoldComment:
		return "comment"
	case FoldImports:
		return "imports"
	default:
		return "region"
	}
}

// FoldingRange is one foldable span.
type FoldingRange struct {
	// StartLine and EndLine are 1-based line numbers.
	StartLine int
	EndLine   int
	Kind      FoldingKind
}

// SemanticToken is one coloured span in absolute coordinates. Line and
// Column are 1-based; the encoder produces the protocol's relative
// integers.
type SemanticToken struct {
	Line      int
	Column    int
	Length    int
	Type      int
	Modifiers int
}

// EncodeSemanticTokens converts absolute tokens into the protocol's
// relative integer quintuples. Tokens must be ordered by position.
func EncodeSemanticTokens(tokens []SemanticToken) protocol.SemanticTokens {
	data := make([]int, 0, len(tokens)*5)
	prevLine, prevCol := 1, 1
	for _, t := range tokens {
		deltaLine := t.Line - prevLine
		deltaCol := t.Column
		if deltaLine == 0 {
			deltaCol = t.Column - prevCol
		} else {
			deltaCol = t.Column - 1
		}
		data = append(data, deltaLine, deltaCol, t.Length, t.Type, t.Modifiers)
		prevLine, prevCol = t.Line, t.Column
	}
	return protocol.SemanticTokens{Data: data}
}
