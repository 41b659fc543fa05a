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

package script

import (
	"strings"

	"github.com/gscode/gscls/gsc/ast"
	"github.com/gscode/gscls/gsc/preproc"
	"github.com/gscode/gscls/gsc/token"
)

// FoldingKind classifies a folding range.
type FoldingKind int

const (
	FoldRegion FoldingKind = iota
	FoldComment
	FoldImports
)

// FoldingRange is one foldable span, by line.
type FoldingRange struct {
	StartLine int
	EndLine   int
	Kind      FoldingKind
}

// computeFolding derives folding ranges from the syntax tree (functions,
// classes, switch cases, dev blocks), multi line comments, '// region'
// comment banners and insert regions.
func computeFolding(tree *ast.Script, tokens *token.List, inserts []preproc.InsertRegion) []FoldingRange {
	out := []FoldingRange{}

	add := func(rng token.Range, kind FoldingKind) {
		if rng.End.Line > rng.Start.Line {
			out = append(out, FoldingRange{
				StartLine: rng.Start.Line,
				EndLine:   rng.End.Line,
				Kind:      kind,
			})
		}
	}

	if tree != nil {
		// The #using block folds as an import region.
		if len(tree.Dependencies) > 1 {
			first := tree.Dependencies[0].Range()
			last := tree.Dependencies[len(tree.Dependencies)-1].Range()
			out = append(out, FoldingRange{
				StartLine: first.Start.Line,
				EndLine:   last.End.Line,
				Kind:      FoldImports,
			})
		}

		ast.Walk(tree, func(n ast.Node) {
			switch n := n.(type) {
			case *ast.FunctionDef:
				add(n.Range(), FoldRegion)
			case *ast.ClassDef:
				add(n.Range(), FoldRegion)
			case *ast.Block:
				add(n.Range(), FoldRegion)
			case *ast.Switch:
				add(n.Range(), FoldRegion)
			case *ast.CaseClause:
				add(n.Range(), FoldRegion)
			case *ast.DevBlock:
				add(n.Range(), FoldRegion)
			}
		})
	}

	if tokens != nil {
		var regionStack []int
		for t := tokens.First(); t != tokens.End(); t = t.Next() {
			switch t.Kind {
			case token.BlockComment, token.DocComment:
				add(t.Range, FoldComment)

			case token.LineComment:
				text := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(t.Lexeme, "//")))
				switch {
				case strings.HasPrefix(text, "region"):
					regionStack = append(regionStack, t.Range.Start.Line)
				case strings.HasPrefix(text, "endregion"):
					if len(regionStack) > 0 {
						start := regionStack[len(regionStack)-1]
						regionStack = regionStack[:len(regionStack)-1]
						if t.Range.Start.Line > start {
							out = append(out, FoldingRange{
								StartLine: start,
								EndLine:   t.Range.Start.Line,
								Kind:      FoldRegion,
							})
						}
					}
				}
			}
		}
	}

	for _, ins := range inserts {
		if ins.Range.End.Line > ins.Range.Start.Line {
			out = append(out, FoldingRange{
				StartLine: ins.Range.Start.Line,
				EndLine:   ins.Range.End.Line,
				Kind:      FoldRegion,
			})
		}
	}

	return out
}
