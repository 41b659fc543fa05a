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

package preproc

import (
	"strings"

	"github.com/gscode/gscls/gsc/token"
)

// Macro is one '#define' registration.
type Macro struct {
	Name      string       // Lowercased name.
	NameToken *token.Token // The identifier in the definition.

	// Parametric is true when the definition carried a parameter list, even
	// an empty one. Non-parametric macros expand on the bare identifier.
	Parametric bool
	Params     []string // Lowercased parameter names, in order.

	// Body holds the definition's replacement tokens, excluding trivia at
	// either end.
	Body []*token.Token

	// Location is the range of the whole #define directive.
	Location token.Range
}

// macroTable is a case insensitive macro table.
type macroTable map[string]*Macro

func (t macroTable) get(name string) (*Macro, bool) {
	m, ok := t[strings.ToLower(name)]
	return m, ok
}

func (t macroTable) put(m *Macro) bool {
	if _, exists := t[m.Name]; exists {
		return false
	}
	t[m.Name] = m
	return true
}

// expand clones the macro body substituting parameters by name. Every
// produced token is marked as coming from the preprocessor: its visible
// range is the invocation site and its source range points inside the
// definition (or inside the argument, for substituted parameters).
func (m *Macro) expand(site token.Range, args [][]*token.Token) *token.List {
	byName := map[string][]*token.Token{}
	for i, p := range m.Params {
		if i < len(args) {
			byName[p] = args[i]
		}
	}
	out := token.NewList()
	for _, t := range m.Body {
		if t.Kind == token.Identifier {
			if arg, ok := byName[strings.ToLower(t.Lexeme)]; ok {
				for _, a := range arg {
					c := a.Clone()
					c.FromPreprocessor = true
					c.Range = site
					out.Append(c)
				}
				continue
			}
		}
		c := t.Clone()
		c.FromPreprocessor = true
		c.SourceRange = t.Range
		c.Range = site
		out.Append(c)
	}
	return out
}
