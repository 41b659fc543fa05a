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
	"sort"
	"strings"

	"github.com/gscode/gscls/gsc/token"
)

// DefinitionSource records what bound a variable.
type DefinitionSource int

const (
	DefAssignment DefinitionSource = iota
	DefParameter
	DefConstant
	DefIterator
	DefBuiltin
)

// Variable is one symbol table entry.
type Variable struct {
	Name     string // Lowercased.
	Data     *ScrData
	Scope    int // Lexical scope depth the variable was bound at.
	Const    bool
	Source   DefinitionSource
	Location token.Range // Where the binding occurred.
}

func (v *Variable) copy() *Variable {
	c := *v
	c.Data = v.Data.Copy()
	return &c
}

// ReservedNames cannot be bound as variables; the analyzer treats them as
// pseudo functions.
var ReservedNames = map[string]bool{
	"waittill":      true,
	"notify":        true,
	"isdefined":     true,
	"endon":         true,
	"waittillmatch": true,
	"vectorscale":   true,
}

// BuiltinGlobals are always resolvable in the variable namespace.
var BuiltinGlobals = map[string]*ScrData{
	"self":  EntityOf(""),
	"level": EntityOf(""),
	"game":  UnknownOf(TypeArray),
	"anim":  EntityOf(""),
}

// SymbolTable is the program point state of the data flow analysis: a map
// from variable name to its abstract value and binding metadata.
type SymbolTable struct {
	vars map[string]*Variable
}

// NewSymbolTable returns an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{vars: map[string]*Variable{}}
}

// Get resolves name, case insensitively. Builtin globals resolve even when
// never bound.
func (s *SymbolTable) Get(name string) (*Variable, bool) {
	lower := strings.ToLower(name)
	if v, ok := s.vars[lower]; ok {
		return v, true
	}
	if data, ok := BuiltinGlobals[lower]; ok {
		return &Variable{Name: lower, Data: data.Copy(), Source: DefBuiltin}, true
	}
	return nil, false
}

// Bind inserts or replaces the variable.
func (s *SymbolTable) Bind(v *Variable) {
	s.vars[strings.ToLower(v.Name)] = v
}

// Copy returns a deep copy of the table.
func (s *SymbolTable) Copy() *SymbolTable {
	out := NewSymbolTable()
	for k, v := range s.vars {
		out.vars[k] = v.copy()
	}
	return out
}

// Names returns the bound names in sorted order.
func (s *SymbolTable) Names() []string {
	names := make([]string, 0, len(s.vars))
	for k := range s.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Equal returns true iff both tables bind the same names to the same
// abstract values.
func (s *SymbolTable) Equal(o *SymbolTable) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.vars) != len(o.vars) {
		return false
	}
	for k, v := range s.vars {
		ov, ok := o.vars[k]
		if !ok || v.Const != ov.Const || !v.Data.Equal(ov.Data) {
			return false
		}
	}
	return true
}

// Join merges the out states of a node's predecessors. Symbols bound at a
// scope deeper than maxScope are dropped, implementing the merge back to
// outer scopes. A symbol bound on only some paths joins with undefined.
func Join(states []*SymbolTable, maxScope int) *SymbolTable {
	out := NewSymbolTable()
	if len(states) == 0 {
		return out
	}

	counts := map[string]int{}
	for _, st := range states {
		for k, v := range st.vars {
			if v.Scope > maxScope {
				continue
			}
			counts[k]++
		}
	}

	for name, count := range counts {
		var merged *Variable
		for _, st := range states {
			v, ok := st.vars[name]
			if !ok || v.Scope > maxScope {
				continue
			}
			if merged == nil {
				merged = v.copy()
				continue
			}
			merged.Data = Merge(merged.Data, v.Data)
			merged.Const = merged.Const && v.Const
		}
		if merged != nil && count < len(states) {
			// Unbound on at least one inbound path.
			merged.Data = Merge(merged.Data, Undefined())
		}
		out.vars[name] = merged
	}
	return out
}
