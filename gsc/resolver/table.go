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

package resolver

import (
	"strings"

	"github.com/gscode/gscls/gsc/token"
)

// Location is a symbol's definition site.
type Location struct {
	URI   string
	Range token.Range
}

// Key addresses a symbol in a definitions table. Both parts are lowercased
// at construction so lookups are case insensitive.
type Key struct {
	Namespace string
	Name      string
}

// KeyOf builds a lookup key, normalising case.
func KeyOf(namespace, name string) Key {
	return Key{strings.ToLower(namespace), strings.ToLower(name)}
}

// Function is a function or method signature entry.
type Function struct {
	Name      string // Lowercased.
	Namespace string // Lowercased. For methods this is the class qualifier.

	Location Location
	Params   []string // Lowercased parameter names, in order.

	// MinArgs and MaxArgs bound the accepted argument count. MaxArgs is -1
	// for vararg functions.
	MinArgs int
	MaxArgs int

	Doc string // Markdown extracted from the preceding /@ ... @/ block.

	Private     bool
	Autoexec    bool
	UserDefined bool
	Implicit    bool // Builtin API functions loaded from the language feed.
}

// Variadic returns true when the function accepts any argument count above
// MinArgs.
func (f *Function) Variadic() bool { return f.MaxArgs < 0 }

// Signature renders 'name(a, b, ...)' for hovers and completion detail.
func (f *Function) Signature() string {
	parts := append([]string{}, f.Params...)
	if f.Variadic() {
		parts = append(parts, "...")
	}
	return f.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Class is a class definition entry.
type Class struct {
	Name      string // Lowercased.
	Namespace string // Lowercased.

	Location     Location
	InheritsFrom string // Lowercased parent class name, or empty.

	Members map[string]Location  // Lowercased member name -> declaration.
	Methods map[string]*Function // Lowercased method name -> signature.

	Constructor *Function
	Destructor  *Function
}

// Method resolves a method on the class itself, without walking the
// inheritance chain.
func (c *Class) Method(name string) (*Function, bool) {
	m, ok := c.Methods[strings.ToLower(name)]
	return m, ok
}

// Export is one symbol issued to dependents, tagged with the namespace that
// was active at its declaration.
type Export struct {
	Namespace string
	Function  *Function
	Class     *Class
}

// Table is the per file definitions table produced by the signature pass
// and enriched by the cross file merge.
type Table struct {
	URI        string
	LanguageID string

	Functions map[Key]*Function
	Classes   map[Key]*Class

	// Dependencies are the resolved paths of the file's #using directives.
	Dependencies []string

	// LocalFunctions indexes functions declared in this file by bare name.
	LocalFunctions map[string]*Function

	// LocalClasses indexes classes declared in this file by bare name.
	LocalClasses map[string]*Class

	// Exported lists the symbols visible to dependents: non private
	// functions and all classes.
	Exported []Export

	// ExportedFunctions indexes the exported symbols visible to this
	// script by bare name: its own non private functions plus every
	// dependency export merged in. Unqualified call resolution consults
	// this table; it never falls back to unrelated namespaces.
	ExportedFunctions map[string]*Function

	// Namespaces holds every namespace known to the table, including those
	// merged from dependencies.
	Namespaces map[string]bool

	// CurrentNamespace is the namespace cursor left by the last #namespace
	// directive, or the default namespace.
	CurrentNamespace string
}

// NewTable returns an empty definitions table for the document.
func NewTable(uri, languageID string) *Table {
	return &Table{
		URI:               uri,
		LanguageID:        languageID,
		Functions:         map[Key]*Function{},
		Classes:           map[Key]*Class{},
		LocalFunctions:    map[string]*Function{},
		LocalClasses:      map[string]*Class{},
		ExportedFunctions: map[string]*Function{},
		Namespaces:        map[string]bool{},
	}
}

// PutFunction registers fn under (namespace, name).
func (t *Table) PutFunction(namespace string, fn *Function) {
	t.Functions[KeyOf(namespace, fn.Name)] = fn
	if namespace != "" {
		t.Namespaces[strings.ToLower(namespace)] = true
	}
}

// PutClass registers c under (namespace, name).
func (t *Table) PutClass(namespace string, c *Class) {
	t.Classes[KeyOf(namespace, c.Name)] = c
	if namespace != "" {
		t.Namespaces[strings.ToLower(namespace)] = true
	}
}

// Function resolves (namespace, name), falling back to any namespace when
// the qualified lookup misses and namespace is empty. The fallback serves
// workspace symbol search and signature help; call resolution goes
// through ExportedFunctions instead.
func (t *Table) Function(namespace, name string) (*Function, bool) {
	if f, ok := t.Functions[KeyOf(namespace, name)]; ok {
		return f, true
	}
	if namespace == "" {
		lower := strings.ToLower(name)
		for k, f := range t.Functions {
			if k.Name == lower {
				return f, true
			}
		}
	}
	return nil, false
}

// Class resolves (namespace, name) the same way as Function.
func (t *Table) Class(namespace, name string) (*Class, bool) {
	if c, ok := t.Classes[KeyOf(namespace, name)]; ok {
		return c, true
	}
	if namespace == "" {
		lower := strings.ToLower(name)
		for k, c := range t.Classes {
			if k.Name == lower {
				return c, true
			}
		}
	}
	return nil, false
}

// ClassByName resolves a class by bare name in any namespace.
func (t *Table) ClassByName(name string) (*Class, bool) {
	return t.Class("", name)
}

// MergeExports pulls another table's exported symbols into this one. Called
// under the importing script's analysis lock.
func (t *Table) MergeExports(from []Export) {
	for _, e := range from {
		switch {
		case e.Function != nil:
			key := KeyOf(e.Namespace, e.Function.Name)
			if _, exists := t.Functions[key]; !exists {
				t.Functions[key] = e.Function
			}
			if _, exists := t.ExportedFunctions[e.Function.Name]; !exists {
				t.ExportedFunctions[e.Function.Name] = e.Function
			}
			if e.Namespace != "" {
				t.Namespaces[strings.ToLower(e.Namespace)] = true
			}
		case e.Class != nil:
			key := KeyOf(e.Namespace, e.Class.Name)
			if _, exists := t.Classes[key]; !exists {
				t.Classes[key] = e.Class
			}
			if e.Namespace != "" {
				t.Namespaces[strings.ToLower(e.Namespace)] = true
			}
		}
	}
}
