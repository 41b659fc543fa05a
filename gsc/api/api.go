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

// Package api loads the builtin script API libraries: one JSON feed per
// language id describing every engine function. Loaded functions live in
// the sys namespace and are marked implicit, so arity mismatches against
// them warn instead of error.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/viant/afs"

	"github.com/gscode/gscls/gsc/resolver"
)

// Param is one parameter of an overload.
type Param struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
}

// Overload is one accepted calling shape of a builtin function.
type Overload struct {
	Params   []Param `json:"parameters"`
	CalledOn string  `json:"calledOn"`
	Return   string  `json:"return"`
	Vararg   bool    `json:"vararg"`
}

// ScrFunction is one builtin function entry of the feed.
type ScrFunction struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Example     string     `json:"example"`
	Overloads   []Overload `json:"overloads"`
	Flags       []string   `json:"flags"`
}

// libraryFile is the on-wire shape of one feed.
type libraryFile struct {
	LanguageID string        `json:"languageId"`
	GameID     string        `json:"gameId"`
	Revision   int           `json:"revision"`
	API        []ScrFunction `json:"api"`
}

// Library is one loaded language API: an immutable name indexed view of
// the feed. Libraries are loaded once at startup and never mutated, so
// reads need no synchronisation.
type Library struct {
	LanguageID string
	GameID     string
	Revision   int

	functions map[string]*resolver.Function
	raw       map[string]*ScrFunction
}

// Lookup resolves a builtin function by name, case insensitively.
func (l *Library) Lookup(name string) (*resolver.Function, bool) {
	if l == nil {
		return nil, false
	}
	fn, ok := l.functions[strings.ToLower(name)]
	return fn, ok
}

// Raw returns the feed entry behind a function name, for signature help.
func (l *Library) Raw(name string) (*ScrFunction, bool) {
	if l == nil {
		return nil, false
	}
	f, ok := l.raw[strings.ToLower(name)]
	return f, ok
}

// Functions returns every builtin signature in a newly built slice. The
// signatures it points at are shared; callers must not mutate them.
func (l *Library) Functions() []*resolver.Function {
	if l == nil {
		return nil
	}
	out := make([]*resolver.Function, 0, len(l.functions))
	for _, fn := range l.functions {
		out = append(out, fn)
	}
	return out
}

// Source names the places one language's feed can be loaded from. The URL
// is tried first, then the local file.
type Source struct {
	URL  string
	File string
}

// Load fetches every source and returns the newest revision per language
// id. A source that fails to load entirely is skipped with its error
// collected; Load only fails when nothing loaded at all.
func Load(ctx context.Context, sources []Source) (map[string]*Library, error) {
	fs := afs.New()
	libs := map[string]*Library{}
	var errs []error

	for _, src := range sources {
		lib, err := loadOne(ctx, fs, src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, ok := libs[lib.LanguageID]; ok && prev.Revision >= lib.Revision {
			continue
		}
		libs[lib.LanguageID] = lib
	}

	if len(libs) == 0 && len(errs) > 0 {
		return nil, errors.Wrap(errs[0], "no API library could be loaded")
	}
	return libs, nil
}

func loadOne(ctx context.Context, fs afs.Service, src Source) (*Library, error) {
	var data []byte
	var err error
	if src.URL != "" {
		data, err = fs.DownloadWithURL(ctx, src.URL)
	}
	if (err != nil || len(data) == 0) && src.File != "" {
		data, err = fs.DownloadWithURL(ctx, src.File)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading API library %q", src.File)
	}
	if len(data) == 0 {
		return nil, errors.Errorf("API library %q is empty", src.File)
	}

	var file libraryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "decoding API library %q", src.File)
	}
	return build(&file), nil
}

// build indexes a decoded feed into a Library.
func build(file *libraryFile) *Library {
	lib := &Library{
		LanguageID: strings.ToLower(file.LanguageID),
		GameID:     file.GameID,
		Revision:   file.Revision,
		functions:  make(map[string]*resolver.Function, len(file.API)),
		raw:        make(map[string]*ScrFunction, len(file.API)),
	}
	for i := range file.API {
		sf := &file.API[i]
		name := strings.ToLower(sf.Name)
		if name == "" {
			continue
		}
		lib.functions[name] = signatureOf(name, sf)
		lib.raw[name] = sf
	}
	return lib
}

// signatureOf folds a function's overload set into one signature entry:
// the loosest bounds across overloads, so checks against it only fire on
// calls no overload accepts.
func signatureOf(name string, sf *ScrFunction) *resolver.Function {
	fn := &resolver.Function{
		Name:      name,
		Namespace: "sys",
		Implicit:  true,
		MinArgs:   -1,
		MaxArgs:   0,
	}
	for _, o := range sf.Overloads {
		required := 0
		for _, p := range o.Params {
			if !p.Optional {
				required++
			}
		}
		if fn.MinArgs < 0 || required < fn.MinArgs {
			fn.MinArgs = required
		}
		if o.Vararg {
			fn.MaxArgs = -1
		} else if fn.MaxArgs >= 0 && len(o.Params) > fn.MaxArgs {
			fn.MaxArgs = len(o.Params)
		}
		if len(fn.Params) < len(o.Params) {
			fn.Params = fn.Params[:0]
			for _, p := range o.Params {
				fn.Params = append(fn.Params, strings.ToLower(p.Name))
			}
		}
	}
	if fn.MinArgs < 0 {
		fn.MinArgs = 0
	}
	fn.Doc = docOf(sf)
	return fn
}

func docOf(sf *ScrFunction) string {
	out := &strings.Builder{}
	out.WriteString(sf.Description)
	if sf.Example != "" {
		fmt.Fprintf(out, "\n\n**Example:**\n```gsc\n%s\n```", sf.Example)
	}
	return strings.TrimSpace(out.String())
}

// Registry is the process wide, load once view of every language's API.
type Registry struct {
	once sync.Once
	libs map[string]*Library
	err  error
}

// NewRegistry wraps an already loaded library set.
func NewRegistry(libs map[string]*Library) *Registry {
	r := &Registry{libs: libs}
	r.once.Do(func() {})
	return r
}

// LoadRegistry loads the sources exactly once, caching the result.
func (r *Registry) LoadRegistry(ctx context.Context, sources []Source) error {
	r.once.Do(func() {
		r.libs, r.err = Load(ctx, sources)
	})
	return r.err
}

// Library returns the loaded library for a language id, or nil.
func (r *Registry) Library(languageID string) *Library {
	if r == nil {
		return nil
	}
	return r.libs[strings.ToLower(languageID)]
}
