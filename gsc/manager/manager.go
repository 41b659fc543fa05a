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

// Package manager owns the workspace script cache: editor documents, the
// dependencies they pull in, per URI parse and analysis locks, diagnostics
// publication and workspace indexing.
//
// Editors are rooted by the client; dependencies are discovered
// transitively and reference counted. When the last dependent of a
// dependency drops, the dependency is evicted.
package manager

import (
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/viant/afs"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/gscode/gscls/core/app/crash"
	"github.com/gscode/gscls/core/event/task"
	"github.com/gscode/gscls/core/log"
	"github.com/gscode/gscls/gsc/api"
	"github.com/gscode/gscls/gsc/diag"
	"github.com/gscode/gscls/gsc/preproc"
	"github.com/gscode/gscls/gsc/resolver"
	"github.com/gscode/gscls/gsc/script"
	"github.com/gscode/gscls/gsc/token"
)

// Kind says why a script is cached.
type Kind int

const (
	// Editor scripts are open in the client.
	Editor Kind = iota
	// Dependency scripts were discovered through #using chains.
	Dependency
)

// CachedScript is one cache entry: the script plus the set of URIs that
// depend on it.
type CachedScript struct {
	mu         sync.Mutex
	kind       Kind
	script     *script.Script
	dependents map[string]bool
}

// Script returns the cached script.
func (c *CachedScript) Script() *script.Script { return c.script }

// Kind returns whether the entry is an editor or a dependency.
func (c *CachedScript) Kind() Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kind
}

func (c *CachedScript) setKind(k Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kind = k
}

func (c *CachedScript) addDependent(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dependents[uri] = true
}

func (c *CachedScript) removeDependent(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.dependents, uri)
}

func (c *CachedScript) dependentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dependents)
}

// PublishFunc receives a script's diagnostics snapshot for one revision.
type PublishFunc func(uri string, diags diag.Diagnostics)

// Manager is the per workspace cache and pipeline coordinator.
type Manager struct {
	root       string
	sharedRoot string

	fs       afs.Service
	builtins *api.Registry
	publish  PublishFunc

	// cache maps uri -> *CachedScript with lock free get-or-insert.
	cache sync.Map

	// parseLocks and analysisLocks serialize per URI pipeline work.
	parseLocks    sync.Map
	analysisLocks sync.Map

	watcher *watcher
}

// Config configures a manager.
type Config struct {
	// Root is the workspace root directory.
	Root string

	// SharedRoot is an optional shared scripts directory searched when
	// resolving dependencies.
	SharedRoot string

	// Builtins provides the loaded API libraries.
	Builtins *api.Registry

	// Publish receives diagnostics for each analyzed revision. May be nil.
	Publish PublishFunc
}

// New builds a manager for the workspace.
func New(cfg Config) *Manager {
	return &Manager{
		root:       cfg.Root,
		sharedRoot: cfg.SharedRoot,
		fs:         afs.New(),
		builtins:   cfg.Builtins,
		publish:    cfg.Publish,
	}
}

// Root returns the workspace root.
func (m *Manager) Root() string { return m.root }

func (m *Manager) parseLock(uri string) *sync.Mutex {
	l, _ := m.parseLocks.LoadOrStore(uri, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (m *Manager) analysisLock(uri string) *sync.Mutex {
	l, _ := m.analysisLocks.LoadOrStore(uri, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// environment builds the script environment rooted at this workspace.
func (m *Manager) environment(languageID string) script.Environment {
	return script.Environment{
		Root:       m.root,
		SharedRoot: m.sharedRoot,
		// The loader and existence probe resolve workspace relative paths.
		Loader: preproc.LoaderFunc(func(path string) ([]byte, error) {
			return m.readFile(context.Background(), path)
		}),
		Exists: func(path string) bool {
			ok, _ := m.fs.Exists(context.Background(), filepath.Join(m.root, filepath.FromSlash(path)))
			return ok
		},
		Builtins: m.builtins.Library(languageID),
	}
}

func (m *Manager) readFile(ctx context.Context, path string) ([]byte, error) {
	abs := filepath.Join(m.root, filepath.FromSlash(path))
	data, err := m.fs.DownloadWithURL(ctx, abs)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return data, nil
}

// getOrInsert returns the cache entry for uri, creating it with the given
// kind when absent.
func (m *Manager) getOrInsert(uri, languageID string, kind Kind) *CachedScript {
	if v, ok := m.cache.Load(uri); ok {
		return v.(*CachedScript)
	}
	entry := &CachedScript{
		kind:       kind,
		script:     script.New(uri, languageID, m.environment(languageID)),
		dependents: map[string]bool{},
	}
	actual, _ := m.cache.LoadOrStore(uri, entry)
	return actual.(*CachedScript)
}

// Get returns the cached script for uri, if present.
func (m *Manager) Get(uri string) (*CachedScript, bool) {
	v, ok := m.cache.Load(uri)
	if !ok {
		return nil, false
	}
	return v.(*CachedScript), true
}

// languageIDOf derives the language id from a script path.
func languageIDOf(uri string) string {
	switch strings.ToLower(filepath.Ext(uri)) {
	case ".csc":
		return "csc"
	default:
		return "gsc"
	}
}

// AddEditor caches the document text, roots it as an editor script, runs
// the pipeline and returns its diagnostics.
func (m *Manager) AddEditor(ctx context.Context, uri, languageID, text string) (diag.Diagnostics, error) {
	if languageID == "" {
		languageID = languageIDOf(uri)
	}
	cs := m.getOrInsert(uri, languageID, Editor)
	cs.setKind(Editor)
	cs.script.SetText(text)
	return m.runPipeline(ctx, cs)
}

// UpdateEditor applies incremental edits to the cached text and reruns the
// pipeline. An edit batch that leaves the text hashing identically is a
// no-op.
func (m *Manager) UpdateEditor(ctx context.Context, uri string, edits []script.Edit) (diag.Diagnostics, error) {
	cs, ok := m.Get(uri)
	if !ok {
		return nil, errors.Errorf("no editor for %s", uri)
	}
	if !cs.script.ApplyEdits(edits) {
		return cs.script.Diagnostics(), nil
	}
	return m.runPipeline(ctx, cs)
}

// RemoveEditor drops the editor entry, decrements dependents across the
// cache and evicts dependencies whose dependent set empties.
func (m *Manager) RemoveEditor(ctx context.Context, uri string) {
	if cs, ok := m.Get(uri); ok && cs.Kind() == Editor {
		m.cache.Delete(uri)
	}
	m.dropDependent(uri)
	m.evictOrphans(ctx)
}

func (m *Manager) dropDependent(uri string) {
	m.cache.Range(func(_, v interface{}) bool {
		v.(*CachedScript).removeDependent(uri)
		return true
	})
}

// evictOrphans removes dependency scripts that no longer have dependents,
// cascading through their own dependencies.
func (m *Manager) evictOrphans(ctx context.Context) {
	for {
		evicted := []string{}
		m.cache.Range(func(k, v interface{}) bool {
			cs := v.(*CachedScript)
			if cs.Kind() == Dependency && cs.dependentCount() == 0 {
				evicted = append(evicted, k.(string))
			}
			return true
		})
		if len(evicted) == 0 {
			return
		}
		for _, uri := range evicted {
			m.cache.Delete(uri)
			m.dropDependent(uri)
			log.D(ctx, "evicted dependency %s", uri)
		}
	}
}

// runPipeline parses the script, ensures its dependencies are parsed,
// merges their exports and analyzes. Diagnostics for the revision are
// published and returned.
func (m *Manager) runPipeline(ctx context.Context, cs *CachedScript) (diag.Diagnostics, error) {
	uri := cs.script.URI()
	ctx = log.V{"file": uri}.Bind(ctx)

	// Parse under the URI's parse lock so concurrent dependents don't
	// duplicate the work.
	lock := m.parseLock(uri)
	lock.Lock()
	err := cs.script.Parse(ctx)
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	// Ensure dependencies are parsed, then snapshot and merge their
	// exports. Locks are taken one at a time on disjoint URIs, so the
	// ordering cannot deadlock.
	for _, dep := range cs.script.Dependencies() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		exports, err := m.ensureDependency(ctx, dep, uri)
		if err != nil {
			log.W(ctx, "dependency %s failed: %v", dep, err)
			continue
		}

		alock := m.analysisLock(uri)
		alock.Lock()
		cs.script.MergeDependency(exports)
		alock.Unlock()
	}

	alock := m.analysisLock(uri)
	alock.Lock()
	err = cs.script.Analyse(ctx)
	diags := cs.script.Diagnostics()
	alock.Unlock()
	if err != nil {
		return nil, err
	}

	if m.publish != nil {
		m.publish(uri, diags)
	}
	return diags, nil
}

// ensureDependency loads and parses a dependency script, registers the
// dependent edge, and snapshots the exports under the dependency's
// analysis lock.
func (m *Manager) ensureDependency(ctx context.Context, dep, dependent string) ([]resolver.Export, error) {
	cs := m.getOrInsert(dep, languageIDOf(dep), Dependency)
	cs.addDependent(dependent)

	lock := m.parseLock(dep)
	lock.Lock()
	defer lock.Unlock()

	if !cs.script.Parsed() {
		data, err := m.readFile(ctx, dep)
		if err != nil {
			return nil, err
		}
		cs.script.SetText(string(data))
		if err := cs.script.Parse(ctx); err != nil {
			return nil, err
		}
	}

	alock := m.analysisLock(dep)
	alock.Lock()
	defer alock.Unlock()
	return cs.script.ExportedSymbols(), nil
}

// FindSymbolLocation scans every cached script's definitions table for a
// function or class. A namespace qualified match is preferred; the search
// falls back to any namespace.
func (m *Manager) FindSymbolLocation(namespace, name string) (resolver.Location, bool) {
	var fallback resolver.Location
	found := false

	m.cache.Range(func(_, v interface{}) bool {
		table := v.(*CachedScript).script.Table()
		if table == nil {
			return true
		}
		if namespace != "" {
			if fn, ok := table.Functions[resolver.KeyOf(namespace, name)]; ok {
				fallback, found = fn.Location, true
				return false
			}
			if c, ok := table.Classes[resolver.KeyOf(namespace, name)]; ok {
				fallback, found = c.Location, true
				return false
			}
		}
		if !found {
			if fn, ok := table.Function("", name); ok {
				fallback, found = fn.Location, true
			} else if c, ok := table.Class("", name); ok {
				fallback, found = c.Location, true
			}
		}
		return true
	})
	return fallback, found
}

// Range calls f for every cached script until f returns false.
func (m *Manager) Range(f func(uri string, cs *CachedScript) bool) {
	m.cache.Range(func(k, v interface{}) bool {
		return f(k.(string), v.(*CachedScript))
	})
}

// FindReferences scans every cached script's token stream for tokens whose
// sense definition points at the given definition site.
func (m *Manager) FindReferences(defURI string, defRange token.Range) []resolver.Location {
	out := []resolver.Location{}
	m.Range(func(uri string, cs *CachedScript) bool {
		tokens := cs.script.Tokens()
		if tokens == nil {
			return true
		}
		for t := tokens.First(); t != tokens.End(); t = t.Next() {
			sense := t.Sense()
			if sense == nil || sense.DefURI != defURI || sense.DefRange != defRange {
				continue
			}
			out = append(out, resolver.Location{URI: uri, Range: t.Range})
		}
		return true
	})
	return out
}

// IndexAsync runs IndexWorkspace on its own goroutine and returns a
// signal that fires when the sweep completes, so callers can sequence
// work (like starting the watcher) behind it without blocking.
func (m *Manager) IndexAsync(ctx context.Context, root string) task.Signal {
	signal, done := task.NewSignal()
	crash.Go(func() {
		defer done(ctx)
		if err := m.IndexWorkspace(ctx, root); err != nil && !task.Stopped(ctx) {
			log.W(ctx, "workspace indexing failed: %v", err)
		}
	})
	return signal
}

// IndexWorkspace enumerates every *.gsc and *.csc under root and parses
// them concurrently under a bounded parallelism gate. Analysis is
// deliberately skipped for unopened files; their diagnostics come from the
// parse half of the pipeline only.
func (m *Manager) IndexWorkspace(ctx context.Context, root string) error {
	if root == "" {
		root = m.root
	}
	ctx = log.Enter(ctx, "index")

	paths, err := m.findScripts(ctx, root)
	if err != nil {
		return err
	}
	log.I(ctx, "indexing %d scripts", len(paths))

	gate := semaphore.NewWeighted(int64(indexParallelism()))
	grp, gctx := errgroup.WithContext(ctx)

	for _, path := range paths {
		path := path
		if err := gate.Acquire(gctx, 1); err != nil {
			break
		}
		grp.Go(func() error {
			defer gate.Release(1)
			m.indexOne(gctx, path)
			return nil
		})
	}
	return grp.Wait()
}

// indexParallelism bounds concurrent index parses.
func indexParallelism() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

func (m *Manager) indexOne(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	if cs, ok := m.Get(rel); ok && cs.Kind() == Editor {
		// Editor revisions always win over on-disk content.
		return
	}

	data, err := m.fs.DownloadWithURL(ctx, path)
	if err != nil {
		log.W(ctx, "failed to read %s: %v", path, err)
		return
	}

	cs := m.getOrInsert(rel, languageIDOf(rel), Dependency)
	cs.addDependent("workspace:index")

	lock := m.parseLock(rel)
	lock.Lock()
	changed := cs.script.SetText(string(data))
	var perr error
	if changed || !cs.script.Parsed() {
		perr = cs.script.Parse(ctx)
	}
	diags := cs.script.Diagnostics()
	lock.Unlock()

	if perr != nil {
		return
	}
	if m.publish != nil {
		m.publish(rel, diags)
	}
}

// findScripts lists every script file under root.
func (m *Manager) findScripts(ctx context.Context, root string) ([]string, error) {
	paths := []string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Unreadable entries are skipped, not fatal.
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".gsc", ".csc":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", root)
	}
	return paths, nil
}
