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

package manager

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/gscode/gscls/core/app/crash"
	"github.com/gscode/gscls/core/event/task"
	"github.com/gscode/gscls/core/log"
)

type watcher struct {
	fsw  *fsnotify.Watcher
	stop task.CancelFunc
}

// Watch starts watching the workspace for script file changes. Changed
// files that are not open in an editor are re-read and re-parsed so the
// index stays fresh; events for scripts open in an editor are ignored, so
// editor revisions always win. Watching stops when ctx is cancelled.
func (m *Manager) Watch(ctx context.Context) error {
	if m.watcher != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// fsnotify does not recurse; register every directory under root.
	count := 0
	filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if werr := fsw.Add(path); werr == nil {
			count++
		}
		return nil
	})
	log.D(ctx, "watching %d directories under %s", count, m.root)

	wctx, cancel := task.WithCancel(ctx)
	m.watcher = &watcher{fsw: fsw, stop: cancel}

	crash.Go(func() {
		defer fsw.Close()
		for {
			select {
			case <-task.ShouldStop(wctx):
				return

			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				m.handleEvent(wctx, ev, fsw)

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				log.W(wctx, "watch error: %v", err)
			}
		}
	})
	return nil
}

// StopWatching cancels the watch loop.
func (m *Manager) StopWatching() {
	if m.watcher != nil {
		m.watcher.stop()
		m.watcher = nil
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev fsnotify.Event, fsw *fsnotify.Watcher) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	// New directories join the watch set.
	if ev.Op&fsnotify.Create != 0 {
		if ok, _ := m.fs.Exists(ctx, ev.Name); ok {
			if isDir(ev.Name) {
				fsw.Add(ev.Name)
				return
			}
		}
	}

	switch strings.ToLower(filepath.Ext(ev.Name)) {
	case ".gsc", ".csc":
	default:
		return
	}

	rel, err := filepath.Rel(m.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if cs, ok := m.Get(rel); ok && cs.Kind() == Editor {
		return
	}
	log.D(ctx, "re-indexing changed script %s", rel)
	m.indexOne(ctx, ev.Name)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
