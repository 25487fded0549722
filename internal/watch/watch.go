/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package watch keeps a project's index current while scripts are edited.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	applog "gorenpy/internal/log"
	"gorenpy/internal/storage"
)

// DefaultDebounce is how long the watcher waits for edits to settle.
const DefaultDebounce = 300 * time.Millisecond

// Options tunes Run. OnIndexed, when set, is called after every index pass,
// including the initial one.
type Options struct {
	Debounce  time.Duration
	Index     storage.IndexOptions
	OnIndexed func(storage.IndexStats, error)
}

// Run indexes p once and then again whenever a script under p.Root is
// created, written, renamed or removed. Bursts of events within the debounce
// window cause a single pass. Run returns nil when ctx is cancelled.
//
// Index errors are reported through OnIndexed and logged; they do not stop
// the watcher. Watcher setup errors do.
func Run(ctx context.Context, p *storage.Project, opt Options) error {
	if p == nil {
		return errors.New("project is required")
	}
	l := applog.WithOperation(applog.WithComponent("watch"), "run").With(slog.String("root", p.Root))
	if opt.Debounce <= 0 {
		opt.Debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()
	if err := addTree(w, p, p.Root); err != nil {
		return err
	}

	reindex := func() {
		stats, err := storage.IndexProject(ctx, p, opt.Index)
		if err != nil && ctx.Err() == nil {
			l.Error("reindex failed", slog.Any("err", err))
		}
		if opt.OnIndexed != nil && ctx.Err() == nil {
			opt.OnIndexed(stats, err)
		}
	}
	reindex()

	timer := time.NewTimer(opt.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) && !ignoredDir(p, ev.Name) {
				if err := addTree(w, p, ev.Name); err != nil {
					l.Warn("watch new directory", slog.String("dir", ev.Name), slog.Any("err", err))
				}
				timer.Reset(opt.Debounce)
				continue
			}
			if !relevant(p, ev) {
				continue
			}
			l.Debug("change", slog.String("file", p.Rel(ev.Name)), slog.String("op", ev.Op.String()))
			timer.Reset(opt.Debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.Warn("watcher error", slog.Any("err", err))
		case <-timer.C:
			reindex()
		}
	}
}

// addTree watches dir and every directory below it that the indexer visits.
func addTree(w *fsnotify.Watcher, p *storage.Project, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != p.Root && ignoredDir(p, path) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func ignoredDir(p *storage.Project, path string) bool {
	if filepath.Clean(path) == filepath.Clean(p.StateDir) {
		return true
	}
	return strings.HasPrefix(filepath.Base(path), ".")
}

func relevant(p *storage.Project, ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if strings.HasPrefix(filepath.Clean(ev.Name), filepath.Clean(p.StateDir)+string(filepath.Separator)) {
		return false
	}
	return p.Parser.HasExt(ev.Name)
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
