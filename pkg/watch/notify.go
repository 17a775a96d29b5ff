// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🔔 NotifySource watches with native filesystem notifications.
// fsnotify is not recursive, so every directory that survives the filter is
// added, and directories created later are added as they appear.
type NotifySource struct {
	filter Filter

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	root    string
}

var (
	_ Source    = (*NotifySource)(nil)
	_ Rescanner = (*NotifySource)(nil)
)

// 🏭 NewNotifySource creates a native source
func NewNotifySource(filter Filter) *NotifySource {
	return &NotifySource{filter: filter}
}

func (s *NotifySource) Subscribe(ctx context.Context, root string) (<-chan Event, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, &SetupError{Path: root, Err: err}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &SetupError{Path: root, Err: err}
	}

	if _, err := s.addTree(ctx, w, root, root, nil); err != nil {
		w.Close()
		return nil, &SetupError{Path: root, Err: err}
	}

	s.mu.Lock()
	s.watcher = w
	s.root = root
	s.mu.Unlock()

	out := make(chan Event, 64)
	go s.loop(ctx, w, root, out)
	return out, nil
}

func (s *NotifySource) loop(ctx context.Context, w *fsnotify.Watcher, root string, out chan<- Event) {
	logger := zerolog.Ctx(ctx)
	defer close(out)

	send := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.Close()
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			rel, ok := relPath(root, ev.Name)
			if !ok {
				continue
			}

			isDir := false
			if info, err := os.Lstat(ev.Name); err == nil {
				isDir = info.IsDir()
			}
			if s.filter.drop(rel, isDir) {
				continue
			}

			if isDir && ev.Has(fsnotify.Create) {
				if _, err := s.addTree(ctx, w, root, ev.Name, nil); err != nil {
					logger.Warn().Err(err).Str("path", rel).Msg("cannot watch new directory")
				}
			}

			if !send(Event{Path: rel, Op: opOf(ev.Op)}) {
				return
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if !send(Event{Err: errors.Errorf("native watcher: %w", err)}) {
				return
			}
		}
	}
}

// addTree adds dir and every non-filtered directory below it.
// It returns the relative paths of directories not already in known.
func (s *NotifySource) addTree(ctx context.Context, w *fsnotify.Watcher, root, dir string, known map[string]bool) ([]string, error) {
	var added []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			zerolog.Ctx(ctx).Debug().Err(err).Str("path", path).Msg("skipping unreadable directory")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, ok := relPath(root, path)
		if ok && s.filter.drop(rel, true) {
			return fs.SkipDir
		}
		if known != nil && known[path] {
			return nil
		}
		if err := w.Add(path); err != nil {
			return errors.Errorf("adding %s: %w", path, err)
		}
		if ok {
			added = append(added, rel)
		}
		return nil
	})
	return added, err
}

// 🔁 Rescan adds directories the filter admits but that are not watched yet,
// such as a directory that was just removed from .ignore.
func (s *NotifySource) Rescan(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	w, root := s.watcher, s.root
	s.mu.Unlock()
	if w == nil {
		return nil, nil
	}

	known := make(map[string]bool)
	for _, p := range w.WatchList() {
		known[p] = true
	}
	added, err := s.addTree(ctx, w, root, root, known)
	if err != nil {
		return added, errors.Errorf("rescanning %s: %w", root, err)
	}
	return added, nil
}

func (s *NotifySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.watcher = nil
	return err
}

func opOf(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}
