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

package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/config"
	"github.com/walteh/stagerc/pkg/log"
	"github.com/walteh/stagerc/pkg/operation"
	"github.com/walteh/stagerc/pkg/rules"
	"github.com/walteh/stagerc/pkg/scope"
	"github.com/walteh/stagerc/pkg/status"
	"github.com/walteh/stagerc/pkg/watch"
	"gitlab.com/tozd/go/errors"
)

// 🔧 Options configures a Session
type Options struct {
	Root    string
	Config  *config.Config // validated, defaults when nil
	Console *log.Logger    // per-file and summary output, optional
}

// 🗂️ Session holds everything one project needs between sync passes
type Session struct {
	ID         uuid.UUID
	Root       string
	Config     *config.Config
	StagingDir string

	rules   *rules.Cache
	files   *status.Manager
	syncer  *operation.Synchronizer
	console *log.Logger

	// mu is held for a whole pass so passes never overlap
	mu       sync.Mutex
	manifest status.Manifest
	snapshot *scope.Snapshot

	filterMu sync.RWMutex
	ignore   *rules.RuleSet
}

// 🏭 Open prepares a session for root and rebuilds its manifest from
// whatever is already in the staging dir.
func Open(ctx context.Context, opts Options) (*Session, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, &scope.IOError{Op: "opening project root", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &scope.IOError{Op: "opening project root", Path: root, Err: errors.New("not a directory")}
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	staging := cfg.StagingPath(root)
	files := status.New(staging)
	syncer, err := operation.New(operation.Options{
		Config:   cfg,
		Files:    files,
		Reporter: files,
		Console:  opts.Console,
	})
	if err != nil {
		return nil, errors.Errorf("creating synchronizer: %w", err)
	}

	s := &Session{
		ID:         uuid.New(),
		Root:       root,
		Config:     cfg,
		StagingDir: staging,
		rules:      rules.NewCache(),
		files:      files,
		syncer:     syncer,
		console:    opts.Console,
		manifest:   status.Manifest{},
	}

	snap, err := s.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	manifest, err := files.Rebuild(ctx, snap)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("starting from an empty manifest")
		manifest = status.Manifest{}
	}
	s.manifest = manifest
	s.snapshot = snap

	zerolog.Ctx(ctx).Debug().
		Str("session", s.ID.String()).
		Str("root", root).
		Str("staging_dir", staging).
		Int("recovered", len(manifest)).
		Msg("session opened")

	return s, nil
}

// 📜 Rules returns the effective ignore set (defaults merged) and the include set
func (s *Session) Rules(ctx context.Context) (ignore, include *rules.RuleSet, err error) {
	ignore, err = s.rules.Get(ctx, filepath.Join(s.Root, rules.IgnoreFile))
	if err != nil {
		return nil, nil, errors.Errorf("loading %s: %w", rules.IgnoreFile, err)
	}
	include, err = s.rules.Get(ctx, filepath.Join(s.Root, rules.IncludeFile))
	if err != nil {
		return nil, nil, errors.Errorf("loading %s: %w", rules.IncludeFile, err)
	}
	return ignore.WithDefaults(rules.ParseLines(ctx, "defaults", s.Config.IgnoreDefaults)), include, nil
}

// 🔍 Resolve reloads changed rule files and takes a fresh snapshot
func (s *Session) Resolve(ctx context.Context) (*scope.Snapshot, error) {
	ignore, include, err := s.Rules(ctx)
	if err != nil {
		return nil, err
	}

	s.filterMu.Lock()
	s.ignore = ignore
	s.filterMu.Unlock()

	return scope.NewResolver(scope.Options{
		Ignore:     ignore,
		Include:    include,
		StagingDir: s.StagingDir,
		Transcode:  s.Config.Transcode,
		Reserved:   s.Config.Reserved,
	}).Resolve(ctx, s.Root)
}

// 🔄 Refresh runs one full pass: resolve, then sync. Passes never overlap.
func (s *Session) Refresh(ctx context.Context, trigger string) (*operation.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.console != nil {
		s.console.StartPass(ctx, log.Pass{Root: s.Root, StagingDir: s.StagingDir, Trigger: trigger})
	}

	snap, err := s.Resolve(ctx)
	if err != nil {
		if s.console != nil {
			s.console.Errorf("resolving scope: %v", err)
		}
		return nil, err
	}

	report, next := s.syncer.Sync(ctx, s.manifest, snap)
	s.manifest = next
	s.snapshot = snap

	if s.console != nil {
		for _, w := range snap.Warnings {
			s.console.Warning(w.Error())
		}
		s.console.EndPass(ctx, report.Summary())
	}

	return report, nil
}

// 🚫 Filter reports whether the watcher should drop a change at relPath
func (s *Session) Filter(relPath string, isDir bool) bool {
	if rel, err := filepath.Rel(s.Root, s.StagingDir); err == nil && !strings.HasPrefix(rel, "..") {
		rel = filepath.ToSlash(rel)
		if relPath == rel || strings.HasPrefix(relPath, rel+"/") {
			return true
		}
	}

	s.filterMu.RLock()
	ignore := s.ignore
	s.filterMu.RUnlock()

	return ignore.Excluded(relPath, isDir)
}

// 👀 Watcher builds a watcher that refreshes this session on change.
// The source follows the configured watch mode.
func (s *Session) Watcher() *watch.Watcher {
	poll := func() watch.Source { return watch.NewPollSource(s.Config.PollEvery(), s.Filter) }

	opts := watch.Options{
		Root:        s.Root,
		Debounce:    s.Config.DebounceWindow(),
		SyncOnStart: true,
		Sync: func(ctx context.Context, reason string) error {
			_, err := s.Refresh(ctx, reason)
			return err
		},
	}

	switch s.Config.WatchMode {
	case config.WatchPoll:
		opts.Source = poll()
	case config.WatchNotify:
		opts.Source = watch.NewNotifySource(s.Filter)
	default:
		opts.Source = watch.NewNotifySource(s.Filter)
		opts.Fallback = poll
	}

	return watch.New(opts)
}

// Snapshot is the scope as of the last pass
func (s *Session) Snapshot() *scope.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Manifest is a copy of the current manifest
func (s *Session) Manifest() status.Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest.Clone()
}

// Files is the staging dir manager
func (s *Session) Files() *status.Manager {
	return s.files
}

// 🧹 Clean removes the staging dir and forgets the manifest
func (s *Session) Clean(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := operation.Clean(ctx, s.files, s.files)
	if err != nil {
		return n, err
	}
	s.manifest = status.Manifest{}
	return n, nil
}
