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
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type stamp struct {
	size    int64
	modTime time.Time
	isDir   bool
}

// ⏱️ PollSource finds changes by rescanning the tree on an interval.
// It works anywhere, including filesystems without native notifications.
type PollSource struct {
	interval time.Duration
	filter   Filter

	mu   sync.Mutex
	stop chan struct{}
}

var _ Source = (*PollSource)(nil)

// 🏭 NewPollSource creates a polling source
func NewPollSource(interval time.Duration, filter Filter) *PollSource {
	return &PollSource{interval: interval, filter: filter}
}

func (s *PollSource) Subscribe(ctx context.Context, root string) (<-chan Event, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, &SetupError{Path: root, Err: err}
	}

	prev, err := s.scan(ctx, root)
	if err != nil {
		return nil, &SetupError{Path: root, Err: err}
	}

	stop := make(chan struct{})
	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
			}

			next, err := s.scan(ctx, root)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("poll scan failed")
				continue
			}
			for _, ev := range diff(prev, next) {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-stop:
					return
				}
			}
			prev = next
		}
	}()

	return out, nil
}

func (s *PollSource) scan(ctx context.Context, root string) (map[string]stamp, error) {
	seen := make(map[string]stamp)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, ok := relPath(root, path)
		if !ok {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if s.filter.drop(rel, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		seen[rel] = stamp{size: info.Size(), modTime: info.ModTime(), isDir: d.IsDir()}
		return nil
	})
	return seen, err
}

// diff returns the events between two scans, sorted by path
func diff(prev, next map[string]stamp) []Event {
	var events []Event
	for p, st := range next {
		old, ok := prev[p]
		switch {
		case !ok:
			events = append(events, Event{Path: p, Op: OpCreate})
		case !st.isDir && (old.size != st.size || !old.modTime.Equal(st.modTime)):
			events = append(events, Event{Path: p, Op: OpWrite})
		}
	}
	for p := range prev {
		if _, ok := next[p]; !ok {
			events = append(events, Event{Path: p, Op: OpRemove})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

func (s *PollSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	return nil
}
