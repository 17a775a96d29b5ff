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
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	t1 := t0.Add(time.Second)

	tests := []struct {
		name string
		prev map[string]stamp
		next map[string]stamp
		want []Event
	}{
		{
			name: "no_change",
			prev: map[string]stamp{"a": {size: 1, modTime: t0}},
			next: map[string]stamp{"a": {size: 1, modTime: t0}},
			want: nil,
		},
		{
			name: "create_write_remove",
			prev: map[string]stamp{"b": {size: 1, modTime: t0}, "c": {size: 1, modTime: t0}},
			next: map[string]stamp{"a": {size: 1, modTime: t0}, "b": {size: 1, modTime: t1}},
			want: []Event{{Path: "a", Op: OpCreate}, {Path: "b", Op: OpWrite}, {Path: "c", Op: OpRemove}},
		},
		{
			name: "directory_mtime_is_not_a_write",
			prev: map[string]stamp{"dir": {isDir: true, modTime: t0}},
			next: map[string]stamp{"dir": {isDir: true, modTime: t1}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, diff(tt.prev, tt.next))
		})
	}
}

// collect drains events for a while and returns the paths seen
func collect(events <-chan Event, d time.Duration) []Event {
	var out []Event
	deadline := time.After(d)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			return out
		}
	}
}

func paths(events []Event) []string {
	var out []string
	for _, ev := range events {
		out = append(out, ev.Path)
	}
	return out
}

func ignoreNodeModules(rel string, isDir bool) bool {
	return rel == "node_modules" || strings.HasPrefix(rel, "node_modules/")
}

func TestPollSource(t *testing.T) {
	ctx := testContext(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("1"), 0644))

	src := NewPollSource(10*time.Millisecond, ignoreNodeModules)
	events, err := src.Subscribe(ctx, root)
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "dep.js"), []byte("x"), 0644))
	require.NoError(t, os.Remove(filepath.Join(root, "keep.txt")))

	got := collect(events, 200*time.Millisecond)

	assert.Contains(t, got, Event{Path: "new.txt", Op: OpCreate})
	assert.Contains(t, got, Event{Path: "keep.txt", Op: OpRemove})
	for _, p := range paths(got) {
		assert.NotContains(t, p, "node_modules", "filtered paths are never reported")
	}
}

func TestPollSourceMissingRoot(t *testing.T) {
	_, err := NewPollSource(time.Second, nil).Subscribe(testContext(t), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrWatchSetup)
}

func TestNotifySource(t *testing.T) {
	ctx := testContext(t)
	root := t.TempDir()

	src := NewNotifySource(ignoreNodeModules)
	events, err := src.Subscribe(ctx, root)
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	// give the source a moment to add the new directory
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "b.txt"), []byte("b"), 0644))

	got := paths(collect(events, 300*time.Millisecond))

	assert.Contains(t, got, "a.txt")
	assert.Contains(t, got, "src/b.txt", "new directories are watched recursively")
	for _, p := range got {
		assert.NotContains(t, p, "node_modules")
	}
}

func TestNotifySourceMissingRoot(t *testing.T) {
	_, err := NewNotifySource(nil).Subscribe(testContext(t), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrWatchSetup)
}

func TestNotifySourceRescan(t *testing.T) {
	ctx := testContext(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0755))

	var ignoreBuild atomic.Bool
	ignoreBuild.Store(true)
	filter := func(rel string, isDir bool) bool {
		return ignoreBuild.Load() && (rel == "build" || strings.HasPrefix(rel, "build/"))
	}

	src := NewNotifySource(filter)
	events, err := src.Subscribe(ctx, root)
	require.NoError(t, err)
	defer src.Close()

	added, err := src.Rescan(ctx)
	require.NoError(t, err)
	assert.Empty(t, added, "nothing new while build/ is still filtered")

	ignoreBuild.Store(false)
	added, err = src.Rescan(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"build"}, added)

	added, err = src.Rescan(ctx)
	require.NoError(t, err)
	assert.Empty(t, added, "already watched directories are not reported twice")

	require.NoError(t, os.WriteFile(filepath.Join(root, "build", "new.txt"), []byte("n"), 0644))
	assert.Contains(t, paths(collect(events, 300*time.Millisecond)), "build/new.txt")
}
