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
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrWatchSetup marks a source that could not start watching
var ErrWatchSetup = errors.Base("watch setup failed")

// ❌ SetupError is a failed subscription. It matches ErrWatchSetup.
type SetupError struct {
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	return "watching " + e.Path + ": " + e.Err.Error()
}

func (e *SetupError) Unwrap() error { return e.Err }

func (e *SetupError) Is(target error) bool { return target == ErrWatchSetup }

// 🏷️ Op is the kind of change an Event reports
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// 📣 Event is one change under the watched root.
// An Event with Err set reports a runtime failure of the source.
type Event struct {
	Path string // slash separated, relative to the root
	Op   Op
	Err  error
}

// 🔍 Filter reports whether a path should be dropped
type Filter func(relPath string, isDir bool) bool

// 👀 Source delivers change events for a directory tree
type Source interface {
	// Subscribe starts watching root. The channel closes when ctx is done or the source is closed.
	Subscribe(ctx context.Context, root string) (<-chan Event, error)
	Close() error
}

func relPath(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (f Filter) drop(rel string, isDir bool) bool {
	return f != nil && f(rel, isDir)
}

// 🔁 Rescanner is a Source that watches a filtered set of directories and can
// pick up directories its filter admits after the rules change.
type Rescanner interface {
	Rescan(ctx context.Context) (added []string, err error)
}
