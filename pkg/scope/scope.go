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

package scope

import (
	"sort"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
)

// ErrIO marks an unreadable file or directory
var ErrIO = errors.Base("io error")

// ⚠️ IOError is an unreadable path. It matches ErrIO with errors.Is.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// 📄 Entry is one in-scope file
type Entry struct {
	RelPath     string    `json:"path"`
	AbsPath     string    `json:"-"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
	StagingName string    `json:"staging_name"`
	Transcoded  bool      `json:"transcoded,omitempty"`
}

// 📊 Counts summarises what the walk saw
type Counts struct {
	Files       int `json:"files"`        // regular files considered
	Ignored     int `json:"ignored"`      // files and directories excluded by .ignore
	NotIncluded int `json:"not_included"` // files dropped by a non-empty .include
	Collisions  int `json:"collisions"`   // files whose staging name was taken
	Unreadable  int `json:"unreadable"`
	Symlinks    int `json:"symlinks"`
}

// 📸 Snapshot is the set of in-scope files at one point in time, sorted by RelPath
type Snapshot struct {
	Root     string    `json:"root"`
	TakenAt  time.Time `json:"taken_at"`
	Entries  []Entry   `json:"entries"`
	Counts   Counts    `json:"counts"`
	Warnings []error   `json:"-"`

	index map[string]int
}

// NewSnapshot sorts entries and builds the path index.
// Duplicate relative paths keep the first occurrence.
func NewSnapshot(root string, entries []Entry) *Snapshot {
	sorted := make([]Entry, 0, len(entries))
	sorted = append(sorted, entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RelPath < sorted[j].RelPath })

	s := &Snapshot{Root: root, TakenAt: time.Now(), index: make(map[string]int, len(sorted))}
	for _, e := range sorted {
		if _, dup := s.index[e.RelPath]; dup {
			continue
		}
		s.index[e.RelPath] = len(s.Entries)
		s.Entries = append(s.Entries, e)
	}
	return s
}

// Get looks an entry up by relative path
func (s *Snapshot) Get(relPath string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	i, ok := s.index[relPath]
	if !ok {
		return Entry{}, false
	}
	return s.Entries[i], true
}

// Len is the number of in-scope files
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// Paths lists relative paths in sorted order
func (s *Snapshot) Paths() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = e.RelPath
	}
	return out
}

// 🔤 FlattenName joins path segments with "-" so nested files fit a flat directory
func FlattenName(relPath string) string {
	return strings.ReplaceAll(relPath, "/", "-")
}
