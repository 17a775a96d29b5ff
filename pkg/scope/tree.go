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
	"fmt"
	"io"
	"sort"
	"strings"
)

// 🌳 Tree nests the snapshot's paths: directories are maps, files are nil.
// Encoded as JSON it is the project_file_tree.json artifact.
func (s *Snapshot) Tree() map[string]any {
	return s.TreeWith(func(Entry) (any, bool) { return nil, true })
}

// TreeWith nests the snapshot's paths like Tree, storing leaf(e) for each file.
// Files for which leaf reports false are left out.
func (s *Snapshot) TreeWith(leaf func(e Entry) (any, bool)) map[string]any {
	tree := map[string]any{}
	for _, e := range s.Entries {
		value, keep := leaf(e)
		if !keep {
			continue
		}
		level := tree
		parts := strings.Split(e.RelPath, "/")
		for i, part := range parts {
			if i == len(parts)-1 {
				if _, isDir := level[part].(map[string]any); !isDir {
					level[part] = value
				}
				break
			}
			next, ok := level[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				level[part] = next
			}
			level = next
		}
	}
	return tree
}

// RenderTree writes an indented listing of the snapshot, directories first
func (s *Snapshot) RenderTree(w io.Writer) error {
	return renderLevel(w, s.Tree(), "")
}

func renderLevel(w io.Writer, level map[string]any, prefix string) error {
	names := make([]string, 0, len(level))
	for name := range level {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		_, di := level[names[i]].(map[string]any)
		_, dj := level[names[j]].(map[string]any)
		if di != dj {
			return di
		}
		return names[i] < names[j]
	})

	for i, name := range names {
		branch, childPrefix := "├── ", "│   "
		if i == len(names)-1 {
			branch, childPrefix = "└── ", "    "
		}
		sub, isDir := level[name].(map[string]any)
		label := name
		if isDir {
			label += "/"
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", prefix, branch, label); err != nil {
			return err
		}
		if isDir {
			if err := renderLevel(w, sub, prefix+childPrefix); err != nil {
				return err
			}
		}
	}
	return nil
}
