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

package rules

import (
	"strings"
)

// ⚖️ Verdict is the outcome of evaluating a RuleSet against one path
type Verdict int

const (
	None Verdict = iota // no pattern matched
	Out                 // last matching pattern was positive
	In                  // last matching pattern was negated
)

func (v Verdict) String() string {
	switch v {
	case Out:
		return "out"
	case In:
		return "in"
	default:
		return "none"
	}
}

// 🔍 Match evaluates the patterns in order. The last matching pattern wins.
func (rs *RuleSet) Match(relPath string, isDir bool) Verdict {
	if rs == nil {
		return None
	}
	v := None
	for _, p := range rs.Patterns {
		if !p.Matches(relPath, isDir) {
			continue
		}
		if p.Negated {
			v = In
		} else {
			v = Out
		}
	}
	return v
}

// Ignored reports whether relPath itself is excluded, ignoring its parents.
// The resolver prunes excluded directories before their children are seen.
func (rs *RuleSet) Ignored(relPath string, isDir bool) bool {
	return rs.Match(relPath, isDir) == Out
}

// 🚫 Excluded is Ignored with ancestor directories checked first,
// for callers that see paths without walking down to them.
func (rs *RuleSet) Excluded(relPath string, isDir bool) bool {
	if rs.Empty() {
		return false
	}
	for _, dir := range ancestors(relPath) {
		if rs.Ignored(dir, true) {
			return true
		}
	}
	return rs.Ignored(relPath, isDir)
}

// ✅ Selected applies include-list semantics: a positive pattern selects.
// An unmatched path inherits from its nearest matched ancestor directory,
// so "src/" selects everything under src.
func (rs *RuleSet) Selected(relPath string, isDir bool) bool {
	if rs.Empty() {
		return true
	}
	if v := rs.Match(relPath, isDir); v != None {
		return v == Out
	}
	dirs := ancestors(relPath)
	for i := len(dirs) - 1; i >= 0; i-- {
		if v := rs.Match(dirs[i], true); v != None {
			return v == Out
		}
	}
	return false
}

// ancestors returns "a", "a/b" for "a/b/c"
func ancestors(relPath string) []string {
	var out []string
	for i := 0; i < len(relPath); i++ {
		if relPath[i] == '/' {
			out = append(out, relPath[:i])
		}
	}
	return out
}

// Describe names the pattern that decided relPath, for diagnostics
func (rs *RuleSet) Describe(relPath string, isDir bool) (Pattern, bool) {
	if rs == nil {
		return Pattern{}, false
	}
	var last Pattern
	found := false
	for _, p := range rs.Patterns {
		if p.Matches(relPath, isDir) {
			last = p
			found = true
		}
	}
	return last, found
}

// Lines returns the pattern sources in order
func (rs *RuleSet) Lines() []string {
	if rs == nil {
		return nil
	}
	out := make([]string, 0, len(rs.Patterns))
	for _, p := range rs.Patterns {
		out = append(out, strings.TrimSpace(p.String()))
	}
	return out
}
