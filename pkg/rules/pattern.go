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
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// ErrRuleParse is returned for a rule line that cannot be compiled.
var ErrRuleParse = errors.Base("rule parse error")

// 🎯 Pattern is a single compiled gitignore-syntax rule
type Pattern struct {
	Line          int    // 1-based line in the source file, 0 for built-in rules
	Raw           string // the line as written
	Negated       bool   // leading "!"
	Anchored      bool   // matches from the root only
	DirectoryOnly bool   // trailing "/"

	glob string
	// set for patterns ending in "/**" so the directory itself is not matched
	parent string
}

// 🏭 Compile turns one rule line into a Pattern.
// Blank and comment lines return ok=false with a nil error.
func Compile(raw string, line int) (p Pattern, ok bool, err error) {
	text := strings.TrimSuffix(raw, "\r")
	text = trimTrailingSpace(text)

	if text == "" || strings.HasPrefix(text, "#") {
		return Pattern{}, false, nil
	}

	p = Pattern{Line: line, Raw: raw}

	switch {
	case strings.HasPrefix(text, `\#`), strings.HasPrefix(text, `\!`):
		text = text[1:]
	case strings.HasPrefix(text, "!"):
		p.Negated = true
		text = text[1:]
	}

	if strings.HasSuffix(text, "/") {
		p.DirectoryOnly = true
		text = strings.TrimRight(text, "/")
	}

	if strings.HasPrefix(text, "/") {
		p.Anchored = true
		text = strings.TrimLeft(text, "/")
	} else if strings.Contains(text, "/") {
		p.Anchored = true
	}

	if text == "" {
		return Pattern{}, false, errors.Errorf("line %d %q: %w", line, raw, ErrRuleParse)
	}

	p.glob = escapeBraces(text)
	if !doublestar.ValidatePattern(p.glob) {
		return Pattern{}, false, errors.Errorf("line %d %q: invalid glob: %w", line, raw, ErrRuleParse)
	}

	if strings.HasSuffix(p.glob, "/**") {
		p.parent = strings.TrimSuffix(p.glob, "/**")
	}

	return p, true, nil
}

// 🔍 Matches reports whether the pattern applies to relPath
func (p Pattern) Matches(relPath string, isDir bool) bool {
	if p.DirectoryOnly && !isDir {
		return false
	}

	target := relPath
	if !p.Anchored {
		target = path.Base(relPath)
	}

	if !doublestar.MatchUnvalidated(p.glob, target) {
		return false
	}

	// "foo/**" matches inside foo, never foo itself
	if p.parent != "" && doublestar.MatchUnvalidated(p.parent, target) {
		return false
	}

	return true
}

// String returns the pattern as written
func (p Pattern) String() string {
	return strings.TrimSuffix(p.Raw, "\r")
}

// trailing spaces are dropped unless escaped with a backslash
func trimTrailingSpace(s string) string {
	for strings.HasSuffix(s, " ") {
		if strings.HasSuffix(s, `\ `) {
			return s
		}
		s = s[:len(s)-1]
	}
	return s
}

// braces are literal in gitignore but alternation in doublestar
func escapeBraces(s string) string {
	if !strings.ContainsAny(s, "{}") {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if !escaped && (r == '{' || r == '}') {
			b.WriteByte('\\')
		}
		escaped = !escaped && r == '\\'
		b.WriteRune(r)
	}
	return b.String()
}
