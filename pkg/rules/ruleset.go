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
	"bufio"
	"bytes"
	"context"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Rule file names recognised in a project root
const (
	IgnoreFile  = ".ignore"
	IncludeFile = ".include"
)

// 📚 RuleSet is an ordered list of Patterns loaded from one file
type RuleSet struct {
	Source   string    // file the rules came from
	Exists   bool      // whether the source file was present
	ModTime  time.Time // source mtime at load
	Size     int64     // source size at load
	LoadedAt time.Time
	Patterns []Pattern
	Warnings []error // lines skipped with ErrRuleParse
}

// 🏭 Parse compiles rule file content. Malformed lines are skipped and kept as warnings.
func Parse(ctx context.Context, source string, data []byte) *RuleSet {
	logger := zerolog.Ctx(ctx)

	rs := &RuleSet{
		Source:   source,
		Exists:   true,
		LoadedAt: time.Now(),
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		p, ok, err := Compile(scanner.Text(), line)
		if err != nil {
			logger.Warn().Err(err).Str("source", source).Int("line", line).Msg("skipping rule")
			rs.Warnings = append(rs.Warnings, err)
			continue
		}
		if ok {
			rs.Patterns = append(rs.Patterns, p)
		}
	}

	return rs
}

// ParseString is Parse for in-memory rule text
func ParseString(ctx context.Context, source, text string) *RuleSet {
	return Parse(ctx, source, []byte(text))
}

// ParseLines builds a RuleSet from individual pattern strings
func ParseLines(ctx context.Context, source string, lines []string) *RuleSet {
	return Parse(ctx, source, []byte(strings.Join(lines, "\n")))
}

// 📥 Load reads a rule file. A missing file yields an empty RuleSet, not an error.
func Load(ctx context.Context, path string) (*RuleSet, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		zerolog.Ctx(ctx).Debug().Str("path", path).Msg("rule file not found")
		return &RuleSet{Source: path, LoadedAt: time.Now()}, nil
	}
	if err != nil {
		return nil, errors.Errorf("stat rule file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading rule file: %w", err)
	}

	rs := Parse(ctx, path, data)
	rs.ModTime = info.ModTime()
	rs.Size = info.Size()

	zerolog.Ctx(ctx).Debug().
		Str("path", path).
		Int("patterns", len(rs.Patterns)).
		Int("warnings", len(rs.Warnings)).
		Msg("loaded rule file")

	return rs, nil
}

// Empty reports whether the set has no patterns.
// A missing file, an empty file and a comments-only file are all empty.
func (rs *RuleSet) Empty() bool {
	return rs == nil || len(rs.Patterns) == 0
}

// 🔗 WithDefaults returns a copy whose built-in patterns come first,
// so the file's own rules can still override them.
func (rs *RuleSet) WithDefaults(defaults *RuleSet) *RuleSet {
	if defaults.Empty() {
		return rs
	}
	out := *rs
	out.Patterns = make([]Pattern, 0, len(defaults.Patterns)+len(rs.Patterns))
	out.Patterns = append(out.Patterns, defaults.Patterns...)
	out.Patterns = append(out.Patterns, rs.Patterns...)
	return &out
}

// Stale reports whether the file on disk no longer matches what was loaded
func (rs *RuleSet) Stale(info fs.FileInfo) bool {
	if info == nil {
		return rs.Exists
	}
	return !rs.Exists || !info.ModTime().Equal(rs.ModTime) || info.Size() != rs.Size
}
