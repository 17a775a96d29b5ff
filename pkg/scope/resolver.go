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
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/config"
	"github.com/walteh/stagerc/pkg/rules"
	"gitlab.com/tozd/go/errors"
)

// 🔧 Options configures a Resolver
type Options struct {
	Ignore     *rules.RuleSet        // exclusions, built-in defaults already merged
	Include    *rules.RuleSet        // whitelist, ignored when empty
	StagingDir string                // excluded from the walk when inside the root
	Transcode  *config.TranscodeArgs // staging name rewriting
	Reserved   []string              // staging names owned by the engine
}

// 🔍 Resolver walks a project tree and produces Snapshots
type Resolver struct {
	opts Options
}

// 🏭 NewResolver creates a resolver
func NewResolver(opts Options) *Resolver {
	if opts.StagingDir != "" {
		opts.StagingDir = filepath.Clean(opts.StagingDir)
	}
	return &Resolver{opts: opts}
}

// 🚶 Resolve walks root depth-first and returns the in-scope files.
// It fails with ErrIO only when root itself cannot be read; unreadable
// entries below it become warnings on the snapshot.
func (r *Resolver) Resolve(ctx context.Context, root string) (*Snapshot, error) {
	logger := zerolog.Ctx(ctx)

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Errorf("resolving root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, &IOError{Path: root, Op: "reading project root", Err: err}
	}
	if !info.IsDir() {
		return nil, &IOError{Path: root, Op: "reading project root", Err: errors.New("not a directory")}
	}

	var (
		candidates []Entry
		counts     Counts
		warnings   []error
	)

	warn := func(err error) {
		warnings = append(warnings, err)
		logger.Warn().Err(err).Msg("scope warning")
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == root {
				return &IOError{Path: root, Op: "reading project root", Err: err}
			}
			counts.Unreadable++
			warn(&IOError{Path: path, Op: "reading", Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.Errorf("relative path for %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			counts.Symlinks++
			logger.Debug().Str("path", rel).Msg("skipping symlink")
			return nil
		}

		if d.IsDir() {
			if r.opts.StagingDir != "" && path == r.opts.StagingDir {
				logger.Debug().Str("path", rel).Msg("skipping staging directory")
				return fs.SkipDir
			}
			if r.opts.Ignore.Ignored(rel, true) {
				counts.Ignored++
				logger.Trace().Str("path", rel).Msg("pruning ignored directory")
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		counts.Files++

		if rel == rules.IgnoreFile || rel == rules.IncludeFile {
			return nil
		}

		if r.opts.Ignore.Ignored(rel, false) {
			counts.Ignored++
			return nil
		}

		if !r.opts.Include.Empty() && !r.opts.Include.Selected(rel, false) {
			counts.NotIncluded++
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			counts.Unreadable++
			warn(&IOError{Path: rel, Op: "stat", Err: err})
			return nil
		}

		candidates = append(candidates, Entry{
			RelPath: rel,
			AbsPath: path,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, errors.Errorf("walking %s: %w", root, walkErr)
	}

	entries := r.assignStagingNames(candidates, &counts, warn)

	snap := NewSnapshot(root, entries)
	snap.Counts = counts
	snap.Warnings = warnings

	logger.Debug().
		Str("root", root).
		Int("in_scope", snap.Len()).
		Int("ignored", counts.Ignored).
		Int("not_included", counts.NotIncluded).
		Int("collisions", counts.Collisions).
		Msg("scope resolved")

	return snap, nil
}

// 🏷️ assignStagingNames flattens and transcodes names in sorted path order.
// When two paths land on the same name the later one is skipped.
// Names are compared case-insensitively so the result is safe on any filesystem.
func (r *Resolver) assignStagingNames(candidates []Entry, counts *Counts, warn func(error)) []Entry {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].RelPath < candidates[j].RelPath })

	taken := make(map[string]string, len(candidates))
	for _, name := range r.opts.Reserved {
		taken[strings.ToLower(name)] = "(reserved)"
	}

	out := candidates[:0]
	for _, e := range candidates {
		name, transcoded := r.opts.Transcode.Apply(FlattenName(e.RelPath))
		key := strings.ToLower(name)
		if owner, ok := taken[key]; ok {
			counts.Collisions++
			warn(errors.Errorf("skipping %s: staging name %s already used by %s", e.RelPath, name, owner))
			continue
		}
		taken[key] = e.RelPath
		e.StagingName = name
		e.Transcoded = transcoded
		out = append(out, e)
	}
	return out
}
