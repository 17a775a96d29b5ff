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

package operation

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/config"
	"github.com/walteh/stagerc/pkg/log"
	"github.com/walteh/stagerc/pkg/megafile"
	"github.com/walteh/stagerc/pkg/scope"
	"github.com/walteh/stagerc/pkg/status"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 🔧 Options contains configuration for the synchronizer
type Options struct {
	// Config is the validated stagerc configuration
	Config *config.Config
	// Files owns the staging directory
	Files status.FileManager
	// Reporter tracks per-file status, optional
	Reporter status.StatusReporter
	// Composer builds the megafile, defaults to megafile.NewComposer()
	Composer *megafile.Composer
	// Console prints per-file lines, optional
	Console *log.Logger
}

// 🔄 Synchronizer makes the staging dir mirror a scope snapshot
type Synchronizer struct {
	cfg      *config.Config
	files    status.FileManager
	reporter status.StatusReporter
	composer *megafile.Composer
	console  *log.Logger
	runner   *OperationRunner
}

// 🏭 New creates a new synchronizer with the given options
func New(opts Options) (*Synchronizer, error) {
	if opts.Config == nil {
		return nil, errors.Errorf("config is required")
	}
	if opts.Files == nil {
		return nil, errors.Errorf("file manager is required")
	}
	if opts.Composer == nil {
		opts.Composer = megafile.NewComposer()
	}
	return &Synchronizer{
		cfg:      opts.Config,
		files:    opts.Files,
		reporter: opts.Reporter,
		composer: opts.Composer,
		console:  opts.Console,
		runner:   NewRunner(opts.Config.PerFileTimeout()),
	}, nil
}

// Files is the staging file manager
func (s *Synchronizer) Files() status.FileManager {
	return s.files
}

// 🔄 Sync applies the ops needed to make the staging dir match snap and returns
// the report with the next manifest. Ops are independent: a failure is recorded
// and the rest still run. The returned manifest reflects only successful ops.
func (s *Synchronizer) Sync(ctx context.Context, prev status.Manifest, snap *scope.Snapshot) (*Report, status.Manifest) {
	logger := zerolog.Ctx(ctx)
	start := time.Now()

	report := &Report{Selected: snap.Len()}
	next := prev.Clone()
	var nextMu sync.Mutex

	if err := s.files.CreateDir(ctx); err != nil {
		logger.Warn().Err(err).Str("staging_dir", s.files.Dir()).Msg("cannot create staging dir")
	}

	ops := Plan(prev, snap)
	claimed := claimedNames(snap)
	report.Unchanged = snap.Len()
	for _, op := range ops {
		if op.Kind != KindDelete {
			report.Unchanged--
		}
	}

	if s.reporter != nil {
		s.reporter.StartOperation(ctx, len(ops))
	}

	var processed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, op := range ops {
		op := op
		g.Go(func() error {
			var res applied
			err := s.runner.Run(ctx, func(ctx context.Context) error {
				var err error
				res, err = s.apply(ctx, op, claimed)
				return err
			})

			// res is only safe to read when the task finished in time
			outcome := status.StatusFailed
			if err != nil {
				report.fail(op, err)
			} else {
				outcome = res.outcome
				nextMu.Lock()
				if op.Kind == KindDelete {
					delete(next, op.Path)
				} else {
					next[op.Path] = res.sig
				}
				nextMu.Unlock()

				report.record(func(r *Report) {
					switch outcome {
					case status.StatusNew:
						r.Created++
					case status.StatusModified:
						r.Updated++
					case status.StatusDeleted:
						r.Deleted++
					case status.StatusUnchanged:
						r.Unchanged++
					}
					if op.Entry.Transcoded && (outcome == status.StatusNew || outcome == status.StatusModified) {
						r.Transcoded++
					}
				})
			}
			s.track(ctx, op, outcome, err)

			if s.reporter != nil {
				s.reporter.UpdateProgress(ctx, int(processed.Add(1)))
			}
			return nil
		})
	}
	_ = g.Wait()

	if s.reporter != nil {
		s.reporter.FinishOperation(ctx)
	}

	report.Swept = s.sweep(ctx, next, snap)
	s.writeArtifacts(ctx, report, snap)

	report.sortFailures()
	report.Duration = time.Since(start)

	logger.Debug().
		Int("selected", report.Selected).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("deleted", report.Deleted).
		Int("unchanged", report.Unchanged).
		Int("failed", report.Failed()).
		Int("swept", report.Swept).
		Dur("duration", report.Duration).
		Msg("sync pass finished")

	return report, next
}

type applied struct {
	sig     status.Signature
	outcome status.FileStatus
}

// claimedNames is the set of staging names the snapshot writes, lower-cased.
// A name in the set is never removed by the pass that claims it: an op that
// frees the name may run concurrently with the op that takes it over.
func claimedNames(snap *scope.Snapshot) map[string]bool {
	out := make(map[string]bool, snap.Len())
	for _, e := range snap.Entries {
		out[strings.ToLower(e.StagingName)] = true
	}
	return out
}

// 📄 apply performs one op and returns the new signature and outcome
func (s *Synchronizer) apply(ctx context.Context, op Op, claimed map[string]bool) (applied, error) {
	logger := zerolog.Ctx(ctx)

	switch op.Kind {
	case KindCreate:
		sig, err := s.files.CopyIn(ctx, op.Entry, op.Entry.StagingName)
		if err != nil {
			return applied{}, err
		}
		return applied{sig, status.StatusNew}, nil

	case KindUpdate:
		sameName := op.Prev.StagingName == op.Entry.StagingName
		if sameName && op.Prev.Hashed && op.Prev.Size == op.Entry.Size {
			hash, err := status.HashFile(ctx, op.Entry.AbsPath)
			if err == nil && hash == op.Prev.Hash {
				return applied{status.Signature{
					StagingName: op.Entry.StagingName,
					Size:        op.Entry.Size,
					ModTime:     op.Entry.ModTime,
					Hash:        hash,
					Hashed:      true,
				}, status.StatusUnchanged}, nil
			}
		}

		sig, err := s.files.CopyIn(ctx, op.Entry, op.Entry.StagingName)
		if err != nil {
			return applied{}, err
		}
		if !sameName && !claimed[strings.ToLower(op.Prev.StagingName)] {
			if err := s.files.DeleteFile(ctx, op.Prev.StagingName); err != nil {
				logger.Warn().Err(err).Str("name", op.Prev.StagingName).Msg("old staging name left for the sweep")
			}
		}
		return applied{sig, status.StatusModified}, nil

	case KindDelete:
		if claimed[strings.ToLower(op.Prev.StagingName)] {
			logger.Debug().Str("path", op.Path).Str("name", op.Prev.StagingName).Msg("staging name taken over, not removing")
			return applied{outcome: status.StatusDeleted}, nil
		}
		if err := s.files.DeleteFile(ctx, op.Prev.StagingName); err != nil {
			return applied{}, err
		}
		return applied{outcome: status.StatusDeleted}, nil
	}

	return applied{}, errors.Errorf("unknown op kind %d", op.Kind)
}

func (s *Synchronizer) track(ctx context.Context, op Op, outcome status.FileStatus, err error) {
	name := op.Entry.StagingName
	if op.Kind == KindDelete {
		name = op.Prev.StagingName
	}
	info := status.FileInfo{
		Path:        op.Path,
		StagingName: name,
		Status:      outcome,
		Size:        op.Entry.Size,
		Error:       err,
	}
	if s.reporter != nil {
		s.reporter.TrackFile(ctx, info)
	}
	if s.console != nil && outcome != status.StatusUnchanged {
		s.console.LogFileOperation(ctx, log.FileOperation{
			Path:        info.Path,
			StagingName: info.StagingName,
			Status:      info.Status,
			Error:       info.Error,
		})
	}
}

// 🧹 sweep deletes staged files that nothing accounts for
func (s *Synchronizer) sweep(ctx context.Context, next status.Manifest, snap *scope.Snapshot) int {
	logger := zerolog.Ctx(ctx)

	names, err := s.files.List(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("cannot list staging dir for sweep")
		return 0
	}

	expected := make(map[string]bool, len(next)+snap.Len())
	for _, sig := range next {
		expected[sig.StagingName] = true
	}
	for _, e := range snap.Entries {
		expected[e.StagingName] = true
	}

	swept := 0
	for _, name := range names {
		if expected[name] || s.cfg.IsReserved(name) {
			continue
		}
		if err := s.files.DeleteFile(ctx, name); err != nil {
			logger.Warn().Err(err).Str("name", name).Msg("cannot remove orphaned staging file")
			continue
		}
		logger.Debug().Str("name", name).Msg("removed orphaned staging file")
		swept++
	}
	return swept
}

// 📄 writeArtifacts rewrites the megafile and JSON listings when the pass changed anything
func (s *Synchronizer) writeArtifacts(ctx context.Context, report *Report, snap *scope.Snapshot) {
	logger := zerolog.Ctx(ctx)
	changed := report.Applied() > 0 || report.Swept > 0

	if s.cfg.Megafile.Enabled {
		exists, err := s.files.FileExists(ctx, s.cfg.Megafile.Name)
		if err != nil {
			logger.Warn().Err(err).Msg("cannot check megafile")
		}
		if changed || !exists {
			if err := s.writeMegafile(ctx, report, snap); err != nil {
				logger.Error().Err(err).Msg("writing megafile")
				report.fail(Op{Kind: KindUpdate, Path: s.cfg.Megafile.Name}, err)
			}
		}
	} else if err := s.files.DeleteFile(ctx, s.cfg.Megafile.Name); err != nil {
		logger.Warn().Err(err).Msg("cannot remove disabled megafile")
	}

	s.writeListing(ctx, report, changed, s.cfg.TreeJSON, config.DefaultTreeName, func() any {
		return snap.Tree()
	})
	s.writeListing(ctx, report, changed, s.cfg.WritesFilesJSON(), config.DefaultFilesName, func() any {
		return fileContents(ctx, snap)
	})
}

// writeListing keeps one JSON artifact in step with its switch: rewritten when
// the pass changed anything or it is missing, removed when switched off.
func (s *Synchronizer) writeListing(ctx context.Context, report *Report, changed, enabled bool, name string, build func() any) {
	logger := zerolog.Ctx(ctx).With().Str("artifact", name).Logger()

	if !enabled {
		if err := s.files.DeleteFile(ctx, name); err != nil {
			logger.Warn().Err(err).Msg("cannot remove disabled listing")
		}
		return
	}

	exists, err := s.files.FileExists(ctx, name)
	if err != nil {
		logger.Warn().Err(err).Msg("cannot check listing")
	}
	if exists && !changed {
		return
	}

	data, err := json.MarshalIndent(build(), "", "  ")
	if err != nil {
		err = errors.Errorf("encoding %s: %w", name, err)
	} else {
		err = s.files.WriteFileAtomic(ctx, name, append(data, '\n'))
	}
	if err != nil {
		logger.Error().Err(err).Msg("writing listing")
		report.fail(Op{Kind: KindUpdate, Path: name}, err)
	}
}

// fileContents nests every readable text file's content under its path.
// Unreadable and binary files are left out.
func fileContents(ctx context.Context, snap *scope.Snapshot) map[string]any {
	logger := zerolog.Ctx(ctx)
	return snap.TreeWith(func(e scope.Entry) (any, bool) {
		content, err := os.ReadFile(e.AbsPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", e.RelPath).Msg("skipping unreadable file in files listing")
			return nil, false
		}
		if !utf8.Valid(content) {
			logger.Debug().Str("path", e.RelPath).Msg("skipping binary file in files listing")
			return nil, false
		}
		return string(content), true
	})
}

func (s *Synchronizer) writeMegafile(ctx context.Context, report *Report, snap *scope.Snapshot) error {
	res, err := s.composer.Compose(ctx, snap)
	if err != nil {
		return errors.Errorf("composing megafile: %w", err)
	}
	if err := s.files.WriteFileAtomic(ctx, s.cfg.Megafile.Name, res.Content); err != nil {
		return err
	}
	report.Megafile = true
	report.MegafileSkipped = res.Skipped
	return nil
}
