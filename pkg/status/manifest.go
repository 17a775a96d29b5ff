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

package status

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/scope"
	"github.com/zeebo/xxh3"
	"gitlab.com/tozd/go/errors"
)

// ErrStagingWrite marks a failed write or delete inside the staging dir
var ErrStagingWrite = errors.Base("staging write failed")

// ❌ StagingWriteError is one failed staging operation. It matches ErrStagingWrite.
type StagingWriteError struct {
	Name string
	Op   string
	Err  error
}

func (e *StagingWriteError) Error() string {
	return "staging " + e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *StagingWriteError) Unwrap() error { return e.Err }

func (e *StagingWriteError) Is(target error) bool { return target == ErrStagingWrite }

// 🔏 Signature is what the manifest remembers about a synced file
type Signature struct {
	StagingName string
	Size        int64
	ModTime     time.Time
	Hash        uint64 // xxh3 of the content, valid when Hashed
	Hashed      bool
}

// SameStat reports whether size and mtime still match the source entry
func (s Signature) SameStat(e scope.Entry) bool {
	return s.Size == e.Size && s.ModTime.Equal(e.ModTime)
}

// 📒 Manifest maps a relative source path to its last synced signature
type Manifest map[string]Signature

// Clone returns an independent copy
func (m Manifest) Clone() Manifest {
	out := make(Manifest, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Paths lists the manifest's relative paths, sorted
func (m Manifest) Paths() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Owns reports whether some path in the manifest is staged under name
func (m Manifest) Owns(name string) bool {
	for _, sig := range m {
		if sig.StagingName == name {
			return true
		}
	}
	return false
}

func newHasher() *xxh3.Hasher {
	return xxh3.New()
}

// #️⃣ HashFile returns the xxh3 hash of a file's content
func HashFile(ctx context.Context, path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := newHasher()
	if _, err := io.Copy(h, contextReader{ctx: ctx, r: f}); err != nil {
		return 0, errors.Errorf("hashing %s: %w", path, err)
	}
	return h.Sum64(), nil
}

// 🔁 Rebuild reconstructs a manifest from what is already in the staging dir.
// A staged file counts as synced only when its content hash equals the source's;
// anything else is left for the next sync to overwrite or sweep.
func (m *Manager) Rebuild(ctx context.Context, snap *scope.Snapshot) (Manifest, error) {
	logger := zerolog.Ctx(ctx)

	names, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	staged := make(map[string]bool, len(names))
	for _, n := range names {
		staged[n] = true
	}

	manifest := make(Manifest)
	for _, e := range snap.Entries {
		if !staged[e.StagingName] {
			continue
		}
		stagedPath := filepath.Join(m.baseDir, e.StagingName)
		info, err := os.Stat(stagedPath)
		if err != nil || info.Size() != e.Size {
			continue
		}
		stagedHash, err := HashFile(ctx, stagedPath)
		if err != nil {
			logger.Debug().Err(err).Str("name", e.StagingName).Msg("cannot hash staged file")
			continue
		}
		sourceHash, err := HashFile(ctx, e.AbsPath)
		if err != nil {
			logger.Debug().Err(err).Str("path", e.RelPath).Msg("cannot hash source file")
			continue
		}
		if stagedHash != sourceHash {
			continue
		}
		manifest[e.RelPath] = Signature{
			StagingName: e.StagingName,
			Size:        e.Size,
			ModTime:     e.ModTime,
			Hash:        sourceHash,
			Hashed:      true,
		}
	}

	logger.Debug().
		Str("staging_dir", m.baseDir).
		Int("staged", len(names)).
		Int("recovered", len(manifest)).
		Msg("rebuilt manifest from staging dir")

	return manifest, nil
}
