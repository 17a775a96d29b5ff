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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/scope"
	"gitlab.com/tozd/go/errors"
)

// 📊 FileStatus represents the outcome for one staged file
type FileStatus int

const (
	StatusUnknown   FileStatus = iota
	StatusNew                  // File doesn't exist in staging
	StatusModified             // File exists but content differs
	StatusUnchanged            // File exists and content matches
	StatusDeleted              // File was removed from staging
	StatusFailed               // The operation did not complete
)

// String returns a string representation of FileStatus
func (s FileStatus) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusModified:
		return "modified"
	case StatusUnchanged:
		return "unchanged"
	case StatusDeleted:
		return "deleted"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// 📄 FileInfo is the last known state of one staged file
type FileInfo struct {
	Path        string     // Relative source path
	StagingName string     // Name inside the staging dir
	Status      FileStatus // Outcome of the last pass
	Size        int64      // File size in bytes
	Error       error      // Any error associated with this file
}

// 💾 FileManager handles all file system operations inside the staging dir.
// Names are flat file names, never paths.
type FileManager interface {
	// Core operations
	CopyIn(ctx context.Context, src scope.Entry, name string) (Signature, error)
	WriteFileAtomic(ctx context.Context, name string, content []byte) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	DeleteFile(ctx context.Context, name string) error
	FileExists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]string, error)

	// Directory operations
	CreateDir(ctx context.Context) error
	RemoveDir(ctx context.Context) error

	Dir() string
}

// 📈 StatusReporter tracks file status and reports progress
type StatusReporter interface {
	// Status tracking
	TrackFile(ctx context.Context, info FileInfo)
	GetFileInfo(ctx context.Context, path string) (FileInfo, error)
	ListFiles(ctx context.Context) ([]FileInfo, error)

	// Progress reporting
	StartOperation(ctx context.Context, total int)
	UpdateProgress(ctx context.Context, processed int)
	FinishOperation(ctx context.Context)
}

// 🔧 Manager implements both FileManager and StatusReporter for one staging dir
type Manager struct {
	baseDir   string        // Staging directory
	formatter FileFormatter // Formatter for status messages

	// Status tracking
	mu    sync.RWMutex
	files map[string]FileInfo

	// Progress tracking
	total     int
	processed int
}

var (
	_ FileManager    = (*Manager)(nil)
	_ StatusReporter = (*Manager)(nil)
)

// 🏭 New creates a new status manager for a staging directory
func New(baseDir string) *Manager {
	return &Manager{
		baseDir:   filepath.Clean(baseDir),
		formatter: NewDefaultFileFormatter(),
		files:     make(map[string]FileInfo),
	}
}

// Dir is the staging directory
func (m *Manager) Dir() string {
	return m.baseDir
}

// 🔒 getAbsPath returns the absolute path for a staged name
func (m *Manager) getAbsPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", errors.Errorf("invalid staging name %q", name)
	}
	return filepath.Join(m.baseDir, name), nil
}

// FileManager interface implementation

// 📥 CopyIn copies a source file into the staging dir under name, byte for byte.
// The copy goes through a temp file and a rename so readers never see a partial file.
// The staged file keeps the source mtime.
func (m *Manager) CopyIn(ctx context.Context, src scope.Entry, name string) (Signature, error) {
	absPath, err := m.getAbsPath(name)
	if err != nil {
		return Signature{}, &StagingWriteError{Name: name, Op: "copy", Err: err}
	}

	source, err := os.Open(src.AbsPath)
	if err != nil {
		return Signature{}, &scope.IOError{Op: "opening source", Path: src.RelPath, Err: err}
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return Signature{}, &scope.IOError{Op: "stat source", Path: src.RelPath, Err: err}
	}

	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return Signature{}, &StagingWriteError{Name: name, Op: "creating staging dir", Err: err}
	}

	tmp, err := os.CreateTemp(m.baseDir, tempPattern)
	if err != nil {
		return Signature{}, &StagingWriteError{Name: name, Op: "creating temp file", Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	_ = tmp.Chmod(0644)
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	hasher := newHasher()
	if _, err := io.Copy(io.MultiWriter(errWriter{tmp}, hasher), contextReader{ctx: ctx, r: source}); err != nil {
		if ctx.Err() != nil {
			return Signature{}, errors.Errorf("copying %s: %w", src.RelPath, ctx.Err())
		}
		var werr *writeErr
		if errors.As(err, &werr) {
			return Signature{}, &StagingWriteError{Name: name, Op: "writing", Err: werr.err}
		}
		return Signature{}, &scope.IOError{Op: "reading source", Path: src.RelPath, Err: err}
	}

	if err := tmp.Close(); err != nil {
		return Signature{}, &StagingWriteError{Name: name, Op: "closing temp file", Err: err}
	}

	if err := os.Chtimes(tmpPath, info.ModTime(), info.ModTime()); err != nil {
		return Signature{}, &StagingWriteError{Name: name, Op: "setting mtime", Err: err}
	}

	if err := os.Rename(tmpPath, absPath); err != nil {
		return Signature{}, &StagingWriteError{Name: name, Op: "renaming temp file", Err: err}
	}
	committed = true

	return Signature{
		StagingName: name,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Hash:        hasher.Sum64(),
		Hashed:      true,
	}, nil
}

func (m *Manager) WriteFileAtomic(ctx context.Context, name string, content []byte) error {
	absPath, err := m.getAbsPath(name)
	if err != nil {
		return &StagingWriteError{Name: name, Op: "write", Err: err}
	}
	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return &StagingWriteError{Name: name, Op: "creating staging dir", Err: err}
	}

	tmp, err := os.CreateTemp(m.baseDir, tempPattern)
	if err != nil {
		return &StagingWriteError{Name: name, Op: "creating temp file", Err: err}
	}
	tempPath := tmp.Name()
	_ = tmp.Chmod(0644)

	// Write to temp file
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return &StagingWriteError{Name: name, Op: "writing temp file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return &StagingWriteError{Name: name, Op: "closing temp file", Err: err}
	}

	// Rename temp file to target (atomic operation)
	if err := os.Rename(tempPath, absPath); err != nil {
		os.Remove(tempPath) // Clean up temp file
		return &StagingWriteError{Name: name, Op: "renaming temp file", Err: err}
	}

	return nil
}

func (m *Manager) ReadFile(ctx context.Context, name string) ([]byte, error) {
	absPath, err := m.getAbsPath(name)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, errors.Errorf("reading file: %w", err)
	}
	return content, nil
}

// DeleteFile removes a staged file. A file that is already gone is not an error.
func (m *Manager) DeleteFile(ctx context.Context, name string) error {
	absPath, err := m.getAbsPath(name)
	if err != nil {
		return &StagingWriteError{Name: name, Op: "delete", Err: err}
	}
	if err := os.Remove(absPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StagingWriteError{Name: name, Op: "delete", Err: err}
	}
	return nil
}

func (m *Manager) FileExists(ctx context.Context, name string) (bool, error) {
	absPath, err := m.getAbsPath(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(absPath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, errors.Errorf("checking file existence: %w", err)
}

// 📋 List returns the regular files in the staging dir, sorted. Temp files are skipped.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(m.baseDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Errorf("listing staging dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || isTempName(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (m *Manager) CreateDir(ctx context.Context) error {
	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return &StagingWriteError{Name: m.baseDir, Op: "creating directory", Err: err}
	}
	return nil
}

func (m *Manager) RemoveDir(ctx context.Context) error {
	if err := os.RemoveAll(m.baseDir); err != nil {
		return &StagingWriteError{Name: m.baseDir, Op: "removing directory", Err: err}
	}
	m.mu.Lock()
	m.files = make(map[string]FileInfo)
	m.mu.Unlock()
	return nil
}

const tempPattern = ".stagerc-*.tmp"

func isTempName(name string) bool {
	return strings.HasPrefix(name, ".stagerc-") && strings.HasSuffix(name, ".tmp")
}

// StatusReporter interface implementation

func (m *Manager) TrackFile(ctx context.Context, info FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger := zerolog.Ctx(ctx)

	m.files[info.Path] = info
	if info.Status == StatusDeleted {
		delete(m.files, info.Path)
	}

	if info.Error != nil {
		logger.Warn().Str("path", info.Path).Err(info.Error).Msg(m.formatter.FormatError(info.Error))
		return
	}
	logger.Debug().
		Str("path", info.Path).
		Str("staging_name", info.StagingName).
		Msg(m.formatter.FormatFileOperation(info.Path, info.Status))
}

func (m *Manager) GetFileInfo(ctx context.Context, path string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.files[path]
	if !ok {
		return FileInfo{}, errors.Errorf("file not tracked: %s", path)
	}
	return info, nil
}

func (m *Manager) ListFiles(ctx context.Context) ([]FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]FileInfo, 0, len(m.files))
	for _, info := range m.files {
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (m *Manager) StartOperation(ctx context.Context, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total = total
	m.processed = 0
	msg := m.formatter.FormatProgress(0, total)
	zerolog.Ctx(ctx).Debug().Int("total", total).Msg(msg)
}

func (m *Manager) UpdateProgress(ctx context.Context, processed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed = processed
	msg := m.formatter.FormatProgress(processed, m.total)
	zerolog.Ctx(ctx).Trace().
		Int("processed", processed).
		Int("total", m.total).
		Msg(msg)
}

func (m *Manager) FinishOperation(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := m.formatter.FormatProgress(m.processed, m.total)
	zerolog.Ctx(ctx).Debug().
		Int("processed", m.processed).
		Int("total", m.total).
		Msg(msg)
}

// writeErr marks a failure on the staging side of a copy
type writeErr struct{ err error }

func (e *writeErr) Error() string { return e.err.Error() }

type errWriter struct{ w io.Writer }

func (e errWriter) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err != nil {
		return n, &writeErr{err: err}
	}
	return n, nil
}

// contextReader stops a copy at the next read once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
