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
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/walteh/stagerc/pkg/config"
	"github.com/walteh/stagerc/pkg/megafile"
	"github.com/walteh/stagerc/pkg/scope"
	"github.com/walteh/stagerc/pkg/status"
)

// 🧪 testEnv is a project root, a staging dir outside it and a synchronizer
type testEnv struct {
	ctx     context.Context
	root    string
	staging string
	cfg     *config.Config
	mgr     *status.Manager
	syncer  *Synchronizer
}

func newTestEnv(t *testing.T, files map[string]string) *testEnv {
	t.Helper()

	logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	root := t.TempDir()
	writeFiles(t, root, files)

	cfg := config.Default()
	cfg.Megafile.Enabled = true
	off := false
	cfg.FilesJSON = &off

	staging := filepath.Join(t.TempDir(), "staging")
	mgr := status.New(staging)
	syncer, err := New(Options{Config: cfg, Files: mgr, Reporter: mgr})
	require.NoError(t, err)

	return &testEnv{ctx: ctx, root: root, staging: staging, cfg: cfg, mgr: mgr, syncer: syncer}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func (e *testEnv) resolve(t *testing.T) *scope.Snapshot {
	t.Helper()
	snap, err := scope.NewResolver(scope.Options{
		StagingDir: e.staging,
		Transcode:  e.cfg.Transcode,
		Reserved:   e.cfg.Reserved,
	}).Resolve(e.ctx, e.root)
	require.NoError(t, err)
	return snap
}

func (e *testEnv) staged(t *testing.T) []string {
	t.Helper()
	names, err := e.mgr.List(e.ctx)
	require.NoError(t, err)
	return names
}

func (e *testEnv) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.staging, name))
	require.NoError(t, err)
	return string(data)
}

func TestSyncRoundTrip(t *testing.T) {
	env := newTestEnv(t, map[string]string{
		"a.txt":            "alpha\n",
		"src/lib/b.svelte": "<b>bee</b>",
	})

	report, manifest := env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))

	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Transcoded)
	assert.Zero(t, report.Failed())
	assert.True(t, report.Megafile)

	assert.Equal(t, []string{"a.txt", "megafile.txt", "src-lib-b.svelte.txt"}, env.staged(t))
	assert.Equal(t, "alpha\n", env.read(t, "a.txt"))
	assert.Equal(t, "<b>bee</b>", env.read(t, "src-lib-b.svelte.txt"))
	assert.Equal(t,
		"===== a.txt =====\nalpha\n\n===== src/lib/b.svelte =====\n<b>bee</b>\n",
		env.read(t, "megafile.txt"))

	assert.Equal(t, []string{"a.txt", "src/lib/b.svelte"}, manifest.Paths())
	assert.Equal(t, "src-lib-b.svelte.txt", manifest["src/lib/b.svelte"].StagingName)
}

func TestSyncIsIdempotent(t *testing.T) {
	env := newTestEnv(t, map[string]string{"a.txt": "a", "b.js": "b"})

	_, manifest := env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))

	report, again := env.syncer.Sync(env.ctx, manifest, env.resolve(t))

	assert.Zero(t, report.Applied(), "second pass applies no ops")
	assert.Equal(t, 2, report.Unchanged)
	assert.False(t, report.Megafile, "megafile is not rewritten when nothing changed")
	assert.Equal(t, manifest, again)
}

func TestSyncDeleteRemovesFileAndBlock(t *testing.T) {
	env := newTestEnv(t, map[string]string{"a.txt": "a", "b.txt": "b"})

	_, manifest := env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))
	require.NoError(t, os.Remove(filepath.Join(env.root, "a.txt")))

	report, manifest := env.syncer.Sync(env.ctx, manifest, env.resolve(t))

	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, []string{"b.txt"}, manifest.Paths())
	assert.Equal(t, []string{"b.txt", "megafile.txt"}, env.staged(t))

	f, err := os.Open(filepath.Join(env.staging, "megafile.txt"))
	require.NoError(t, err)
	defer f.Close()
	blocks, err := megafile.Parse(f)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "b.txt", blocks[0].Path)
}

func TestSyncTouchedButIdenticalOnlyRefreshes(t *testing.T) {
	env := newTestEnv(t, map[string]string{"a.txt": "same"})

	_, manifest := env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))
	stagedInfo, err := os.Stat(filepath.Join(env.staging, "a.txt"))
	require.NoError(t, err)

	future := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(env.root, "a.txt"), future, future))

	report, manifest := env.syncer.Sync(env.ctx, manifest, env.resolve(t))

	assert.Zero(t, report.Updated, "identical content is not rewritten")
	assert.Equal(t, 1, report.Unchanged)
	assert.True(t, manifest["a.txt"].ModTime.Equal(future), "manifest picks up the new mtime")

	after, err := os.Stat(filepath.Join(env.staging, "a.txt"))
	require.NoError(t, err)
	assert.True(t, after.ModTime().Equal(stagedInfo.ModTime()), "staged file was left alone")

	assert.Empty(t, Plan(manifest, env.resolve(t)), "next plan is empty")
}

func TestSyncContentChangeUpdates(t *testing.T) {
	env := newTestEnv(t, map[string]string{"a.txt": "one"})

	_, manifest := env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))

	writeFiles(t, env.root, map[string]string{"a.txt": "two"})
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(env.root, "a.txt"), future, future))

	report, _ := env.syncer.Sync(env.ctx, manifest, env.resolve(t))

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, "two", env.read(t, "a.txt"))
	assert.Contains(t, env.read(t, "megafile.txt"), "===== a.txt =====\ntwo\n")
}

func TestSyncRenamesWhenTranscodingChanges(t *testing.T) {
	env := newTestEnv(t, map[string]string{"app.js": "js"})

	_, manifest := env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))
	assert.Equal(t, []string{"app.js.txt", "megafile.txt"}, env.staged(t))

	env.cfg.Transcode.Disabled = true
	report, manifest := env.syncer.Sync(env.ctx, manifest, env.resolve(t))

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, []string{"app.js", "megafile.txt"}, env.staged(t), "old name is removed")
	assert.Equal(t, "app.js", manifest["app.js"].StagingName)
}

func TestSyncSweepsOrphans(t *testing.T) {
	env := newTestEnv(t, map[string]string{"a.txt": "a"})
	writeFiles(t, env.staging, map[string]string{
		"stray.txt":  "left over from another run",
		"prompt.txt": "reserved",
	})

	report, _ := env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))

	assert.Equal(t, 1, report.Swept)
	assert.Equal(t, []string{"a.txt", "megafile.txt", "prompt.txt"}, env.staged(t))
}

func TestSyncWritesTreeJSON(t *testing.T) {
	env := newTestEnv(t, map[string]string{"src/a.go": "package a", "README.md": "hi"})
	env.cfg.TreeJSON = true

	env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))

	var tree map[string]any
	require.NoError(t, json.Unmarshal([]byte(env.read(t, config.DefaultTreeName)), &tree))
	assert.Contains(t, tree, "README.md")
	require.Contains(t, tree, "src")
	assert.Equal(t, map[string]any{"a.go": nil}, tree["src"])
}

func TestSyncWritesFilesJSON(t *testing.T) {
	env := newTestEnv(t, map[string]string{
		"src/a.go":  "package a",
		"README.md": "hi",
		"logo.png":  "\x89PNG\xff\xfe",
	})
	on := true
	env.cfg.FilesJSON = &on

	_, manifest := env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))

	var files map[string]any
	require.NoError(t, json.Unmarshal([]byte(env.read(t, config.DefaultFilesName)), &files))
	assert.Equal(t, map[string]any{
		"README.md": "hi",
		"src":       map[string]any{"a.go": "package a"},
	}, files, "binary files are left out")
	assert.NotContains(t, manifest.Paths(), config.DefaultFilesName)

	writeFiles(t, env.root, map[string]string{"README.md": "hello"})
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(env.root, "README.md"), future, future))
	env.syncer.Sync(env.ctx, manifest, env.resolve(t))

	require.NoError(t, json.Unmarshal([]byte(env.read(t, config.DefaultFilesName)), &files))
	assert.Equal(t, "hello", files["README.md"])
}

func TestSyncRemovesDisabledListings(t *testing.T) {
	tests := []struct {
		name     string
		artifact string
		disable  func(cfg *config.Config)
	}{
		{
			name:     "tree_json",
			artifact: config.DefaultTreeName,
			disable:  func(cfg *config.Config) { cfg.TreeJSON = false },
		},
		{
			name:     "files_json",
			artifact: config.DefaultFilesName,
			disable: func(cfg *config.Config) {
				off := false
				cfg.FilesJSON = &off
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, map[string]string{"a.txt": "a"})
			on := true
			env.cfg.TreeJSON = true
			env.cfg.FilesJSON = &on

			_, manifest := env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))
			require.Contains(t, env.staged(t), tt.artifact)

			tt.disable(env.cfg)
			report, _ := env.syncer.Sync(env.ctx, manifest, env.resolve(t))

			assert.Zero(t, report.Applied())
			assert.NotContains(t, env.staged(t), tt.artifact, "switched-off listing is removed")
			assert.Contains(t, env.staged(t), "a.txt")
		})
	}
}

func TestSyncMegafileDisabled(t *testing.T) {
	env := newTestEnv(t, map[string]string{"a.txt": "a"})
	env.cfg.Megafile.Enabled = false
	writeFiles(t, env.staging, map[string]string{"megafile.txt": "stale"})

	report, _ := env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))

	assert.False(t, report.Megafile)
	assert.Equal(t, []string{"a.txt"}, env.staged(t))
}

// 🧪 flakyFiles fails CopyIn and DeleteFile for chosen staging names
type flakyFiles struct {
	*status.Manager
	mock.Mock
}

func newFlakyFiles(mgr *status.Manager, failCopy, failDelete []string) *flakyFiles {
	f := &flakyFiles{Manager: mgr}
	for _, name := range failCopy {
		f.On("CopyIn", name).Return(&status.StagingWriteError{Name: name, Op: "writing", Err: os.ErrPermission})
	}
	for _, name := range failDelete {
		f.On("DeleteFile", name).Return(&status.StagingWriteError{Name: name, Op: "removing", Err: os.ErrPermission})
	}
	f.On("CopyIn", mock.Anything).Return(nil)
	f.On("DeleteFile", mock.Anything).Return(nil)
	return f
}

func (f *flakyFiles) CopyIn(ctx context.Context, src scope.Entry, name string) (status.Signature, error) {
	if err := f.Called(name).Error(0); err != nil {
		return status.Signature{}, err
	}
	return f.Manager.CopyIn(ctx, src, name)
}

func (f *flakyFiles) DeleteFile(ctx context.Context, name string) error {
	if err := f.Called(name).Error(0); err != nil {
		return err
	}
	return f.Manager.DeleteFile(ctx, name)
}

// slowDeletes makes every removal land after the copies of the same pass
func slowDeletes(t *testing.T, env *testEnv) (*flakyFiles, *Synchronizer) {
	t.Helper()
	f := &flakyFiles{Manager: env.mgr}
	f.On("CopyIn", mock.Anything).Return(nil)
	f.On("DeleteFile", mock.Anything).Return(nil).After(50 * time.Millisecond)
	syncer, err := New(Options{Config: env.cfg, Files: f, Reporter: env.mgr})
	require.NoError(t, err)
	return f, syncer
}

func TestSyncStagingNameHandover(t *testing.T) {
	env := newTestEnv(t, map[string]string{"a/b.go": "nested"})
	_, manifest := env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))
	require.Equal(t, "a-b.go", manifest["a/b.go"].StagingName)

	// a root file takes over the flat name the nested file leaves behind
	require.NoError(t, os.RemoveAll(filepath.Join(env.root, "a")))
	writeFiles(t, env.root, map[string]string{"a-b.go": "root"})

	files, syncer := slowDeletes(t, env)
	report, manifest := syncer.Sync(env.ctx, manifest, env.resolve(t))

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Deleted)
	assert.Zero(t, report.Failed())
	files.AssertNotCalled(t, "DeleteFile", "a-b.go")
	assert.Equal(t, "root", env.read(t, "a-b.go"))
	assert.Equal(t, []string{"a-b.go"}, manifest.Paths())

	report, _ = syncer.Sync(env.ctx, manifest, env.resolve(t))
	assert.Zero(t, report.Applied())
	assert.Equal(t, "root", env.read(t, "a-b.go"))
}

func TestSyncRenameKeepsClaimedOldName(t *testing.T) {
	env := newTestEnv(t, map[string]string{"app.js": "js"})
	_, manifest := env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))
	require.Equal(t, "app.js.txt", manifest["app.js"].StagingName)

	// app.js moves to its plain name while a new app.js.txt claims the old one
	env.cfg.Transcode.Disabled = true
	writeFiles(t, env.root, map[string]string{"app.js.txt": "notes"})

	files, syncer := slowDeletes(t, env)
	report, manifest := syncer.Sync(env.ctx, manifest, env.resolve(t))

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Created)
	files.AssertNotCalled(t, "DeleteFile", "app.js.txt")
	assert.Equal(t, []string{"app.js", "app.js.txt", "megafile.txt"}, env.staged(t))
	assert.Equal(t, "js", env.read(t, "app.js"))
	assert.Equal(t, "notes", env.read(t, "app.js.txt"))
	assert.Equal(t, "app.js.txt", manifest["app.js.txt"].StagingName)
}

func TestSyncPartialFailure(t *testing.T) {
	env := newTestEnv(t, map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"})

	flaky := newFlakyFiles(env.mgr, []string{"b.txt"}, nil)
	syncer, err := New(Options{Config: env.cfg, Files: flaky, Reporter: env.mgr})
	require.NoError(t, err)

	report, manifest := syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))

	assert.Equal(t, 2, report.Created, "other ops still run")
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "b.txt", report.Failures[0].Path)
	assert.Equal(t, KindCreate, report.Failures[0].Kind)
	assert.ErrorIs(t, report.Failures[0].Err, status.ErrStagingWrite)
	assert.Equal(t, []string{"a.txt", "c.txt"}, manifest.Paths(), "manifest only has successful ops")

	info, err := env.mgr.GetFileInfo(env.ctx, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, status.StatusFailed, info.Status)

	retry, manifest := env.syncer.Sync(env.ctx, manifest, env.resolve(t))
	assert.Equal(t, 1, retry.Created, "failed create is retried next pass")
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, manifest.Paths())
}

func TestSyncFailedDeleteKeepsManifestEntry(t *testing.T) {
	env := newTestEnv(t, map[string]string{"a.txt": "a"})
	_, manifest := env.syncer.Sync(env.ctx, status.Manifest{}, env.resolve(t))
	require.NoError(t, os.Remove(filepath.Join(env.root, "a.txt")))

	flaky := newFlakyFiles(env.mgr, nil, []string{"a.txt"})
	syncer, err := New(Options{Config: env.cfg, Files: flaky})
	require.NoError(t, err)

	report, next := syncer.Sync(env.ctx, manifest, env.resolve(t))

	require.Len(t, report.Failures, 1)
	assert.Equal(t, KindDelete, report.Failures[0].Kind)
	assert.Contains(t, next, "a.txt", "failed delete is retried next pass")
	assert.Contains(t, env.staged(t), "a.txt")
}

func TestSyncUnreadableSource(t *testing.T) {
	env := newTestEnv(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	snap := env.resolve(t)
	require.NoError(t, os.Remove(filepath.Join(env.root, "a.txt")))

	report, manifest := env.syncer.Sync(env.ctx, status.Manifest{}, snap)

	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, scope.ErrIO)
	assert.Equal(t, []string{"b.txt"}, manifest.Paths())
	assert.Equal(t, []string{"a.txt"}, report.MegafileSkipped)
}

func TestNewRequiresConfigAndFiles(t *testing.T) {
	_, err := New(Options{Files: status.New(t.TempDir())})
	assert.Error(t, err)

	_, err = New(Options{Config: config.Default()})
	assert.Error(t, err)
}
