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

package megafile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/stagerc/pkg/scope"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

func snapshotOf(t *testing.T, files map[string]string) *scope.Snapshot {
	t.Helper()
	root := t.TempDir()
	var entries []scope.Entry
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0644))
		entries = append(entries, scope.Entry{RelPath: rel, AbsPath: abs, Size: int64(len(content))})
	}
	return scope.NewSnapshot(root, entries)
}

func TestCompose(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name:  "sorted_by_path",
			files: map[string]string{"z.txt": "last", "a.txt": "first"},
			want:  "===== a.txt =====\nfirst\n===== z.txt =====\nlast\n",
		},
		{
			name:  "nested_paths_are_kept",
			files: map[string]string{"src/lib/b.svelte": "<b/>\n"},
			want:  "===== src/lib/b.svelte =====\n<b/>\n\n",
		},
		{
			name:  "case_sensitive_order",
			files: map[string]string{"b.txt": "b", "B.txt": "B"},
			want:  "===== B.txt =====\nB\n===== b.txt =====\nb\n",
		},
		{
			name:  "empty_snapshot",
			files: map[string]string{},
			want:  "",
		},
		{
			name:  "empty_file",
			files: map[string]string{"empty": ""},
			want:  "===== empty =====\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(t)
			res, err := NewComposer().Compose(ctx, snapshotOf(t, tt.files))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(res.Content))
			assert.Equal(t, int64(len(tt.want)), res.Written)
			assert.Empty(t, res.Skipped)
		})
	}
}

func TestComposeSkipsUnreadable(t *testing.T) {
	ctx := testContext(t)
	snap := snapshotOf(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	require.NoError(t, os.Remove(filepath.Join(snap.Root, "a.txt")))

	res, err := NewComposer().Compose(ctx, snap)
	require.NoError(t, err)

	assert.Equal(t, "===== b.txt =====\nb\n", string(res.Content))
	assert.Equal(t, []string{"a.txt"}, res.Skipped)
	assert.Equal(t, []string{"b.txt"}, res.Paths)
}

func TestComposeIsDeterministic(t *testing.T) {
	ctx := testContext(t)
	snap := snapshotOf(t, map[string]string{"c": "3", "a": "1", "b": "2"})

	first, err := NewComposer().Compose(ctx, snap)
	require.NoError(t, err)
	second, err := NewComposer().Compose(ctx, snap)
	require.NoError(t, err)

	assert.Equal(t, first.Content, second.Content)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantLen int
	}{
		{name: "trailing_newline_kept", files: map[string]string{"a.txt": "line\n"}, wantLen: 1},
		{name: "no_trailing_newline", files: map[string]string{"a.txt": "line"}, wantLen: 1},
		{name: "several_files", files: map[string]string{"a": "1", "dir/b": "two\nlines\n", "c": ""}, wantLen: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(t)
			res, err := NewComposer().Compose(ctx, snapshotOf(t, tt.files))
			require.NoError(t, err)

			blocks, err := Parse(bytes.NewReader(res.Content))
			require.NoError(t, err)
			require.Len(t, blocks, tt.wantLen)
			for _, b := range blocks {
				assert.Equal(t, tt.files[b.Path], string(b.Content), "content of %s", b.Path)
			}
		})
	}
}

func TestParseRejectsMissingBanner(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("no banner here\n")))
	assert.Error(t, err)
}
