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

package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRoundTrip(t *testing.T) {
	ctx := testContext(t)
	path := filepath.Join(t.TempDir(), "stagerc", "projects.json")

	reg, err := LoadRegistry(ctx, path)
	require.NoError(t, err)
	assert.Empty(t, reg.Projects, "missing file is an empty registry")

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	first := reg.Touch("/src/a", "/tmp/a", t0)
	reg.Touch("/src/b", "/tmp/b", t0.Add(time.Minute))
	require.NoError(t, reg.Save(ctx))

	loaded, err := LoadRegistry(ctx, path)
	require.NoError(t, err)
	require.Len(t, loaded.Projects, 2)
	assert.Equal(t, "/src/b", loaded.Projects[0].Root, "newest first")

	again := loaded.Touch("/src/a", "/tmp/a2", t0.Add(time.Hour))
	assert.Equal(t, first.ID, again.ID, "a known root keeps its id")
	assert.Equal(t, "/src/a", loaded.Projects[0].Root)
	assert.Equal(t, "/tmp/a2", loaded.Projects[0].StagingDir)
	assert.Len(t, loaded.Projects, 2)
}

func TestRegistryCapsProjects(t *testing.T) {
	reg := &Registry{}
	t0 := time.Now()
	for i := 0; i < maxProjects+5; i++ {
		reg.Touch(filepath.Join("/src", string(rune('a'+i))), "", t0.Add(time.Duration(i)*time.Second))
	}
	assert.Len(t, reg.Projects, maxProjects)
}

func TestRegistryIgnoresCorruptFile(t *testing.T) {
	ctx := testContext(t)
	path := filepath.Join(t.TempDir(), "projects.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	reg, err := LoadRegistry(ctx, path)
	require.NoError(t, err)
	assert.Empty(t, reg.Projects)
}
