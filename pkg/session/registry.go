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
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const (
	registryDir  = "stagerc"
	registryFile = "projects.json"
	maxProjects  = 20
)

// 📁 Project is one recently staged project
type Project struct {
	ID         string    `json:"id"`
	Root       string    `json:"root"`
	StagingDir string    `json:"staging_dir"`
	LastSync   time.Time `json:"last_sync"`
}

// 📒 Registry is the list of recently staged projects, newest first
type Registry struct {
	path     string
	Projects []Project `json:"projects"`
}

// DefaultRegistryPath is projects.json under the user config dir
func DefaultRegistryPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Errorf("finding user config dir: %w", err)
	}
	return filepath.Join(dir, registryDir, registryFile), nil
}

// 📖 LoadRegistry reads the registry at path. A missing file is an empty registry.
func LoadRegistry(ctx context.Context, path string) (*Registry, error) {
	r := &Registry{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, errors.Errorf("reading registry: %w", err)
	}

	if err := json.Unmarshal(data, r); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("ignoring corrupt project registry")
		return &Registry{path: path}, nil
	}
	return r, nil
}

// Lookup finds a project by root
func (r *Registry) Lookup(root string) (Project, bool) {
	for _, p := range r.Projects {
		if p.Root == root {
			return p, true
		}
	}
	return Project{}, false
}

// 👆 Touch records a sync of root, keeping its id if it has one
func (r *Registry) Touch(root, stagingDir string, at time.Time) Project {
	p, ok := r.Lookup(root)
	if !ok {
		p = Project{ID: uuid.NewString(), Root: root}
	}
	p.StagingDir = stagingDir
	p.LastSync = at

	kept := []Project{p}
	for _, other := range r.Projects {
		if other.Root != root {
			kept = append(kept, other)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].LastSync.After(kept[j].LastSync) })
	if len(kept) > maxProjects {
		kept = kept[:maxProjects]
	}
	r.Projects = kept
	return p
}

// 💾 Save writes the registry back atomically
func (r *Registry) Save(ctx context.Context) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Errorf("encoding registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Errorf("creating registry dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".projects-*.tmp")
	if err != nil {
		return errors.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return errors.Errorf("writing registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Errorf("closing registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return errors.Errorf("replacing registry: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("path", r.path).Int("projects", len(r.Projects)).Msg("saved project registry")
	return nil
}
