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

package config

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ConfigNames are the file names Discover looks for, in order
var ConfigNames = []string{".stagerc.yaml", ".stagerc.yml", ".stagerc.hcl", ".stagerc.json"}

type rootKey struct{}

// WithProjectRoot makes the project root visible to parsers (HCL exposes it as project_root)
func WithProjectRoot(ctx context.Context, root string) context.Context {
	return context.WithValue(ctx, rootKey{}, root)
}

func projectRoot(ctx context.Context) string {
	root, _ := ctx.Value(rootKey{}).(string)
	return root
}

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	// Get parser
	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	// Parse config
	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}
	cfg.location = path

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// 🔍 Discover loads the first .stagerc.* file in root, or returns defaults when there is none
func Discover(ctx context.Context, root string) (*Config, error) {
	for _, name := range ConfigNames {
		path := filepath.Join(root, name)
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.Errorf("checking %s: %w", name, err)
		}
		return Load(WithProjectRoot(ctx, root), path)
	}

	zerolog.Ctx(ctx).Debug().Str("root", root).Msg("no config file found, using defaults")
	return Default(), nil
}
