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
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 💾 Cache keeps one RuleSet per file and reloads it when the file changes
type Cache struct {
	mu   sync.Mutex
	sets map[string]*RuleSet
}

// 🏭 NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{sets: make(map[string]*RuleSet)}
}

// 📥 Get returns the cached RuleSet for path, reloading it if its mtime or size changed
func (c *Cache) Get(ctx context.Context, path string) (*RuleSet, error) {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Errorf("stat rule file: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.sets[path]; ok && !cached.Stale(info) {
		return cached, nil
	}

	rs, err := Load(ctx, path)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("rule file (re)loaded")
	c.sets[path] = rs
	return rs, nil
}

// Invalidate drops a cached entry so the next Get reloads it
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sets, filepath.Clean(path))
}
