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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// Defaults
const (
	DefaultMegafileName  = "megafile.txt"
	DefaultTreeName      = "project_file_tree.json"
	DefaultFilesName     = "project_files.json"
	DefaultPromptName    = "prompt.txt"
	DefaultSuffix        = ".txt"
	DefaultStagingParent = "stagerc_files"
	DefaultConcurrency   = 4
	DefaultDebounce      = time.Second
	DefaultPollInterval  = 2 * time.Second
	DefaultFileTimeout   = 10 * time.Second
)

// Watch modes
const (
	WatchAuto   = "auto"
	WatchNotify = "notify"
	WatchPoll   = "poll"
)

// DefaultTranscodeExtensions are extensions common chat uploaders reject
var DefaultTranscodeExtensions = []string{".js", ".jsx", ".svelte", ".vue"}

// DefaultIgnorePatterns are prepended to every project's .ignore
var DefaultIgnorePatterns = []string{".git/"}

// 📄 MegafileArgs controls the combined output file
type MegafileArgs struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
}

// 🔄 TranscodeArgs controls extension rewriting of staged files
type TranscodeArgs struct {
	Disabled   bool     `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	All        bool     `json:"all,omitempty" yaml:"all,omitempty"` // rewrite every file, not just Extensions
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Suffix     string   `json:"suffix,omitempty" yaml:"suffix,omitempty"`
}

// 📚 Config represents the complete configuration
type Config struct {
	StagingDir     string         `json:"staging_dir,omitempty" yaml:"staging_dir,omitempty"`
	Megafile       *MegafileArgs  `json:"megafile,omitempty" yaml:"megafile,omitempty"`
	Transcode      *TranscodeArgs `json:"transcode,omitempty" yaml:"transcode,omitempty"`
	TreeJSON       bool           `json:"tree_json,omitempty" yaml:"tree_json,omitempty"`
	FilesJSON      *bool          `json:"files_json,omitempty" yaml:"files_json,omitempty"` // default true
	IgnoreDefaults []string       `json:"ignore_defaults,omitempty" yaml:"ignore_defaults,omitempty"`
	Reserved       []string       `json:"reserved,omitempty" yaml:"reserved,omitempty"`
	Debounce       string         `json:"debounce,omitempty" yaml:"debounce,omitempty"`
	PollInterval   string         `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	FileTimeout    string         `json:"file_timeout,omitempty" yaml:"file_timeout,omitempty"`
	Concurrency    int            `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	WatchMode      string         `json:"watch_mode,omitempty" yaml:"watch_mode,omitempty"`

	location     string
	debounce     time.Duration
	pollInterval time.Duration
	fileTimeout  time.Duration
}

// 🏭 Default returns a validated config with every default applied
func Default() *Config {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		// defaults are always valid
		panic(err)
	}
	return cfg
}

// 🔍 Validate checks the configuration and fills in defaults
func (cfg *Config) Validate() error {
	if cfg.Megafile == nil {
		cfg.Megafile = &MegafileArgs{}
	}
	if cfg.Megafile.Name == "" {
		cfg.Megafile.Name = DefaultMegafileName
	}
	if strings.ContainsAny(cfg.Megafile.Name, `/\`) {
		return errors.Errorf("megafile.name must be a plain file name, got %q", cfg.Megafile.Name)
	}

	if cfg.Transcode == nil {
		cfg.Transcode = &TranscodeArgs{}
	}
	if cfg.Transcode.Extensions == nil {
		cfg.Transcode.Extensions = append([]string(nil), DefaultTranscodeExtensions...)
	}
	for i, ext := range cfg.Transcode.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			return errors.Errorf("transcode.extensions[%d] is empty", i)
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Transcode.Extensions[i] = ext
	}
	if cfg.Transcode.Suffix == "" {
		cfg.Transcode.Suffix = DefaultSuffix
	}
	if !strings.HasPrefix(cfg.Transcode.Suffix, ".") || strings.ContainsAny(cfg.Transcode.Suffix, `/\`) {
		return errors.Errorf("transcode.suffix must look like an extension, got %q", cfg.Transcode.Suffix)
	}

	if cfg.IgnoreDefaults == nil {
		cfg.IgnoreDefaults = append([]string(nil), DefaultIgnorePatterns...)
	}

	if cfg.FilesJSON == nil {
		on := true
		cfg.FilesJSON = &on
	}

	for _, name := range []string{cfg.Megafile.Name, DefaultTreeName, DefaultFilesName, DefaultPromptName} {
		if !contains(cfg.Reserved, name) {
			cfg.Reserved = append(cfg.Reserved, name)
		}
	}

	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Concurrency < 0 {
		return errors.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	}

	switch cfg.WatchMode {
	case "":
		cfg.WatchMode = WatchAuto
	case WatchAuto, WatchNotify, WatchPoll:
	default:
		return errors.Errorf("watch_mode must be one of auto, notify, poll, got %q", cfg.WatchMode)
	}

	var err error
	if cfg.debounce, err = parseDuration("debounce", cfg.Debounce, DefaultDebounce); err != nil {
		return err
	}
	if cfg.pollInterval, err = parseDuration("poll_interval", cfg.PollInterval, DefaultPollInterval); err != nil {
		return err
	}
	if cfg.fileTimeout, err = parseDuration("file_timeout", cfg.FileTimeout, DefaultFileTimeout); err != nil {
		return err
	}

	return nil
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Errorf("parsing %s: %w", field, err)
	}
	if d <= 0 {
		return 0, errors.Errorf("%s must be positive, got %s", field, value)
	}
	return d, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DebounceWindow is the quiet period before a watch-triggered sync
func (cfg *Config) DebounceWindow() time.Duration { return cfg.debounce }

// PollEvery is the scan interval of the polling watcher
func (cfg *Config) PollEvery() time.Duration { return cfg.pollInterval }

// PerFileTimeout bounds a single read or copy
func (cfg *Config) PerFileTimeout() time.Duration { return cfg.fileTimeout }

// Location is the file the config was loaded from, empty for defaults
func (cfg *Config) Location() string { return cfg.location }

// WritesFilesJSON reports whether the path-to-content listing is staged
func (cfg *Config) WritesFilesJSON() bool {
	return cfg.FilesJSON == nil || *cfg.FilesJSON
}

// IsReserved reports whether name is owned by the engine inside the staging dir
func (cfg *Config) IsReserved(name string) bool {
	return contains(cfg.Reserved, name)
}

// 📁 StagingPath resolves the staging directory for a project root.
// Relative paths are taken from the project root; empty means a per-project temp dir.
func (cfg *Config) StagingPath(root string) string {
	if cfg.StagingDir != "" {
		if filepath.IsAbs(cfg.StagingDir) {
			return filepath.Clean(cfg.StagingDir)
		}
		return filepath.Join(root, cfg.StagingDir)
	}
	name := fmt.Sprintf("%s-%08x", filepath.Base(root), uint32(xxh3.HashString(root)))
	return filepath.Join(os.TempDir(), DefaultStagingParent, name)
}

// 🔄 Apply returns the staged file name for name, and whether it was rewritten.
// Only the name changes; content is copied as is.
func (t *TranscodeArgs) Apply(name string) (string, bool) {
	if t == nil || t.Disabled {
		return name, false
	}
	if t.All {
		return name + t.Suffix, true
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return name, false
	}
	for _, e := range t.Extensions {
		if e == ext {
			return name + t.Suffix, true
		}
	}
	return name, false
}

// 📝 String returns a short summary of the config
func (cfg *Config) String() string {
	mega := "off"
	if cfg.Megafile != nil && cfg.Megafile.Enabled {
		mega = cfg.Megafile.Name
	}
	return fmt.Sprintf("staging=%q megafile=%s transcode=%v watch=%s debounce=%s",
		cfg.StagingDir, mega, cfg.Transcode.Extensions, cfg.WatchMode, cfg.debounce)
}
