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
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

// 📝 Parse parses the config from HCL.
// Expressions can reference env.NAME and project_root.
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "stagerc.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	// Create evaluation context
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env":          envObject(),
			"project_root": cty.StringVal(projectRoot(ctx)),
		},
	}

	// Define HCL schema
	type hclConfig struct {
		StagingDir string `hcl:"staging_dir,optional"`
		Megafile   *struct {
			Enabled bool   `hcl:"enabled,optional"`
			Name    string `hcl:"name,optional"`
		} `hcl:"megafile,block"`
		Transcode *struct {
			Disabled   bool     `hcl:"disabled,optional"`
			All        bool     `hcl:"all,optional"`
			Extensions []string `hcl:"extensions,optional"`
			Suffix     string   `hcl:"suffix,optional"`
		} `hcl:"transcode,block"`
		TreeJSON       bool     `hcl:"tree_json,optional"`
		FilesJSON      *bool    `hcl:"files_json,optional"`
		IgnoreDefaults []string `hcl:"ignore_defaults,optional"`
		Reserved       []string `hcl:"reserved,optional"`
		Debounce       string   `hcl:"debounce,optional"`
		PollInterval   string   `hcl:"poll_interval,optional"`
		FileTimeout    string   `hcl:"file_timeout,optional"`
		Concurrency    int      `hcl:"concurrency,optional"`
		WatchMode      string   `hcl:"watch_mode,optional"`
	}

	// Decode HCL
	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	// Convert to model
	cfg := &Config{
		StagingDir:     hclCfg.StagingDir,
		TreeJSON:       hclCfg.TreeJSON,
		FilesJSON:      hclCfg.FilesJSON,
		IgnoreDefaults: hclCfg.IgnoreDefaults,
		Reserved:       hclCfg.Reserved,
		Debounce:       hclCfg.Debounce,
		PollInterval:   hclCfg.PollInterval,
		FileTimeout:    hclCfg.FileTimeout,
		Concurrency:    hclCfg.Concurrency,
		WatchMode:      hclCfg.WatchMode,
	}

	if hclCfg.Megafile != nil {
		cfg.Megafile = &MegafileArgs{
			Enabled: hclCfg.Megafile.Enabled,
			Name:    hclCfg.Megafile.Name,
		}
	}

	if hclCfg.Transcode != nil {
		cfg.Transcode = &TranscodeArgs{
			Disabled:   hclCfg.Transcode.Disabled,
			All:        hclCfg.Transcode.All,
			Extensions: hclCfg.Transcode.Extensions,
			Suffix:     hclCfg.Transcode.Suffix,
		}
	}

	return cfg, nil
}

// 🌍 envObject exposes the process environment to HCL expressions
func envObject() cty.Value {
	vars := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vars)
}
