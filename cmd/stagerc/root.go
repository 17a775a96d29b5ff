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

package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/walteh/stagerc/cmd/stagerc/opts"
	"github.com/walteh/stagerc/pkg/config"
	"github.com/walteh/stagerc/pkg/log"
	"github.com/walteh/stagerc/pkg/session"
	"gitlab.com/tozd/go/errors"
)

var (
	// Flags
	configFile   string
	root         string
	debugLogging bool
	noColor      bool
	stagingDir   string
	megafile     bool
	watchMode    string
)

// initRootOpts loads config and fills the shared options once flags are parsed
func initRootOpts(ctx context.Context, o *opts.RootOpts) error {
	// console lines already reach the user; only echo them to stderr when debugging
	level := zerolog.WarnLevel
	if debugLogging {
		level = zerolog.DebugLevel
	}
	if noColor || !log.IsTerminal(os.Stdout) {
		log.DisableColor()
	}
	o.Console = log.New(os.Stdout, level)

	ctx = config.WithProjectRoot(ctx, root)

	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.Load(ctx, configFile)
	} else {
		cfg, err = config.Discover(ctx, root)
	}
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}

	// flags win over the file
	if stagingDir != "" {
		cfg.StagingDir = stagingDir
	}
	if megafile {
		cfg.Megafile.Enabled = true
	}
	if watchMode != "" {
		cfg.WatchMode = watchMode
	}
	if err := cfg.Validate(); err != nil {
		return errors.Errorf("validating config: %w", err)
	}

	o.Root = root
	o.Config = cfg

	if path, err := session.DefaultRegistryPath(); err == nil {
		o.RegistryPath = path
	} else {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("project registry disabled")
	}

	zerolog.Ctx(ctx).Debug().Str("config", cfg.Location()).Stringer("settings", cfg).Msg("configuration loaded")
	return nil
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: .stagerc.{yaml,yml,hcl,json} in the project root)")
	cmd.PersistentFlags().StringVarP(&root, "root", "r", ".", "project root")
	cmd.PersistentFlags().BoolVarP(&debugLogging, "debug", "d", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().StringVar(&stagingDir, "staging-dir", "", "staging directory (default: a per-project temp dir)")
	cmd.PersistentFlags().BoolVar(&megafile, "megafile", false, "also write the combined megafile")
	cmd.PersistentFlags().StringVar(&watchMode, "watch-mode", "", "auto, notify or poll")
}

// setupLogging configures zerolog based on flags
func setupLogging() {
	if debugLogging {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor}).With().Timestamp().Logger()
	zlog.Logger = logger
	zerolog.DefaultContextLogger = &logger
}
