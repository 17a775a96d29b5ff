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
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/stagerc/cmd/stagerc/opts"
	"github.com/walteh/stagerc/pkg/config"
)

func TestRootFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		errContains string
		check       func(t *testing.T, o *opts.RootOpts)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, o *opts.RootOpts) {
				assert.False(t, debugLogging)
				assert.False(t, o.Config.Megafile.Enabled)
				assert.Equal(t, config.WatchAuto, o.Config.WatchMode)
			},
		},
		{
			name: "debug",
			args: []string{"--debug"},
			check: func(t *testing.T, o *opts.RootOpts) {
				assert.True(t, debugLogging)
				assert.NotNil(t, o.Console)
			},
		},
		{
			name: "overrides_win_over_file",
			args: []string{"--staging-dir", "/tmp/elsewhere", "--megafile", "--watch-mode", "poll"},
			check: func(t *testing.T, o *opts.RootOpts) {
				assert.Equal(t, "/tmp/elsewhere", o.Config.StagingDir)
				assert.True(t, o.Config.Megafile.Enabled)
				assert.Equal(t, config.WatchPoll, o.Config.WatchMode)
			},
		},
		{
			name:        "bad_watch_mode",
			args:        []string{"--watch-mode", "inotify"},
			wantErr:     true,
			errContains: "validating config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := zerolog.New(zerolog.TestWriter{T: t})
			ctx := logger.WithContext(context.Background())

			cmd := &cobra.Command{Use: "stagerc-test"}
			addRootFlags(cmd)
			dir := t.TempDir()
			args := append([]string{"--root", dir, "--no-color"}, tt.args...)
			require.NoError(t, cmd.ParseFlags(args))

			o := &opts.RootOpts{}
			err := initRootOpts(ctx, o)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(dir), filepath.Clean(o.Root))
			tt.check(t, o)
		})
	}
}
