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
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/walteh/stagerc/cmd/stagerc/commands"
	"github.com/walteh/stagerc/cmd/stagerc/opts"
)

func main() {
	ctx := context.Background()
	rootOpts := &opts.RootOpts{}

	rootCmd := &cobra.Command{
		Use:   "stagerc",
		Short: "Mirror the interesting files of a project into a flat staging folder",
		Long: `stagerc selects files from a project using .include and .ignore
(gitignore syntax), copies them into a flat staging folder that chat uploaders
accept, and keeps that folder in sync as the project changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			cmd.SetContext(log.Logger.WithContext(cmd.Context()))
			return initRootOpts(cmd.Context(), rootOpts)
		},
	}

	addRootFlags(rootCmd)

	rootCmd.AddCommand(
		commands.NewSyncCmd(rootOpts),
		commands.NewWatchCmd(rootOpts),
		commands.NewStatusCmd(rootOpts),
		commands.NewComposeCmd(rootOpts),
		commands.NewCleanCmd(rootOpts),
		newVersionCmd(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if rootOpts.Console != nil {
			rootOpts.Console.Errorf("%v", err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
