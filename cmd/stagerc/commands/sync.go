package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/stagerc/cmd/stagerc/opts"
	"gitlab.com/tozd/go/errors"
)

// NewSyncCmd creates a new sync command
func NewSyncCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass and exit",
		Long: `Sync brings the staging folder up to date with the project.
It will:
1. Load .ignore and .include from the project root
2. Walk the project and select files
3. Copy new and changed files, remove the ones that left scope
4. Rewrite the megafile if enabled`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := zerolog.Ctx(cmd.Context()).With().Str("command", "sync").Logger().WithContext(cmd.Context())

			s, err := openSession(ctx, opts)
			if err != nil {
				return errors.Errorf("opening project: %w", err)
			}

			if _, err := s.Refresh(ctx, "manual"); err != nil {
				return errors.Errorf("syncing files: %w", err)
			}
			remember(ctx, opts, s)

			opts.Console.Infof("staging folder: %s", s.StagingDir)
			return nil
		},
	}

	return cmd
}
