package commands

import (
	"github.com/spf13/cobra"
	"github.com/walteh/stagerc/cmd/stagerc/opts"
	"gitlab.com/tozd/go/errors"
)

// NewCleanCmd creates a new clean command
func NewCleanCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the staging folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx, opts)
			if err != nil {
				return errors.Errorf("opening project: %w", err)
			}

			n, err := s.Clean(ctx)
			if err != nil {
				return errors.Errorf("cleaning: %w", err)
			}

			opts.Console.Successf("removed %d files from %s", n, s.StagingDir)
			return nil
		},
	}

	return cmd
}
