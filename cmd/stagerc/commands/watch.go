package commands

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/stagerc/cmd/stagerc/opts"
	"github.com/walteh/stagerc/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// NewWatchCmd creates a new watch command
func NewWatchCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync now, then keep syncing as files change",
		Long: `Watch starts watching the project, runs a first sync pass, and then
re-syncs after changes settle. Press Enter to force a refresh; Ctrl-C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = zerolog.Ctx(ctx).With().Str("command", "watch").Logger().WithContext(ctx)

			s, err := openSession(ctx, opts)
			if err != nil {
				return errors.Errorf("opening project: %w", err)
			}

			remember(ctx, opts, s)

			w := s.Watcher()
			if log.IsTerminal(os.Stdin) {
				go readRefreshKeys(ctx, w.Trigger)
			}

			opts.Console.Header("watching " + s.Root)
			opts.Console.Infof("staging folder: %s", s.StagingDir)

			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return errors.Errorf("watching: %w", err)
			}

			opts.Console.LogNewline()
			opts.Console.Success("stopped watching")
			return nil
		},
	}

	return cmd
}

// readRefreshKeys calls trigger for every line typed on stdin
func readRefreshKeys(ctx context.Context, trigger func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		trigger()
	}
}
