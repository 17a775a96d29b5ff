package commands

import (
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"github.com/walteh/stagerc/cmd/stagerc/opts"
	"github.com/walteh/stagerc/pkg/megafile"
	"gitlab.com/tozd/go/errors"
)

// NewComposeCmd creates a new compose command
func NewComposeCmd(opts *opts.RootOpts) *cobra.Command {
	var (
		output      string
		toClipboard bool
	)

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Print the megafile for the current scope",
		Long: `Compose concatenates every selected file into one text, each behind a
"===== path =====" banner. The result goes to stdout, a file, or the clipboard.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx, opts)
			if err != nil {
				return errors.Errorf("opening project: %w", err)
			}

			snap, err := s.Resolve(ctx)
			if err != nil {
				return errors.Errorf("resolving scope: %w", err)
			}

			res, err := megafile.NewComposer().Compose(ctx, snap)
			if err != nil {
				return err
			}
			for _, p := range res.Skipped {
				opts.Console.Warningf("skipped unreadable file %s", p)
			}

			if toClipboard {
				if err := clipboard.WriteAll(string(res.Content)); err != nil {
					return errors.Errorf("copying to clipboard: %w", err)
				}
				opts.Console.Successf("copied %d files (%d bytes) to the clipboard", len(res.Paths), len(res.Content))
			}

			if output != "" {
				if err := os.WriteFile(output, res.Content, 0644); err != nil {
					return errors.Errorf("writing %s: %w", output, err)
				}
				opts.Console.Successf("wrote %d files to %s", len(res.Paths), output)
			}

			if !toClipboard && output == "" {
				_, err := cmd.OutOrStdout().Write(res.Content)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().BoolVar(&toClipboard, "clipboard", false, "copy to the system clipboard")

	return cmd
}
