package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/spf13/cobra"
	"github.com/walteh/stagerc/cmd/stagerc/opts"
	"github.com/walteh/stagerc/pkg/megafile"
	"github.com/walteh/stagerc/pkg/operation"
	"github.com/walteh/stagerc/pkg/rules"
	"github.com/walteh/stagerc/pkg/scope"
	"github.com/walteh/stagerc/pkg/session"
	"github.com/walteh/stagerc/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// NewStatusCmd creates a new status command
func NewStatusCmd(opts *opts.RootOpts) *cobra.Command {
	var (
		asJSON    bool
		asTree    bool
		showRules bool
		explain   string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what is in scope and what a sync would change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			s, err := openSession(ctx, opts)
			if err != nil {
				return errors.Errorf("opening project: %w", err)
			}

			snap, err := s.Resolve(ctx)
			if err != nil {
				return errors.Errorf("resolving scope: %w", err)
			}

			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap.Entries)
			case asTree:
				fmt.Fprintln(out, s.Root)
				return snap.RenderTree(out)
			case showRules:
				ignore, include, err := s.Rules(ctx)
				if err != nil {
					return err
				}
				printRules(out, "ignore", ignore)
				printRules(out, "include", include)
				return nil
			case explain != "":
				ignore, include, err := s.Rules(ctx)
				if err != nil {
					return err
				}
				return explainPath(out, snap, ignore, include, explain)
			}

			ops := operation.Plan(s.Manifest(), snap)
			for _, op := range ops {
				name := op.Entry.StagingName
				if op.Kind == operation.KindDelete {
					name = op.Prev.StagingName
				}
				fmt.Fprintln(out, status.FormatFileOperation(op.Path, name, pendingStatus(op.Kind)))
			}

			opts.Console.Infof("%d in scope, %d pending, %d ignored, %d not included, %d collisions, %d symlinks skipped",
				snap.Len(), len(ops), snap.Counts.Ignored, snap.Counts.NotIncluded, snap.Counts.Collisions, snap.Counts.Symlinks)
			for _, w := range snap.Warnings {
				opts.Console.Warning(w.Error())
			}
			if s.Config.Megafile.Enabled {
				reportMegafile(ctx, opts, s, snap)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the scope as JSON")
	cmd.Flags().BoolVar(&asTree, "tree", false, "print the scope as a tree")
	cmd.Flags().BoolVar(&showRules, "rules", false, "print the effective ignore and include rules")
	cmd.Flags().StringVar(&explain, "explain", "", "explain why a path is in or out of scope")
	cmd.MarkFlagsMutuallyExclusive("json", "tree", "rules", "explain")

	return cmd
}

func pendingStatus(k operation.Kind) status.FileStatus {
	switch k {
	case operation.KindCreate:
		return status.StatusNew
	case operation.KindUpdate:
		return status.StatusModified
	default:
		return status.StatusDeleted
	}
}

func printRules(out io.Writer, name string, rs *rules.RuleSet) {
	fmt.Fprintf(out, "%s (%d rules)\n", name, len(rs.Patterns))
	for _, line := range rs.Lines() {
		fmt.Fprintf(out, "  %s\n", line)
	}
}

func explainPath(out io.Writer, snap *scope.Snapshot, ignore, include *rules.RuleSet, rel string) error {
	rel = strings.TrimPrefix(path.Clean(strings.ReplaceAll(rel, "\\", "/")), "./")

	describe := func(label string, rs *rules.RuleSet) {
		if p, ok := rs.Describe(rel, false); ok {
			fmt.Fprintf(out, "%s: %s:%d %q\n", label, rs.Source, p.Line, p.String())
			return
		}
		for _, dir := range parents(rel) {
			if p, ok := rs.Describe(dir, true); ok {
				fmt.Fprintf(out, "%s: %s:%d %q (via %s/)\n", label, rs.Source, p.Line, p.String(), dir)
				return
			}
		}
		fmt.Fprintf(out, "%s: no rule matched\n", label)
	}

	describe("ignore", ignore)
	if include.Empty() {
		fmt.Fprintln(out, "include: empty, everything not ignored is selected")
	} else {
		describe("include", include)
	}

	if e, ok := snap.Get(rel); ok {
		fmt.Fprintf(out, "in scope as %s\n", e.StagingName)
	} else {
		fmt.Fprintln(out, "not in scope")
	}
	return nil
}

// parents returns the ancestor dirs of rel, nearest first
func parents(rel string) []string {
	var out []string
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		out = append(out, dir)
	}
	return out
}

// reportMegafile compares the staged megafile's blocks against the current scope
func reportMegafile(ctx context.Context, opts *opts.RootOpts, s *session.Session, snap *scope.Snapshot) {
	data, err := s.Files().ReadFile(ctx, s.Config.Megafile.Name)
	if err != nil {
		opts.Console.Warningf("megafile %s not staged yet", s.Config.Megafile.Name)
		return
	}
	blocks, err := megafile.Parse(bytes.NewReader(data))
	if err != nil {
		opts.Console.Warningf("megafile %s is unreadable: %v", s.Config.Megafile.Name, err)
		return
	}
	if drift := megafileDrift(blocks, snap.Paths()); len(drift) > 0 {
		opts.Console.Warningf("megafile %s is stale: %s", s.Config.Megafile.Name, strings.Join(drift, ", "))
		return
	}
	opts.Console.Infof("megafile %s covers %d files", s.Config.Megafile.Name, len(blocks))
}

// megafileDrift lists paths that are in only one of blocks and paths.
// Both sides are sorted by path.
func megafileDrift(blocks []megafile.Block, paths []string) []string {
	var drift []string
	i, j := 0, 0
	for i < len(blocks) || j < len(paths) {
		switch {
		case j == len(paths) || (i < len(blocks) && blocks[i].Path < paths[j]):
			drift = append(drift, "-"+blocks[i].Path)
			i++
		case i == len(blocks) || paths[j] < blocks[i].Path:
			drift = append(drift, "+"+paths[j])
			j++
		default:
			i++
			j++
		}
	}
	return drift
}
