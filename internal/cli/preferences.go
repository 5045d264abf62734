package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/reviewmesh"
	"github.com/hupe1980/reviewmesh/diff"
	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/preference"
	"github.com/spf13/cobra"
)

func newPreferencesCmd(ro *rootOptions) *cobra.Command {
	var (
		format     string
		candidates bool
	)

	cmd := &cobra.Command{
		Use:   "preferences [file|-]",
		Short: "Derive a chosen/rejected review pair from a diff",
		Long: `Run the code, security and style reviewers over a diff and print the
best and worst of their reviews as a preference pair. When a generation
backend is configured it ranks the reviews first; otherwise reviews are
ranked by the summed severity of their findings.

Examples:
  reviewmesh preferences change.patch
  git diff | reviewmesh preferences --format json -
  reviewmesh preferences --candidates change.patch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreferences(cmd, ro, args, format, candidates)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json, yaml")
	cmd.Flags().BoolVar(&candidates, "candidates", false, "print every reviewer's scored review instead of the pair")
	return cmd
}

func runPreferences(cmd *cobra.Command, ro *rootOptions, args []string, format string, candidates bool) (err error) {
	if err := checkFormat(format); err != nil {
		return err
	}
	diffText, _, err := readDiff(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := ro.load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	changes := diff.Parse(diffText)
	out := cmd.OutOrStdout()

	if candidates {
		cs := preference.Candidates(ctx, changes, preference.DefaultAgents())
		return write(out, format, cs, func(w io.Writer) error { return writeCandidatesText(w, cs) })
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := reviewmesh.NewLogger(level, cfg.Logging.Format)

	gen, closers, err := reviewmesh.NewGenerator(cfg, logger, nil)
	defer func() {
		for _, c := range closers {
			err = errors.Join(err, c.Close())
		}
	}()
	if err != nil {
		return err
	}

	pairs := preference.Pairs(ctx, changes, nil, func(o *preference.Options) {
		o.Generator = gen
		o.Logger = logger
		o.Prompt = preference.Prompt(diffText)
	})
	return write(out, format, pairs, func(w io.Writer) error { return writePairsText(w, pairs) })
}

func writePairsText(w io.Writer, pairs []preference.Pair) error {
	if len(pairs) == 0 {
		_, err := fmt.Fprintln(w, "No preference pair: fewer than two reviewers reported findings.")
		return err
	}
	for _, p := range pairs {
		fmt.Fprintf(w, "chosen (%s, ranked by %s):\n%s\n", p.ChosenAgent, p.Ranker, p.Chosen)
		fmt.Fprintf(w, "rejected (%s):\n%s\n", p.RejectedAgent, p.Rejected)
	}
	return nil
}

func writeCandidatesText(w io.Writer, cs []preference.Candidate) error {
	if len(cs) == 0 {
		_, err := fmt.Fprintln(w, "No reviewer reported findings.")
		return err
	}
	for _, c := range cs {
		fmt.Fprintf(w, "%s (score %d):\n%s\n", c.AgentID, c.Score, c.Text)
	}
	return nil
}
