package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/reviewmesh"
	"github.com/hupe1980/reviewmesh/core"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newReviewCmd(ro *rootOptions) *cobra.Command {
	var (
		format  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "review [file|-]",
		Short: "Review one diff",
		Long: `Submit one unified diff to the review queue, wait for it and print the
review with its comments and agent traces.

Examples:
  reviewmesh review change.patch
  git diff | reviewmesh review -
  reviewmesh review --format json change.patch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(cmd, ro, args, format, timeout)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json, yaml")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "maximum time to wait for the review")
	return cmd
}

func runReview(cmd *cobra.Command, ro *rootOptions, args []string, format string, timeout time.Duration) (err error) {
	if err := checkFormat(format); err != nil {
		return err
	}
	diffText, source, err := readDiff(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := ro.load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	m, err := reviewmesh.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, shutdown(m)) }()

	if err := m.Start(ctx); err != nil {
		return err
	}

	r, err := m.Submit(ctx, diffText, map[string]any{"source": source})
	if err != nil {
		return fmt.Errorf("submit review: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := waitForReviews(waitCtx, m.Store(), []string{r.ID}); err != nil {
		return err
	}

	v, err := loadReviewView(ctx, m.Store(), r.ID)
	if err != nil {
		return err
	}
	if err := write(cmd.OutOrStdout(), format, v, func(w io.Writer) error { return writeReviewText(w, v) }); err != nil {
		return err
	}
	if v.Status == string(core.ReviewFailed) {
		return fmt.Errorf("review %s failed: %s", v.ID, v.Error)
	}
	return nil
}

func loadReviewView(ctx context.Context, st core.ReviewStore, id string) (reviewView, error) {
	r, err := st.GetReview(ctx, id)
	if err != nil {
		return reviewView{}, err
	}
	comments, err := st.ListComments(ctx, id)
	if err != nil {
		return reviewView{}, err
	}
	traces, err := st.ListTraces(ctx, id)
	if err != nil {
		return reviewView{}, err
	}
	return newReviewView(r, comments, traces), nil
}

func shutdown(m *reviewmesh.ReviewMesh) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return m.Shutdown(ctx)
}
