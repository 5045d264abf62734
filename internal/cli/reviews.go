package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/store"
	"github.com/spf13/cobra"
)

func newReviewsCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Inspect reviews in the configured store",
		Long: `Inspect reviews kept in a persistent store. The memory store starts
empty in every process, so configure store.driver as sqlite or postgres.

Examples:
  REVIEWMESH_STORE_DRIVER=sqlite REVIEWMESH_STORE_DSN=reviews.db reviewmesh reviews list
  reviewmesh --config reviewmesh.yaml reviews show 4f1c...`,
	}
	cmd.AddCommand(newReviewsListCmd(ro), newReviewsShowCmd(ro))
	return cmd
}

func newReviewsListCmd(ro *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reviews, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := checkFormat(format); err != nil {
				return err
			}
			st, err := openStore(cmd, ro)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, st.Close()) }()

			reviews, err := st.ListReviews(cmd.Context())
			if err != nil {
				return err
			}
			views := make([]reviewView, 0, len(reviews))
			for _, r := range reviews {
				views = append(views, newReviewView(r, nil, nil))
			}
			return write(cmd.OutOrStdout(), format, views, func(w io.Writer) error { return writeReviewTable(w, views) })
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json, yaml")
	return cmd
}

func newReviewsShowCmd(ro *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one review with its comments and traces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := checkFormat(format); err != nil {
				return err
			}
			st, err := openStore(cmd, ro)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, st.Close()) }()

			v, err := loadReviewView(cmd.Context(), st, args[0])
			if err != nil {
				return fmt.Errorf("review %s: %w", args[0], err)
			}
			return write(cmd.OutOrStdout(), format, v, func(w io.Writer) error { return writeReviewText(w, v) })
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json, yaml")
	return cmd
}

func openStore(cmd *cobra.Command, ro *rootOptions) (core.ReviewStore, error) {
	cfg, err := ro.load()
	if err != nil {
		return nil, err
	}
	return store.Open(cmd.Context(), cfg.Store.Driver, cfg.Store.DSN)
}

func writeReviewTable(w io.Writer, views []reviewView) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "No reviews found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tERROR")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, v.Status, v.CreatedAt.Local().Format(time.DateTime), v.Error)
	}
	return tw.Flush()
}
