package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/preference"
	"github.com/spf13/cobra"
)

func newFeedbackCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Rate review comments and export preference pairs",
		Long: `Record human ratings of stored review comments. A rating is up (1) for a
helpful comment, down (-1) for an unhelpful one and neutral (0); the
latest rating per comment counts when pairs are exported. Pass numeric
negative ratings after "--".

Examples:
  reviewmesh feedback add 4f1c... 9a2b... up --user alice
  reviewmesh feedback add 4f1c... 7d3e... -- -1
  reviewmesh feedback summary 4f1c...
  reviewmesh feedback export --format json > pairs.json`,
	}
	cmd.AddCommand(
		newFeedbackAddCmd(ro),
		newFeedbackListCmd(ro),
		newFeedbackSummaryCmd(ro),
		newFeedbackExportCmd(ro),
	)
	return cmd
}

var ratingWords = map[string]int{"up": 1, "down": -1, "neutral": 0}

func parseRating(s string) (int, error) {
	if r, ok := ratingWords[strings.ToLower(s)]; ok {
		return r, nil
	}
	r, err := strconv.Atoi(s)
	if err != nil || r < -1 || r > 1 {
		return 0, fmt.Errorf("invalid rating %q: want up, down, neutral, -1, 0 or 1", s)
	}
	return r, nil
}

func newFeedbackAddCmd(ro *rootOptions) *cobra.Command {
	var (
		format string
		user   string
	)
	cmd := &cobra.Command{
		Use:   "add <review-id> <comment-id> <rating>",
		Short: "Rate one comment of a review",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := checkFormat(format); err != nil {
				return err
			}
			reviewID, commentID := args[0], args[1]
			rating, err := parseRating(args[2])
			if err != nil {
				return err
			}
			st, err := openStore(cmd, ro)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, st.Close()) }()

			ctx := cmd.Context()
			comments, err := st.ListComments(ctx, reviewID)
			if err != nil {
				return fmt.Errorf("review %s: %w", reviewID, err)
			}
			if !hasComment(comments, commentID) {
				return fmt.Errorf("review %s has no comment %s", reviewID, commentID)
			}

			f, err := st.AddFeedback(ctx, reviewID, core.Feedback{CommentID: commentID, Rating: rating, UserID: user})
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), format, f, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "feedback %s recorded: %s rated %d\n", f.ID, f.CommentID, f.Rating)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json, yaml")
	cmd.Flags().StringVar(&user, "user", "", "id of the person giving the rating")
	return cmd
}

func hasComment(comments []core.Comment, id string) bool {
	for _, c := range comments {
		if c.ID == id {
			return true
		}
	}
	return false
}

func newFeedbackListCmd(ro *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list <review-id>",
		Short: "List a review's ratings, oldest first",
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

			entries, err := st.ListFeedback(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("review %s: %w", args[0], err)
			}
			return write(cmd.OutOrStdout(), format, entries, func(w io.Writer) error { return writeFeedbackTable(w, entries) })
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json, yaml")
	return cmd
}

func newFeedbackSummaryCmd(ro *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "summary <review-id>",
		Short: "Count a review's ratings by sign",
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

			entries, err := st.ListFeedback(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("review %s: %w", args[0], err)
			}
			s := core.SummarizeFeedback(entries)
			return write(cmd.OutOrStdout(), format, s, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "up %d, down %d, neutral %d\n", s.Up, s.Down, s.Neutral)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json, yaml")
	return cmd
}

func newFeedbackExportCmd(ro *rootOptions) *cobra.Command {
	var (
		format string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "export [review-id]",
		Short: "Export preference pairs built from ratings",
		Long: `Pair every positively rated comment with every negatively rated one.
Without a review id, pairs from all stored reviews are exported.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := checkFormat(format); err != nil {
				return err
			}
			st, err := openStore(cmd, ro)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, st.Close()) }()

			var pairs []preference.Pair
			if len(args) == 1 {
				if !cmd.Flags().Changed("limit") {
					limit = preference.DefaultFeedbackLimit
				}
				pairs, err = preference.ExportReview(cmd.Context(), st, args[0], limit)
			} else {
				pairs, err = preference.ExportAll(cmd.Context(), st, limit)
			}
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), format, pairs, func(w io.Writer) error { return writeFeedbackPairsText(w, pairs) })
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json, yaml")
	cmd.Flags().IntVar(&limit, "limit", preference.DefaultExportLimit, "maximum number of pairs (20 for a single review)")
	return cmd
}

func writeFeedbackTable(w io.Writer, entries []core.Feedback) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No feedback found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMMENT\tRATING\tUSER\tCREATED")
	for _, f := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", f.ID, f.CommentID, f.Rating, f.UserID, f.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func writeFeedbackPairsText(w io.Writer, pairs []preference.Pair) error {
	if len(pairs) == 0 {
		_, err := fmt.Fprintln(w, "No preference pairs: needs both a positive and a negative rating.")
		return err
	}
	for _, p := range pairs {
		fmt.Fprintf(w, "review %s: chosen %s (%s) over %s (%s)\n", p.ReviewID, p.ChosenAgent, p.Chosen, p.RejectedAgent, p.Rejected)
	}
	return nil
}
