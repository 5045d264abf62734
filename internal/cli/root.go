package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/reviewmesh/config"
	"github.com/hupe1980/reviewmesh/core"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// pollInterval is how often the commands check queued reviews for completion.
const pollInterval = 20 * time.Millisecond

type rootOptions struct {
	configPath string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "reviewmesh",
		Short: "Multi-agent code review for unified diffs",
		Long: `reviewmesh parses a unified diff, runs a set of review agents over the
changed lines and aggregates their findings into review comments.

Configuration is read from --config (yaml, toml or json) and from
REVIEWMESH_* environment variables, e.g. REVIEWMESH_STORE_DRIVER=sqlite.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&ro.configPath, "config", "", "config file (yaml, toml or json)")

	cmd.AddCommand(
		newReviewCmd(ro),
		newWorkerCmd(ro),
		newPreferencesCmd(ro),
		newReviewsCmd(ro),
		newFeedbackCmd(ro),
	)
	return cmd
}

// Run executes the root command and returns an exit code.
func Run() int {
	if err := NewRootCmd().Execute(); err != nil {
		return ExitFailure
	}
	return ExitSuccess
}

func (ro *rootOptions) load() (config.Config, error) {
	return config.Load(ro.configPath)
}

// readDiff reads the diff named by args, or stdin for "-" or no argument.
func readDiff(cmd *cobra.Command, args []string) (string, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "stdin", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("read diff: %w", err)
	}
	return string(data), args[0], nil
}

// waitForReviews blocks until every review reached a terminal status.
func waitForReviews(ctx context.Context, st core.ReviewStore, ids []string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	pending := append([]string(nil), ids...)
	for {
		next := pending[:0]
		for _, id := range pending {
			r, err := st.GetReview(ctx, id)
			if err != nil {
				return err
			}
			if !r.Status.IsTerminal() {
				next = append(next, id)
			}
		}
		pending = next
		if len(pending) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d review(s): %w", len(pending), ctx.Err())
		case <-ticker.C:
		}
	}
}

func checkFormat(format string) error {
	switch strings.ToLower(format) {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}
