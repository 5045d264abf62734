package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/reviewmesh"
	"github.com/spf13/cobra"
)

func newWorkerCmd(ro *rootOptions) *cobra.Command {
	var (
		metricsAddr string
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Review every diff file listed on stdin",
		Long: `Read diff file paths from stdin, one per line, enqueue a review for each
and print one status line per review once the queue drained.

When metrics are enabled the Prometheus endpoint is served on /metrics
while the worker runs.

Examples:
  ls patches/*.patch | reviewmesh worker
  find . -name '*.diff' | REVIEWMESH_METRICS_ENABLED=true reviewmesh worker`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, ro, metricsAddr, timeout)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "metrics listen address (overrides metrics.addr)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "maximum time to wait for all reviews")
	return cmd
}

type workItem struct {
	id   string
	path string
}

func readPaths(cmd *cobra.Command) ([]string, error) {
	var paths []string
	sc := bufio.NewScanner(cmd.InOrStdin())
	for sc.Scan() {
		if p := strings.TrimSpace(sc.Text()); p != "" {
			paths = append(paths, p)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}
	return paths, nil
}

func runWorker(cmd *cobra.Command, ro *rootOptions, metricsAddr string, timeout time.Duration) (err error) {
	paths, err := readPaths(cmd)
	if err != nil {
		return err
	}
	cfg, err := ro.load()
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	ctx := cmd.Context()
	m, err := reviewmesh.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, shutdown(m)) }()

	if h := m.MetricsHandler(); h != nil {
		stop, err := serveMetrics(cfg.Metrics.Addr, h)
		if err != nil {
			return err
		}
		defer stop()
		fmt.Fprintf(cmd.ErrOrStderr(), "serving metrics on %s/metrics\n", cfg.Metrics.Addr)
	}

	if err := m.Start(ctx); err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	var (
		items []workItem
		ids   []string
	)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			fmt.Fprintf(errOut, "skipping %s: %v\n", p, err)
			continue
		}
		r, err := m.Submit(ctx, string(data), map[string]any{"path": p})
		if err != nil {
			fmt.Fprintf(errOut, "submit %s: %v\n", p, err)
			if r.ID == "" {
				continue
			}
		}
		items = append(items, workItem{id: r.ID, path: p})
		ids = append(ids, r.ID)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := waitForReviews(waitCtx, m.Store(), ids); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, it := range items {
		r, err := m.Store().GetReview(ctx, it.id)
		if err != nil {
			return err
		}
		comments, err := m.Store().ListComments(ctx, it.id)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s\t%s\t%s\t%d comments", it.id, r.Status, it.path, len(comments))
		if r.Error != "" {
			failed++
			line += "\t" + r.Error
		}
		fmt.Fprintln(out, line)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d reviews failed", failed, len(items))
	}
	return nil
}

// serveMetrics listens on addr and serves h on /metrics until stop is called.
func serveMetrics(addr string, h http.Handler) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
