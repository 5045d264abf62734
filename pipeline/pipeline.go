// Package pipeline turns diff text into aggregated review comments and
// drives the review lifecycle for queued jobs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/reviewmesh/aggregate"
	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/diff"
	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/metrics"
	"github.com/hupe1980/reviewmesh/orchestrator"
	"github.com/hupe1980/reviewmesh/queue"
)

// DefaultContextLimit is the number of context chunks requested per review.
const DefaultContextLimit = 5

// Options configures a Pipeline.
type Options struct {
	// Retriever supplies repository context. Nil means no context.
	Retriever core.ContextRetriever
	// ContextLimit bounds retrieved chunks.
	ContextLimit int
	Logger       logging.Logger
	Metrics      *metrics.Recorder
}

// Result is the outcome of one pipeline run.
type Result struct {
	Changes  int                      `json:"changes" yaml:"changes"`
	Comments []core.AggregatedComment `json:"comments" yaml:"comments"`
	Traces   []core.AgentTrace        `json:"traces" yaml:"traces"`
}

// Pipeline wires parsing, retrieval, orchestration and aggregation.
type Pipeline struct {
	orch *orchestrator.Orchestrator
	opts Options
}

// New creates a pipeline around orch.
func New(orch *orchestrator.Orchestrator, optFns ...func(o *Options)) *Pipeline {
	opts := Options{ContextLimit: DefaultContextLimit}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.ContextLimit <= 0 {
		opts.ContextLimit = DefaultContextLimit
	}
	return &Pipeline{orch: orch, opts: opts}
}

// Run reviews diffText. Malformed diffs and retrieval failures degrade
// silently; only a cancelled context is reported as an error.
func (p *Pipeline) Run(ctx context.Context, diffText string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	changes := diff.Parse(diffText)
	repoContext := p.retrieve(ctx, diffText)

	out := p.orch.Run(ctx, changes, repoContext)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	return Result{
		Changes:  len(changes),
		Comments: aggregate.Findings(out.Findings),
		Traces:   out.Traces,
	}, nil
}

func (p *Pipeline) retrieve(ctx context.Context, diffText string) string {
	if p.opts.Retriever == nil {
		return ""
	}
	chunks, err := p.opts.Retriever.Query(ctx, diffText, p.opts.ContextLimit)
	if err != nil {
		p.opts.Logger.Warn("Context retrieval failed", "error", err.Error())
		return ""
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, "\n")
}

// Handler returns the queue handler that owns lifecycle transitions for
// each job: in_progress before running, then completed with comments and
// traces persisted, or failed with the error text when anything goes wrong.
func (p *Pipeline) Handler(store core.ReviewStore) queue.Handler {
	return func(ctx context.Context, job core.ReviewJob) (err error) {
		start := time.Now()
		log := logging.ForReview(p.opts.Logger, job.ReviewID)

		if err := store.MarkInProgress(ctx, job.ReviewID); err != nil {
			if errors.Is(err, core.ErrReviewNotFound) {
				return err
			}
			return p.fail(ctx, log, store, job.ReviewID, start, fmt.Errorf("mark in progress: %w", err))
		}

		defer func() {
			if r := recover(); r != nil {
				err = p.fail(ctx, log, store, job.ReviewID, start, fmt.Errorf("review panicked: %v", r))
			}
		}()

		if err := p.persist(ctx, log, store, job); err != nil {
			return p.fail(ctx, log, store, job.ReviewID, start, err)
		}

		p.opts.Metrics.RecordReview(ctx, core.ReviewCompleted, time.Since(start))
		return nil
	}
}

func (p *Pipeline) persist(ctx context.Context, log logging.Logger, store core.ReviewStore, job core.ReviewJob) error {
	res, err := p.Run(ctx, job.DiffText)
	if err != nil {
		return err
	}
	log.Debug("Review analyzed", "change_count", res.Changes, "comment_count", len(res.Comments))
	if _, err := store.AddComments(ctx, job.ReviewID, res.Comments); err != nil {
		return fmt.Errorf("store comments: %w", err)
	}
	if err := store.AddTraces(ctx, job.ReviewID, res.Traces); err != nil {
		return fmt.Errorf("store traces: %w", err)
	}
	if err := store.CompleteReview(ctx, job.ReviewID); err != nil {
		return fmt.Errorf("complete review: %w", err)
	}
	return nil
}

func (p *Pipeline) fail(ctx context.Context, log logging.Logger, store core.ReviewStore, id string, start time.Time, cause error) error {
	// The job's own context may be the reason for the failure.
	markCtx := context.WithoutCancel(ctx)
	if err := store.MarkFailed(markCtx, id, cause.Error()); err != nil {
		log.Error("Failed to mark review failed", "error", err.Error())
		cause = errors.Join(cause, err)
	}
	p.opts.Metrics.RecordReview(ctx, core.ReviewFailed, time.Since(start))
	return cause
}
