// Package reviewmesh provides a high-level façade over the review pipeline:
// a store for review state, an orchestrated set of review agents and a
// single-consumer job queue. Most applications interact with this package by:
//  1. Creating a ReviewMesh via New() (optionally overriding the in-memory
//     store, agents or generator) or FromConfig()
//  2. Calling Start to launch the consumer
//  3. Submitting diffs with Submit and reading results from Store()
//  4. Calling Shutdown to drain pending reviews
package reviewmesh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hupe1980/reviewmesh/agent"
	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/metrics"
	"github.com/hupe1980/reviewmesh/model"
	"github.com/hupe1980/reviewmesh/orchestrator"
	"github.com/hupe1980/reviewmesh/pipeline"
	"github.com/hupe1980/reviewmesh/queue"
	"github.com/hupe1980/reviewmesh/store/memory"
)

// Options configures the ReviewMesh instance.
type Options struct {
	// Store holds review state (defaults to an in-memory store).
	Store core.ReviewStore
	// Agents run for every review (defaults to the rule-based built-ins).
	Agents []core.Agent
	// Generator serves batched orchestration. Agents that should generate
	// must already be wrapped; see agent.Build.
	Generator model.Generator
	Mode      orchestrator.Mode
	// Retriever supplies repository context; nil disables retrieval.
	Retriever    core.ContextRetriever
	ContextLimit int
	// MaxPending bounds queued reviews; zero means unbounded.
	MaxPending int
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
	// Metrics may be nil.
	Metrics *metrics.Recorder
	// MetricsHandler serves the Prometheus scrape endpoint when metrics are enabled.
	MetricsHandler http.Handler
}

// ReviewMesh aggregates the store, pipeline and queue.
type ReviewMesh struct {
	opts     Options
	pipeline *pipeline.Pipeline
	queue    *queue.Queue
	closers  []io.Closer
}

// New creates a ReviewMesh. Any unset collaborator gets an in-memory or
// rule-based default.
func New(optFns ...func(o *Options)) *ReviewMesh {
	opts := Options{Mode: orchestrator.ModeSequential}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Store == nil {
		opts.Store = memory.New()
	}
	if opts.Agents == nil {
		opts.Agents = agent.Defaults()
	}

	rec := opts.Metrics
	orch := orchestrator.New(opts.Agents, func(o *orchestrator.Options) {
		o.Mode = opts.Mode
		o.Generator = opts.Generator
		o.Logger = opts.Logger
		o.OnAgentRun = rec.RecordAgentRun
	})
	p := pipeline.New(orch, func(o *pipeline.Options) {
		o.Retriever = opts.Retriever
		o.ContextLimit = opts.ContextLimit
		o.Logger = opts.Logger
		o.Metrics = rec
	})
	q := queue.New(func(o *queue.Options) {
		o.MaxPending = opts.MaxPending
		o.Logger = opts.Logger
	})

	return &ReviewMesh{opts: opts, pipeline: p, queue: q}
}

// Start launches the queue consumer. It returns queue.ErrAlreadyStarted on a
// second call.
func (m *ReviewMesh) Start(ctx context.Context) error {
	return m.queue.Start(ctx, m.pipeline.Handler(m.opts.Store))
}

// Submit records a pending review for diffText and enqueues it. A review
// that cannot be enqueued is marked failed and the enqueue error returned
// alongside it. The diff text is kept under core.MetadataDiff unless the
// caller already set that key.
func (m *ReviewMesh) Submit(ctx context.Context, diffText string, metadata map[string]any) (core.Review, error) {
	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if _, ok := meta[core.MetadataDiff]; !ok {
		meta[core.MetadataDiff] = diffText
	}

	r, err := m.opts.Store.CreateReview(ctx, meta)
	if err != nil {
		return core.Review{}, fmt.Errorf("create review: %w", err)
	}

	if err := m.queue.Enqueue(core.ReviewJob{ReviewID: r.ID, DiffText: diffText}); err != nil {
		if markErr := m.opts.Store.MarkFailed(ctx, r.ID, err.Error()); markErr != nil {
			err = errors.Join(err, markErr)
		}
		if failed, getErr := m.opts.Store.GetReview(ctx, r.ID); getErr == nil {
			r = failed
		}
		return r, err
	}

	m.opts.Logger.Debug("Review submitted", "review_id", r.ID)
	return r, nil
}

// Review runs the pipeline synchronously without touching the store.
func (m *ReviewMesh) Review(ctx context.Context, diffText string) (pipeline.Result, error) {
	return m.pipeline.Run(ctx, diffText)
}

// Pending reports queued reviews not yet picked up.
func (m *ReviewMesh) Pending() int { return m.queue.Len() }

// Store returns the review store.
func (m *ReviewMesh) Store() core.ReviewStore { return m.opts.Store }

// MetricsHandler returns the Prometheus handler, or nil when metrics are off.
func (m *ReviewMesh) MetricsHandler() http.Handler { return m.opts.MetricsHandler }

// Shutdown stops intake, waits for pending reviews to finish and releases
// resources created by FromConfig.
func (m *ReviewMesh) Shutdown(ctx context.Context) error {
	err := m.queue.Shutdown(ctx)
	for i := len(m.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, m.closers[i].Close())
	}
	m.closers = nil
	return err
}
