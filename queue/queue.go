// Package queue sequences review jobs through a single long-lived consumer.
//
// Jobs are handled one at a time in submission order. A failing or panicking
// job is logged and never stops the consumer; the handler owns any review
// lifecycle bookkeeping.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/logging"
)

var (
	// ErrClosed is returned by Enqueue after Shutdown.
	ErrClosed = errors.New("queue closed")
	// ErrQueueFull is returned by Enqueue when MaxPending jobs are waiting.
	ErrQueueFull = errors.New("queue full")
	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("queue already started")
)

// Handler processes one job.
type Handler func(ctx context.Context, job core.ReviewJob) error

// Options configures a Queue.
type Options struct {
	// MaxPending bounds waiting jobs; zero means unbounded.
	MaxPending int
	Logger     logging.Logger
	// OnJob observes every finished job.
	OnJob func(ctx context.Context, job core.ReviewJob, dur time.Duration, err error)
}

// Queue is an in-process FIFO with one consumer.
type Queue struct {
	mu      sync.Mutex
	pending []core.ReviewJob
	closed  bool
	started bool

	notify chan struct{}
	done   chan struct{}
	opts   Options
}

// New creates an idle queue. Jobs may be enqueued before Start.
func New(optFns ...func(o *Options)) *Queue {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Queue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		opts:   opts,
	}
}

// Enqueue appends job without blocking.
func (q *Queue) Enqueue(job core.ReviewJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if q.opts.MaxPending > 0 && len(q.pending) >= q.opts.MaxPending {
		return fmt.Errorf("%w: %d pending", ErrQueueFull, len(q.pending))
	}
	q.pending = append(q.pending, job)
	q.signal()

	return nil
}

// signal wakes the consumer; caller holds q.mu.
func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of jobs waiting to be handled.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Start launches the consumer. It runs until Shutdown has drained the queue
// or ctx is cancelled.
func (q *Queue) Start(ctx context.Context, h Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return ErrAlreadyStarted
	}
	if q.closed {
		return ErrClosed
	}
	q.started = true

	go q.run(ctx, h)

	return nil
}

func (q *Queue) run(ctx context.Context, h Handler) {
	defer close(q.done)

	for {
		job, ok, closed := q.next()
		if ok {
			q.process(ctx, h, job)
			continue
		}
		if closed {
			return
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			q.opts.Logger.Warn("review queue stopped", "pending", q.Len(), "error", ctx.Err().Error())
			return
		}
	}
}

func (q *Queue) next() (job core.ReviewJob, ok bool, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return core.ReviewJob{}, false, q.closed
	}
	job = q.pending[0]
	q.pending[0] = core.ReviewJob{}
	q.pending = q.pending[1:]

	return job, true, q.closed
}

func (q *Queue) process(ctx context.Context, h Handler, job core.ReviewJob) {
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("review job panicked: %v", r)
			}
		}()
		return h(ctx, job)
	}()

	dur := time.Since(start)
	logging.LogJob(q.opts.Logger, job.ReviewID, dur, err)
	if q.opts.OnJob != nil {
		q.opts.OnJob(ctx, job, dur, err)
	}
}

// Shutdown stops intake and waits until the consumer has drained every
// pending job, or until ctx expires. Shutdown of a queue that was never
// started returns immediately.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	started := q.started
	q.signal()
	q.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
