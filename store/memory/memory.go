// Package memory provides a volatile core.ReviewStore.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/reviewmesh/core"
)

// Store keeps reviews, comments, traces and feedback in process local maps. It is
// safe for concurrent access and best suited for tests, the CLI and single
// process deployments. Returned values are copies so callers cannot mutate
// internal state.
type Store struct {
	mu       sync.RWMutex
	reviews  map[string]*core.Review
	comments map[string][]core.Comment
	traces   map[string][]core.AgentTrace
	feedback map[string][]core.Feedback
	now      func() time.Time
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		reviews:  make(map[string]*core.Review),
		comments: make(map[string][]core.Comment),
		traces:   make(map[string][]core.AgentTrace),
		feedback: make(map[string][]core.Feedback),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateReview stores a new pending review.
func (s *Store) CreateReview(_ context.Context, metadata map[string]any) (core.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r := &core.Review{
		ID:        uuid.NewString(),
		Status:    core.ReviewPending,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  maps.Clone(metadata),
	}
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	s.reviews[r.ID] = r

	return r.Clone(), nil
}

// GetReview returns a copy of the review.
func (s *Store) GetReview(_ context.Context, id string) (core.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reviews[id]
	if !ok {
		return core.Review{}, core.ErrReviewNotFound
	}
	return r.Clone(), nil
}

// ListReviews returns all reviews ordered by creation time.
func (s *Store) ListReviews(_ context.Context) ([]core.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// MarkInProgress moves the review to in_progress.
func (s *Store) MarkInProgress(_ context.Context, id string) error {
	return s.update(id, func(r *core.Review) { r.Status = core.ReviewInProgress })
}

// CompleteReview moves the review to completed.
func (s *Store) CompleteReview(_ context.Context, id string) error {
	return s.update(id, func(r *core.Review) { r.Status = core.ReviewCompleted })
}

// MarkFailed moves the review to failed and records reason.
func (s *Store) MarkFailed(_ context.Context, id string, reason string) error {
	return s.update(id, func(r *core.Review) {
		r.Status = core.ReviewFailed
		r.Error = reason
		r.Metadata["error"] = reason
	})
}

func (s *Store) update(id string, fn func(r *core.Review)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[id]
	if !ok {
		return core.ErrReviewNotFound
	}
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	fn(r)
	r.UpdatedAt = s.now()

	return nil
}

// AddComments appends comments to the review and returns them with ids assigned.
func (s *Store) AddComments(_ context.Context, id string, comments []core.AggregatedComment) ([]core.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[id]; !ok {
		return nil, core.ErrReviewNotFound
	}
	out := make([]core.Comment, 0, len(comments))
	for _, c := range comments {
		c.Contributors = append([]string(nil), c.Contributors...)
		out = append(out, core.Comment{ID: uuid.NewString(), ReviewID: id, AggregatedComment: c})
	}
	s.comments[id] = append(s.comments[id], out...)

	return cloneComments(out), nil
}

// AddTraces appends traces to the review.
func (s *Store) AddTraces(_ context.Context, id string, traces []core.AgentTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[id]; !ok {
		return core.ErrReviewNotFound
	}
	s.traces[id] = append(s.traces[id], traces...)

	return nil
}

// ListComments returns the review's comments in insertion order.
func (s *Store) ListComments(_ context.Context, id string) ([]core.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.reviews[id]; !ok {
		return nil, core.ErrReviewNotFound
	}
	return cloneComments(s.comments[id]), nil
}

// ListTraces returns the review's traces in insertion order.
func (s *Store) ListTraces(_ context.Context, id string) ([]core.AgentTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.reviews[id]; !ok {
		return nil, core.ErrReviewNotFound
	}
	return append([]core.AgentTrace{}, s.traces[id]...), nil
}

// AddFeedback appends f to the review's feedback.
func (s *Store) AddFeedback(_ context.Context, id string, f core.Feedback) (core.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[id]; !ok {
		return core.Feedback{}, core.ErrReviewNotFound
	}
	f.ID = uuid.NewString()
	f.ReviewID = id
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	s.feedback[id] = append(s.feedback[id], f)

	return f, nil
}

// ListFeedback returns the review's feedback ordered by creation time, ties
// in insertion order.
func (s *Store) ListFeedback(_ context.Context, id string) ([]core.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.reviews[id]; !ok {
		return nil, core.ErrReviewNotFound
	}
	out := append([]core.Feedback{}, s.feedback[id]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func cloneComments(in []core.Comment) []core.Comment {
	out := make([]core.Comment, len(in))
	for i, c := range in {
		c.Contributors = append([]string(nil), c.Contributors...)
		out[i] = c
	}
	return out
}
