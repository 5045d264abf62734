package core

import (
	"context"
	"errors"
	"maps"
	"time"
)

// ErrReviewNotFound is returned by stores for unknown review ids.
var ErrReviewNotFound = errors.New("review not found")

// ReviewStatus is the lifecycle state of a Review.
type ReviewStatus string

const (
	ReviewPending    ReviewStatus = "pending"
	ReviewInProgress ReviewStatus = "in_progress"
	ReviewCompleted  ReviewStatus = "completed"
	ReviewFailed     ReviewStatus = "failed"
)

// IsTerminal reports whether no further transition is expected.
func (s ReviewStatus) IsTerminal() bool {
	return s == ReviewCompleted || s == ReviewFailed
}

// Review is a persisted request to review one diff.
type Review struct {
	ID        string         `json:"id"`
	Status    ReviewStatus   `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	// Error holds the failure reason when Status is ReviewFailed.
	Error string `json:"error,omitempty"`
}

// Clone returns a deep copy of the top-level metadata map.
func (r Review) Clone() Review {
	r.Metadata = maps.Clone(r.Metadata)
	return r
}

// Comment is an AggregatedComment persisted for a review.
type Comment struct {
	ID       string `json:"id"`
	ReviewID string `json:"review_id"`
	AggregatedComment
}

// MetadataDiff is the review metadata key holding the submitted diff text.
const MetadataDiff = "diff"

// ReviewJob is one unit of work for the review queue.
type ReviewJob struct {
	ReviewID string `json:"review_id"`
	DiffText string `json:"diff_text"`
}

// ReviewStore persists reviews together with their comments and traces.
// Implementations serialize their own writes.
type ReviewStore interface {
	CreateReview(ctx context.Context, metadata map[string]any) (Review, error)
	GetReview(ctx context.Context, id string) (Review, error)
	ListReviews(ctx context.Context) ([]Review, error)
	MarkInProgress(ctx context.Context, id string) error
	CompleteReview(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	AddComments(ctx context.Context, id string, comments []AggregatedComment) ([]Comment, error)
	AddTraces(ctx context.Context, id string, traces []AgentTrace) error
	ListComments(ctx context.Context, id string) ([]Comment, error)
	ListTraces(ctx context.Context, id string) ([]AgentTrace, error)
	// AddFeedback stores f against review id, assigning ID, ReviewID and,
	// when zero, CreatedAt.
	AddFeedback(ctx context.Context, id string, f Feedback) (Feedback, error)
	// ListFeedback returns the review's feedback oldest first.
	ListFeedback(ctx context.Context, id string) ([]Feedback, error)
	Close() error
}
