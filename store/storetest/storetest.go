// Package storetest provides a behavioural test suite shared by every
// core.ReviewStore implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh store returned by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) core.ReviewStore) {
	t.Helper()

	t.Run("CreateAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r, err := s.CreateReview(ctx, map[string]any{"repository": "acme/api", "pr": float64(7)})
		require.NoError(t, err)
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, core.ReviewPending, r.Status)
		assert.False(t, r.CreatedAt.IsZero())

		got, err := s.GetReview(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.ID, got.ID)
		assert.Equal(t, core.ReviewPending, got.Status)
		assert.Equal(t, "acme/api", got.Metadata["repository"])
		assert.EqualValues(t, 7, got.Metadata["pr"])
	})

	t.Run("UnknownReview", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetReview(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, core.ErrReviewNotFound)
		assert.ErrorIs(t, s.MarkInProgress(ctx, "00000000-0000-0000-0000-000000000000"), core.ErrReviewNotFound)
		assert.ErrorIs(t, s.MarkFailed(ctx, "00000000-0000-0000-0000-000000000000", "x"), core.ErrReviewNotFound)
		_, err = s.AddComments(ctx, "00000000-0000-0000-0000-000000000000", nil)
		assert.ErrorIs(t, err, core.ErrReviewNotFound)
		assert.ErrorIs(t, s.AddTraces(ctx, "00000000-0000-0000-0000-000000000000", nil), core.ErrReviewNotFound)
		_, err = s.ListComments(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, core.ErrReviewNotFound)
	})

	t.Run("Lifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r, err := s.CreateReview(ctx, nil)
		require.NoError(t, err)

		require.NoError(t, s.MarkInProgress(ctx, r.ID))
		got, err := s.GetReview(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, core.ReviewInProgress, got.Status)

		require.NoError(t, s.CompleteReview(ctx, r.ID))
		got, err = s.GetReview(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, core.ReviewCompleted, got.Status)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	})

	t.Run("MarkFailed", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r, err := s.CreateReview(ctx, map[string]any{"source": "cli"})
		require.NoError(t, err)
		require.NoError(t, s.MarkFailed(ctx, r.ID, "diff too large"))

		got, err := s.GetReview(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, core.ReviewFailed, got.Status)
		assert.Equal(t, "diff too large", got.Error)
		assert.Equal(t, "diff too large", got.Metadata["error"])
		assert.Equal(t, "cli", got.Metadata["source"])
	})

	t.Run("CommentsAndTraces", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r, err := s.CreateReview(ctx, nil)
		require.NoError(t, err)

		in := []core.AggregatedComment{
			{
				Finding: core.Finding{FilePath: "a.py", LineNumber: 3, Severity: core.SeverityHigh, Category: "secrets",
					Description: "Potential secret material introduced.", Suggestion: "Move it."},
				AgentID:      "security_reviewer",
				Contributors: []string{"security_reviewer", "code_reviewer"},
			},
			{
				Finding:      core.Finding{FilePath: "b.py", Severity: core.SeverityLow, Category: "style", Description: "tab"},
				AgentID:      "style_reviewer",
				Contributors: []string{"style_reviewer"},
			},
		}
		stored, err := s.AddComments(ctx, r.ID, in)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.NotEmpty(t, stored[0].ID)
		assert.NotEqual(t, stored[0].ID, stored[1].ID)
		assert.Equal(t, r.ID, stored[0].ReviewID)

		listed, err := s.ListComments(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, in[0], listed[0].AggregatedComment)
		assert.Equal(t, in[1], listed[1].AggregatedComment)
		assert.Equal(t, stored[0].ID, listed[0].ID)

		start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		traces := []core.AgentTrace{
			{AgentID: "code_reviewer", StartedAt: start, CompletedAt: start.Add(time.Second), InputSummary: "2 diff changes", OutputSummary: "0 findings"},
			{AgentID: "security_reviewer", StartedAt: start, CompletedAt: start.Add(2 * time.Second), InputSummary: "2 diff changes", OutputSummary: "1 findings"},
		}
		require.NoError(t, s.AddTraces(ctx, r.ID, traces))

		gotTraces, err := s.ListTraces(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, gotTraces, 2)
		assert.Equal(t, "security_reviewer", gotTraces[1].AgentID)
		assert.True(t, gotTraces[1].CompletedAt.Equal(traces[1].CompletedAt))
		assert.Equal(t, "1 findings", gotTraces[1].OutputSummary)
	})

	t.Run("ListReviews", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.CreateReview(ctx, nil)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
		second, err := s.CreateReview(ctx, nil)
		require.NoError(t, err)

		all, err := s.ListReviews(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, first.ID, all[0].ID)
		assert.Equal(t, second.ID, all[1].ID)
	})

	t.Run("ReturnedValuesAreCopies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r, err := s.CreateReview(ctx, map[string]any{"k": "v"})
		require.NoError(t, err)
		r.Metadata["k"] = "mutated"

		got, err := s.GetReview(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, "v", got.Metadata["k"])
	})
	t.Run("Feedback", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.AddFeedback(ctx, "00000000-0000-0000-0000-000000000000", core.Feedback{CommentID: "c", Rating: 1})
		assert.ErrorIs(t, err, core.ErrReviewNotFound)
		_, err = s.ListFeedback(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, core.ErrReviewNotFound)

		r, err := s.CreateReview(ctx, nil)
		require.NoError(t, err)

		empty, err := s.ListFeedback(ctx, r.ID)
		require.NoError(t, err)
		assert.Empty(t, empty)

		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		later, err := s.AddFeedback(ctx, r.ID, core.Feedback{CommentID: "c1", Rating: -1, UserID: "bob", CreatedAt: base.Add(time.Minute)})
		require.NoError(t, err)
		assert.NotEmpty(t, later.ID)
		assert.Equal(t, r.ID, later.ReviewID)

		earlier, err := s.AddFeedback(ctx, r.ID, core.Feedback{CommentID: "c1", Rating: 1, CreatedAt: base})
		require.NoError(t, err)

		stamped, err := s.AddFeedback(ctx, r.ID, core.Feedback{CommentID: "c2"})
		require.NoError(t, err)
		assert.False(t, stamped.CreatedAt.IsZero())

		got, err := s.ListFeedback(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, earlier.ID, got[0].ID)
		assert.Equal(t, later.ID, got[1].ID)
		assert.Equal(t, "bob", got[1].UserID)
		assert.Equal(t, -1, got[1].Rating)
		assert.Equal(t, r.ID, got[1].ReviewID)
		assert.Equal(t, "c2", got[2].CommentID)
	})
}
