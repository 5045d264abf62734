package preference

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/reviewmesh/core"
)

const (
	// DefaultFeedbackLimit caps pairs built from one review.
	DefaultFeedbackLimit = 20
	// DefaultExportLimit caps pairs exported across all reviews.
	DefaultExportLimit = 200
)

// Prompt is the instruction a preference pair answers.
func Prompt(diffText string) string {
	return strings.TrimSpace("Review this code diff:\n\n" + diffText)
}

// FromFeedback pairs every positively rated comment with every negatively
// rated one, up to limit pairs. Only the latest rating per comment counts,
// and ratings of comments not in comments are ignored.
func FromFeedback(reviewID, prompt string, comments []core.Comment, feedback []core.Feedback, limit int) []Pair {
	out := []Pair{}
	if limit <= 0 || len(feedback) == 0 {
		return out
	}

	byID := make(map[string]core.Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}

	ordered := make([]core.Feedback, len(feedback))
	copy(ordered, feedback)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].CreatedAt.Before(ordered[j].CreatedAt) })

	latest := map[string]int{}
	var order []string
	for _, f := range ordered {
		if _, seen := latest[f.CommentID]; !seen {
			order = append(order, f.CommentID)
		}
		latest[f.CommentID] = f.Rating
	}

	var positive, negative []core.Comment
	for _, id := range order {
		c, ok := byID[id]
		if !ok {
			continue
		}
		switch r := latest[id]; {
		case r > 0:
			positive = append(positive, c)
		case r < 0:
			negative = append(negative, c)
		}
	}

	for _, p := range positive {
		for _, n := range negative {
			out = append(out, Pair{
				ReviewID:      reviewID,
				Prompt:        prompt,
				Chosen:        p.Description,
				Rejected:      n.Description,
				ChosenAgent:   p.AgentID,
				RejectedAgent: n.AgentID,
				Ranker:        "feedback",
			})
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// ExportReview builds feedback pairs for one stored review. The prompt uses
// the diff kept under core.MetadataDiff.
func ExportReview(ctx context.Context, st core.ReviewStore, id string, limit int) ([]Pair, error) {
	r, err := st.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	feedback, err := st.ListFeedback(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	if len(feedback) == 0 {
		return []Pair{}, nil
	}
	comments, err := st.ListComments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	diffText, _ := r.Metadata[core.MetadataDiff].(string)
	return FromFeedback(id, Prompt(diffText), comments, feedback, limit), nil
}

// ExportAll concatenates ExportReview over every stored review, oldest
// first, and truncates the result to limit pairs.
func ExportAll(ctx context.Context, st core.ReviewStore, limit int) ([]Pair, error) {
	out := []Pair{}
	if limit <= 0 {
		return out, nil
	}
	reviews, err := st.ListReviews(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range reviews {
		pairs, err := ExportReview(ctx, st, r.ID, limit-len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, pairs...)
		if len(out) >= limit {
			return out[:limit], nil
		}
	}
	return out, nil
}
