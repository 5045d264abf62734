package preference

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func comment(id, agentID, description string) core.Comment {
	return core.Comment{ID: id, AggregatedComment: core.AggregatedComment{
		Finding: core.Finding{Description: description},
		AgentID: agentID,
	}}
}

func rating(commentID string, r int, at time.Time) core.Feedback {
	return core.Feedback{CommentID: commentID, Rating: r, CreatedAt: at}
}

func TestPrompt(t *testing.T) {
	assert.Equal(t, "Review this code diff:\n\n+x", Prompt("+x\n"))
	assert.Equal(t, "Review this code diff:", Prompt(""))
}

func TestFromFeedback(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	comments := []core.Comment{
		comment("c1", "security_reviewer", "secret"),
		comment("c2", "style_reviewer", "tab"),
		comment("c3", "code_reviewer", "print"),
	}

	t.Run("LatestRatingWins", func(t *testing.T) {
		feedback := []core.Feedback{
			rating("c2", -1, base.Add(2*time.Minute)),
			rating("c1", -1, base),
			rating("c1", 1, base.Add(time.Minute)),
		}
		pairs := FromFeedback("r1", "prompt", comments, feedback, DefaultFeedbackLimit)
		require.Len(t, pairs, 1)
		assert.Equal(t, Pair{
			ReviewID:      "r1",
			Prompt:        "prompt",
			Chosen:        "secret",
			Rejected:      "tab",
			ChosenAgent:   "security_reviewer",
			RejectedAgent: "style_reviewer",
			Ranker:        "feedback",
		}, pairs[0])
	})

	t.Run("CrossProductOrderAndLimit", func(t *testing.T) {
		feedback := []core.Feedback{
			rating("c1", 1, base),
			rating("c3", 1, base.Add(time.Second)),
			rating("c2", -1, base.Add(2*time.Second)),
		}
		pairs := FromFeedback("r1", "p", comments, feedback, 10)
		require.Len(t, pairs, 2)
		assert.Equal(t, "secret", pairs[0].Chosen)
		assert.Equal(t, "print", pairs[1].Chosen)

		assert.Len(t, FromFeedback("r1", "p", comments, feedback, 1), 1)
		assert.Empty(t, FromFeedback("r1", "p", comments, feedback, 0))
	})

	t.Run("OneSidedOrUnknown", func(t *testing.T) {
		assert.Empty(t, FromFeedback("r1", "p", comments, nil, 10))
		assert.Empty(t, FromFeedback("r1", "p", comments, []core.Feedback{
			rating("c1", 1, base), rating("c2", 0, base),
		}, 10))
		assert.Empty(t, FromFeedback("r1", "p", comments, []core.Feedback{
			rating("c1", 1, base), rating("missing", -1, base),
		}, 10))
	})
}

func seedReview(t *testing.T, st core.ReviewStore, diffText string) string {
	t.Helper()
	ctx := context.Background()

	r, err := st.CreateReview(ctx, map[string]any{core.MetadataDiff: diffText})
	require.NoError(t, err)
	stored, err := st.AddComments(ctx, r.ID, []core.AggregatedComment{
		{Finding: core.Finding{Description: "good"}, AgentID: "security_reviewer"},
		{Finding: core.Finding{Description: "bad"}, AgentID: "style_reviewer"},
	})
	require.NoError(t, err)
	_, err = st.AddFeedback(ctx, r.ID, core.Feedback{CommentID: stored[0].ID, Rating: 1})
	require.NoError(t, err)
	_, err = st.AddFeedback(ctx, r.ID, core.Feedback{CommentID: stored[1].ID, Rating: -1})
	require.NoError(t, err)
	return r.ID
}

func TestExportReview(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	id := seedReview(t, st, "+x\n")

	pairs, err := ExportReview(ctx, st, id, DefaultFeedbackLimit)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, id, pairs[0].ReviewID)
	assert.Equal(t, "Review this code diff:\n\n+x", pairs[0].Prompt)
	assert.Equal(t, "good", pairs[0].Chosen)
	assert.Equal(t, "bad", pairs[0].Rejected)

	_, err = ExportReview(ctx, st, "missing", DefaultFeedbackLimit)
	assert.ErrorIs(t, err, core.ErrReviewNotFound)
}

func TestExportAll(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	first := seedReview(t, st, "+a")
	_, err := st.CreateReview(ctx, nil)
	require.NoError(t, err)
	second := seedReview(t, st, "+b")

	pairs, err := ExportAll(ctx, st, DefaultExportLimit)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.ElementsMatch(t, []string{first, second}, []string{pairs[0].ReviewID, pairs[1].ReviewID})

	limited, err := ExportAll(ctx, st, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
