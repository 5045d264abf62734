package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/reviewmesh/agent"
	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/internal/testutil"
	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/orchestrator"
	"github.com/hupe1980/reviewmesh/queue"
	"github.com/hupe1980/reviewmesh/retrieval"
	"github.com/hupe1980/reviewmesh/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var passwordDiff = testutil.NewDiffBuilder().
	File("app/config.py").Hunk(1, 1).
	Context("import os", "").
	Add(`password = "abc123"`).
	Build()

func defaultPipeline(optFns ...func(o *Options)) *Pipeline {
	return New(orchestrator.New(agent.Defaults()), optFns...)
}

func TestRun_PasswordScenario(t *testing.T) {
	res, err := defaultPipeline().Run(context.Background(), passwordDiff)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changes)

	var secrets []core.AggregatedComment
	for _, c := range res.Comments {
		if c.Category == "secrets" {
			secrets = append(secrets, c)
		}
	}
	require.Len(t, secrets, 1)
	assert.Equal(t, core.SeverityHigh, secrets[0].Severity)
	assert.Equal(t, "app/config.py", secrets[0].FilePath)
	assert.Equal(t, 3, secrets[0].LineNumber)
	assert.Equal(t, "Potential secret material introduced.", secrets[0].Description)
	assert.Equal(t, []string{"security_reviewer"}, secrets[0].Contributors)
	assert.Len(t, res.Traces, 4)
}

func TestRun_MalformedDiff(t *testing.T) {
	res, err := defaultPipeline().Run(context.Background(), "not a diff at all")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Changes)
	assert.Empty(t, res.Comments)
	require.Len(t, res.Traces, 1)
	assert.Equal(t, orchestrator.OrchestratorAgentID, res.Traces[0].AgentID)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := defaultPipeline().Run(ctx, passwordDiff)
	require.ErrorIs(t, err, context.Canceled)
}

// contextAgent records the repository context it was given.
type contextAgent struct {
	agent.BaseAgent
	seen string
}

func (a *contextAgent) Analyze(_ context.Context, _ []core.DiffChange, repoContext string) []core.Finding {
	a.seen = repoContext
	return []core.Finding{}
}

type failingRetriever struct{}

func (failingRetriever) Query(context.Context, string, int) ([]core.ContextChunk, error) {
	return nil, errors.New("index offline")
}

func TestRun_RetrievedContext(t *testing.T) {
	idx := retrieval.NewKeywordIndex()
	idx.Add("1", "password policy: use the vault", nil)
	idx.Add("2", "unrelated text", nil)
	idx.Add("3", "config loader reads env", nil)

	a := &contextAgent{BaseAgent: agent.NewBaseAgent("ctx", "Ctx")}
	p := New(orchestrator.New([]core.Agent{a}), func(o *Options) { o.Retriever = idx })

	_, err := p.Run(context.Background(), passwordDiff)
	require.NoError(t, err)
	assert.Equal(t, "password policy: use the vault\nconfig loader reads env", a.seen)

	a.seen = "unset"
	p = New(orchestrator.New([]core.Agent{a}), func(o *Options) { o.Retriever = failingRetriever{} })
	_, err = p.Run(context.Background(), passwordDiff)
	require.NoError(t, err)
	assert.Equal(t, "", a.seen)
}

func TestHandler_CompletesReview(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	r, err := st.CreateReview(ctx, nil)
	require.NoError(t, err)

	h := defaultPipeline().Handler(st)
	require.NoError(t, h(ctx, core.ReviewJob{ReviewID: r.ID, DiffText: passwordDiff}))

	got, err := st.GetReview(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ReviewCompleted, got.Status)

	comments, err := st.ListComments(ctx, r.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, comments)
	traces, err := st.ListTraces(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, traces, 4)
}

func TestHandler_LogsWithReviewID(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	r, err := st.CreateReview(ctx, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json", Output: &buf})
	h := defaultPipeline(func(o *Options) { o.Logger = logger }).Handler(st)
	require.NoError(t, h(ctx, core.ReviewJob{ReviewID: r.ID, DiffText: passwordDiff}))

	assert.Contains(t, buf.String(), `"msg":"Review analyzed"`)
	assert.Contains(t, buf.String(), `"review_id":"`+r.ID+`"`)
}

func TestHandler_UnknownReview(t *testing.T) {
	h := defaultPipeline().Handler(memory.New())
	err := h(context.Background(), core.ReviewJob{ReviewID: "missing"})
	assert.ErrorIs(t, err, core.ErrReviewNotFound)
}

// flakyStore fails or panics while storing comments for selected reviews.
type flakyStore struct {
	*memory.Store
	fail  map[string]bool
	panic map[string]bool
}

func (s *flakyStore) AddComments(ctx context.Context, id string, c []core.AggregatedComment) ([]core.Comment, error) {
	if s.panic[id] {
		panic("disk on fire")
	}
	if s.fail[id] {
		return nil, errors.New("write rejected")
	}
	return s.Store.AddComments(ctx, id, c)
}

func TestHandler_FailureMarksReviewFailed(t *testing.T) {
	ctx := context.Background()
	st := &flakyStore{Store: memory.New(), fail: map[string]bool{}, panic: map[string]bool{}}

	failed, err := st.CreateReview(ctx, nil)
	require.NoError(t, err)
	panicked, err := st.CreateReview(ctx, nil)
	require.NoError(t, err)
	st.fail[failed.ID] = true
	st.panic[panicked.ID] = true

	h := defaultPipeline().Handler(st)

	err = h(ctx, core.ReviewJob{ReviewID: failed.ID, DiffText: passwordDiff})
	require.Error(t, err)
	got, err := st.GetReview(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ReviewFailed, got.Status)
	assert.Equal(t, "store comments: write rejected", got.Error)

	err = h(ctx, core.ReviewJob{ReviewID: panicked.ID, DiffText: passwordDiff})
	require.Error(t, err)
	got, err = st.GetReview(ctx, panicked.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ReviewFailed, got.Status)
	assert.Contains(t, got.Metadata["error"], "disk on fire")
}

func TestHandler_QueueIsolatesFailedJob(t *testing.T) {
	ctx := context.Background()
	st := &flakyStore{Store: memory.New(), fail: map[string]bool{}}

	var ids []string
	for range 3 {
		r, err := st.CreateReview(ctx, nil)
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	st.fail[ids[1]] = true

	q := queue.New()
	for _, id := range ids {
		require.NoError(t, q.Enqueue(core.ReviewJob{ReviewID: id, DiffText: passwordDiff}))
	}
	require.NoError(t, q.Start(ctx, defaultPipeline().Handler(st)))

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(shutdownCtx))

	want := []core.ReviewStatus{core.ReviewCompleted, core.ReviewFailed, core.ReviewCompleted}
	for i, id := range ids {
		got, err := st.GetReview(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want[i], got.Status, "review %d", i)
	}
}
