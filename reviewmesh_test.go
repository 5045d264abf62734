package reviewmesh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hupe1980/reviewmesh/cache"
	"github.com/hupe1980/reviewmesh/config"
	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/internal/testutil"
	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/queue"
	"github.com/hupe1980/reviewmesh/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var passwordDiff = testutil.NewDiffBuilder().
	File("app/config.py").Hunk(1, 1).
	Context("import os", "").
	Add(`password = "abc123"`).
	Build()

func drain(t *testing.T, m *ReviewMesh) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
}

func secretComments(t *testing.T, st core.ReviewStore, id string) []core.Comment {
	t.Helper()
	comments, err := st.ListComments(context.Background(), id)
	require.NoError(t, err)
	var out []core.Comment
	for _, c := range comments {
		if c.Category == "secrets" {
			out = append(out, c)
		}
	}
	return out
}

func TestReviewMesh_SubmitAndComplete(t *testing.T) {
	ctx := context.Background()
	m := New()
	require.NoError(t, m.Start(ctx))

	meta := map[string]any{"source": "test"}
	r, err := m.Submit(ctx, passwordDiff, meta)
	require.NoError(t, err)
	assert.Equal(t, core.ReviewPending, r.Status)
	assert.NotContains(t, meta, core.MetadataDiff)

	drain(t, m)

	got, err := m.Store().GetReview(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ReviewCompleted, got.Status)
	assert.Equal(t, "test", got.Metadata["source"])
	assert.Equal(t, passwordDiff, got.Metadata[core.MetadataDiff])

	secrets := secretComments(t, m.Store(), r.ID)
	require.Len(t, secrets, 1)
	assert.Equal(t, []string{"security_reviewer"}, secrets[0].Contributors)
}

func TestReviewMesh_SubmitAfterShutdown(t *testing.T) {
	ctx := context.Background()
	m := New()
	require.NoError(t, m.Start(ctx))
	drain(t, m)

	r, err := m.Submit(ctx, passwordDiff, nil)
	require.ErrorIs(t, err, queue.ErrClosed)
	assert.Equal(t, core.ReviewFailed, r.Status)
	assert.Equal(t, queue.ErrClosed.Error(), r.Error)
}

func TestReviewMesh_Review(t *testing.T) {
	res, err := New().Review(context.Background(), passwordDiff)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changes)
	assert.Len(t, res.Traces, 4)
}

func TestReviewMesh_SubmitKeepsCallerDiff(t *testing.T) {
	ctx := context.Background()
	m := New()
	require.NoError(t, m.Start(ctx))

	r, err := m.Submit(ctx, passwordDiff, map[string]any{core.MetadataDiff: "elsewhere"})
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", r.Metadata[core.MetadataDiff])
	drain(t, m)
}

func TestReviewMesh_ReviewPlainUnifiedDiff(t *testing.T) {
	plain := "--- a/app.py\n+++ b/app.py\n@@ -1,1 +1,1 @@\n-old\n+password = \"abc123\"\n"

	res, err := New().Review(context.Background(), plain)
	require.NoError(t, err)

	var paths []string
	for _, c := range res.Comments {
		if c.Category == "secrets" {
			paths = append(paths, c.FilePath)
		}
	}
	assert.Equal(t, []string{"app.py"}, paths)
}

func TestFromConfig_Defaults(t *testing.T) {
	ctx := context.Background()
	m, err := FromConfig(ctx, config.Default(), func(o *Options) { o.Logger = logging.NoOpLogger{} })
	require.NoError(t, err)
	assert.Nil(t, m.MetricsHandler())
	require.NoError(t, m.Start(ctx))

	r, err := m.Submit(ctx, passwordDiff, nil)
	require.NoError(t, err)
	drain(t, m)

	got, err := m.Store().GetReview(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ReviewCompleted, got.Status)
}

func TestFromConfig_FullStack(t *testing.T) {
	ctx := context.Background()
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "policy.md"), []byte("password values come from the vault"), 0o600))

	cfg := config.Default()
	cfg.Generation.Backend = "mock"
	cfg.Generation.MaxCalls = 100
	cfg.Agents.Generative = []string{"code_reviewer", "security_reviewer", "style_reviewer"}
	cfg.Orchestrator.Mode = "batched"
	cfg.Cache.Backend = "lru"
	cfg.Store.Driver = "sqlite"
	cfg.Store.DSN = filepath.Join(t.TempDir(), "reviews.db")
	cfg.Retrieval.Backend = "keyword"
	cfg.Retrieval.Paths = []string{docs}
	cfg.Metrics.Enabled = true
	cfg.Logging.Level = "error"

	m, err := FromConfig(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, m.Store())
	require.NotNil(t, m.MetricsHandler())
	require.NoError(t, m.Start(ctx))

	first, err := m.Submit(ctx, passwordDiff, nil)
	require.NoError(t, err)
	second, err := m.Submit(ctx, passwordDiff, nil)
	require.NoError(t, err)

	// Scrape before Shutdown releases the provider.
	require.Eventually(t, func() bool {
		got, err := m.Store().GetReview(ctx, second.ID)
		return err == nil && got.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "reviewmesh_reviews_total")
	assert.Contains(t, rec.Body.String(), `result="miss"`)

	st := m.Store()
	for _, id := range []string{first.ID, second.ID} {
		got, err := st.GetReview(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.ReviewCompleted, got.Status)
		// Mock output is empty, so the security rules still produce the finding.
		assert.Len(t, secretComments(t, st, id), 1)
	}

	drain(t, m)
}

func TestFromConfig_Invalid(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Backend = "memcached"
	_, err := FromConfig(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestFromConfig_UnknownAgent(t *testing.T) {
	cfg := config.Default()
	cfg.Agents.Enabled = []string{"linter"}
	_, err := FromConfig(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewGenerator(t *testing.T) {
	cfg := config.Default()
	gen, closers, err := NewGenerator(cfg, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, gen)
	assert.Empty(t, closers)

	s := miniredis.RunT(t)
	cfg.Generation.Backend = "mock"
	cfg.Generation.Model = "tiny"
	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisURL = "redis://" + s.Addr()

	gen, closers, err = NewGenerator(cfg, logging.NoOpLogger{}, nil)
	require.NoError(t, err)
	require.Len(t, closers, 1)
	defer func() { _ = closers[0].Close() }()
	assert.IsType(t, &cache.Generator{}, gen)
	assert.Equal(t, "tiny", gen.Info().Name)

	cfg.Cache.Backend = "none"
	cfg.Generation.Backend = "ollama"
	cfg.Generation.BaseURL = "://bad"
	_, _, err = NewGenerator(cfg, nil, nil)
	assert.Error(t, err)
}

func TestNewRetriever(t *testing.T) {
	r, err := NewRetriever(context.Background(), config.RetrievalConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = NewRetriever(context.Background(), config.RetrievalConfig{Backend: "keyword", Paths: []string{filepath.Join(t.TempDir(), "missing")}})
	assert.Error(t, err)
}
