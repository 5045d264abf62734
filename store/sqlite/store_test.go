package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.ReviewStore = (*Store)(nil)

func open(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.ReviewStore { return open(t) })
}

func TestMemoryDSN(t *testing.T) {
	st, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	r, err := st.CreateReview(context.Background(), nil)
	require.NoError(t, err)
	_, err = st.GetReview(context.Background(), r.ID)
	require.NoError(t, err)
}

func TestMigrateIdempotent(t *testing.T) {
	st := open(t)
	ctx := context.Background()

	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Migrate(ctx))

	var n int
	require.NoError(t, st.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reviews.db")
	ctx := context.Background()

	st, err := Open(ctx, path)
	require.NoError(t, err)
	r, err := st.CreateReview(ctx, map[string]any{"pr": "42"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	got, err := st.GetReview(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "42", got.Metadata["pr"])
}

func TestOpenEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}
