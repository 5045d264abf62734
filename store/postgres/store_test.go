package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/store/storetest"
	"github.com/stretchr/testify/require"
)

var _ core.ReviewStore = (*Store)(nil)

func TestStore(t *testing.T) {
	dsn := os.Getenv("REVIEWMESH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("REVIEWMESH_TEST_POSTGRES_DSN not set, skipping postgres test")
	}

	storetest.Run(t, func(t *testing.T) core.ReviewStore {
		ctx := context.Background()
		st, err := Open(ctx, dsn)
		require.NoError(t, err)
		_, err = st.Pool.Exec(ctx, `TRUNCATE reviews CASCADE`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		return st
	})
}

func TestOpenRequiresDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}
