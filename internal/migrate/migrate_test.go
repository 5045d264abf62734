package migrate

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_comments.sql": {Data: []byte("CREATE TABLE b;")},
		"m/001_init.sql":     {Data: []byte("CREATE TABLE a;")},
		"m/README.md":        {Data: []byte("ignored")},
	}
	migs, err := Load(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "CREATE TABLE a;", migs[0].SQL)
	assert.Equal(t, "002_comments.sql", migs[1].Name)

	pending := Pending(migs, map[int]bool{1: true})
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(fstest.MapFS{"m/init.sql": {Data: []byte("x")}}, "m")
	assert.Error(t, err)

	_, err = Load(fstest.MapFS{
		"m/001_a.sql": {Data: []byte("x")},
		"m/001_b.sql": {Data: []byte("y")},
	}, "m")
	assert.ErrorContains(t, err, "duplicate")
}
