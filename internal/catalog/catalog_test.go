package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown file is changed", func(t *testing.T) {
		c := openTestCatalog(t)
		assert.True(t, c.Changed(ctx, "src/main.go", "abc"))
	})

	t.Run("recorded file with same hash is unchanged", func(t *testing.T) {
		c := openTestCatalog(t)
		require.NoError(t, c.Record(ctx, "src/main.go", "abc", 1))
		assert.False(t, c.Changed(ctx, "src/main.go", "abc"))
	})

	t.Run("hash difference means changed", func(t *testing.T) {
		c := openTestCatalog(t)
		require.NoError(t, c.Record(ctx, "src/main.go", "abc", 1))
		assert.True(t, c.Changed(ctx, "src/main.go", "def"))
	})

	t.Run("record replaces previous entry", func(t *testing.T) {
		c := openTestCatalog(t)
		require.NoError(t, c.Record(ctx, "src/main.go", "abc", 1))
		require.NoError(t, c.Record(ctx, "src/main.go", "def", 1))

		assert.False(t, c.Changed(ctx, "src/main.go", "def"))
		assert.Equal(t, 1, c.Count(ctx))
	})

	t.Run("count across files", func(t *testing.T) {
		c := openTestCatalog(t)
		require.NoError(t, c.Record(ctx, "a.go", "h1", 1))
		require.NoError(t, c.Record(ctx, "b.go", "h2", 2))
		assert.Equal(t, 2, c.Count(ctx))
	})

	t.Run("survives reopen", func(t *testing.T) {
		dir := t.TempDir()
		c, err := Open(dir, nil)
		require.NoError(t, err)
		require.NoError(t, c.Record(ctx, "a.go", "h1", 1))
		require.NoError(t, c.Close())

		c2, err := Open(dir, nil)
		require.NoError(t, err)
		defer func() { _ = c2.Close() }()
		assert.False(t, c2.Changed(ctx, "a.go", "h1"))
	})
}
