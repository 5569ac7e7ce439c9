package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *LogCache {
	t.Helper()
	c, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache", "logs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGetPut(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)
	k := Key{Server: "prod", JobID: "etl", RunID: "r1", TaskID: "extract", Attempt: 1}

	_, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, k, "first"))
	require.NoError(t, c.Put(ctx, k, "second"))
	text, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", text)

	other := k
	other.Server = "dev"
	_, ok, err = c.Get(ctx, other)
	require.NoError(t, err)
	assert.False(t, ok, "entries are scoped by server")
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	c.now = func() time.Time { return now.Add(-8 * 24 * time.Hour) }
	require.NoError(t, c.Put(ctx, Key{Server: "a", Attempt: 1}, "old"))
	c.now = func() time.Time { return now }
	require.NoError(t, c.Put(ctx, Key{Server: "a", Attempt: 2}, "new"))

	n, err := c.Prune(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, _ := c.Get(ctx, Key{Server: "a", Attempt: 1})
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, Key{Server: "a", Attempt: 2})
	assert.True(t, ok)
}
