package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	RunDate string `json:"run_date"`
	Created int    `json:"created"`
}

func newTestCache(now *time.Time, opts ...MemoryOption) *MemoryCache {
	mc := NewMemoryCache(opts...)
	mc.now = func() time.Time { return *now }
	return mc
}

func TestMemoryCacheSetGet(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	mc := newTestCache(&now)
	defer mc.Close()
	ctx := context.Background()

	var got report
	assert.ErrorIs(t, mc.Get(ctx, "missing", &got), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "r", report{RunDate: "2025-03-10", Created: 2}, time.Minute))
	require.NoError(t, mc.Get(ctx, "r", &got))
	assert.Equal(t, report{RunDate: "2025-03-10", Created: 2}, got)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, mc.Get(ctx, "r", &got), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "forever", 1, 0))
	require.NoError(t, mc.Delete(ctx, "forever"))
	var n int
	assert.ErrorIs(t, mc.Get(ctx, "forever", &n), ErrCacheMiss)
}

func TestMemoryCacheTryLock(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	mc := newTestCache(&now)
	defer mc.Close()
	ctx := context.Background()

	first, ok, err := mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, first)

	_, ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(61 * time.Second)
	second, ok, err := mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock is free")
	assert.NotEqual(t, first, second)

	// the first holder outlived its ttl and must not release the new lock
	assert.ErrorIs(t, mc.Unlock(ctx, "lock", first), ErrLockLost)
	_, ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock", second))
	_, ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	mc := newTestCache(&now, WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	now = now.Add(time.Second)
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "c", &v))
}
