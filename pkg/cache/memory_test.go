package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type payload struct {
	Symbols []string `json:"symbols"`
	Count   int      `json:"count"`
}

func TestMemoryCacheRoundTripAndPatterns(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(10 * time.Millisecond))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "chains:doc-1:20", payload{Symbols: []string{"005930"}, Count: 1}, time.Minute))
	require.NoError(t, mc.Set(ctx, "chains:all:20", payload{Count: 2}, time.Minute))
	require.NoError(t, mc.Set(ctx, "other", "plain", time.Minute))

	var got payload
	require.NoError(t, mc.Get(ctx, "chains:doc-1:20", &got))
	assert.Equal(t, payload{Symbols: []string{"005930"}, Count: 1}, got)

	var s string
	require.NoError(t, mc.Get(ctx, "other", &s))
	assert.Equal(t, "plain", s)

	require.NoError(t, mc.DeleteByPattern(ctx, GenerateKey("chains", "*")))
	assert.ErrorIs(t, mc.Get(ctx, "chains:all:20", &got), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "other", &s))
}

func TestMemoryCacheExpiryAndEviction(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "short", 1, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	var n int
	assert.ErrorIs(t, mc.Get(ctx, "short", &n), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	assert.ErrorIs(t, mc.Get(ctx, "a", &n), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "c", &n))
	assert.Equal(t, 3, n)
}

func TestMemoryCacheLock(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "lock:doc-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "lock:doc-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock:doc-1"))
	ok, _ = mc.TryLock(ctx, "lock:doc-1", time.Minute)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "lock:doc-2", time.Millisecond)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)
	ok, _ = mc.TryLock(ctx, "lock:doc-2", time.Minute)
	assert.True(t, ok, "expired locks are reclaimable")
}

func TestMemoryCacheLockSurvivesEviction(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(3))
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "lock:extract:doc-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 5; i++ {
		require.NoError(t, mc.Set(ctx, GenerateKeyWithParams("chains:list", i), []int{i}, time.Minute))
	}

	ok, err = mc.TryLock(ctx, "lock:extract:doc-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock must not be evicted by cache traffic")

	require.NoError(t, mc.DeleteByPattern(ctx, "lock:*"))
	ok, _ = mc.TryLock(ctx, "lock:extract:doc-1", time.Minute)
	assert.False(t, ok, "only Unlock releases a lock")

	require.NoError(t, mc.Unlock(ctx, "lock:extract:doc-1"))
	ok, _ = mc.TryLock(ctx, "lock:extract:doc-1", time.Minute)
	assert.True(t, ok)
}
