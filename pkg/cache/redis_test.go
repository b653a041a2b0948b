package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableRedis(t *testing.T) *RedisCache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return newRedisCache(client, "test")
}

func TestRedisCacheUnlockWithoutTokenIsNoop(t *testing.T) {
	c := unreachableRedis(t)

	// no token was recorded, so Unlock must not reach the server
	assert.NoError(t, c.Unlock(context.Background(), "lock:extract:doc-1"))
}

func TestRedisCacheFailedLockRecordsNoToken(t *testing.T) {
	c := unreachableRedis(t)

	ok, err := c.TryLock(context.Background(), "lock:extract:doc-1", time.Minute)
	require.Error(t, err)
	assert.False(t, ok)

	c.tokensMu.Lock()
	defer c.tokensMu.Unlock()
	assert.Empty(t, c.tokens)
}

func TestRedisCacheUnlockScriptComparesToken(t *testing.T) {
	require.NotEmpty(t, unlockScript.Hash())
	assert.Contains(t, unlockScriptSource, `redis.call("GET", KEYS[1]) == ARGV[1]`)
}
