package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DB:          15,
		DialTimeout: 500 * time.Millisecond,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("Redis not available, skipping integration test")
	}

	t.Cleanup(func() {
		client.FlushDB(ctx)
		_ = client.Close()
	})

	return NewRedisStoreFromClient(client, "orchestrator-test")
}

func TestRedisStore(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	t.Run("GetSetDelete", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrKeyNotFound)

		require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
		value, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", value)

		require.NoError(t, s.Delete(ctx, "k"))
		_, err = s.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("Counters", func(t *testing.T) {
		n, err := s.IncrBy(ctx, "requests", 1, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.IncrBy(ctx, "requests", 4, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		f, err := s.IncrByFloat(ctx, "cost", 0.25, time.Minute)
		require.NoError(t, err)
		assert.InDelta(t, 0.25, f, 1e-9)

		ttl, err := s.client.TTL(ctx, s.makeKey("cost")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}

func TestRedisStore_MakeKey(t *testing.T) {
	prefixed := NewRedisStoreFromClient(nil, "app")
	bare := NewRedisStoreFromClient(nil, "")

	assert.Equal(t, "app:usage:x", prefixed.makeKey("usage:x"))
	assert.Equal(t, "usage:x", bare.makeKey("usage:x"))
}
