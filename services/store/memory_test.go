package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, "a", "1", 0))
	require.NoError(t, s.Set(ctx, "b", "2", 0))

	value, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", value)

	require.NoError(t, s.Delete(ctx, "a", "b", "never-set"))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore().WithClock(clock.Now)

	require.NoError(t, s.Set(ctx, "short", "x", time.Minute))
	require.NoError(t, s.Set(ctx, "forever", "y", 0))

	clock.Advance(59 * time.Second)
	_, err := s.Get(ctx, "short")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = s.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	clock.Advance(24 * time.Hour)
	value, err := s.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "y", value)
}

func TestMemoryStore_Counters(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore().WithClock(clock.Now)

	n, err := s.IncrBy(ctx, "requests", 1, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.IncrBy(ctx, "requests", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	f, err := s.IncrByFloat(ctx, "cost", 0.00035, time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, 0.00035, f, 1e-12)

	f, err = s.IncrByFloat(ctx, "cost", 0.0001, time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, 0.00045, f, 1e-12)

	// a zero ttl keeps the existing expiry
	clock.Advance(time.Hour)
	_, err = s.Get(ctx, "requests")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, "text", "abc", 0))
	_, err = s.IncrBy(ctx, "text", 1, 0)
	assert.Error(t, err)
	_, err = s.IncrByFloat(ctx, "text", 1, 0)
	assert.Error(t, err)
}

func TestMemoryStore_ConcurrentIncr(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.IncrBy(ctx, "n", 1, time.Minute)
			_, _ = s.IncrByFloat(ctx, "f", 0.5, time.Minute)
		}()
	}
	wg.Wait()

	n, err := s.Get(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, "50", n)

	f, err := s.Get(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, "25", f)
}
