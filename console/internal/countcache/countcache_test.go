package countcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type countingStore struct {
	counts map[int]int
	calls  int
	err    error
}

func (s *countingStore) CountCorrelatedEvents(_ context.Context, _ string, stage int) (int, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.counts[stage], nil
}

func TestCacheGetSet(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := New(client, 5*time.Second, nil)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "alarm-1", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "alarm-1", 3, 812))

	n, ok, err := cache.Get(ctx, "alarm-1", 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 812, n)
	assert.Equal(t, 5*time.Second, mr.TTL("console:counts:alarm-1"))

	mr.FastForward(6 * time.Second)
	_, ok, err = cache.Get(ctx, "alarm-1", 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := New(client, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "alarm-1", 1, 10))
	require.NoError(t, cache.Set(ctx, "alarm-1", 2, 20))
	require.NoError(t, cache.Invalidate(ctx, "alarm-1"))

	_, ok, _ := cache.Get(ctx, "alarm-1", 1)
	assert.False(t, ok)
	_, ok, _ = cache.Get(ctx, "alarm-1", 2)
	assert.False(t, ok)
}

func TestDisabledCache(t *testing.T) {
	cache := New(nil, time.Minute, nil)
	assert.False(t, cache.IsEnabled())

	_, ok, err := cache.Get(context.Background(), "a", 1)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, cache.Set(context.Background(), "a", 1, 1))
	assert.NoError(t, cache.Invalidate(context.Background(), "a"))
}

func TestCachedCounter(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := New(client, time.Minute, nil)
	backing := &countingStore{counts: map[int]int{3: 10000}}
	counter := NewCachedCounter(cache, backing)
	ctx := context.Background()

	n, err := counter.CountCorrelatedEvents(ctx, "alarm-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 10000, n)

	n, err = counter.CountCorrelatedEvents(ctx, "alarm-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 10000, n)
	assert.Equal(t, 1, backing.calls)
}

func TestCachedCounterRedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := New(client, time.Minute, nil)
	backing := &countingStore{counts: map[int]int{2: 7}}
	counter := NewCachedCounter(cache, backing)

	mr.Close()

	n, err := counter.CountCorrelatedEvents(context.Background(), "alarm-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, 1, backing.calls)
}

func TestCachedCounterStoreError(t *testing.T) {
	_, client := setupTestRedis(t)
	backing := &countingStore{err: errors.New("store down")}
	counter := NewCachedCounter(New(client, time.Minute, nil), backing)

	_, err := counter.CountCorrelatedEvents(context.Background(), "alarm-1", 2)
	assert.EqualError(t, err, "store down")
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewClient(context.Background(), "not a url")
	assert.Error(t, err)
}
