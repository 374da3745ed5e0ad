// Package countcache keeps per-stage correlated event counts in Redis for a short
// time so repeated detail views do not recount in the store.
package countcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/console/internal/metrics"
)

const keyPrefix = "console:counts:"

// Counter counts the alarm events of one stage. *store.Client satisfies it.
type Counter interface {
	CountCorrelatedEvents(ctx context.Context, alarmID string, stage int) (int, error)
}

// Cache stores counts in one Redis hash per alarm, keyed by stage.
type Cache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewClient connects to the Redis URL and verifies it answers.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func New(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cache{redis: client, ttl: ttl, logger: logger.Component("countcache")}
}

// IsEnabled reports whether a Redis client is configured.
func (c *Cache) IsEnabled() bool {
	return c != nil && c.redis != nil
}

func (c *Cache) key(alarmID string) string {
	return keyPrefix + alarmID
}

// Get returns the cached count for a stage.
func (c *Cache) Get(ctx context.Context, alarmID string, stage int) (int, bool, error) {
	if !c.IsEnabled() {
		return 0, false, nil
	}

	n, err := c.redis.HGet(ctx, c.key(alarmID), strconv.Itoa(stage)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get count: %w", err)
	}
	return n, true, nil
}

// Set stores a count and restarts the alarm's expiry.
func (c *Cache) Set(ctx context.Context, alarmID string, stage, count int) error {
	if !c.IsEnabled() {
		return nil
	}

	key := c.key(alarmID)
	pipe := c.redis.TxPipeline()
	pipe.HSet(ctx, key, strconv.Itoa(stage), count)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set count: %w", err)
	}
	return nil
}

// Invalidate drops every cached count of an alarm.
func (c *Cache) Invalidate(ctx context.Context, alarmID string) error {
	if !c.IsEnabled() {
		return nil
	}
	if err := c.redis.Del(ctx, c.key(alarmID)).Err(); err != nil {
		return fmt.Errorf("invalidate counts: %w", err)
	}
	return nil
}

// CachedCounter answers from the cache and falls back to the wrapped Counter.
// Redis failures are logged and never fail the count.
type CachedCounter struct {
	cache *Cache
	next  Counter
}

func NewCachedCounter(cache *Cache, next Counter) *CachedCounter {
	return &CachedCounter{cache: cache, next: next}
}

func (c *CachedCounter) CountCorrelatedEvents(ctx context.Context, alarmID string, stage int) (int, error) {
	n, ok, err := c.cache.Get(ctx, alarmID, stage)
	if err != nil {
		c.cache.logger.WarnContext(ctx, "count cache read failed", logging.AlarmID(alarmID), logging.Stage(stage), logging.Error(err))
	}
	if ok {
		metrics.EventCountsTotal.WithLabelValues(metrics.SourceCache).Inc()
		return n, nil
	}

	n, err = c.next.CountCorrelatedEvents(ctx, alarmID, stage)
	if err != nil {
		return 0, err
	}
	metrics.EventCountsTotal.WithLabelValues(metrics.SourceStore).Inc()

	if err := c.cache.Set(ctx, alarmID, stage, n); err != nil {
		c.cache.logger.WarnContext(ctx, "count cache write failed", logging.AlarmID(alarmID), logging.Stage(stage), logging.Error(err))
	}
	return n, nil
}
