package content

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/astralpost/astralpost/pkg/observability"
)

// Cache is the two-level newsletter cache: an in-process expirable LRU in
// front of Redis. The L1 saves the Redis round trip for hot keys on one
// instance; Redis is the shared source of truth across instances.
type Cache struct {
	l1      *lru.LRU[string, *Newsletter]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewCache creates the content cache.
func NewCache(rdb *redis.Client, size int, ttl time.Duration, metrics *observability.Metrics, logger *observability.Logger) *Cache {
	if size < 16 {
		size = 16
	}
	return &Cache{
		l1:      lru.NewLRU[string, *Newsletter](size, nil, ttl),
		redis:   rdb,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger.WithField("component", "content.cache"),
	}
}

// Get returns the cached newsletter for the key, or nil on a miss. Redis
// errors degrade to a miss; the pipeline will regenerate.
func (c *Cache) Get(ctx context.Context, key string) *Newsletter {
	if n, ok := c.l1.Get(key); ok {
		c.metrics.CacheHitsTotal.WithLabelValues("l1", "content").Inc()
		return n
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.metrics.CacheMissesTotal.WithLabelValues("redis", "content").Inc()
		return nil
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("cache read failed, treating as miss")
		c.metrics.CacheMissesTotal.WithLabelValues("redis", "content").Inc()
		return nil
	}

	var n Newsletter
	if err := json.Unmarshal(data, &n); err != nil {
		c.logger.WithField("key", key).Warn("discarding unreadable cache entry")
		c.metrics.CacheMissesTotal.WithLabelValues("redis", "content").Inc()
		return nil
	}

	c.metrics.CacheHitsTotal.WithLabelValues("redis", "content").Inc()
	c.l1.Add(key, &n)
	return &n
}

// Set stores the newsletter under the key in both levels. Failures are
// logged, not returned: a cache write must never fail a generation.
func (c *Cache) Set(ctx context.Context, key string, n *Newsletter) {
	c.l1.Add(key, n)

	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}
