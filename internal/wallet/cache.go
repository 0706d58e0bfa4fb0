package wallet

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/oceanledger/bluecarbon/internal/logging"
)

const cacheKeyPrefix = "bluecarbon:wallet_status:"

// RedisCache caches wallet statuses in Redis with a TTL.
// A cache miss or Redis failure falls through to the store; the cache is
// never authoritative.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisCache creates a Redis-backed wallet status cache.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached status for a user.
func (c *RedisCache) Get(ctx context.Context, userID string) (*Status, bool) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+userID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("wallet cache read failed")
		}
		return nil, false
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, false
	}
	return &status, true
}

// Set stores the status for a user.
func (c *RedisCache) Set(ctx context.Context, userID string, status Status) {
	data, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+userID, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("wallet cache write failed")
	}
}

// Delete removes the cached status for a user.
func (c *RedisCache) Delete(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, cacheKeyPrefix+userID).Err(); err != nil {
		c.logger.WithError(err).Warn("wallet cache delete failed")
	}
}

// Len returns the number of cached wallet statuses.
func (c *RedisCache) Len(ctx context.Context) int {
	var count int
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, cacheKeyPrefix+"*", 100).Result()
		if err != nil {
			return -1
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count
}
