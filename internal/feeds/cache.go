package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "feeds:"

// Cache stores aggregated articles per feed key.
type Cache interface {
	Get(ctx context.Context, key string) ([]ArticleRecord, bool, error)
	Set(ctx context.Context, key string, articles []ArticleRecord, ttl time.Duration) error
}

// RedisCache is a Cache backed by Redis string keys holding JSON.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a cache on an existing Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the cached articles for key; the bool is false on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]ArticleRecord, bool, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read feed cache: %w", err)
	}

	var articles []ArticleRecord
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, false, fmt.Errorf("failed to decode feed cache: %w", err)
	}
	return articles, true, nil
}

// Set stores articles under key for ttl.
func (c *RedisCache) Set(ctx context.Context, key string, articles []ArticleRecord, ttl time.Duration) error {
	data, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("failed to encode feed cache: %w", err)
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write feed cache: %w", err)
	}
	return nil
}
