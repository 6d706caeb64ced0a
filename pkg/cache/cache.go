package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache TTLs. Item reads are cheap to recompute, so the windows stay short.
const (
	TTLItem    = 1 * time.Minute
	TTLList    = 30 * time.Second
	TTLDefault = 5 * time.Minute
)

// Cache key prefixes
const (
	PrefixItem = "item:"
)

// Service redis-backed read cache for item lookups. Every method is
// nil-safe: without a redis client the cache silently degrades to a
// no-op and reads fall through to storage.
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	GetItem(ctx context.Context, collection string, id interface{}, dest interface{}) error
	SetItem(ctx context.Context, collection string, id interface{}, value interface{}) error
	InvalidateItem(ctx context.Context, collection string, id interface{}) error
	InvalidateCollection(ctx context.Context, collection string) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

// redisCache redis-backed cache implementation
type redisCache struct {
	client *redis.Client
}

// NewService creates a new cache service
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

// IsAvailable reports whether a redis connection is configured
func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

// Ping tests the redis connection
func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

// Get reads a cached value into dest
func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return redis.Nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

// Set stores a value; a nil client ignores the write
func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes keys
func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisCache) itemKey(collection string, id interface{}) string {
	return fmt.Sprintf("%s%s:%v", PrefixItem, collection, id)
}

// GetItem reads one cached item record
func (c *redisCache) GetItem(ctx context.Context, collection string, id interface{}, dest interface{}) error {
	return c.Get(ctx, c.itemKey(collection, id), dest)
}

// SetItem caches one item record
func (c *redisCache) SetItem(ctx context.Context, collection string, id interface{}, value interface{}) error {
	return c.Set(ctx, c.itemKey(collection, id), value, TTLItem)
}

// InvalidateItem drops one cached item after a mutation
func (c *redisCache) InvalidateItem(ctx context.Context, collection string, id interface{}) error {
	return c.Delete(ctx, c.itemKey(collection, id))
}

// InvalidateCollection drops every cached item of a collection, used
// when the collection itself is altered or dropped
func (c *redisCache) InvalidateCollection(ctx context.Context, collection string) error {
	if c.client == nil {
		return nil
	}
	return c.deleteByPattern(ctx, PrefixItem+collection+":*")
}

func (c *redisCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// IsMiss reports whether the error is a plain cache miss
func IsMiss(err error) bool {
	return err == redis.Nil
}
