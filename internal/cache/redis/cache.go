// Package redis provides a Redis-backed cache shared by all server processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/prn-tf/bugtracker/internal/config"
	"github.com/prn-tf/bugtracker/internal/repository"
)

// NewClient creates a go-redis client from configuration and verifies it with PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", repository.ErrCacheUnavailable, err)
	}
	return client, nil
}

// Cache implements repository.Cache on Redis.
type Cache struct {
	client goredis.UniversalClient
	prefix string
}

// NewCache wraps client. Every key is namespaced with prefix.
func NewCache(client goredis.UniversalClient, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, repository.ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: %v", repository.ErrCacheUnavailable, err)
	}
	return val, nil
}

// Set stores a value with an optional TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrCacheUnavailable, err)
	}
	return nil
}

// SetNX sets a value only if the key doesn't exist.
func (c *Cache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", repository.ErrCacheUnavailable, err)
	}
	return ok, nil
}

// SetXX overwrites a value only if the key already exists.
func (c *Cache) SetXX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetXX(ctx, c.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", repository.ErrCacheUnavailable, err)
	}
	return ok, nil
}

// Delete removes a value by key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrCacheUnavailable, err)
	}
	return nil
}

// Exists checks if a key exists.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", repository.ErrCacheUnavailable, err)
	}
	return n > 0, nil
}

// Expire sets or updates the TTL for a key.
// A non-positive ttl removes the expiry.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	var err error
	if ttl > 0 {
		err = c.client.Expire(ctx, c.key(key), ttl).Err()
	} else {
		err = c.client.Persist(ctx, c.key(key)).Err()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrCacheUnavailable, err)
	}
	return nil
}

// Ensure Cache implements repository.Cache.
var _ repository.Cache = (*Cache)(nil)
