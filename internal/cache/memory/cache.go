// Package memory provides an in-memory session cache.
// This is suitable for single-node deployments where Redis is not available.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/prn-tf/bugtracker/internal/repository"
)

// DefaultSweepInterval is how often expired entries are purged.
const DefaultSweepInterval = time.Minute

// Cache implements repository.Cache using a map guarded by a mutex.
// Sessions stored here are lost on restart and are not shared between processes.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewCache creates a cache that sweeps expired entries every interval.
// A non-positive interval uses DefaultSweepInterval.
func NewCache(interval time.Duration) *Cache {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go c.sweepLoop(interval)
	return c
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// Close stops the sweeper. It is safe to call more than once.
func (c *Cache) Close() error {
	c.once.Do(func() { close(c.stopCh) })
	return nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	n := 0
	for _, e := range c.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

func (c *Cache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

// Get retrieves a copy of the value stored under key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		return nil, repository.ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a value with an optional TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: append([]byte(nil), value...), expiresAt: c.expiry(ttl)}
	return nil
}

// SetNX sets a value only if the key doesn't exist.
func (c *Cache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && !e.expired(c.now()) {
		return false, nil
	}
	c.entries[key] = entry{value: append([]byte(nil), value...), expiresAt: c.expiry(ttl)}
	return true, nil
}

// SetXX overwrites a value only if a live key exists.
func (c *Cache) SetXX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; !ok || e.expired(c.now()) {
		return false, nil
	}
	c.entries[key] = entry{value: append([]byte(nil), value...), expiresAt: c.expiry(ttl)}
	return true, nil
}

// Delete removes a value by key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Exists checks if a live key exists.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return ok && !e.expired(c.now()), nil
}

// Expire sets or updates the TTL for a key. Missing keys are ignored.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	e.expiresAt = c.expiry(ttl)
	c.entries[key] = e
	return nil
}

// Ensure Cache implements repository.Cache.
var _ repository.Cache = (*Cache)(nil)
