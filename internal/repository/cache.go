package repository

import (
	"context"
	"time"
)

// =============================================================================
// Cache Interface
// =============================================================================

// Cache defines the interface for key/value storage with expiry.
// It backs the session store and is implemented in memory and on Redis.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX sets a value only if the key doesn't exist.
	// Returns true if the value was set, false if the key already exists.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// SetXX overwrites a value only if the key already exists.
	// Returns false if the key was missing or expired.
	SetXX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Expire sets or updates the TTL for a key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// =============================================================================
// Common Cache Keys
// =============================================================================

// CacheKey generates cache keys for common scenarios.
type CacheKey struct{}

// Session returns the cache key for a session id.
func (CacheKey) Session(sessionID string) string {
	return "session:" + sessionID
}
