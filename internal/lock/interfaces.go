// Package lock provides distributed and local locking abstractions.
// For single-node deployments, memory-based locks are used.
// For multi-process deployments, Redis-based locks are used.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired indicates the lock is held by someone else.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker defines the interface for distributed/local locking.
// This abstraction allows switching between in-memory locks (single-node)
// and Redis-based locks (distributed) without changing business logic.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another holder.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire a lock with retries.
	// Will retry up to maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases a lock acquired by this locker.
	// Returns true if the lock was released, false if it wasn't held.
	Release(ctx context.Context, key string) (bool, error)
}

// Options controls how WithLock waits for a contended lock.
type Options struct {
	TTL        time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultOptions suits short critical sections such as registration.
var DefaultOptions = Options{
	TTL:        10 * time.Second,
	MaxRetries: 20,
	RetryDelay: 50 * time.Millisecond,
}

// WithLock runs fn while holding key.
// Returns ErrNotAcquired if the lock could not be obtained.
func WithLock(ctx context.Context, locker Locker, key string, opts Options, fn func(ctx context.Context) error) error {
	acquired, err := locker.AcquireWithRetry(ctx, key, opts.TTL, opts.MaxRetries, opts.RetryDelay)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrNotAcquired
	}
	defer locker.Release(context.WithoutCancel(ctx), key)

	return fn(ctx)
}

// retryAcquire implements AcquireWithRetry on top of an acquire func.
func retryAcquire(ctx context.Context, acquire func() (bool, error), maxRetries int, retryDelay time.Duration) (bool, error) {
	for i := 0; i <= maxRetries; i++ {
		acquired, err := acquire()
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}

		// Don't sleep on the last attempt.
		if i < maxRetries {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return false, nil
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// Registration returns the lock key serializing sign-ups for one username.
func (lockKeys) Registration(username string) string {
	return "lock:register:" + username
}
