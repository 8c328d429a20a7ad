package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prn-tf/bugtracker/internal/pkg/crypto"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and token-checked release.
// Each holder writes a random token so it never releases a lock that
// expired and was taken over by another process.
type RedisLocker struct {
	client redis.UniversalClient

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisLocker creates a new RedisLocker on client.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{
		client: client,
		tokens: make(map[string]string),
	}
}

// Acquire attempts to acquire a lock.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token, err := crypto.GenerateLockToken()
	if err != nil {
		return false, err
	}

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

// AcquireWithRetry attempts to acquire a lock with retries.
func (l *RedisLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	return retryAcquire(ctx, func() (bool, error) {
		return l.Acquire(ctx, key, ttl)
	}, maxRetries, retryDelay)
}

// Release releases a lock held by this locker.
func (l *RedisLocker) Release(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return false, nil
	}

	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		return false, fmt.Errorf("failed to release lock %q: %w", key, err)
	}
	return n == 1, nil
}

// Ensure RedisLocker implements Locker
var _ Locker = (*RedisLocker)(nil)
