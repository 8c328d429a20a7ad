package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	key := Keys.Registration("user1")

	ok, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	released, err := l.Release(ctx, key)
	require.NoError(t, err)
	require.True(t, released)

	ok, err = l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryLocker_ExpiredLockIsReacquired(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	ok, _ := l.Acquire(ctx, "k", time.Millisecond)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWithLock_SerializesCriticalSection(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	opts := Options{TTL: time.Second, MaxRetries: 200, RetryDelay: time.Millisecond}

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(ctx, l, Keys.Registration("race"), opts, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			if err != nil {
				t.Errorf("WithLock: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxInside)
}

func TestWithLock_NotAcquired(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	_, _ = l.Acquire(ctx, "held", time.Minute)

	called := false
	err := WithLock(ctx, l, "held", Options{TTL: time.Second}, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrNotAcquired)
	require.False(t, called)
}

func TestWithLock_PropagatesErrorAndReleases(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	boom := errors.New("boom")

	err := WithLock(ctx, l, "k", DefaultOptions, func(ctx context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	ok, _ := l.Acquire(ctx, "k", time.Second)
	require.True(t, ok)
}

func TestNoOpLocker(t *testing.T) {
	l := NewNoOpLocker()
	err := WithLock(context.Background(), l, "k", DefaultOptions, func(ctx context.Context) error { return nil })
	require.NoError(t, err)
}
