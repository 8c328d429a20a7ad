package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/bugtracker/internal/config"
	"github.com/prn-tf/bugtracker/internal/repository"
)

func TestNewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewClient(ctx, config.RedisConfig{Host: "127.0.0.1", Port: 1, DialTimeout: 100 * time.Millisecond})
	require.ErrorIs(t, err, repository.ErrCacheUnavailable)
}

func TestCache_ErrorsAreWrapped(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })

	c := NewCache(client, "bugtracker:")
	ctx := context.Background()

	_, err := c.Get(ctx, "session:x")
	require.ErrorIs(t, err, repository.ErrCacheUnavailable)
	require.ErrorIs(t, c.Set(ctx, "session:x", []byte("v"), time.Minute), repository.ErrCacheUnavailable)
	_, err = c.SetXX(ctx, "session:x", []byte("v"), time.Minute)
	require.ErrorIs(t, err, repository.ErrCacheUnavailable)
	require.Equal(t, "bugtracker:session:x", c.key("session:x"))
}
