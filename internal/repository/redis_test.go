package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLoginLimiter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	limiter := NewRedisLoginLimiter(client)
	ctx := context.Background()

	t.Run("AllowWithinLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := limiter.Allow(ctx, "alice", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed, "attempt %d should be allowed", i+1)
		}
	})

	t.Run("RefuseOverLimit", func(t *testing.T) {
		allowed, err := limiter.Allow(ctx, "alice", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("ResetClearsCounter", func(t *testing.T) {
		require.NoError(t, limiter.Reset(ctx, "alice"))

		allowed, err := limiter.Allow(ctx, "alice", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("WindowExpires", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := limiter.Allow(ctx, "bob", 2, time.Second)
			require.NoError(t, err)
		}
		allowed, err := limiter.Allow(ctx, "bob", 2, time.Second)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(2 * time.Second)

		allowed, err = limiter.Allow(ctx, "bob", 2, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("UsernamesAreIndependent", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			limiter.Allow(ctx, "carol", 2, time.Minute)
		}
		allowed, err := limiter.Allow(ctx, "dave", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestPing(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	assert.NoError(t, Ping(context.Background(), client))

	s.Close()
	assert.Error(t, Ping(context.Background(), client))
}
