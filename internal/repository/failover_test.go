package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailoverLoginLimiter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	logger := zerolog.Nop()
	primary := NewRedisLoginLimiter(client)
	fallback := NewMemoryLoginLimiter()
	limiter := NewFailoverLoginLimiter(primary, fallback, &logger)

	ctx := context.Background()

	t.Run("UsesPrimaryWhileHealthy", func(t *testing.T) {
		allowed, err := limiter.Allow(ctx, "alice", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, s.Exists("login_attempts:alice"))
	})

	t.Run("FallsBackWhenPrimaryDies", func(t *testing.T) {
		s.Close()

		// counter restarts in memory, but attempts still get limited
		for i := 0; i < 3; i++ {
			allowed, err := limiter.Allow(ctx, "alice", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := limiter.Allow(ctx, "alice", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("ResetWorksOnFallback", func(t *testing.T) {
		require.NoError(t, limiter.Reset(ctx, "alice"))

		allowed, err := limiter.Allow(ctx, "alice", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}
