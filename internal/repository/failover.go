package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"innkeeper/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverLoginLimiter serves from the primary (Redis) limiter until it
// fails, then falls back to the in-memory one, retrying the primary at most
// once a minute.
type FailoverLoginLimiter struct {
	primary  domain.LoginLimiter
	fallback domain.LoginLimiter
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverLoginLimiter(primary, fallback domain.LoginLimiter, logger *zerolog.Logger) *FailoverLoginLimiter {
	return &FailoverLoginLimiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (f *FailoverLoginLimiter) Allow(ctx context.Context, username string, limit int, window time.Duration) (bool, error) {
	if f.usePrimary() {
		ok, err := f.primary.Allow(ctx, username, limit, window)
		if err == nil {
			f.markUp()
			return ok, nil
		}
		f.markDown(err)
	}
	return f.fallback.Allow(ctx, username, limit, window)
}

func (f *FailoverLoginLimiter) Reset(ctx context.Context, username string) error {
	if f.usePrimary() {
		err := f.primary.Reset(ctx, username)
		if err == nil {
			f.markUp()
			return nil
		}
		f.markDown(err)
	}
	return f.fallback.Reset(ctx, username)
}

// usePrimary reports whether the primary should be tried: either it is
// healthy, or enough time has passed to probe it again.
func (f *FailoverLoginLimiter) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Since(f.lastCheck) > time.Minute
}

func (f *FailoverLoginLimiter) markUp() {
	f.isDown.Store(false)
}

func (f *FailoverLoginLimiter) markDown(err error) {
	f.logger.Error().Err(err).Msg("primary login limiter failed, falling back to memory")
	f.isDown.Store(true)
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}
