package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryLoginLimiter keeps attempt counters in-process. Used standalone when
// no Redis is configured, and as the failover fallback otherwise.
type MemoryLoginLimiter struct {
	attempts sync.Map
}

func NewMemoryLoginLimiter() *MemoryLoginLimiter {
	return &MemoryLoginLimiter{}
}

type attemptEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (m *MemoryLoginLimiter) Allow(ctx context.Context, username string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, _ := m.attempts.LoadOrStore(username, &attemptEntry{})
	entry := val.(*attemptEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.count == 0 || now.After(entry.expiresAt) {
		entry.count = 1
		entry.expiresAt = now.Add(window)
	} else {
		entry.count++
	}
	return entry.count <= limit, nil
}

func (m *MemoryLoginLimiter) Reset(ctx context.Context, username string) error {
	m.attempts.Delete(username)
	return nil
}
