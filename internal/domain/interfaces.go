package domain

import (
	"context"
	"time"

	"innkeeper/internal/models"
)

// CredentialStore is the append-only account record file.
type CredentialStore interface {
	IsRegistered(username string) (bool, error)
	Register(username, password string) error
	Verify(username, password string) (bool, error)
}

// BookingStore is the persistent reservation table.
type BookingStore interface {
	CountBookedRooms(ctx context.Context, date string) (int, error)
	Reserve(ctx context.Context, user, date, dateKey, code string, capacity int) (int, error)
	ListForUser(ctx context.Context, user string) ([]*models.Booking, error)
	Release(ctx context.Context, user, date string, room int, code string) error
}

// LoginLimiter throttles failed password attempts per username.
type LoginLimiter interface {
	Allow(ctx context.Context, username string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, username string) error
}

// EventPublisher fans out domain events to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
