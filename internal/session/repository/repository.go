// Package repository defines persistence for server-side session records.
package repository

import (
	"context"
	"time"

	"admin-portal/backend/internal/session/domain"
)

// UpsertParams carries the fields written when a session row is created or refreshed.
type UpsertParams struct {
	Username     string
	AccessToken  string
	RefreshToken string
	ExpiryTime   time.Time
	LastActivity time.Time
	PowerUnit    *string
	ManifestDate *string
}

// SessionRepository persists session records in Postgres.
// Lookups return (nil, nil) when no row matches.
type SessionRepository interface {
	// AddOrUpdate inserts a new session row when ref is NewSession, or
	// refreshes the row named by ref. Updating a ref that no longer has a
	// row returns (nil, nil). Inserts also stamp login_time.
	AddOrUpdate(ctx context.Context, ref domain.Ref, p UpsertParams) (*domain.Session, error)

	GetByID(ctx context.Context, id int64) (*domain.Session, error)

	// GetByIdentity finds the session matching all three credentials at once.
	GetByIdentity(ctx context.Context, username, accessToken, refreshToken string) (*domain.Session, error)

	// DeleteByID removes one session. Returns false when no row was deleted.
	DeleteByID(ctx context.Context, id int64) (bool, error)

	// DeleteExpired removes every session whose expiry has passed, plus any
	// whose last activity is older than the idle timeout. Returns rows removed.
	DeleteExpired(ctx context.Context, now time.Time, idleTimeout time.Duration) (int64, error)

	// TouchLastActivity stamps last_activity without changing credentials.
	TouchLastActivity(ctx context.Context, id int64, at time.Time) error

	// HasForUsername reports whether any session row exists for the user.
	HasForUsername(ctx context.Context, username string) (bool, error)
}
