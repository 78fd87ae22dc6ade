// Package repository persists audit events.
package repository

import (
	"context"

	"admin-portal/backend/internal/audit/domain"
)

type Repository interface {
	Create(ctx context.Context, e *domain.Event) error

	// ListRecent returns the newest events first, at most limit of them.
	ListRecent(ctx context.Context, limit int32) ([]*domain.Event, error)
}
