// Package repository persists driver user records.
package repository

import (
	"context"

	"admin-portal/backend/internal/user/domain"
)

// UserRepository persists driver records and their company/module slots.
// Lookups return (nil, nil) when no row matches.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// FindByPowerUnit returns the driver currently holding the power unit.
	FindByPowerUnit(ctx context.Context, powerUnit string) (*domain.User, error)

	List(ctx context.Context) ([]domain.User, error)

	Create(ctx context.Context, u domain.User) (*domain.User, error)

	// Update replaces the record named by username, including a possible
	// rename to u.Username. Returns (nil, nil) when no row matched.
	Update(ctx context.Context, username string, u domain.User) (*domain.User, error)

	// Delete removes the record. False means it was already gone.
	Delete(ctx context.Context, username string) (bool, error)
}
