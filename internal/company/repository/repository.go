// Package repository persists company and module reference data.
package repository

import (
	"context"

	"admin-portal/backend/internal/company/domain"
)

// CompanyRepository reads and renames company records and reads module
// records. Point lookups return (nil, nil) when no row matches.
type CompanyRepository interface {
	Companies(ctx context.Context) ([]domain.Company, error)
	Modules(ctx context.Context) ([]domain.Module, error)

	GetCompany(ctx context.Context, key string) (*domain.Company, error)
	FindCompanyByName(ctx context.Context, name string) (*domain.Company, error)

	// RenameCompany updates the display name. False means no row matched.
	RenameCompany(ctx context.Context, key, newName string) (bool, error)
}
