package repository

import (
	"context"
	"database/sql"
	"errors"

	"admin-portal/backend/internal/company/domain"
)

type PostgresCompanyRepository struct {
	db *sql.DB
}

func NewPostgresCompanyRepository(db *sql.DB) *PostgresCompanyRepository {
	return &PostgresCompanyRepository{db: db}
}

func (r *PostgresCompanyRepository) Companies(ctx context.Context) ([]domain.Company, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT company_key, company_name FROM companies ORDER BY company_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Company
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(&c.Key, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresCompanyRepository) Modules(ctx context.Context) ([]domain.Module, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT module_url, module_name FROM modules ORDER BY module_url`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Module
	for rows.Next() {
		var m domain.Module
		if err := rows.Scan(&m.URL, &m.Name); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresCompanyRepository) GetCompany(ctx context.Context, key string) (*domain.Company, error) {
	return r.getWhere(ctx, `company_key = $1`, key)
}

func (r *PostgresCompanyRepository) FindCompanyByName(ctx context.Context, name string) (*domain.Company, error) {
	return r.getWhere(ctx, `company_name = $1`, name)
}

func (r *PostgresCompanyRepository) getWhere(ctx context.Context, where string, arg any) (*domain.Company, error) {
	var c domain.Company
	err := r.db.QueryRowContext(ctx,
		`SELECT company_key, company_name FROM companies WHERE `+where, arg).
		Scan(&c.Key, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresCompanyRepository) RenameCompany(ctx context.Context, key, newName string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE companies SET company_name = $2 WHERE company_key = $1`, key, newName)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
