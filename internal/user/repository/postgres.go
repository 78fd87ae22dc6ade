package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"admin-portal/backend/internal/user/domain"
)

// PostgresUserRepository implements UserRepository backed by Postgres. The
// company and module slots live in position-keyed side tables; writes touch
// all three tables inside one transaction.
type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getWhere(ctx, `username = $1`, username)
}

func (r *PostgresUserRepository) FindByPowerUnit(ctx context.Context, powerUnit string) (*domain.User, error) {
	return r.getWhere(ctx, `power_unit = $1`, powerUnit)
}

func (r *PostgresUserRepository) getWhere(ctx context.Context, where string, arg any) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT username, password_hash, power_unit, created_at, updated_at
		FROM users WHERE `+where, arg)

	var u domain.User
	err := row.Scan(&u.Username, &u.PasswordHash, &u.PowerUnit, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadSlots(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT username, password_hash, power_unit, created_at, updated_at
		FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Username, &u.PasswordHash, &u.PowerUnit, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range users {
		if err := r.loadSlots(ctx, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, u domain.User) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, power_unit)
		VALUES ($1, $2, $3)`,
		u.Username, u.PasswordHash, u.PowerUnit)
	if err != nil {
		return nil, err
	}
	if err := writeSlots(ctx, tx, u.Username, u.Companies, u.Modules); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.GetByUsername(ctx, u.Username)
}

func (r *PostgresUserRepository) Update(ctx context.Context, username string, u domain.User) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET username = $2, password_hash = $3, power_unit = $4, updated_at = now()
		WHERE username = $1`,
		username, u.Username, u.PasswordHash, u.PowerUnit)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	// Slot rows follow the rename via ON UPDATE CASCADE; replace them wholesale.
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_companies WHERE username = $1`, u.Username); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_modules WHERE username = $1`, u.Username); err != nil {
		return nil, err
	}
	if err := writeSlots(ctx, tx, u.Username, u.Companies, u.Modules); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.GetByUsername(ctx, u.Username)
}

func (r *PostgresUserRepository) Delete(ctx context.Context, username string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresUserRepository) loadSlots(ctx context.Context, u *domain.User) error {
	companies, err := r.slotValues(ctx, `SELECT company_key FROM user_companies WHERE username = $1 ORDER BY position`, u.Username)
	if err != nil {
		return fmt.Errorf("load companies for %s: %w", u.Username, err)
	}
	modules, err := r.slotValues(ctx, `SELECT module_url FROM user_modules WHERE username = $1 ORDER BY position`, u.Username)
	if err != nil {
		return fmt.Errorf("load modules for %s: %w", u.Username, err)
	}
	u.Companies = companies
	u.Modules = modules
	return nil
}

func (r *PostgresUserRepository) slotValues(ctx context.Context, query, username string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func writeSlots(ctx context.Context, tx *sql.Tx, username string, companies, modules []string) error {
	for i, key := range companies {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_companies (username, position, company_key)
			VALUES ($1, $2, $3)`, username, i+1, key); err != nil {
			return err
		}
	}
	for i, url := range modules {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_modules (username, position, module_url)
			VALUES ($1, $2, $3)`, username, i+1, url); err != nil {
			return err
		}
	}
	return nil
}
