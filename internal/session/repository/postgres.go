package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"admin-portal/backend/internal/session/domain"
)

const sessionColumns = `id, username, access_token, refresh_token, expiry_time, login_time, last_activity, power_unit, manifest_date`

// PostgresSessionRepository implements SessionRepository backed by Postgres.
type PostgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

func (r *PostgresSessionRepository) AddOrUpdate(ctx context.Context, ref domain.Ref, p UpsertParams) (*domain.Session, error) {
	if id, ok := ref.Existing(); ok {
		row := r.db.QueryRowContext(ctx, `
			UPDATE sessions
			SET username = $2, access_token = $3, refresh_token = $4,
			    expiry_time = $5, last_activity = $6, power_unit = $7, manifest_date = $8
			WHERE id = $1
			RETURNING `+sessionColumns,
			id, p.Username, p.AccessToken, p.RefreshToken,
			p.ExpiryTime, p.LastActivity, p.PowerUnit, p.ManifestDate)
		return scanSession(row)
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (username, access_token, refresh_token, expiry_time, login_time, last_activity, power_unit, manifest_date)
		VALUES ($1, $2, $3, $4, $5, $5, $6, $7)
		RETURNING `+sessionColumns,
		p.Username, p.AccessToken, p.RefreshToken,
		p.ExpiryTime, p.LastActivity, p.PowerUnit, p.ManifestDate)
	return scanSession(row)
}

func (r *PostgresSessionRepository) GetByID(ctx context.Context, id int64) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (r *PostgresSessionRepository) GetByIdentity(ctx context.Context, username, accessToken, refreshToken string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE username = $1 AND access_token = $2 AND refresh_token = $3`,
		username, accessToken, refreshToken)
	return scanSession(row)
}

func (r *PostgresSessionRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresSessionRepository) DeleteExpired(ctx context.Context, now time.Time, idleTimeout time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE expiry_time <= $1
		   OR (last_activity <= $1 AND last_activity < $2)`,
		now, now.Add(-idleTimeout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresSessionRepository) TouchLastActivity(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = $2 WHERE id = $1`, id, at)
	return err
}

func (r *PostgresSessionRepository) HasForUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.Username, &s.AccessToken, &s.RefreshToken,
		&s.ExpiryTime, &s.LoginTime, &s.LastActivity, &s.PowerUnit, &s.ManifestDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
