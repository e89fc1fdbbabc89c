package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/models"
)

type SessionRepo struct {
	DB DBTX
}

// Single statement: concurrent writers race on the row, last one wins
const setSession = `-- name: SetSession
INSERT INTO sessions (user_id, access_hash, access_expires_at, refresh_hash, refresh_expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
	access_hash = EXCLUDED.access_hash,
	access_expires_at = EXCLUDED.access_expires_at,
	refresh_hash = EXCLUDED.refresh_hash,
	refresh_expires_at = EXCLUDED.refresh_expires_at
`

func (r *SessionRepo) SetSession(ctx context.Context, s models.Session) error {
	_, err := r.DB.Exec(ctx, setSession, s.UserID, s.AccessHash, s.AccessExpiresAt, s.RefreshHash, s.RefreshExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return apperrors.ErrUserNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const clearSession = `-- name: ClearSession
DELETE FROM sessions
WHERE user_id = $1
`

func (r *SessionRepo) ClearSession(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, clearSession, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const getSession = `-- name: GetSession
SELECT user_id, access_hash, access_expires_at, refresh_hash, refresh_expires_at
FROM sessions
WHERE user_id = $1
`

func (r *SessionRepo) GetSession(ctx context.Context, userID uuid.UUID) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, getSession, userID)
	session, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Session, error) {
		var s models.Session
		err := row.Scan(&s.UserID, &s.AccessHash, &s.AccessExpiresAt, &s.RefreshHash, &s.RefreshExpiresAt)
		return s, err
	})

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session, apperrors.ErrSessionNotFound
	default:
		return session, fmt.Errorf("db error: %w", err)
	}
}

const deleteExpired = `-- name: DeleteExpired
DELETE FROM sessions
WHERE refresh_expires_at <= $1
`

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpired, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected(), nil
}
