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
	"github.com/nkiryanov/authsession/internal/repository"
)

const (
	constraintEmailKey    = "users_email_key"
	constraintUsernameKey = "users_username_key"
)

type UserRepo struct {
	DB DBTX
}

const createUser = `-- name: CreateUser
INSERT INTO users (id, email, username, password_hash, is_active, is_verified)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, email, username, password_hash, is_active, is_verified
`

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), arg.Email, arg.Username, arg.HashedPassword, arg.IsActive, arg.IsVerified)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case constraintEmailKey:
				return user, apperrors.ErrEmailTaken
			case constraintUsernameKey:
				return user, apperrors.ErrUsernameTaken
			default:
				return user, fmt.Errorf("%w: %s", apperrors.ErrValidationConflict, pgErr.ConstraintName)
			}
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT id, created_at, email, username, password_hash, is_active, is_verified
FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT id, created_at, email, username, password_hash, is_active, is_verified
FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows)
}

const getUserByUsername = `-- name: GetUserByUsername
SELECT id, created_at, email, username, password_hash, is_active, is_verified
FROM users
WHERE username = $1
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByUsername, username)
	return collectUser(rows)
}

const getUserByAccessHash = `-- name: GetUserByAccessHash
SELECT u.id, u.created_at, u.email, u.username, u.password_hash, u.is_active, u.is_verified
FROM users u
JOIN sessions s ON s.user_id = u.id
WHERE s.access_hash = $1 AND s.access_expires_at > $2
`

func (r *UserRepo) GetUserByAccessHash(ctx context.Context, hash string, now time.Time) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByAccessHash, hash, now)
	return collectUser(rows)
}

const getUserByRefreshHash = `-- name: GetUserByRefreshHash
SELECT u.id, u.created_at, u.email, u.username, u.password_hash, u.is_active, u.is_verified
FROM users u
JOIN sessions s ON s.user_id = u.id
WHERE s.refresh_hash = $1 AND s.refresh_expires_at > $2
`

func (r *UserRepo) GetUserByRefreshHash(ctx context.Context, hash string, now time.Time) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByRefreshHash, hash, now)
	return collectUser(rows)
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Email, &u.Username, &u.HashedPassword, &u.IsActive, &u.IsVerified)
	return u, err
}
