package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/models"
)

type CreateUserParams struct {
	Email          string
	Username       string
	HashedPassword string
	IsActive       bool
	IsVerified     bool
}

// User repository interface
type UserRepo interface {
	// Create user
	// If email is taken has to return apperrors.ErrEmailTaken
	// If username is taken has to return apperrors.ErrUsernameTaken
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by it's id, email or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// Get user whose current session has the access (refresh) hash and that hash expires after 'now'
	// Hash and expiry must be checked in one predicate
	// If no such user must return apperrors.ErrUserNotFound
	GetUserByAccessHash(ctx context.Context, hash string, now time.Time) (models.User, error)
	GetUserByRefreshHash(ctx context.Context, hash string, now time.Time) (models.User, error)
}

// Session repository interface
type SessionRepo interface {
	// Overwrite all session fields of the user in a single write
	// Previous session (if any) is discarded even if not expired yet
	SetSession(ctx context.Context, session models.Session) error

	// Remove user session. It's not an error if user has no session
	ClearSession(ctx context.Context, userID uuid.UUID) error

	// Return user session
	// If user has no session must return apperrors.ErrSessionNotFound
	GetSession(ctx context.Context, userID uuid.UUID) (models.Session, error)

	// Delete sessions which refresh token expired before 'now'
	DeleteExpired(ctx context.Context, now time.Time) (deleted int64, err error)
}

type Storage interface {
	User() UserRepo
	Session() SessionRepo

	// Run fn with storage bound to one transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
