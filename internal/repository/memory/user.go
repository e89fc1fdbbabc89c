package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/models"
	"github.com/nkiryanov/authsession/internal/repository"
)

type UserRepo struct {
	st *state
}

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	defer r.st.write()()

	// Same check order as unique constraints are reported by postgres: email first
	for _, u := range r.st.users {
		if u.Email == arg.Email {
			return models.User{}, apperrors.ErrEmailTaken
		}
	}
	for _, u := range r.st.users {
		if u.Username == arg.Username {
			return models.User{}, apperrors.ErrUsernameTaken
		}
	}

	user := models.User{
		ID:             uuid.New(),
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
		Email:          arg.Email,
		Username:       arg.Username,
		HashedPassword: arg.HashedPassword,
		IsActive:       arg.IsActive,
		IsVerified:     arg.IsVerified,
	}
	r.st.users[user.ID] = user

	return user, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	defer r.st.read()()

	user, ok := r.st.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}

	return user, nil
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == email })
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username })
}

func (r *UserRepo) GetUserByAccessHash(ctx context.Context, hash string, now time.Time) (models.User, error) {
	return r.findBySession(func(s models.Session) bool {
		return s.AccessHash == hash && s.AccessExpiresAt.After(now)
	})
}

func (r *UserRepo) GetUserByRefreshHash(ctx context.Context, hash string, now time.Time) (models.User, error) {
	return r.findBySession(func(s models.Session) bool {
		return s.RefreshHash == hash && s.RefreshExpiresAt.After(now)
	})
}

func (r *UserRepo) find(match func(models.User) bool) (models.User, error) {
	defer r.st.read()()

	for _, u := range r.st.users {
		if match(u) {
			return u, nil
		}
	}

	return models.User{}, apperrors.ErrUserNotFound
}

// Session predicate and user lookup run under one read lock
func (r *UserRepo) findBySession(match func(models.Session) bool) (models.User, error) {
	defer r.st.read()()

	for _, s := range r.st.sessions {
		if !match(s) {
			continue
		}
		if u, ok := r.st.users[s.UserID]; ok {
			return u, nil
		}
	}

	return models.User{}, apperrors.ErrUserNotFound
}
