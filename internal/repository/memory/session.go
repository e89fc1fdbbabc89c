package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/models"
)

type SessionRepo struct {
	st *state
}

func (r *SessionRepo) SetSession(ctx context.Context, session models.Session) error {
	defer r.st.write()()

	if _, ok := r.st.users[session.UserID]; !ok {
		return apperrors.ErrUserNotFound
	}
	r.st.sessions[session.UserID] = session

	return nil
}

func (r *SessionRepo) ClearSession(ctx context.Context, userID uuid.UUID) error {
	defer r.st.write()()

	delete(r.st.sessions, userID)

	return nil
}

func (r *SessionRepo) GetSession(ctx context.Context, userID uuid.UUID) (models.Session, error) {
	defer r.st.read()()

	session, ok := r.st.sessions[userID]
	if !ok {
		return models.Session{}, apperrors.ErrSessionNotFound
	}

	return session, nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.st.write()()

	var deleted int64
	for userID, s := range r.st.sessions {
		if !s.RefreshExpiresAt.After(now) {
			delete(r.st.sessions, userID)
			deleted++
		}
	}

	return deleted, nil
}
