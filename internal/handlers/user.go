package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/handlers/render"
	"github.com/nkiryanov/authsession/internal/handlers/userctx"
	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/models"
)

type sessionInfo struct {
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type profileResponse struct {
	models.Identity
	Session *sessionInfo `json:"session"`
}

// Fresh user data from storage, not the identity resolved by middleware
// Session is null if it was ended between auth check and the lookup
func handleUserProfile(authService authService, l logger.Logger) http.Handler {
	fail := func(w http.ResponseWriter, err error, msg string, identity models.Identity) {
		sentry.CaptureException(err)
		l.Error(msg, "error", err, "user_id", identity.ID)
		render.InternalError(w)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := userctx.FromContext(r.Context())
		if !ok {
			render.InternalError(w)
			return
		}

		user, err := authService.GetUserByID(r.Context(), identity.ID)
		if err != nil {
			fail(w, err, "Failed to get user profile", identity)
			return
		}

		response := profileResponse{Identity: user.Identity()}

		session, err := authService.GetSession(r.Context(), identity.ID)
		switch {
		case err == nil:
			response.Session = &sessionInfo{
				AccessExpiresAt:  session.AccessExpiresAt,
				RefreshExpiresAt: session.RefreshExpiresAt,
			}
		case !errors.Is(err, apperrors.ErrSessionNotFound):
			fail(w, err, "Failed to get user session", identity)
			return
		}

		render.JSON(w, response)
	})
}

func handleUpdateProfile() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.ServiceError(w, "Profile update is not implemented yet", http.StatusNotImplemented)
	})
}
