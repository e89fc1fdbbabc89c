package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"github.com/nkiryanov/authsession/internal/handlers/render"
	"github.com/nkiryanov/authsession/internal/handlers/userctx"
	"github.com/nkiryanov/authsession/internal/models"
)

type authService interface {
	CurrentIdentity(ctx context.Context, accessToken string) (models.Identity, bool, error)
}

type errorLogger interface {
	Error(msg string, args ...any)
}

// Get token from 'Authorization: Bearer <token>' header
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

// Resolve bearer token to user identity and put it to request context
// Requests without current access token are rejected with 401
func AuthMiddleware(as authService, l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				render.Unauthorized(w, "Unauthorized")
				return
			}

			identity, ok, err := as.CurrentIdentity(r.Context(), token)
			if err != nil {
				sentry.CaptureException(err)
				l.Error("failed to resolve access token", "error", err)
				render.InternalError(w)
				return
			}
			if !ok {
				render.Unauthorized(w, "Unauthorized")
				return
			}

			ctx := userctx.New(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
