package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/handlers/middleware"
	"github.com/nkiryanov/authsession/internal/handlers/render"
	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/metrics"
	"github.com/nkiryanov/authsession/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// corsOrigins are origins allowed to call the API from browsers, "*" allows any
func NewRouter(authService authService, logger logger.Logger, metrics *metrics.Metrics, corsOrigins []string) http.Handler {
	withAuth := middleware.AuthMiddleware(authService, logger)

	// Full patterns on one mux: the matched pattern labels request metrics
	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/auth/register", handleRegister(authService, logger))
	mux.Handle("POST /api/v1/auth/login", handleLogin(authService, logger))
	mux.Handle("POST /api/v1/auth/refresh", handleRefresh(authService, logger))
	mux.Handle("POST /api/v1/auth/logout", handleLogout(authService, logger))
	mux.Handle("GET /api/v1/auth/me", withAuth(handleMe()))

	mux.Handle("GET /api/v1/users/profile", withAuth(handleUserProfile(authService, logger)))
	mux.Handle("PUT /api/v1/users/profile", withAuth(handleUpdateProfile()))

	mux.Handle("GET /{$}", handleRoot())
	mux.Handle("GET /metrics", metrics.Handler())

	// Metrics wraps recover so requests ended by panic are counted as 500
	handler := chain(mux,
		middleware.LoggerMiddleware(logger),
		middleware.MetricsMiddleware(metrics),
		middleware.RecoverMiddleware(logger),
		middleware.CORSMiddleware(corsOrigins),
	)

	return handler
}

func handleRoot() http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, response{Message: "Welcome to authsession API"})
	})
}

type authService interface {
	// Register user
	// Has to return apperrors.ErrEmailTaken and/or apperrors.ErrUsernameTaken if user already exists
	Register(ctx context.Context, email string, username string, password string) (models.Identity, error)

	// Login user with email and password
	// Has to return apperrors.ErrInvalidCredentials or apperrors.ErrAccountDisabled on failure
	Login(ctx context.Context, email string, password string) (models.TokenPair, error)

	// Rotate tokens using current refresh token
	// Has to return apperrors.ErrInvalidToken if token not valid, expired or already used
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)

	// End session of access token owner
	Logout(ctx context.Context, accessToken string) error

	// Resolve access token to identity, false if token is not the current one
	CurrentIdentity(ctx context.Context, accessToken string) (models.Identity, bool, error)

	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)

	// Has to return apperrors.ErrSessionNotFound if user has no session
	GetSession(ctx context.Context, userID uuid.UUID) (models.Session, error)
}
