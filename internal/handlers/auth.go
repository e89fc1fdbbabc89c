package handlers

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/handlers/middleware"
	"github.com/nkiryanov/authsession/internal/handlers/render"
	"github.com/nkiryanov/authsession/internal/handlers/userctx"
	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/models"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func newTokenResponse(pair models.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		TokenType:    pair.TokenType,
	}
}

// Map auth service errors to http responses
func renderAuthError(w http.ResponseWriter, err error, l logger.Logger) {
	emailTaken := errors.Is(err, apperrors.ErrEmailTaken)
	usernameTaken := errors.Is(err, apperrors.ErrUsernameTaken)

	switch {
	case emailTaken && usernameTaken:
		render.ServiceError(w, "Email and username already taken", http.StatusConflict)
	case emailTaken:
		render.ServiceError(w, "Email already registered", http.StatusConflict)
	case usernameTaken:
		render.ServiceError(w, "Username already taken", http.StatusConflict)
	case errors.Is(err, apperrors.ErrValidationConflict):
		render.ServiceError(w, "User already exists", http.StatusConflict)
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrAccountDisabled):
		render.ServiceError(w, "Account disabled", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrInvalidToken):
		render.Unauthorized(w, "Invalid token")
	default:
		sentry.CaptureException(err)
		l.Error("Auth request failed", "error", err)
		render.InternalError(w)
	}
}

func handleRegister(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email,max=255"`
		Username string `json:"username" validate:"required,min=3,max=50,username"`
		Password string `json:"password" validate:"required,min=8,max=128"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		identity, err := authService.Register(r.Context(), data.Email, data.Username, data.Password)
		if err != nil {
			renderAuthError(w, err, l)
			return
		}

		render.JSONWithStatus(w, identity, http.StatusCreated)
	})
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Login(r.Context(), data.Email, data.Password)
		if err != nil {
			renderAuthError(w, err, l)
			return
		}

		render.JSON(w, newTokenResponse(pair))
	})
}

func handleRefresh(authService authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Refresh(r.Context(), data.RefreshToken)
		if err != nil {
			renderAuthError(w, err, l)
			return
		}

		render.JSON(w, newTokenResponse(pair))
	})
}

// Logout is not behind auth middleware: the session owner is found by token subject
func handleLogout(authService authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := middleware.BearerToken(r)
		if !ok {
			render.Unauthorized(w, "Unauthorized")
			return
		}

		if err := authService.Logout(r.Context(), token); err != nil {
			renderAuthError(w, err, l)
			return
		}

		render.JSON(w, response{Message: "Successfully logged out"})
	})
}

func handleMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := userctx.FromContext(r.Context())
		if !ok {
			render.InternalError(w)
			return
		}

		render.JSON(w, identity)
	})
}
