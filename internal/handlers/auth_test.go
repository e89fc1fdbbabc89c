package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/metrics"
	"github.com/nkiryanov/authsession/internal/repository"
	"github.com/nkiryanov/authsession/internal/repository/memory"
	"github.com/nkiryanov/authsession/internal/service/auth"
	"github.com/nkiryanov/authsession/internal/service/auth/tokenmanager"
)

type testServer struct {
	URL     string
	auth    *auth.AuthService
	storage repository.Storage
}

// Run http server with production router and auth service on memory storage
func startServer(t *testing.T) testServer {
	t.Helper()

	storage := memory.NewStorage()

	tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"})
	require.NoError(t, err, "token manager should be created without errors")

	s, err := auth.NewService(auth.Config{Hasher: auth.BcryptHasher{Cost: bcrypt.MinCost}}, tokens, storage)
	require.NoError(t, err, "auth service starting error")

	srv := httptest.NewServer(NewRouter(s, logger.NewNoOpLogger(), metrics.New(), []string{"*"}))
	t.Cleanup(srv.Close)

	return testServer{URL: srv.URL, auth: s, storage: storage}
}

func do(t *testing.T, method string, url string, body string, bearer string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck

	return resp, string(respBody)
}

type tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func login(t *testing.T, srv testServer) tokens {
	t.Helper()

	_, err := srv.auth.Register(t.Context(), "a@x.com", "alice", "StrongEnoughPassword")
	require.NoError(t, err)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/auth/login", `{"email": "a@x.com", "password": "StrongEnoughPassword"}`, "")
	require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

	var pair tokens
	require.NoError(t, json.Unmarshal([]byte(body), &pair))
	return pair
}

func Test_Router(t *testing.T) {
	t.Parallel()

	t.Run("root", func(t *testing.T) {
		srv := startServer(t)

		resp, body := do(t, http.MethodGet, srv.URL+"/", "", "")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.JSONEq(t, `{"message": "Welcome to authsession API"}`, body)
	})

	t.Run("unknown path", func(t *testing.T) {
		srv := startServer(t)

		resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/unknown", "", "")

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("wrong method", func(t *testing.T) {
		srv := startServer(t)

		resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/auth/login", "", "")

		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("metrics", func(t *testing.T) {
		srv := startServer(t)
		do(t, http.MethodGet, srv.URL+"/", "", "")

		resp, body := do(t, http.MethodGet, srv.URL+"/metrics", "", "")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, `authsession_http_requests_total{code="200",method="GET",route="GET /{$}"} 1`)
	})

	t.Run("cors preflight", func(t *testing.T) {
		srv := startServer(t)
		req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/auth/login", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "https://shop.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("metrics per endpoint", func(t *testing.T) {
		srv := startServer(t)
		do(t, http.MethodPost, srv.URL+"/api/v1/auth/register", `{"email": "a@x.com", "username": "alice", "password": "StrongEnoughPassword"}`, "")
		do(t, http.MethodPost, srv.URL+"/api/v1/auth/login", `{"email": "a@x.com", "password": "WrongPassword"}`, "")
		do(t, http.MethodPost, srv.URL+"/api/v1/auth/refresh", `{"refresh_token": "not-a-token"}`, "")
		do(t, http.MethodGet, srv.URL+"/api/v1/users/profile", "", "")

		_, body := do(t, http.MethodGet, srv.URL+"/metrics", "", "")

		for _, series := range []string{
			`authsession_http_requests_total{code="201",method="POST",route="POST /api/v1/auth/register"} 1`,
			`authsession_http_requests_total{code="401",method="POST",route="POST /api/v1/auth/login"} 1`,
			`authsession_http_requests_total{code="401",method="POST",route="POST /api/v1/auth/refresh"} 1`,
			`authsession_http_requests_total{code="401",method="GET",route="GET /api/v1/users/profile"} 1`,
		} {
			require.Contains(t, body, series)
		}
	})
}

func Test_AuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("register ok", func(t *testing.T) {
		srv := startServer(t)
		data := `{"email": "a@x.com", "username": "alice", "password": "StrongEnoughPassword"}`

		resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/auth/register", data, "")

		require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
		var identity map[string]any
		require.NoError(t, json.Unmarshal([]byte(body), &identity))
		require.Equal(t, "a@x.com", identity["email"])
		require.Equal(t, "alice", identity["username"])
		require.Equal(t, true, identity["is_active"])
		require.Equal(t, false, identity["is_verified"])
		require.NotEmpty(t, identity["id"])
		require.NotContains(t, body, "password", "password hash must never be returned")
	})

	t.Run("register conflicts", func(t *testing.T) {
		tests := []struct {
			name    string
			data    string
			message string
		}{
			{
				name:    "email taken",
				data:    `{"email": "a@x.com", "username": "bob", "password": "StrongEnoughPassword"}`,
				message: "Email already registered",
			},
			{
				name:    "username taken",
				data:    `{"email": "b@x.com", "username": "alice", "password": "StrongEnoughPassword"}`,
				message: "Username already taken",
			},
			{
				name:    "both taken",
				data:    `{"email": "a@x.com", "username": "alice", "password": "StrongEnoughPassword"}`,
				message: "Email and username already taken",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := startServer(t)
				_, err := srv.auth.Register(t.Context(), "a@x.com", "alice", "StrongEnoughPassword")
				require.NoError(t, err)

				resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/auth/register", tt.data, "")

				require.Equalf(t, http.StatusConflict, resp.StatusCode, "not expected code. Body: %s", body)
				require.JSONEq(t, `{"error": "service_error", "message": "`+tt.message+`"}`, body)
			})
		}
	})

	t.Run("register validation", func(t *testing.T) {
		srv := startServer(t)
		data := `{"email": "not-an-email", "username": "a b", "password": "short"}`

		resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/auth/register", data, "")

		require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {
					"email": "Invalid email address",
					"username": "Only latin letters, digits, '_', '-' and '.' are allowed",
					"password": "Value is too short (minimum 8)"
				}
			}`, body)
	})

	t.Run("login ok", func(t *testing.T) {
		srv := startServer(t)

		pair := login(t, srv)

		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		require.NotEqual(t, pair.AccessToken, pair.RefreshToken)
		require.Equal(t, "bearer", pair.TokenType)
	})

	t.Run("login failed", func(t *testing.T) {
		srv := startServer(t)
		_, err := srv.auth.Register(t.Context(), "a@x.com", "alice", "StrongEnoughPassword")
		require.NoError(t, err)

		for _, data := range []string{
			`{"email": "a@x.com", "password": "WrongPassword"}`,
			`{"email": "nobody@x.com", "password": "StrongEnoughPassword"}`,
		} {
			resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/auth/login", data, "")

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Invalid email or password"
				}`, body)
		}
	})

	t.Run("login disabled user", func(t *testing.T) {
		srv := startServer(t)
		hash, err := auth.BcryptHasher{Cost: bcrypt.MinCost}.Hash("StrongEnoughPassword")
		require.NoError(t, err)
		_, err = srv.storage.User().CreateUser(t.Context(), repository.CreateUserParams{
			Email:          "d@x.com",
			Username:       "dave",
			HashedPassword: hash,
			IsActive:       false,
		})
		require.NoError(t, err)

		resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/auth/login", `{"email": "d@x.com", "password": "StrongEnoughPassword"}`, "")

		require.Equalf(t, http.StatusForbidden, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `{"error": "service_error", "message": "Account disabled"}`, body)
	})

	t.Run("refresh token ok", func(t *testing.T) {
		srv := startServer(t)
		first := login(t, srv)

		resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/auth/refresh", `{"refresh_token": "`+first.RefreshToken+`"}`, "")

		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		var second tokens
		require.NoError(t, json.Unmarshal([]byte(body), &second))
		require.NotEqual(t, first.RefreshToken, second.RefreshToken, "refresh token should be changed after refresh")
		require.NotEqual(t, first.AccessToken, second.AccessToken, "access token should be changed after refresh")
		require.Equal(t, "bearer", second.TokenType)
	})

	t.Run("refresh twice fail", func(t *testing.T) {
		srv := startServer(t)
		first := login(t, srv)
		data := `{"refresh_token": "` + first.RefreshToken + `"}`

		resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/auth/refresh", data, "")
		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

		resp, body = do(t, http.MethodPost, srv.URL+"/api/v1/auth/refresh", data, "")
		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"error": "service_error",
				"message": "Invalid token"
			}`, body)
		require.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
	})

	t.Run("refresh without token", func(t *testing.T) {
		srv := startServer(t)

		resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/auth/refresh", `{}`, "")

		require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
	})

	t.Run("me", func(t *testing.T) {
		srv := startServer(t)
		pair := login(t, srv)

		resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/auth/me", "", pair.AccessToken)

		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		var identity map[string]any
		require.NoError(t, json.Unmarshal([]byte(body), &identity))
		require.Equal(t, "a@x.com", identity["email"])
		require.Equal(t, "alice", identity["username"])
	})

	t.Run("me unauthorized", func(t *testing.T) {
		srv := startServer(t)
		pair := login(t, srv)

		for _, bearer := range []string{"", "garbage", pair.RefreshToken} {
			resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/auth/me", "", bearer)

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
		}
	})

	t.Run("logout", func(t *testing.T) {
		srv := startServer(t)
		pair := login(t, srv)

		resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/auth/logout", "", pair.AccessToken)
		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `{"message": "Successfully logged out"}`, body)

		resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/auth/me", "", pair.AccessToken)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "access token must not work after logout")

		resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/auth/refresh", `{"refresh_token": "`+pair.RefreshToken+`"}`, "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "refresh token must not work after logout")
	})

	t.Run("logout without token", func(t *testing.T) {
		srv := startServer(t)

		for _, bearer := range []string{"", "garbage"} {
			resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/auth/logout", "", bearer)

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
		}
	})
}

func Test_UserHandlers(t *testing.T) {
	t.Parallel()

	t.Run("profile", func(t *testing.T) {
		srv := startServer(t)
		pair := login(t, srv)

		resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/users/profile", "", pair.AccessToken)

		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		var profile struct {
			Email     string    `json:"email"`
			CreatedAt time.Time `json:"created_at"`
			Session   *struct {
				AccessExpiresAt  time.Time `json:"access_expires_at"`
				RefreshExpiresAt time.Time `json:"refresh_expires_at"`
			} `json:"session"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &profile))
		require.Equal(t, "a@x.com", profile.Email)
		require.False(t, profile.CreatedAt.IsZero())
		require.NotNil(t, profile.Session, "logged in user has a session")
		require.True(t, profile.Session.RefreshExpiresAt.After(profile.Session.AccessExpiresAt), "refresh token outlives access token")
		require.NotContains(t, body, "hash", "token digests must never be returned")
	})

	t.Run("profile unauthorized", func(t *testing.T) {
		srv := startServer(t)

		resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/users/profile", "", "")

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("update profile not implemented", func(t *testing.T) {
		srv := startServer(t)
		pair := login(t, srv)

		resp, _ := do(t, http.MethodPut, srv.URL+"/api/v1/users/profile", `{}`, pair.AccessToken)

		require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	})
}
