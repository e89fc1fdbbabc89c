package render

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Serve one request with h and return the response with its body
func serve(t *testing.T, h http.HandlerFunc, body string) (*http.Response, string) {
	t.Helper()

	ts := httptest.NewServer(h)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/test", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(data)
}

func TestRender_JSON(t *testing.T) {
	resp, body := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		JSONWithStatus(w, map[string]any{"access_token": "a", "token_type": "bearer"}, http.StatusCreated)
	}, "")

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"), "token responses must not be cached")
	assert.JSONEq(t, `{"access_token": "a", "token_type": "bearer"}`, body)
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name       string
		render     func(w http.ResponseWriter)
		code       int
		body       string
		authHeader string
	}{
		{
			name:   "service error",
			render: func(w http.ResponseWriter) { ServiceError(w, "Account disabled", http.StatusForbidden) },
			code:   http.StatusForbidden,
			body:   `{"error": "service_error", "message": "Account disabled"}`,
		},
		{
			name:       "unauthorized",
			render:     func(w http.ResponseWriter) { Unauthorized(w, "Invalid token") },
			code:       http.StatusUnauthorized,
			body:       `{"error": "service_error", "message": "Invalid token"}`,
			authHeader: "Bearer",
		},
		{
			name:   "internal",
			render: InternalError,
			code:   http.StatusInternalServerError,
			body:   `{"error": "service_error", "message": "Internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := serve(t, func(w http.ResponseWriter, _ *http.Request) { tt.render(w) }, "")

			require.Equal(t, tt.code, resp.StatusCode)
			assert.JSONEq(t, tt.body, body)
			assert.Equal(t, tt.authHeader, resp.Header.Get("WWW-Authenticate"))
		})
	}
}

func TestRender_BindAndValidate(t *testing.T) {
	type credentials struct {
		Email    string `json:"email" validate:"required,email"`
		Username string `json:"username" validate:"omitempty,min=3,username"`
		Password string `json:"password" validate:"required,min=8"`
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		data, err := BindAndValidate[credentials](w, r)
		if err != nil {
			return
		}
		JSON(w, map[string]string{"email": data.Email})
	}

	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{
			name: "valid request",
			body: `{"email": "a@x.com", "password": "StrongEnough"}`,
			code: http.StatusOK,
			want: `{"email": "a@x.com"}`,
		},
		{
			name: "invalid json",
			body: `invalid-json`,
			code: http.StatusBadRequest,
			want: `{
				"error": "decoding_failed",
				"message": "Failed to parse JSON: invalid character 'i' looking for beginning of value"
			}`,
		},
		{
			name: "invalid type",
			body: `{"email": "a@x.com", "password": 12345678}`,
			code: http.StatusBadRequest,
			want: `{"error": "decoding_failed", "message": "Invalid data type for field 'password'"}`,
		},
		{
			name: "empty body",
			body: ``,
			code: http.StatusBadRequest,
			want: `{"error": "decoding_failed", "message": "Request body is empty"}`,
		},
		{
			name: "too large body",
			body: `{"email": "` + strings.Repeat("a", maxBodySize) + `"}`,
			code: http.StatusRequestEntityTooLarge,
			want: `{"error": "decoding_failed", "message": "Request body is too large (maximum 65536 bytes)"}`,
		},
		{
			name: "validation failed",
			body: `{"email": "not-an-email", "username": "a b", "password": "short"}`,
			code: http.StatusBadRequest,
			want: `{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {
					"email": "Invalid email address",
					"username": "Only latin letters, digits, '_', '-' and '.' are allowed",
					"password": "Value is too short (minimum 8)"
				}
			}`,
		},
		{
			name: "required fields",
			body: `{}`,
			code: http.StatusBadRequest,
			want: `{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {
					"email": "This field is required",
					"password": "This field is required"
				}
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := serve(t, handler, tt.body)

			require.Equalf(t, tt.code, resp.StatusCode, "unexpected status. Body: %s", body)
			assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
			assert.JSONEq(t, tt.want, body)
		})
	}
}

func TestRender_validateUsername(t *testing.T) {
	type T struct {
		Username string `json:"username" validate:"username"`
	}

	tests := []struct {
		username string
		valid    bool
	}{
		{username: "alice", valid: true},
		{username: "Alice_2.0-beta", valid: true},
		{username: "", valid: true},
		{username: "alice smith", valid: false},
		{username: "алиса", valid: false},
		{username: "alice@x", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			err := validate.Struct(T{Username: tt.username})

			if tt.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
