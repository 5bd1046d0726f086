package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-backoffice-console/internal/model"
	"go-backoffice-console/pkg/apierror"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/v1/", srv.Client(), Paths{})
	require.NoError(t, err)
	return c
}

func TestNewRejectsRelativeBase(t *testing.T) {
	t.Parallel()

	_, err := New("/only/a/path", nil, Paths{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestURLKeepsBasePrefix(t *testing.T) {
	t.Parallel()

	c, err := New("https://api.example.com/v1/", nil, Paths{})
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/v1/auth/me", c.URL("/auth/me"))
	assert.Equal(t, "https://api.example.com/v1/products?page=2", c.URL("products?page=2"))
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("decodes enveloped credentials", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/auth/login", r.URL.Path)

			var in model.SignInRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "ada@example.com", in.Email)
			assert.Equal(t, "s3cret", in.Password)

			_, _ = io.WriteString(w, `{"success":true,"data":{"user":{"id":1,"fullName":"Ada"},"accessToken":"a1","refreshToken":"r1"}}`)
		}))

		creds, err := c.Login(context.Background(), "ada@example.com", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, "a1", creds.AccessToken)
		assert.Equal(t, "r1", creds.RefreshToken)
		require.NotNil(t, creds.User)
		assert.Equal(t, model.ID("1"), creds.User.ID)
	})

	t.Run("rejected credentials surface the backend error", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"success":false,"error":{"code":"INVALID_CREDENTIALS","message":"wrong password"}}`)
		}))

		_, err := c.Login(context.Background(), "ada@example.com", "nope")
		require.Error(t, err)

		var apiErr *apierror.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatus)
		assert.Equal(t, "INVALID_CREDENTIALS", apiErr.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"user":{"id":"1"}}`)
		}))

		_, err := c.Login(context.Background(), "ada@example.com", "s3cret")
		assert.ErrorIs(t, err, model.ErrAccessTokenRequired)
	})
}

func TestProfileReturnsRawBody(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/me", r.URL.Path)
		_, _ = io.WriteString(w, `{"profile":{"id":"9"}}`)
	}))

	raw, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"profile":{"id":"9"}}`, string(raw))
}

func TestDoUnwrapsEnvelope(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":{"count":3}}`)
	}))

	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/stats", nil, &out))
	assert.Equal(t, 3, out.Count)
}

func TestLogoutSendsRefreshToken(t *testing.T) {
	t.Parallel()

	var got model.LogoutRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/logout", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.Logout(context.Background(), "r1"))
	assert.Equal(t, "r1", got.RefreshToken)
}
