package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-backoffice-console/internal/model"
	"go-backoffice-console/internal/session"
	"go-backoffice-console/internal/storage"
	"go-backoffice-console/pkg/apierror"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Login(ctx context.Context, email string, password string) (model.Credentials, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(model.Credentials), args.Error(1)
}

func (m *mockBackend) Logout(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func newStore() *session.Store {
	return session.NewStore(storage.NewMemory(), nil, func(string) bool { return false })
}

func TestAuthService_SignIn(t *testing.T) {
	t.Run("stores returned credentials", func(t *testing.T) {
		backend := new(mockBackend)
		store := newStore()
		svc := NewAuthService(backend, store)

		creds := model.Credentials{
			User:         &model.User{ID: "1", Email: "ada@example.com"},
			AccessToken:  "a1",
			RefreshToken: "r1",
		}
		backend.On("Login", mock.Anything, "ada@example.com", "pw").Return(creds, nil)

		snap, err := svc.SignIn(context.Background(), "  ada@example.com ", "pw")

		require.NoError(t, err)
		assert.True(t, snap.IsAuthenticated())
		assert.Equal(t, "a1", store.AccessToken())
		assert.Equal(t, "r1", store.RefreshToken())
		backend.AssertExpectations(t)
	})

	t.Run("missing fields never reach the backend", func(t *testing.T) {
		backend := new(mockBackend)
		svc := NewAuthService(backend, newStore())

		_, err := svc.SignIn(context.Background(), "", "pw")

		assert.Equal(t, http.StatusBadRequest, apierror.StatusOf(err))
		backend.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("backend rejection leaves session empty", func(t *testing.T) {
		backend := new(mockBackend)
		store := newStore()
		svc := NewAuthService(backend, store)

		rejected := apierror.New("INVALID_CREDENTIALS", "wrong password", "", http.StatusUnauthorized)
		backend.On("Login", mock.Anything, "ada@example.com", "bad").Return(model.Credentials{}, rejected)

		_, err := svc.SignIn(context.Background(), "ada@example.com", "bad")

		assert.Equal(t, http.StatusUnauthorized, apierror.StatusOf(err))
		assert.False(t, store.IsAuthenticated())
	})
}

func TestAuthService_SignOut(t *testing.T) {
	t.Run("revokes refresh token then clears session", func(t *testing.T) {
		backend := new(mockBackend)
		store := newStore()
		require.NoError(t, store.SetCredentials(context.Background(), model.Credentials{AccessToken: "a1", RefreshToken: "r1"}))
		svc := NewAuthService(backend, store)

		backend.On("Logout", mock.Anything, "r1").Return(nil)

		require.NoError(t, svc.SignOut(context.Background()))
		assert.False(t, store.IsAuthenticated())
		backend.AssertExpectations(t)
	})

	t.Run("backend failure still clears session", func(t *testing.T) {
		backend := new(mockBackend)
		store := newStore()
		require.NoError(t, store.SetCredentials(context.Background(), model.Credentials{AccessToken: "a1", RefreshToken: "r1"}))
		svc := NewAuthService(backend, store)

		backend.On("Logout", mock.Anything, "r1").Return(errors.New("connection refused"))

		require.NoError(t, svc.SignOut(context.Background()))
		assert.False(t, store.IsAuthenticated())
	})

	t.Run("no refresh token skips backend", func(t *testing.T) {
		backend := new(mockBackend)
		store := newStore()
		require.NoError(t, store.SetCredentials(context.Background(), model.Credentials{AccessToken: "a1"}))
		svc := NewAuthService(backend, store)

		require.NoError(t, svc.SignOut(context.Background()))
		backend.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
		assert.False(t, store.IsAuthenticated())
	})
}
