package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"go-backoffice-console/internal/model"
	"go-backoffice-console/internal/session"
	"go-backoffice-console/pkg/apierror"
)

// Backend is the part of the API client the auth service needs.
type Backend interface {
	Login(ctx context.Context, email string, password string) (model.Credentials, error)
	Logout(ctx context.Context, refreshToken string) error
}

type SessionStore interface {
	Snapshot() session.Snapshot
	SetCredentials(ctx context.Context, creds model.Credentials) error
	Logout(ctx context.Context) error
}

type AuthService struct {
	backend Backend
	session SessionStore
}

func NewAuthService(backend Backend, store SessionStore) *AuthService {
	return &AuthService{backend: backend, session: store}
}

// SignIn exchanges email and password for credentials and stores them. The
// login answer may omit the profile; the reconciler fills it in later.
func (s *AuthService) SignIn(ctx context.Context, email string, password string) (session.Snapshot, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return session.Snapshot{}, apierror.New("BAD_REQUEST", "email and password are required", "", http.StatusBadRequest)
	}

	creds, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return session.Snapshot{}, err
	}

	if err := s.session.SetCredentials(ctx, creds); err != nil {
		if creds.AccessToken == "" {
			return session.Snapshot{}, err
		}
		slog.Warn("signed in but session could not be persisted", "error", err)
	}

	snap := s.session.Snapshot()
	slog.Info("operator signed in", "user_id", snap.UserID(), "has_profile", snap.User != nil)
	return snap, nil
}

// SignOut notifies the backend on a best-effort basis, then clears the
// local session whatever the backend answered.
func (s *AuthService) SignOut(ctx context.Context) error {
	snap := s.session.Snapshot()
	if snap.RefreshToken != "" {
		if err := s.backend.Logout(ctx, snap.RefreshToken); err != nil {
			slog.Warn("backend logout failed; clearing local session anyway", "error", err)
		}
	}

	return s.session.Logout(ctx)
}
