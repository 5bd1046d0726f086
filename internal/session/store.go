// Package session owns the operator's console session: the access token,
// the refresh token and the hydrated profile. It is the single source of
// truth every other component reads; only SetCredentials and Logout mutate
// it, each as one critical section that includes the durable write.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go-backoffice-console/internal/event"
	"go-backoffice-console/internal/model"
	"go-backoffice-console/internal/permission"
	"go-backoffice-console/internal/storage"
	"go-backoffice-console/internal/token"
)

// Snapshot is an immutable view of the session. User must be treated as
// read-only by callers.
type Snapshot struct {
	AccessToken  string
	RefreshToken string
	User         *model.User
	Permissions  permission.Set
}

func (s Snapshot) IsAuthenticated() bool {
	return s.AccessToken != ""
}

func (s Snapshot) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID.String()
}

type Store struct {
	kv        storage.KV
	bus       event.Bus
	isExpired func(string) bool

	mu      sync.RWMutex
	current Snapshot
}

// NewStore creates an empty store. A nil bus gets a private in-memory bus;
// a nil isExpired uses token.IsExpired.
func NewStore(kv storage.KV, bus event.Bus, isExpired func(string) bool) *Store {
	if bus == nil {
		bus = event.NewBus()
	}
	if isExpired == nil {
		isExpired = token.IsExpired
	}

	return &Store{kv: kv, bus: bus, isExpired: isExpired}
}

// Restore loads the persisted tokens. An expired access token without a
// refresh token is discarded; an expired but refreshable one is kept
// because only the backend can judge the refresh token.
func (s *Store) Restore(ctx context.Context) Snapshot {
	s.mu.Lock()
	restored := s.restoreLocked(ctx)
	s.current = restored
	s.mu.Unlock()

	s.publish(event.TypeSessionRestored, restored, "")
	return restored
}

func (s *Store) restoreLocked(ctx context.Context) Snapshot {
	access, hasAccess, err := s.kv.Get(ctx, storage.KeyAccessToken)
	if err != nil {
		slog.Warn("session restore: read access token failed", "error", err)
		return Snapshot{}
	}

	refresh, hasRefresh, err := s.kv.Get(ctx, storage.KeyRefreshToken)
	if err != nil {
		slog.Warn("session restore: read refresh token failed", "error", err)
		return Snapshot{}
	}

	access = strings.TrimSpace(access)
	refresh = strings.TrimSpace(refresh)

	if !hasAccess || access == "" {
		if hasRefresh {
			// A refresh token without an access token cannot be presented.
			if err := s.kv.Delete(ctx, storage.KeyRefreshToken); err != nil {
				slog.Warn("session restore: drop orphan refresh token failed", "error", err)
			}
		}
		return Snapshot{}
	}

	if refresh == "" && s.isExpired(access) {
		slog.Info("session restore: discarding expired access token without refresh token")
		if err := s.kv.Delete(ctx, storage.KeyAccessToken); err != nil {
			slog.Warn("session restore: delete expired access token failed", "error", err)
		}
		return Snapshot{}
	}

	return Snapshot{AccessToken: access, RefreshToken: refresh}
}

// SetCredentials replaces the whole session. It is shared by login, refresh
// and profile sync. Storage failures are returned, but the in-memory session
// is updated regardless so the running process keeps working.
func (s *Store) SetCredentials(ctx context.Context, creds model.Credentials) error {
	creds.AccessToken = strings.TrimSpace(creds.AccessToken)
	creds.RefreshToken = strings.TrimSpace(creds.RefreshToken)
	if creds.AccessToken == "" {
		return model.ErrAccessTokenRequired
	}

	s.mu.Lock()
	s.current = Snapshot{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		User:         creds.User,
		Permissions:  permission.NewSet(creds.User),
	}
	err := s.persistLocked(ctx, creds)
	snap := s.current
	s.mu.Unlock()

	s.publish(event.TypeCredentialsSet, snap, "")
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context, creds model.Credentials) error {
	var errs []error
	if err := s.kv.Set(ctx, storage.KeyAccessToken, creds.AccessToken); err != nil {
		errs = append(errs, err)
	}

	if creds.RefreshToken != "" {
		if err := s.kv.Set(ctx, storage.KeyRefreshToken, creds.RefreshToken); err != nil {
			errs = append(errs, err)
		}
	} else if err := s.kv.Delete(ctx, storage.KeyRefreshToken); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Reasons carried by session events this package publishes itself.
const (
	ReasonExplicit = "explicit"
	ReasonExternal = "external"
)

// Logout clears the session and both persisted entries. It is idempotent.
func (s *Store) Logout(ctx context.Context) error {
	return s.logout(ctx, ReasonExplicit)
}

// ForceLogout is Logout with a reason recorded in the published event.
func (s *Store) ForceLogout(ctx context.Context, reason string) error {
	return s.logout(ctx, reason)
}

func (s *Store) logout(ctx context.Context, reason string) error {
	s.mu.Lock()
	previous := s.current
	s.current = Snapshot{}
	err := errors.Join(
		s.kv.Delete(ctx, storage.KeyAccessToken),
		s.kv.Delete(ctx, storage.KeyRefreshToken),
	)
	s.mu.Unlock()

	if previous.IsAuthenticated() {
		slog.Info("session logged out", "user_id", previous.UserID(), "reason", reason)
		s.publish(event.TypeLoggedOut, Snapshot{}, reason)
	}
	if err != nil {
		return fmt.Errorf("clear persisted session: %w", err)
	}
	return nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) AccessToken() string {
	return s.Snapshot().AccessToken
}

func (s *Store) RefreshToken() string {
	return s.Snapshot().RefreshToken
}

func (s *Store) User() *model.User {
	return s.Snapshot().User
}

func (s *Store) IsAuthenticated() bool {
	return s.Snapshot().IsAuthenticated()
}

func (s *Store) Permissions() permission.Set {
	return s.Snapshot().Permissions
}

// Subscribe returns a channel of session events and its unsubscribe func.
func (s *Store) Subscribe() (<-chan event.Event, func()) {
	return s.bus.Subscribe()
}

func (s *Store) publish(typ event.Type, snap Snapshot, reason string) {
	s.bus.Publish(event.New(typ, snap.UserID(), event.SessionPayload{
		Authenticated: snap.IsAuthenticated(),
		HasProfile:    snap.User != nil,
		Reason:        reason,
	}))
}
