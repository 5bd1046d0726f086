package session

import (
	"context"
	"log/slog"

	"go-backoffice-console/internal/event"
	"go-backoffice-console/internal/storage"
)

// WatchStorage follows changes other console processes make to the shared
// storage until ctx is done. A removed access token logs this process out;
// a different access token replaces the tokens and drops the cached profile
// so it is fetched again for the new owner.
func (s *Store) WatchStorage(ctx context.Context) error {
	watcher, ok := s.kv.(storage.Watcher)
	if !ok {
		return storage.ErrWatchUnsupported
	}

	changes, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}

	for change := range changes {
		s.applyExternal(ctx, change)
	}
	return ctx.Err()
}

func (s *Store) applyExternal(ctx context.Context, change storage.Change) {
	switch change.Key {
	case storage.KeyAccessToken:
		if change.Deleted || change.Value == "" {
			s.mu.Lock()
			previous := s.current
			s.current = Snapshot{}
			s.mu.Unlock()

			if previous.IsAuthenticated() {
				slog.Info("session cleared by another console process", "user_id", previous.UserID())
				s.publish(event.TypeLoggedOut, Snapshot{}, ReasonExternal)
			}
			return
		}

		refresh, _, err := s.kv.Get(ctx, storage.KeyRefreshToken)
		if err != nil {
			slog.Warn("session sync: read refresh token failed", "error", err)
		}

		s.mu.Lock()
		if s.current.AccessToken == change.Value {
			s.mu.Unlock()
			return
		}
		s.current = Snapshot{AccessToken: change.Value, RefreshToken: refresh}
		snap := s.current
		s.mu.Unlock()

		slog.Info("session tokens replaced by another console process")
		s.publish(event.TypeCredentialsSet, snap, ReasonExternal)

	case storage.KeyRefreshToken:
		s.mu.Lock()
		if !s.current.IsAuthenticated() || s.current.RefreshToken == change.Value {
			s.mu.Unlock()
			return
		}
		if change.Deleted {
			s.current.RefreshToken = ""
		} else {
			s.current.RefreshToken = change.Value
		}
		s.mu.Unlock()
	}
}
