package profile_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-backoffice-console/internal/api"
	"go-backoffice-console/internal/event"
	"go-backoffice-console/internal/gateway"
	"go-backoffice-console/internal/profile"
	"go-backoffice-console/internal/session"
	"go-backoffice-console/internal/storage"
)

type navLog struct {
	mu    sync.Mutex
	paths []string
}

func (n *navLog) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *navLog) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func TestReconcileThroughGatewayOnInvalidSession(t *testing.T) {
	var profileCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profileCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(498)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"SESSION_INVALID","message":"revoked"}}`))
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, storage.KeyAccessToken, "access-1"))
	require.NoError(t, kv.Set(ctx, storage.KeyRefreshToken, "refresh-1"))

	bus := event.NewBus()
	store := session.NewStore(kv, bus, func(string) bool { return false })
	store.Restore(ctx)

	events, unsubscribe := store.Subscribe()
	t.Cleanup(unsubscribe)

	httpClient := &http.Client{}
	client, err := api.New(srv.URL, httpClient, api.DefaultPaths())
	require.NoError(t, err)
	httpClient.Transport = gateway.New(srv.Client().Transport, store, gateway.Config{
		RefreshURL: client.URL(client.Paths().Refresh),
	}, nil)

	nav := &navLog{}
	r := profile.New(client, store, nav, bus, profile.Config{SignInPath: "/signin"}, nil)
	t.Cleanup(r.Close)

	state := r.Reconcile(ctx, "/modules/orders")

	assert.Equal(t, profile.StateSignedOut, state)
	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, []string{"/signin"}, nav.visited())
	assert.Equal(t, int32(1), profileCalls.Load())

	// The gateway logs out first; the reconciler's own logout is a no-op.
	var reasons []string
	for len(events) > 0 {
		ev := <-events
		if ev.Type != event.TypeLoggedOut {
			continue
		}
		payload, ok := ev.Payload.(event.SessionPayload)
		require.True(t, ok)
		reasons = append(reasons, payload.Reason)
	}
	assert.Equal(t, []string{gateway.ReasonSessionInvalid}, reasons)
}
