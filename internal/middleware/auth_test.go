package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-backoffice-console/internal/model"
	"go-backoffice-console/internal/permission"
	"go-backoffice-console/internal/profile"
	"go-backoffice-console/internal/session"
	"go-backoffice-console/internal/storage"
)

type stubProfiles struct {
	state profile.State
	err   error
}

func (s *stubProfiles) Mount(string) profile.State { return s.state }
func (s *stubProfiles) Reconcile(context.Context, string) profile.State {
	return s.state
}
func (s *stubProfiles) State() (profile.State, error) { return s.state, s.err }

func signedIn(t *testing.T, names ...string) *session.Store {
	t.Helper()

	perms := make([]model.Permission, 0, len(names))
	for _, n := range names {
		perms = append(perms, model.Permission{Name: n})
	}

	store := session.NewStore(storage.NewMemory(), nil, func(string) bool { return false })
	require.NoError(t, store.SetCredentials(context.Background(), model.Credentials{
		AccessToken: "a1",
		User:        &model.User{ID: "1", Role: &model.Role{Name: "ops", Permissions: perms}},
	}))
	return store
}

func anonymous() *session.Store {
	return session.NewStore(storage.NewMemory(), nil, nil)
}

func serve(h http.Handler, method string, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRedirectAnonymous(t *testing.T) {
	t.Parallel()

	t.Run("no session redirects with see other", func(t *testing.T) {
		t.Parallel()

		g := NewSessionGuard(anonymous(), &stubProfiles{}, "/signin", nil)
		rec := serve(g.RedirectAnonymous(okHandler()), http.MethodGet, "/modules/orders?page=2")

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signin?next=%2Fmodules%2Forders%3Fpage%3D2", rec.Header().Get("Location"))
	})

	t.Run("session passes", func(t *testing.T) {
		t.Parallel()

		g := NewSessionGuard(signedIn(t), &stubProfiles{}, "/signin", nil)
		rec := serve(g.RedirectAnonymous(okHandler()), http.MethodGet, "/dashboard")

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRejectAnonymous(t *testing.T) {
	t.Parallel()

	g := NewSessionGuard(anonymous(), &stubProfiles{}, "/signin", nil)
	rec := serve(g.RejectAnonymous(okHandler()), http.MethodGet, "/api/orders")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
}

func TestHydrate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		state    profile.State
		wantCode int
	}{
		{name: "loading", state: profile.StateLoading, wantCode: http.StatusAccepted},
		{name: "error", state: profile.StateError, wantCode: http.StatusServiceUnavailable},
		{name: "signed out", state: profile.StateSignedOut, wantCode: http.StatusSeeOther},
		{name: "ready", state: profile.StateReady, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := NewSessionGuard(signedIn(t), &stubProfiles{state: tt.state, err: model.ErrProfileUnavailable}, "/signin", nil)
			rec := serve(g.Hydrate(okHandler()), http.MethodGet, "/dashboard")

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.state == profile.StateLoading {
				assert.Equal(t, "1", rec.Header().Get("Refresh"))
			}
		})
	}
}

func TestHydrateSync(t *testing.T) {
	t.Parallel()

	g := NewSessionGuard(signedIn(t), &stubProfiles{state: profile.StateSignedOut}, "/signin", nil)
	rec := serve(g.HydrateSync(okHandler()), http.MethodGet, "/api/orders")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequire(t *testing.T) {
	t.Parallel()

	store := signedIn(t, "orders.view", "orders.update")
	g := NewSessionGuard(store, &stubProfiles{}, "/signin", nil)

	assert.Equal(t, http.StatusOK, serve(g.Require(permission.AnyOf("orders.view", "roles.view"))(okHandler()), http.MethodGet, "/x").Code)
	assert.Equal(t, http.StatusForbidden, serve(g.Require(permission.AllOf("orders.view", "roles.view"))(okHandler()), http.MethodGet, "/x").Code)
	assert.Equal(t, http.StatusForbidden, serve(g.Require(permission.Requirement{})(okHandler()), http.MethodGet, "/x").Code)

	anon := NewSessionGuard(anonymous(), &stubProfiles{}, "/signin", nil)
	assert.Equal(t, http.StatusForbidden, serve(anon.Require(permission.Module("orders"))(okHandler()), http.MethodGet, "/x").Code)
}

func TestRequireModuleAction(t *testing.T) {
	t.Parallel()

	g := NewSessionGuard(signedIn(t, "orders.view", "orders.update"), &stubProfiles{}, "/signin", nil)

	r := chi.NewRouter()
	r.With(g.RequireModuleAction).HandleFunc("/api/{module}/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/orders/12").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPatch, "/api/orders/12").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodDelete, "/api/orders/12").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/payments/1").Code)
}

func TestModuleGuardsMatchPermissionNamesExactly(t *testing.T) {
	t.Parallel()

	g := NewSessionGuard(signedIn(t, "Products.view", "orders.view"), &stubProfiles{}, "/signin", nil)

	r := chi.NewRouter()
	r.With(g.RequireModule).Get("/modules/{module}", okHandler().ServeHTTP)
	r.With(g.RequireModuleAction).HandleFunc("/api/{module}/*", okHandler().ServeHTTP)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/modules/Products").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/Products/3").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/modules/products").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/modules/Orders").Code)
}
