package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seenRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Cookie string
	Body   string
}

func newProxyFixture(t *testing.T, maxBody int64) (http.Handler, <-chan seenRequest) {
	t.Helper()

	seen := make(chan seenRequest, 4)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen <- seenRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Cookie: r.Header.Get("Cookie"),
			Body:   string(body),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(backend.Close)

	base, err := url.Parse(backend.URL + "/v1/")
	require.NoError(t, err)

	proxy := NewProxyHandler(base, http.DefaultTransport, maxBody)
	r := chi.NewRouter()
	r.Handle("/api/{module}", proxy)
	r.Handle("/api/{module}/*", proxy)
	return r, seen
}

func TestProxyMapsModulePathsOntoBackend(t *testing.T) {
	h, seen := newProxyFixture(t, 0)

	tests := []struct {
		target   string
		wantPath string
	}{
		{target: "/api/orders", wantPath: "/v1/orders"},
		{target: "/api/orders/12?expand=items", wantPath: "/v1/orders/12"},
		{target: "/api/products/3/variants", wantPath: "/v1/products/3/variants"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			got := <-seen
			assert.Equal(t, tt.wantPath, got.Path)
			if strings.Contains(tt.target, "?") {
				assert.Equal(t, "expand=items", got.Query)
			}
		})
	}
}

func TestProxyStripsBrowserCredentials(t *testing.T) {
	h, seen := newProxyFixture(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"sku":"A-1"}`))
	req.Header.Set("Authorization", "Bearer from-browser")
	req.Header.Set("Cookie", "sid=abc")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	got := <-seen
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Empty(t, got.Auth)
	assert.Empty(t, got.Cookie)
	assert.JSONEq(t, `{"sku":"A-1"}`, got.Body)
}

func TestProxyRejectsOversizedBody(t *testing.T) {
	h, seen := newProxyFixture(t, 8)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"too":"large"}`)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, seen)
}

func TestProxyReportsUnreachableBackend(t *testing.T) {
	base, err := url.Parse("http://127.0.0.1:1")
	require.NoError(t, err)

	proxy := NewProxyHandler(base, http.DefaultTransport, 0)
	r := chi.NewRouter()
	r.Handle("/api/{module}/*", proxy)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/1", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "BAD_GATEWAY", body.Error.Code)
}
