package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"go-backoffice-console/internal/metrics"
	"go-backoffice-console/internal/model"
	"go-backoffice-console/internal/permission"
	"go-backoffice-console/internal/profile"
	"go-backoffice-console/internal/session"
)

type sessionReader interface {
	Snapshot() session.Snapshot
}

type profileReconciler interface {
	Mount(route string) profile.State
	Reconcile(ctx context.Context, route string) profile.State
	State() (profile.State, error)
}

// loadingRefresh is the Refresh header sent with the loading view.
const loadingRefresh = "1"

// SessionGuard gates console routes on the operator session: it turns away
// anonymous visitors, holds protected pages while the profile loads and
// enforces permission requirements.
type SessionGuard struct {
	session    sessionReader
	profiles   profileReconciler
	signInPath string
	metrics    *metrics.Metrics
}

func NewSessionGuard(sess sessionReader, profiles profileReconciler, signInPath string, m *metrics.Metrics) *SessionGuard {
	if signInPath == "" {
		signInPath = "/signin"
	}
	return &SessionGuard{session: sess, profiles: profiles, signInPath: signInPath, metrics: m}
}

// RedirectAnonymous sends visitors without a session to the sign-in page
// with 303 See Other, so the protected page is not kept in history.
func (g *SessionGuard) RedirectAnonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.session.Snapshot().IsAuthenticated() {
			g.redirectToSignIn(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RejectAnonymous is RedirectAnonymous for API callers: a 401 envelope.
func (g *SessionGuard) RejectAnonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.session.Snapshot().IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Hydrate makes sure the profile is known before a protected page renders.
// While it loads the page answers 202 with a Refresh header; a failed load
// answers 503 pointing at the retry endpoint.
func (g *SessionGuard) Hydrate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch g.profiles.Mount(r.URL.Path) {
		case profile.StateLoading:
			w.Header().Set("Refresh", loadingRefresh)
			writeJSON(w, http.StatusAccepted, model.APIResponse{
				Success: true,
				Data:    map[string]string{"state": string(profile.StateLoading)},
			})
		case profile.StateError:
			g.writeProfileError(w)
		case profile.StateSignedOut:
			g.redirectToSignIn(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// HydrateSync is Hydrate for API callers: it waits for the profile instead
// of answering with a loading view.
func (g *SessionGuard) HydrateSync(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch g.profiles.Reconcile(r.Context(), r.URL.Path) {
		case profile.StateError:
			g.writeProfileError(w)
		case profile.StateSignedOut:
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "session ended")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// Require renders the route only when the session's permissions satisfy req.
// The fallback is a 403 envelope.
func (g *SessionGuard) Require(req permission.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			set := g.session.Snapshot().Permissions
			allowed := permission.Guard(set, req, next, g.forbidden(req.Module))
			allowed.ServeHTTP(w, r)
		})
	}
}

// RequireModuleAction reads the {module} URL parameter and requires the
// action implied by the request method.
func (g *SessionGuard) RequireModuleAction(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		module := chi.URLParam(r, "module")
		req := permission.Action(module, permission.ActionForMethod(r.Method))
		g.Require(req)(next).ServeHTTP(w, r)
	})
}

// RequireModule reads the {module} URL parameter and requires any access to
// that module.
func (g *SessionGuard) RequireModule(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		module := chi.URLParam(r, "module")
		g.Require(permission.Module(module))(next).ServeHTTP(w, r)
	})
}

func (g *SessionGuard) forbidden(module string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		g.metrics.GuardDenied(module)
		writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
	})
}

func (g *SessionGuard) writeProfileError(w http.ResponseWriter) {
	message := "profile could not be loaded"
	if _, err := g.profiles.State(); err != nil {
		message = err.Error()
	}

	w.Header().Set("Retry-After", "5")
	writeJSON(w, http.StatusServiceUnavailable, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    "PROFILE_UNAVAILABLE",
			Message: message,
			Details: "POST /session/retry to try again",
		},
	})
}

func (g *SessionGuard) redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	target := g.signInPath
	if r.Method == http.MethodGet && r.URL.Path != g.signInPath {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
