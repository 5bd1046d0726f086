// Package profile fills in the operator profile for a session that holds
// tokens but no user, which is the state a restored session starts in.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"go-backoffice-console/internal/event"
	"go-backoffice-console/internal/metrics"
	"go-backoffice-console/internal/model"
	"go-backoffice-console/internal/session"
	"go-backoffice-console/pkg/apierror"
)

type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateError     State = "error"
	StateSignedOut State = "signed_out"
)

// Profile sync results recorded in metrics.
const (
	resultReady     = "ready"
	resultAuth      = "auth_failure"
	resultError     = "error"
	resultDiscarded = "discarded"
)

// ReasonProfileRejected is the logout reason when the profile endpoint
// refuses the session.
const ReasonProfileRejected = "profile_rejected"

type ProfileFetcher interface {
	Profile(ctx context.Context) (json.RawMessage, error)
}

type Session interface {
	Snapshot() session.Snapshot
	SetCredentials(ctx context.Context, creds model.Credentials) error
	ForceLogout(ctx context.Context, reason string) error
}

// Navigator moves the operator to another route, replacing the current
// history entry.
type Navigator interface {
	Replace(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Replace(path string) {
	f(path)
}

type Config struct {
	SignInPath           string
	SessionExpiredStatus int
	SessionInvalidStatus int
}

type Reconciler struct {
	fetcher ProfileFetcher
	session Session
	nav     Navigator
	bus     event.Bus
	cfg     Config
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     State
	err       error
	route     string
	inflight  bool
	lastRoute string
}

func New(fetcher ProfileFetcher, sess Session, nav Navigator, bus event.Bus, cfg Config, m *metrics.Metrics) *Reconciler {
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/signin"
	}
	if cfg.SessionExpiredStatus == 0 {
		cfg.SessionExpiredStatus = http.StatusUnauthorized
	}
	if cfg.SessionInvalidStatus == 0 {
		cfg.SessionInvalidStatus = 498
	}
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		fetcher: fetcher,
		session: sess,
		nav:     nav,
		bus:     bus,
		cfg:     cfg,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateIdle,
	}
}

func (r *Reconciler) SignInPath() string {
	return r.cfg.SignInPath
}

// IsSignInRoute reports whether route is the sign-in page or below it.
func (r *Reconciler) IsSignInRoute(route string) bool {
	route = strings.TrimRight(route, "/")
	signIn := strings.TrimRight(r.cfg.SignInPath, "/")
	return route == signIn || strings.HasPrefix(route, signIn+"/")
}

// Needed reports whether visiting route should fetch the profile: the
// session has a token but no user, and route is not the sign-in page.
func (r *Reconciler) Needed(route string) bool {
	snap := r.session.Snapshot()
	return snap.AccessToken != "" && snap.User == nil && !r.IsSignInRoute(route)
}

// Reconcile fetches the profile synchronously when route needs it and
// returns the resulting state.
func (r *Reconciler) Reconcile(ctx context.Context, route string) State {
	if !r.Needed(route) {
		return r.settled(route)
	}

	r.mu.Lock()
	r.lastRoute = route
	r.setStateLocked(StateLoading, nil, route)
	r.mu.Unlock()

	return r.run(ctx, route)
}

// Mount is the non-blocking variant used by page guards. It starts at most
// one background fetch and reports StateLoading while it is outstanding.
// After a failure the error state sticks for the same route until Retry or a
// different route is mounted.
func (r *Reconciler) Mount(route string) State {
	if !r.Needed(route) {
		return r.settled(route)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRoute = route
	if r.inflight {
		return StateLoading
	}
	if r.state == StateError && r.route == route {
		return StateError
	}

	r.inflight = true
	r.setStateLocked(StateLoading, nil, route)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(r.ctx, route)

		r.mu.Lock()
		r.inflight = false
		r.mu.Unlock()
	}()

	return StateLoading
}

// Retry re-runs the fetch for the last route that needed it.
func (r *Reconciler) Retry(ctx context.Context) State {
	r.mu.Lock()
	route := r.lastRoute
	if r.state == StateError {
		r.state = StateIdle
		r.err = nil
	}
	r.mu.Unlock()

	return r.Reconcile(ctx, route)
}

// State returns the last recorded state and, in StateError, its cause.
func (r *Reconciler) State() (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.err
}

// Wait blocks until background fetches started by Mount have finished.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Close abandons outstanding fetches.
func (r *Reconciler) Close() {
	r.cancel()
	r.wg.Wait()
}

func (r *Reconciler) run(ctx context.Context, route string) State {
	raw, err := r.fetcher.Profile(ctx)
	return r.settle(ctx, route, raw, err)
}

func (r *Reconciler) settle(ctx context.Context, route string, raw json.RawMessage, fetchErr error) State {
	snap := r.session.Snapshot()
	if snap.User != nil {
		// Resolved elsewhere while the fetch was outstanding.
		r.metrics.ProfileSync(resultDiscarded)
		slog.Debug("profile result discarded", "route", route)
		return r.record(r.settled(route), nil, route)
	}

	// The gateway may already have cleared the session for this very
	// response; sign-out still owes the redirect.
	if fetchErr != nil && r.isAuthClass(fetchErr) {
		return r.signOut(ctx, route, fetchErr)
	}

	if snap.AccessToken == "" {
		r.metrics.ProfileSync(resultDiscarded)
		slog.Debug("profile result discarded after logout", "route", route)
		return r.record(r.settled(route), nil, route)
	}

	if fetchErr != nil {
		r.metrics.ProfileSync(resultError)
		slog.Warn("profile fetch failed", "route", route, "error", fetchErr)
		return r.record(StateError, fmt.Errorf("%w: %w", model.ErrProfileUnavailable, fetchErr), route)
	}

	user, ok := UnwrapProfile(raw)
	if !ok {
		r.metrics.ProfileSync(resultError)
		slog.Warn("profile response has no subject", "route", route)
		return r.record(StateError, model.ErrNoProfileSubject, route)
	}

	err := r.session.SetCredentials(ctx, model.Credentials{
		User:         user,
		AccessToken:  snap.AccessToken,
		RefreshToken: snap.RefreshToken,
	})
	if err != nil && errors.Is(err, model.ErrAccessTokenRequired) {
		return r.record(StateSignedOut, nil, route)
	}
	if err != nil {
		slog.Warn("profile stored in memory only", "error", err)
	}

	r.metrics.ProfileSync(resultReady)
	slog.Info("profile reconciled", "user_id", user.ID.String(), "role", user.RoleName())
	return r.record(StateReady, nil, route)
}

func (r *Reconciler) signOut(ctx context.Context, route string, cause error) State {
	r.metrics.ProfileSync(resultAuth)
	r.metrics.ForcedLogout(ReasonProfileRejected)
	slog.Warn("profile fetch rejected the session; logging out", "route", route, "error", cause)

	if err := r.session.ForceLogout(ctx, ReasonProfileRejected); err != nil {
		slog.Warn("logout after profile rejection failed", "error", err)
	}
	if !r.IsSignInRoute(route) {
		r.nav.Replace(r.cfg.SignInPath)
	}

	return r.record(StateSignedOut, nil, route)
}

// isAuthClass reports failures that mean the session is no longer usable.
// 405 is included: the profile endpoint answers it for stale sessions.
func (r *Reconciler) isAuthClass(err error) bool {
	return apierror.HasStatus(err, r.cfg.SessionExpiredStatus, r.cfg.SessionInvalidStatus, http.StatusMethodNotAllowed)
}

// settled is the state for a route that needs no fetch.
func (r *Reconciler) settled(route string) State {
	snap := r.session.Snapshot()
	switch {
	case snap.AccessToken == "":
		return StateSignedOut
	case snap.User != nil:
		return StateReady
	case r.IsSignInRoute(route):
		return StateIdle
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconciler) record(state State, err error, route string) State {
	r.mu.Lock()
	r.setStateLocked(state, err, route)
	r.mu.Unlock()
	return state
}

func (r *Reconciler) setStateLocked(state State, err error, route string) {
	changed := r.state != state
	r.state = state
	r.err = err
	r.route = route

	if changed && r.bus != nil {
		payload := event.ProfilePayload{State: string(state)}
		if err != nil {
			payload.Error = err.Error()
		}
		r.bus.Publish(event.New(event.TypeProfileState, "", payload))
	}
}
