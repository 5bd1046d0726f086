// Package gateway wraps every outbound backend call. It attaches the bearer
// token, turns a session-expired answer into one refresh followed by one
// retry of the original request, and logs the operator out when the backend
// declares the session invalid.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"go-backoffice-console/internal/metrics"
	"go-backoffice-console/internal/model"
	"go-backoffice-console/internal/session"
	"go-backoffice-console/pkg/apierror"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderRefreshKey    = "x-refresh-key"

	DefaultSessionExpiredStatus = http.StatusUnauthorized
	DefaultSessionInvalidStatus = 498
)

// Logout reasons published when the backend declares the session invalid.
const (
	ReasonSessionInvalid             = "session_invalid"
	ReasonSessionInvalidAfterRefresh = "session_invalid_after_refresh"
)

// Session is the part of the session store the gateway reads and mutates.
type Session interface {
	Snapshot() session.Snapshot
	SetCredentials(ctx context.Context, creds model.Credentials) error
	ForceLogout(ctx context.Context, reason string) error
}

type Config struct {
	// RefreshURL is the absolute URL of the backend refresh endpoint.
	RefreshURL           string
	SessionExpiredStatus int
	SessionInvalidStatus int
	// SingleFlightRefresh shares one refresh call between concurrent
	// requests that hit session-expired with the same refresh key.
	SingleFlightRefresh bool
	// RequestsPerSecond throttles outbound calls; zero disables throttling.
	RequestsPerSecond float64
}

type Transport struct {
	base    http.RoundTripper
	session Session
	cfg     Config
	limiter *rate.Limiter
	metrics *metrics.Metrics
	group   singleflight.Group
}

func New(base http.RoundTripper, sess Session, cfg Config, m *metrics.Metrics) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if cfg.SessionExpiredStatus == 0 {
		cfg.SessionExpiredStatus = DefaultSessionExpiredStatus
	}
	if cfg.SessionInvalidStatus == 0 {
		cfg.SessionInvalidStatus = DefaultSessionInvalidStatus
	}

	t := &Transport{base: base, session: sess, cfg: cfg, metrics: m}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return t
}

// Config returns the effective configuration, defaults applied.
func (t *Transport) Config() Config {
	return t.cfg
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	accessToken := t.session.Snapshot().AccessToken

	resp, err := t.send(req, accessToken, false)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case t.cfg.SessionExpiredStatus:
		return t.recover(ctx, req, resp, accessToken)
	case t.cfg.SessionInvalidStatus:
		t.forceLogout(ctx, req, ReasonSessionInvalid)
	}

	return resp, nil
}

// recover runs the single refresh-and-retry cycle. Whatever happens, the
// caller gets either the retried response or the original one untouched.
func (t *Transport) recover(ctx context.Context, req *http.Request, resp *http.Response, expiredToken string) (*http.Response, error) {
	body, err := peekBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read session-expired response: %w", err)
	}

	refreshKey := apierror.Decode(resp.StatusCode, body).RefreshKey
	if refreshKey == "" {
		return resp, nil
	}

	creds, err := t.refresh(ctx, expiredToken, refreshKey)
	if err != nil {
		slog.Warn("session refresh failed; returning original response",
			"method", req.Method, "path", req.URL.Path, "error", err)
		return resp, nil
	}

	if !rewindable(req) {
		slog.Warn("session refreshed but request body cannot be replayed",
			"method", req.Method, "path", req.URL.Path)
		return resp, nil
	}

	t.metrics.Retry()
	retried, err := t.send(req, creds.AccessToken, true)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}

	if retried.StatusCode == t.cfg.SessionInvalidStatus {
		t.forceLogout(ctx, req, ReasonSessionInvalidAfterRefresh)
	}

	return retried, nil
}

func (t *Transport) refresh(ctx context.Context, expiredToken string, refreshKey string) (model.Credentials, error) {
	if !t.cfg.SingleFlightRefresh {
		return t.doRefresh(ctx, expiredToken, refreshKey)
	}

	// One caller going away must not fail the refresh for the others.
	var leader bool
	v, err, _ := t.group.Do(refreshKey, func() (any, error) {
		leader = true
		return t.doRefresh(context.WithoutCancel(ctx), expiredToken, refreshKey)
	})
	if !leader {
		t.metrics.Refresh(metrics.OutcomeShared)
	}
	if err != nil {
		return model.Credentials{}, err
	}
	return v.(model.Credentials), nil
}

func (t *Transport) doRefresh(ctx context.Context, expiredToken string, refreshKey string) (model.Credentials, error) {
	if strings.TrimSpace(t.cfg.RefreshURL) == "" {
		t.metrics.Refresh(metrics.OutcomeFailed)
		return model.Credentials{}, fmt.Errorf("%w: refresh URL not configured", model.ErrRefreshFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.RefreshURL, http.NoBody)
	if err != nil {
		t.metrics.Refresh(metrics.OutcomeFailed)
		return model.Credentials{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set(HeaderAuthorization, "Bearer "+expiredToken)
	req.Header.Set(HeaderRefreshKey, refreshKey)
	req.Header.Set("Accept", "application/json")

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.metrics.Refresh(metrics.OutcomeFailed)
		return model.Credentials{}, fmt.Errorf("%w: %w", model.ErrRefreshFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.metrics.Refresh(metrics.OutcomeFailed)
		return model.Credentials{}, fmt.Errorf("%w: %w", model.ErrRefreshFailed, apierror.FromResponse(resp))
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.metrics.Refresh(metrics.OutcomeFailed)
		return model.Credentials{}, fmt.Errorf("%w: read body: %w", model.ErrRefreshFailed, err)
	}

	creds, err := model.DecodeCredentials(body)
	if err != nil || strings.TrimSpace(creds.AccessToken) == "" {
		t.metrics.Refresh(metrics.OutcomeEmpty)
		return model.Credentials{}, model.ErrRefreshEmptyResult
	}

	// A refresh answer may omit the profile or keep the refresh token
	// unrotated; keep what the session already holds in that case.
	current := t.session.Snapshot()
	if creds.User == nil {
		creds.User = current.User
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = current.RefreshToken
	}

	if err := t.session.SetCredentials(ctx, creds); err != nil {
		if errors.Is(err, model.ErrAccessTokenRequired) {
			t.metrics.Refresh(metrics.OutcomeEmpty)
			return model.Credentials{}, err
		}
		slog.Warn("refreshed session could not be persisted", "error", err)
	}

	t.metrics.Refresh(metrics.OutcomeSuccess)
	slog.Info("session refreshed", "user_id", userID(creds.User))
	return creds, nil
}

func (t *Transport) forceLogout(ctx context.Context, req *http.Request, reason string) {
	t.metrics.ForcedLogout(reason)
	slog.Warn("backend declared the session invalid; logging out",
		"method", req.Method, "path", req.URL.Path, "reason", reason)

	if err := t.session.ForceLogout(ctx, reason); err != nil {
		slog.Warn("forced logout could not clear storage", "error", err)
	}
}

func (t *Transport) send(req *http.Request, accessToken string, replay bool) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)

	if replay && req.Body != nil && req.Body != http.NoBody {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		out.Body = body
	}

	if accessToken != "" {
		out.Header.Set(HeaderAuthorization, "Bearer "+accessToken)
	} else {
		out.Header.Del(HeaderAuthorization)
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	started := time.Now()
	resp, err := t.base.RoundTrip(out)
	t.metrics.Upstream(req.Method, time.Since(started).Seconds())
	return resp, err
}

func rewindable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// peekBody reads the whole body and puts an equivalent reader back so the
// response can still be handed to the caller.
func peekBody(resp *http.Response) ([]byte, error) {
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func userID(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.ID.String()
}
