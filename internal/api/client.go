// Package api is the console's client for the back-office REST API. Every
// call goes through the *http.Client it is given, normally one whose
// transport is the session gateway.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go-backoffice-console/internal/model"
	"go-backoffice-console/pkg/apierror"
)

const maxResponseBody = 4 << 20

// Paths are backend endpoints relative to the base URL.
type Paths struct {
	Login   string
	Logout  string
	Refresh string
	Profile string
}

func DefaultPaths() Paths {
	return Paths{
		Login:   "/auth/login",
		Logout:  "/auth/logout",
		Refresh: "/auth/refresh",
		Profile: "/auth/me",
	}
}

type Client struct {
	base  *url.URL
	http  *http.Client
	paths Paths
}

func New(baseURL string, httpClient *http.Client, paths Paths) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse API base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: API base URL must be absolute", model.ErrInvalidInput)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	defaults := DefaultPaths()
	if paths.Login == "" {
		paths.Login = defaults.Login
	}
	if paths.Logout == "" {
		paths.Logout = defaults.Logout
	}
	if paths.Refresh == "" {
		paths.Refresh = defaults.Refresh
	}
	if paths.Profile == "" {
		paths.Profile = defaults.Profile
	}

	return &Client{base: base, http: httpClient, paths: paths}, nil
}

// URL resolves p against the base URL, keeping any path prefix of the base.
func (c *Client) URL(p string) string {
	u := *c.base
	rel, err := url.Parse(p)
	if err != nil {
		u.Path = c.base.Path + "/" + strings.TrimLeft(p, "/")
		return u.String()
	}

	u.Path = c.base.Path + "/" + strings.TrimLeft(rel.Path, "/")
	u.RawQuery = rel.RawQuery
	return u.String()
}

func (c *Client) Paths() Paths {
	return c.paths
}

func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Do sends a JSON request and decodes the data member of the response into
// out when out is non-nil. Non-2xx answers come back as *apierror.APIError.
func (c *Client) Do(ctx context.Context, method string, path string, body any, out any) error {
	raw, err := c.DoRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(model.EnvelopeData(raw), out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// DoRaw is Do without decoding: the body is returned as sent by the backend.
func (c *Client) DoRaw(ctx context.Context, method string, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierror.FromResponse(resp)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	return raw, nil
}

// Profile fetches the signed-in operator's profile. The body is returned
// undecoded because backends disagree on where the user object lives.
func (c *Client) Profile(ctx context.Context) (json.RawMessage, error) {
	raw, err := c.DoRaw(ctx, http.MethodGet, c.paths.Profile, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func (c *Client) Login(ctx context.Context, email string, password string) (model.Credentials, error) {
	raw, err := c.DoRaw(ctx, http.MethodPost, c.paths.Login, model.SignInRequest{Email: email, Password: password})
	if err != nil {
		return model.Credentials{}, err
	}

	creds, err := model.DecodeCredentials(raw)
	if err != nil {
		return model.Credentials{}, fmt.Errorf("decode login response: %w", err)
	}
	if strings.TrimSpace(creds.AccessToken) == "" {
		return model.Credentials{}, model.ErrAccessTokenRequired
	}
	return creds, nil
}

// Logout tells the backend to revoke refreshToken.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.Do(ctx, http.MethodPost, c.paths.Logout, model.LogoutRequest{RefreshToken: refreshToken}, nil)
}
