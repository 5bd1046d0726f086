package handler

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-backoffice-console/pkg/apierror"
)

// ProxyHandler forwards /api/{module}/* to the backend through the session
// gateway, so business calls share the refresh and logout behavior.
type ProxyHandler struct {
	proxy   *httputil.ReverseProxy
	maxBody int64
}

func NewProxyHandler(backend *url.URL, transport http.RoundTripper, maxBody int64) *ProxyHandler {
	if maxBody <= 0 {
		maxBody = 10 << 20
	}

	proxy := &httputil.ReverseProxy{
		Transport: transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(backend)
			pr.Out.URL.Path = strings.TrimRight(backend.Path, "/") + moduleSubpath(pr.In)
			pr.Out.URL.RawPath = ""
			pr.Out.Host = backend.Host
			// The browser never holds backend credentials; the gateway sets them.
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("Cookie")
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Warn("backend proxy failed", "method", r.Method, "path", r.URL.Path, "error", err)
			writeError(w, err)
		},
		FlushInterval: -1,
	}

	return &ProxyHandler{proxy: proxy, maxBody: maxBody}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The gateway may replay the request after a refresh, so the body must
	// be rewindable.
	if r.Body != nil && r.Body != http.NoBody {
		body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
		_ = r.Body.Close()
		if err != nil {
			writeError(w, apierror.New("BAD_REQUEST", "could not read request body", "", http.StatusBadRequest))
			return
		}
		if int64(len(body)) > h.maxBody {
			writeError(w, apierror.New("PAYLOAD_TOO_LARGE", "request body too large", "", http.StatusRequestEntityTooLarge))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		r.ContentLength = int64(len(body))
	}

	h.proxy.ServeHTTP(w, r)
}

// moduleSubpath maps /api/orders/12 to /orders/12.
func moduleSubpath(r *http.Request) string {
	module := chi.URLParam(r, "module")
	rest := chi.URLParam(r, "*")
	if rest == "" {
		return "/" + module
	}
	return "/" + module + "/" + strings.TrimLeft(rest, "/")
}
