package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds a request through its context. Unlike http.TimeoutHandler
// it does not buffer the response, so redirects and hijacking keep working.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
