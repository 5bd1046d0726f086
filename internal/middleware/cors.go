package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS only admits the console's own origins. The console holds a live
// session, so a wildcard is never used even when origins is empty.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://127.0.0.1", "http://localhost"}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "Content-Length", "X-Request-ID", "Refresh", "Location"},
		MaxAge:           3600,
		AllowCredentials: false,
	})

	return handler.Handler
}
