package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-backoffice-console/internal/config"
	"go-backoffice-console/internal/handler"
	"go-backoffice-console/internal/metrics"
	"go-backoffice-console/internal/middleware"
)

type Handlers struct {
	Health  *handler.HealthHandler
	Auth    *handler.AuthHandler
	Console *handler.ConsoleHandler
	Proxy   *handler.ProxyHandler
	Metrics http.Handler
	Events  http.Handler
}

func New(cfg *config.Config, guard *middleware.SessionGuard, h Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.SignInRateLimitRPM, cfg.SignInPath)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics)
	}
	if h.Events != nil {
		r.Handle("/ws", h.Events)
	}

	r.Group(func(views chi.Router) {
		views.Use(middleware.Timeout(cfg.RequestTimeout))

		views.Get(cfg.SignInPath, h.Auth.SignInPage)
		views.Post(cfg.SignInPath, h.Auth.SignIn)
		views.Post("/signout", h.Auth.SignOut)
		views.Get("/session", h.Auth.Session)
		views.Post("/session/retry", h.Auth.RetryProfile)

		views.Group(func(protected chi.Router) {
			protected.Use(guard.RedirectAnonymous)
			protected.Use(guard.Hydrate)

			protected.Get("/", func(w http.ResponseWriter, req *http.Request) {
				http.Redirect(w, req, "/dashboard", http.StatusSeeOther)
			})
			protected.Get("/dashboard", h.Console.Dashboard)
			protected.With(guard.RequireModule).Get("/modules/{module}", h.Console.Module)
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.StreamingTimeout(cfg.ProxyMaxDuration, cfg.ProxyIdleTimeout))
		api.Use(guard.RejectAnonymous)
		api.Use(guard.HydrateSync)

		api.With(guard.RequireModuleAction).Handle("/{module}", h.Proxy)
		api.With(guard.RequireModuleAction).Handle("/{module}/*", h.Proxy)
	})

	return r
}
