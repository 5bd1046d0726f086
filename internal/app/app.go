package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-backoffice-console/internal/api"
	"go-backoffice-console/internal/config"
	"go-backoffice-console/internal/database"
	"go-backoffice-console/internal/event"
	"go-backoffice-console/internal/gateway"
	"go-backoffice-console/internal/handler"
	"go-backoffice-console/internal/metrics"
	"go-backoffice-console/internal/middleware"
	"go-backoffice-console/internal/profile"
	"go-backoffice-console/internal/router"
	"go-backoffice-console/internal/service"
	"go-backoffice-console/internal/session"
	"go-backoffice-console/internal/storage"
	"go-backoffice-console/internal/websocket"
)

type App struct {
	server       *http.Server
	handler      http.Handler
	session      *session.Store
	profiles     *profile.Reconciler
	cancel       context.CancelFunc
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{cancel: cancel}

	kv, checks, err := a.openStorage(ctx, cfg)
	if err != nil {
		cancel()
		return nil, err
	}

	bus := event.NewBus()
	m := metrics.New()

	store := session.NewStore(kv, bus, nil)
	restored := store.Restore(ctx)
	slog.Info("session restored", "driver", cfg.StorageDriver, "authenticated", restored.IsAuthenticated())
	a.session = store

	paths := api.Paths{
		Login:   cfg.LoginPath,
		Logout:  cfg.LogoutPath,
		Refresh: cfg.RefreshPath,
		Profile: cfg.ProfilePath,
	}
	httpClient := &http.Client{Timeout: cfg.APITimeout}
	apiClient, err := api.New(cfg.APIBaseURL, httpClient, paths)
	if err != nil {
		a.shutdown()
		return nil, fmt.Errorf("failed to initialize API client: %w", err)
	}

	gw := gateway.New(http.DefaultTransport.(*http.Transport).Clone(), store, gateway.Config{
		RefreshURL:           apiClient.URL(apiClient.Paths().Refresh),
		SessionExpiredStatus: cfg.SessionExpiredStatus,
		SessionInvalidStatus: cfg.SessionInvalidStatus,
		SingleFlightRefresh:  cfg.SingleFlightRefresh,
		RequestsPerSecond:    cfg.APIRequestsPerSecond,
	}, m)
	httpClient.Transport = gw

	navigator := &signInNavigator{bus: bus}
	logouts, unsubscribe := store.Subscribe()
	a.cleanupFuncs = append(a.cleanupFuncs, unsubscribe)
	go followForcedLogouts(ctx, logouts, navigator, cfg.SignInPath)
	profiles := profile.New(apiClient, store, navigator, bus, profile.Config{
		SignInPath:           cfg.SignInPath,
		SessionExpiredStatus: cfg.SessionExpiredStatus,
		SessionInvalidStatus: cfg.SessionInvalidStatus,
	}, m)
	a.profiles = profiles
	a.cleanupFuncs = append(a.cleanupFuncs, profiles.Close)

	hub := websocket.NewHub(bus)
	go hub.Run(ctx)

	go func() {
		err := store.WatchStorage(ctx)
		switch {
		case errors.Is(err, storage.ErrWatchUnsupported):
			slog.Debug("storage backend has no change feed; cross-process sync disabled", "driver", cfg.StorageDriver)
		case err != nil && !errors.Is(err, context.Canceled):
			slog.Warn("storage watch stopped", "error", err)
		}
	}()

	backendURL, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		a.shutdown()
		return nil, fmt.Errorf("failed to parse API base URL: %w", err)
	}

	authService := service.NewAuthService(apiClient, store)
	consoleService := service.NewConsoleService(nil)
	guard := middleware.NewSessionGuard(store, profiles, cfg.SignInPath, m)

	a.handler = router.New(cfg, guard, router.Handlers{
		Health:  handler.NewHealthHandler(checks),
		Auth:    handler.NewAuthHandler(authService, consoleService, store, profiles),
		Console: handler.NewConsoleHandler(consoleService, store),
		Proxy:   handler.NewProxyHandler(backendURL, gw, cfg.ProxyMaxBody),
		Metrics: m.Handler(),
		Events:  hub.Handler(cfg.CORSOrigins),
	}, m)

	a.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}
	if cfg.ProxyMaxDuration > a.server.WriteTimeout {
		// Proxied exports set their own write deadline.
		a.server.WriteTimeout = 0
	}

	return a, nil
}

// Handler returns the console's HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) Session() *session.Store {
	return a.session
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config) (storage.KV, map[string]handler.HealthCheck, error) {
	checks := map[string]handler.HealthCheck{}

	switch cfg.StorageDriver {
	case config.StorageMemory:
		slog.Warn("using in-memory session storage; the session will not survive a restart")
		return storage.NewMemory(), checks, nil

	case config.StorageRedis:
		kv, err := storage.OpenRedis(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = kv.Close() })
		checks["redis"] = kv.Ping
		return kv, checks, nil

	case config.StoragePostgres:
		slog.Info("connecting to PostgreSQL")
		db, err := database.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.cleanupFuncs = append(a.cleanupFuncs, db.Close)
		checks["postgres"] = db.Health
		slog.Info("database ready")
		return storage.NewPostgres(db.Pool, cfg.DBNamespace), checks, nil

	default:
		kv, err := storage.NewFile(cfg.StorageFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session file: %w", err)
		}
		checks["file"] = func(ctx context.Context) error {
			_, _, err := kv.Get(ctx, storage.KeyAccessToken)
			return err
		}
		return kv, checks, nil
	}
}

func (a *App) Run() error {
	go func() {
		slog.Info("console starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.server.Shutdown(ctx)
	a.shutdown()
	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("console stopped")
	return nil
}

// Close releases background workers and storage connections without
// serving. Run calls it on shutdown.
func (a *App) Close() {
	a.shutdown()
}

func (a *App) shutdown() {
	a.cancel()
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}
