package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Addr               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	RequestTimeout     time.Duration
	ProxyMaxDuration   time.Duration
	ProxyIdleTimeout   time.Duration
	ProxyMaxBody       int64
	CORSOrigins        []string
	RateLimitRPM       int
	SignInRateLimitRPM int
	LogLevel           string
	SignInPath         string

	APIBaseURL           string
	APITimeout           time.Duration
	APIRequestsPerSecond float64
	LoginPath            string
	LogoutPath           string
	RefreshPath          string
	ProfilePath          string
	SessionExpiredStatus int
	SessionInvalidStatus int
	SingleFlightRefresh  bool

	StorageDriver string
	StorageFile   string
	RedisURL      string
	RedisPrefix   string
	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32
	DBNamespace   string
}

// Load reads the environment, after merging envFile (".env" when empty) if
// it exists. Variables already set in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{
		Addr:               getEnv("CONSOLE_ADDR", "127.0.0.1:7070"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ProxyMaxDuration:   getDuration("PROXY_MAX_DURATION", 10*time.Minute),
		ProxyIdleTimeout:   getDuration("PROXY_IDLE_TIMEOUT", 60*time.Second),
		ProxyMaxBody:       int64(getInt("PROXY_MAX_BODY", 10<<20)),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "http://127.0.0.1:7070,http://localhost:7070")),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 0),
		SignInRateLimitRPM: getInt("SIGNIN_RATE_LIMIT_RPM", 10),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		SignInPath:         getEnv("SIGNIN_PATH", "/signin"),

		APIBaseURL:           strings.TrimSpace(os.Getenv("API_BASE_URL")),
		APITimeout:           getDuration("API_TIMEOUT", 30*time.Second),
		APIRequestsPerSecond: getFloat("API_RPS", 0),
		LoginPath:            getEnv("LOGIN_PATH", "/auth/login"),
		LogoutPath:           getEnv("LOGOUT_PATH", "/auth/logout"),
		RefreshPath:          getEnv("REFRESH_PATH", "/auth/refresh"),
		ProfilePath:          getEnv("PROFILE_PATH", "/auth/me"),
		SessionExpiredStatus: getInt("SESSION_EXPIRED_STATUS", 401),
		SessionInvalidStatus: getInt("SESSION_INVALID_STATUS", 498),
		SingleFlightRefresh:  getBool("SINGLE_FLIGHT_REFRESH", false),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageFile)),
		StorageFile:   getEnv("STORAGE_FILE", "./state/session.json"),
		RedisURL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
		RedisPrefix:   getEnv("REDIS_PREFIX", "console:"),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:    int32(getInt("DB_MAX_CONNS", 4)),
		DBMinConns:    int32(getInt("DB_MIN_CONNS", 0)),
		DBNamespace:   getEnv("DB_NAMESPACE", "default"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("CONSOLE_ADDR cannot be empty")
	}

	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.ProxyMaxDuration <= 0 || c.ProxyIdleTimeout <= 0 {
		return fmt.Errorf("PROXY_MAX_DURATION and PROXY_IDLE_TIMEOUT must be positive")
	}

	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}

	if c.APIRequestsPerSecond < 0 {
		return fmt.Errorf("API_RPS cannot be negative")
	}

	if !validStatus(c.SessionExpiredStatus) || !validStatus(c.SessionInvalidStatus) {
		return fmt.Errorf("SESSION_EXPIRED_STATUS and SESSION_INVALID_STATUS must be 4xx status codes")
	}

	if c.SessionExpiredStatus == c.SessionInvalidStatus {
		return fmt.Errorf("SESSION_EXPIRED_STATUS and SESSION_INVALID_STATUS must differ")
	}

	if !strings.HasPrefix(c.SignInPath, "/") {
		return fmt.Errorf("SIGNIN_PATH must start with /")
	}

	switch c.StorageDriver {
	case StorageFile:
		if strings.TrimSpace(c.StorageFile) == "" {
			return fmt.Errorf("STORAGE_FILE cannot be empty")
		}
	case StorageRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis storage driver")
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres storage driver")
		}
		if c.DBMaxConns <= 0 {
			return fmt.Errorf("DB_MAX_CONNS must be positive")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER %q is not supported", c.StorageDriver)
	}

	return nil
}

func validStatus(code int) bool {
	return code >= 400 && code <= 499
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
