package config

import (
	"context"
	"time"
)

// ListenerConfig holds the network/TLS settings for a single listener (main or management).
type ListenerConfig struct {
	Port              int
	EnablePlainText   bool
	EnableTLS         bool
	TLSCertFile       string
	TLSKeyFile        string
	ReadHeaderTimeout time.Duration
}

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// Config holds all configuration for the history service.
type Config struct {
	// Datastore backend type: "mongo", "postgres", or "sqlite".
	DatastoreType string

	// Database connection URL. For sqlite this is a file path or ":memory:".
	DBURL string

	// Database name (mongo only).
	DBName string

	// Run datastore migrations on startup.
	DatastoreMigrateAtStart bool

	// DB pool (postgres only).
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Cache backend type: "redis", "local", or "none".
	CacheType string

	// Redis
	RedisURL string

	// Directory cache TTL.
	CacheTTL time.Duration

	// IdentityHeader is the request header the trusted gateway sets to the
	// authenticated participant id.
	IdentityHeader string

	// MetricsLabels is a comma-separated list of key=value pairs added as
	// constant labels to all Prometheus metrics. Values support ${VAR} expansion.
	// Defaults to "service=history-service".
	MetricsLabels string

	// Server
	Listener           ListenerConfig
	ManagementListener ListenerConfig
	// ManagementListenerEnabled is true when --management-port (or
	// HISTORY_SERVICE_MANAGEMENT_PORT) was explicitly provided. When false,
	// management endpoints are served on the main port.
	ManagementListenerEnabled bool
	// ManagementAccessLog enables HTTP access logging for management endpoints
	// (/health, /ready, /metrics). Disabled by default to suppress
	// high-frequency probe noise from the access log.
	ManagementAccessLog bool
	CORSEnabled         bool
	CORSOrigins         string

	// Body size limit (bytes)
	MaxBodySize int64

	// Graceful shutdown drain timeout (seconds)
	DrainTimeout int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DatastoreType:           "mongo",
		DBName:                  "history_service",
		DatastoreMigrateAtStart: true,
		DBMaxOpenConns:          25,
		DBMaxIdleConns:          5,
		CacheType:               "none",
		CacheTTL:                5 * time.Minute,
		IdentityHeader:          "X-Authenticated-User",
		Listener: ListenerConfig{
			Port:              8080,
			EnablePlainText:   true,
			EnableTLS:         true,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ManagementListener: ListenerConfig{
			EnablePlainText: true,
			EnableTLS:       true,
		},
		MaxBodySize:  1 * 1024 * 1024,
		DrainTimeout: 30,
	}
}
