// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Streak   StreakConfig
	Tenancy  TenancyConfig
	Fields   FieldsConfig
	Auth     AuthConfig
	Database DatabaseConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 5000)
	Port int `env:"PORT" envAlt:"SERVER_PORT" default:"5000"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 90s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"90s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StreakConfig holds upstream API settings. Keys are optional at startup;
// a request that needs a missing key fails on its own.
type StreakConfig struct {
	// BaseURL is the Streak API root (default: https://www.streak.com/api/v1)
	BaseURL string `env:"STREAK_API_BASE" default:"https://www.streak.com/api/v1"`

	// BEKey is the API key of the BE account
	BEKey string `env:"STREAK_API_KEY_BE" envAlt:"STREAK_API_KEY"`

	// NLKey is the API key of the NL account
	NLKey string `env:"STREAK_API_KEY_NL"`

	// Timeout bounds a single upstream call (default: 30s)
	Timeout time.Duration `env:"STREAK_TIMEOUT" default:"30s"`

	// MaxConcurrent caps upstream calls in flight (default: 16)
	MaxConcurrent int `env:"STREAK_MAX_CONCURRENT" default:"16"`

	// MaxWaitTime is how long a call waits for a free slot (default: 10s)
	MaxWaitTime time.Duration `env:"STREAK_MAX_WAIT_TIME" default:"10s"`
}

// TenancyConfig holds the organizational domains and the NL-key cache.
type TenancyConfig struct {
	// BEDomain is the email domain of BE staff (default: techorama.be)
	BEDomain string `env:"TENANT_BE_DOMAIN" default:"techorama.be"`

	// NLDomain is the email domain of NL staff (default: techorama.nl)
	NLDomain string `env:"TENANT_NL_DOMAIN" default:"techorama.nl"`

	// KeyCacheTTL is how long an observed NL pipeline key is remembered (default: 1h)
	KeyCacheTTL time.Duration `env:"TENANT_KEY_CACHE_TTL" default:"1h"`

	// SweepInterval is how often expired keys are dropped (default: 10m)
	SweepInterval time.Duration `env:"TENANT_SWEEP_INTERVAL" default:"10m"`
}

// FieldsConfig names the custom fields resolved on boxes.
type FieldsConfig struct {
	// PartnershipValueKey is the box field holding the partnership option (default: 1001)
	PartnershipValueKey string `env:"FIELD_PARTNERSHIP_VALUE_KEY" default:"1001"`

	// PartnershipName is matched against field names (default: partnership)
	PartnershipName string `env:"FIELD_PARTNERSHIP_NAME" default:"partnership"`

	// PartnershipKey pins the partnership field and skips name matching
	PartnershipKey string `env:"FIELD_PARTNERSHIP_KEY"`

	// PartnerPageLiveName is matched against field names (default: partner page live)
	PartnerPageLiveName string `env:"FIELD_PARTNER_PAGE_LIVE_NAME" default:"partner page live"`

	// PartnerPageLiveKey pins the partner-page-live field and skips name matching
	PartnerPageLiveKey string `env:"FIELD_PARTNER_PAGE_LIVE_KEY"`
}

// AuthConfig holds login and session settings.
type AuthConfig struct {
	// Issuer is the OpenID Connect issuer URL; empty disables login
	Issuer string `env:"OIDC_ISSUER_URL" envAlt:"ISSUER_URL"`

	// ClientID is the OAuth client identifier
	ClientID string `env:"OIDC_CLIENT_ID" envAlt:"REPL_ID"`

	// ClientSecret is the OAuth client secret
	ClientSecret string `env:"OIDC_CLIENT_SECRET"`

	// RedirectURL is the absolute callback URL registered with the issuer
	RedirectURL string `env:"OIDC_REDIRECT_URL"`

	// SessionSecret signs session cookies (required)
	SessionSecret string `env:"SESSION_SECRET" required:"true"`

	// SessionTTL is the session lifetime (default: 168h)
	SessionTTL time.Duration `env:"SESSION_TTL" default:"168h"`

	// CookieName is the session cookie name (default: streakflow_session)
	CookieName string `env:"SESSION_COOKIE_NAME" default:"streakflow_session"`

	// SecureCookies sets the Secure flag on cookies (default: true)
	SecureCookies bool `env:"SESSION_SECURE_COOKIES" default:"true"`
}

// LoginEnabled reports whether an OIDC issuer is configured.
func (c *AuthConfig) LoginEnabled() bool {
	return c.Issuer != ""
}

// DatabaseConfig holds database connection settings. The database is
// optional; without it user profiles live in memory.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database URL is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UpdateLimit is requests per minute for box updates (default: 30)
	UpdateLimit int `env:"RATE_LIMIT_UPDATE" default:"30"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
