package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
// Callers that use a .env file load it into the environment first.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// minSessionSecret is the shortest accepted HS256 signing secret.
const minSessionSecret = 32

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, "SERVER_WRITE_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "SERVER_REQUEST_TIMEOUT must be positive")
	}

	// Streak validation
	if u, err := url.Parse(c.Streak.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("STREAK_API_BASE (%q) must be an absolute http(s) URL", c.Streak.BaseURL))
	}
	if c.Streak.Timeout <= 0 {
		errs = append(errs, "STREAK_TIMEOUT must be positive")
	}
	if c.Streak.MaxConcurrent <= 0 {
		errs = append(errs, "STREAK_MAX_CONCURRENT must be positive")
	}
	if c.Streak.MaxWaitTime <= 0 {
		errs = append(errs, "STREAK_MAX_WAIT_TIME must be positive")
	}

	// Tenancy validation
	be := strings.ToLower(strings.TrimSpace(c.Tenancy.BEDomain))
	nl := strings.ToLower(strings.TrimSpace(c.Tenancy.NLDomain))
	if be == "" || strings.Contains(be, "@") {
		errs = append(errs, fmt.Sprintf("TENANT_BE_DOMAIN (%q) must be a bare domain", c.Tenancy.BEDomain))
	}
	if nl == "" || strings.Contains(nl, "@") {
		errs = append(errs, fmt.Sprintf("TENANT_NL_DOMAIN (%q) must be a bare domain", c.Tenancy.NLDomain))
	}
	if be != "" && be == nl {
		errs = append(errs, "TENANT_BE_DOMAIN and TENANT_NL_DOMAIN must differ")
	}
	if c.Tenancy.KeyCacheTTL <= 0 {
		errs = append(errs, "TENANT_KEY_CACHE_TTL must be positive")
	}
	if c.Tenancy.SweepInterval <= 0 {
		errs = append(errs, "TENANT_SWEEP_INTERVAL must be positive")
	}

	// Field validation
	if strings.TrimSpace(c.Fields.PartnershipValueKey) == "" {
		errs = append(errs, "FIELD_PARTNERSHIP_VALUE_KEY is required")
	}
	if c.Fields.PartnershipName == "" && c.Fields.PartnershipKey == "" {
		errs = append(errs, "one of FIELD_PARTNERSHIP_NAME or FIELD_PARTNERSHIP_KEY is required")
	}
	if c.Fields.PartnerPageLiveName == "" && c.Fields.PartnerPageLiveKey == "" {
		errs = append(errs, "one of FIELD_PARTNER_PAGE_LIVE_NAME or FIELD_PARTNER_PAGE_LIVE_KEY is required")
	}

	// Auth validation
	if len(c.Auth.SessionSecret) < minSessionSecret {
		errs = append(errs, fmt.Sprintf("SESSION_SECRET must be at least %d characters", minSessionSecret))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, "SESSION_TTL must be positive")
	}
	if c.Auth.CookieName == "" {
		errs = append(errs, "SESSION_COOKIE_NAME must not be empty")
	}
	if c.Auth.LoginEnabled() {
		if c.Auth.ClientID == "" {
			errs = append(errs, "OIDC_CLIENT_ID is required when OIDC_ISSUER_URL is set")
		}
		if u, err := url.Parse(c.Auth.RedirectURL); err != nil || !u.IsAbs() {
			errs = append(errs, "OIDC_REDIRECT_URL must be an absolute URL when OIDC_ISSUER_URL is set")
		}
	}

	// Database validation
	if c.Database.Enabled() {
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.UpdateLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_UPDATE must be positive when rate limiting is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Credentials, secrets and the database URL are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Streak: {BaseURL: %q, BEKey: %s, NLKey: %s, MaxConcurrent: %d}, ",
		c.Streak.BaseURL, mask(c.Streak.BEKey), mask(c.Streak.NLKey), c.Streak.MaxConcurrent))
	b.WriteString(fmt.Sprintf("Tenancy: {BEDomain: %q, NLDomain: %q, KeyCacheTTL: %s}, ",
		c.Tenancy.BEDomain, c.Tenancy.NLDomain, c.Tenancy.KeyCacheTTL))
	b.WriteString(fmt.Sprintf("Auth: {Issuer: %q, ClientID: %q, ClientSecret: %s, SessionSecret: %s}, ",
		c.Auth.Issuer, c.Auth.ClientID, mask(c.Auth.ClientSecret), mask(c.Auth.SessionSecret)))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		mask(c.Database.URL), c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

// mask hides a secret while still showing whether it is set.
func mask(secret string) string {
	if secret == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
