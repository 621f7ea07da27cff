// config.go

// Environment variable loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all env configuration for the service.
type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string
	LogLevel    slog.Level

	// BcryptCost is the bcrypt work factor for new password hashes.
	// Default 12; lower it only in tests.
	BcryptCost int

	// Session lifecycle. Defaults: 30d max age, 5m cache TTL, revoked rows
	// kept 7d for audit before cleanup deletes them.
	SessionMaxAge           time.Duration
	SessionCacheTTL         time.Duration
	SessionRevokedRetention time.Duration
	CleanupInterval         time.Duration
	CleanupBatchSize        int

	// Password reset. Defaults: 60m token TTL, 60s request cooldown,
	// 5 failed attempts per token.
	ResetTokenTTL    time.Duration
	ResetCooldown    time.Duration
	ResetMaxAttempts int

	// Google OAuth. All three required together; all empty disables the
	// OAuth routes.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	OAuthStateTTL      time.Duration

	// SMTP for outbound email. All optional -- empty Host disables sending.
	SMTPHost         string
	SMTPPort         string // defaults to 587
	SMTPUsername     string
	SMTPPassword     string
	SMTPFromAddress  string
	SMTPResetURLBase string

	// Rate limit policies. Defaults: login 10/10m, signup 5/1h, reset 3/1h.
	RateLoginMax     int
	RateLoginWindow  time.Duration
	RateSignupMax    int
	RateSignupWindow time.Duration
	RateResetMax     int
	RateResetWindow  time.Duration

	// RateLimitFailOpen controls limiter behavior when Redis is down:
	// true lets traffic through, false rejects it. Default false -- a Redis
	// outage must not open an unbounded brute-force window on login.
	RateLimitFailOpen bool
}

// LoadConfig reads environment variables and returns a validated Config.
// Returns an error if required variables (DATABASE_URL, REDIS_URL) are
// missing or the Google OAuth trio is partially set.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "7865"
	}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	cfg.BcryptCost = envInt("BCRYPT_COST", 12)

	cfg.SessionMaxAge = envDuration("SESSION_MAX_AGE", 30*24*time.Hour)
	cfg.SessionCacheTTL = envDuration("SESSION_CACHE_TTL", 5*time.Minute)
	cfg.SessionRevokedRetention = envDuration("SESSION_REVOKED_RETENTION", 7*24*time.Hour)
	cfg.CleanupInterval = envDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.CleanupBatchSize = envInt("CLEANUP_BATCH_SIZE", 1000)

	cfg.ResetTokenTTL = envDuration("RESET_TOKEN_TTL", time.Hour)
	cfg.ResetCooldown = envDuration("RESET_COOLDOWN", time.Minute)
	cfg.ResetMaxAttempts = envInt("RESET_MAX_ATTEMPTS", 5)

	// Google OAuth: all-or-nothing. A partial trio is a deployment mistake,
	// not a feature toggle.
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	set := 0
	for _, v := range []string{cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, and GOOGLE_REDIRECT_URL must be set together")
	}
	cfg.OAuthStateTTL = envDuration("OAUTH_STATE_TTL", 10*time.Minute)

	// SMTP -- all optional; empty Host means no email sending (NopMailer).
	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.SMTPPort = os.Getenv("SMTP_PORT")
	if cfg.SMTPPort == "" {
		cfg.SMTPPort = "587"
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFromAddress = os.Getenv("SMTP_FROM")
	cfg.SMTPResetURLBase = os.Getenv("SMTP_RESET_URL")

	// Tokens in reset links must not travel over plain HTTP.
	if cfg.SMTPHost != "" && !strings.HasPrefix(cfg.SMTPResetURLBase, "https://") {
		return nil, fmt.Errorf("SMTP_RESET_URL must be set and start with https://")
	}

	cfg.RateLoginMax = envInt("RATE_LOGIN_MAX", 10)
	cfg.RateLoginWindow = envDuration("RATE_LOGIN_WINDOW", 10*time.Minute)
	cfg.RateSignupMax = envInt("RATE_SIGNUP_MAX", 5)
	cfg.RateSignupWindow = envDuration("RATE_SIGNUP_WINDOW", time.Hour)
	cfg.RateResetMax = envInt("RATE_RESET_MAX", 3)
	cfg.RateResetWindow = envDuration("RATE_RESET_WINDOW", time.Hour)

	// Default false -- only explicit "true" switches to fail-open.
	cfg.RateLimitFailOpen = os.Getenv("RATE_LIMIT_FAIL_OPEN") == "true"

	return cfg, nil
}

// GoogleOAuthEnabled reports whether the Google OAuth routes should mount.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != ""
}

// envInt reads an env var as int, returning def if missing or unparseable.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
