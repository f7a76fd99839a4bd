package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Default rate limiting
const DefaultRateLimitPerMin = 60

// Public pairing endpoints: per-IP limits for claim/status probes
const (
	ClaimRateLimit   = 10
	ClaimRateWindow  = time.Minute
	StatusRateLimit  = 30
	StatusRateWindow = time.Minute
)
