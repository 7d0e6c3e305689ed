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

// Twitch API call timeout
const TwitchHTTPTimeout = 10 * time.Second

// Session lifetime fallback when the token response carries no expiry
const DefaultSessionTTL = 4 * time.Hour

// Analytics defaults
const (
	DefaultAnalyticsDays = 30
	MaxAnalyticsDays     = 365
	DefaultRankingLimit  = 10
	DefaultActivityLimit = 50
)
