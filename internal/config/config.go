package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

// Session store backends
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	StaticDir   string `env:"STATIC_DIR" envDefault:"./public"`
	SoundsDir   string `env:"SOUNDS_DIR" envDefault:"./data"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	TwitchClientID     string `env:"TWITCH_CLIENT_ID"`
	TwitchClientSecret string `env:"TWITCH_CLIENT_SECRET"`
	TwitchRedirectURI  string `env:"TWITCH_REDIRECT_URI"`

	ConnectTimeoutSeconds int           `env:"CONNECT_TIMEOUT_SECONDS" envDefault:"10"`
	SessionBackend        string        `env:"SESSION_BACKEND" envDefault:"memory"`
	SessionSweepInterval  time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`
	BroadcastRedis        bool          `env:"BROADCAST_REDIS" envDefault:"false"`
	EncryptionKey         string        `env:"ENCRYPTION_KEY"`
	AuthRateLimitPerMin   int           `env:"AUTH_RATE_LIMIT_PER_MIN" envDefault:"30"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// DashboardURL is where the browser lands after the OAuth callback.
func (c *Config) DashboardURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/"
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// TwitchConfigured reports whether OAuth client credentials are present.
// Missing credentials are not fatal; token operations simply fail.
func (c *Config) TwitchConfigured() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != "" && c.TwitchRedirectURI != ""
}

func (c *Config) Validate() error {
	if c.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("CONNECT_TIMEOUT_SECONDS must be positive")
	}
	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive")
	}

	switch c.SessionBackend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be %q or %q", SessionBackendMemory, SessionBackendRedis)
	}

	if c.BroadcastRedis && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when BROADCAST_REDIS=true")
	}

	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		}
	}

	if !c.TwitchConfigured() {
		log.Warn().Msg("Twitch OAuth credentials incomplete: login and token operations will fail")
	}

	if c.IsProduction() {
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: chat credentials will be stored in plain text")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
