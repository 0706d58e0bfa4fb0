// Package config loads portal configuration from the environment and from
// the optional requirement-message catalog on disk.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config holds the full portal configuration.
type Config struct {
	Server   ServerConfig
	Supabase SupabaseConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `env:"PORTAL_ADDR,default=:8080"`
	ReadTimeout     time.Duration `env:"PORTAL_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"PORTAL_WRITE_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"PORTAL_SHUTDOWN_TIMEOUT,default=10s"`
	RateLimitPerSec int           `env:"PORTAL_RATE_LIMIT,default=20"`
	RateLimitBurst  int           `env:"PORTAL_RATE_BURST,default=40"`
	AllowedOrigins  string        `env:"PORTAL_ALLOWED_ORIGINS,default=*"`
}

// SupabaseConfig configures the Supabase project connection.
type SupabaseConfig struct {
	URL        string `env:"SUPABASE_URL"`
	AnonKey    string `env:"SUPABASE_ANON_KEY"`
	ServiceKey string `env:"SUPABASE_SERVICE_KEY"`
	JWTSecret  string `env:"SUPABASE_JWT_SECRET"`
}

// DatabaseConfig configures the optional direct-Postgres path.
// When DSN is empty the portal persists through the Supabase REST API only.
type DatabaseConfig struct {
	DSN             string `env:"DATABASE_URL"`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	MigrationsTable string `env:"DATABASE_MIGRATIONS_TABLE,default=schema_migrations"`
}

// RedisConfig configures the wallet-status cache.
// When Addr is empty the cache is disabled and every check hits the store.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,default=0"`
	TTL      time.Duration `env:"REDIS_WALLET_TTL,default=5m"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Supabase.URL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.Supabase.AnonKey == "" && c.Supabase.ServiceKey == "" {
		return fmt.Errorf("SUPABASE_ANON_KEY or SUPABASE_SERVICE_KEY is required")
	}
	return nil
}
