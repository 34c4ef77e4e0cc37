// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// EnvPrefix is prepended to every variable name
const EnvPrefix = "ESTGAME_"

// Config is the server configuration. Every field is read from an
// ESTGAME_-prefixed environment variable.
type Config struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`

	StorageType string `env:"STORAGE" envDefault:"memory"`
	RedisURL    string `env:"REDIS_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"estgame.db"`

	// NATSURL enables cross-instance fan-out when set
	NATSURL string `env:"NATS_URL"`

	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"10"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	CatalogPath     string        `env:"CATALOG_PATH"`
	SSEKeepAlive    time.Duration `env:"SSE_KEEPALIVE" envDefault:"30s"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1m"`
}

// Load reads an optional .env file and then the environment.
// Variables already set in the environment win over the file.
func Load(dotenvFiles ...string) (Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && len(dotenvFiles) > 0 {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}
	return Parse(nil)
}

// Parse reads configuration from the process environment, or from environ
// when it is non-nil
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the settings are consistent
func (c Config) Validate() error {
	switch c.StorageType {
	case StorageMemory, StorageSQLite:
	case StorageRedis:
		if c.RedisURL == "" {
			return errors.New("ESTGAME_REDIS_URL required when ESTGAME_STORAGE=redis")
		}
	default:
		return fmt.Errorf("invalid ESTGAME_STORAGE %q: must be memory, redis or sqlite", c.StorageType)
	}
	if c.StorageType == StorageSQLite && c.SQLitePath == "" {
		return errors.New("ESTGAME_SQLITE_PATH required when ESTGAME_STORAGE=sqlite")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("invalid ESTGAME_BCRYPT_COST %d: must be between 4 and 31", c.BcryptCost)
	}
	if c.SSEKeepAlive <= 0 {
		return errors.New("ESTGAME_SSE_KEEPALIVE must be positive")
	}
	if c.CleanupInterval <= 0 {
		return errors.New("ESTGAME_CLEANUP_INTERVAL must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel converts LogLevel to a slog level
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid ESTGAME_LOG_LEVEL %q", c.LogLevel)
	}
	return level, nil
}
