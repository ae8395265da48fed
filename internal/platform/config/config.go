// Package config loads process configuration from ECOPRADO_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	strutil "ecoprado/pkg/platform/strings"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Config captures everything cmd/server needs to assemble the engine.
type Config struct {
	Addr            string        `env:"ECOPRADO_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"ECOPRADO_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Storage     string        `env:"ECOPRADO_STORAGE" envDefault:"memory"`
	RedisURL    string        `env:"ECOPRADO_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPrefix string        `env:"ECOPRADO_REDIS_PREFIX" envDefault:"ecoprado"`
	DatabaseURL string        `env:"ECOPRADO_DATABASE_URL"`
	SQLitePath  string        `env:"ECOPRADO_SQLITE_PATH" envDefault:"ecoprado.db"`
	TxTimeout   time.Duration `env:"ECOPRADO_TX_TIMEOUT" envDefault:"5s"`

	JWTSigningKey string `env:"ECOPRADO_JWT_SIGNING_KEY"`
	JWTIssuer     string `env:"ECOPRADO_JWT_ISSUER" envDefault:"ecoprado"`
	JWTAudience   string `env:"ECOPRADO_JWT_AUDIENCE" envDefault:"ecoprado-ledger"`

	RewardMode           string `env:"ECOPRADO_REWARD_MODE" envDefault:"account"`
	RejectDuplicateUsers bool   `env:"ECOPRADO_REJECT_DUPLICATE_USERS" envDefault:"false"`

	TokenAdmin  string `env:"ECOPRADO_TOKEN_ADMIN"`
	TokenName   string `env:"ECOPRADO_TOKEN_NAME" envDefault:"EcoPrado Token"`
	TokenSymbol string `env:"ECOPRADO_TOKEN_SYMBOL" envDefault:"ECO"`

	LogLevel  string `env:"ECOPRADO_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ECOPRADO_LOG_FORMAT" envDefault:"json"`

	KafkaBrokers []string `env:"ECOPRADO_KAFKA_BROKERS" envSeparator:","`
	AuditTopic   string   `env:"ECOPRADO_AUDIT_TOPIC" envDefault:"ecoprado.audit"`
	AuditBuffer  int      `env:"ECOPRADO_AUDIT_BUFFER" envDefault:"256"`
}

// FromEnv parses the process environment.
func FromEnv() (Config, error) {
	return parse(env.Options{})
}

// FromMap parses a fixed environment, for tests and embedding.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.KafkaBrokers = strutil.DedupeAndTrim(cfg.KafkaBrokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.Storage {
	case StorageMemory, StorageRedis, StorageSQLite:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("ECOPRADO_DATABASE_URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("ECOPRADO_TX_TIMEOUT must be positive")
	}
	if c.AuditBuffer < 0 {
		return fmt.Errorf("ECOPRADO_AUDIT_BUFFER must not be negative")
	}
	return nil
}
