package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

// Header constants.
const (
	HEADER_KEY_X_REQUEST_ID = "X-Request-Id"
)

const (
	ENV_KEY_APP_ENV                 = "APP_ENV"
	ENV_KEY_PORT                    = "PORT"
	ENV_KEY_LOG_LEVEL               = "LOG_LEVEL"
	ENV_KEY_DB_DRIVER               = "DB_DRIVER"
	ENV_KEY_DB_HOST                 = "DB_HOST"
	ENV_KEY_DB_PORT                 = "DB_PORT"
	ENV_KEY_DB_USER                 = "DB_USER"
	ENV_KEY_DB_PASSWORD             = "DB_PASSWORD"
	ENV_KEY_DB_DATABASE             = "DB_DATABASE"
	ENV_KEY_DB_SSLMODE              = "DB_SSLMODE"
	ENV_KEY_DB_MAX_OPEN_CONNECTIONS = "DB_MAX_OPEN_CONNECTIONS"
	ENV_KEY_DB_MAX_IDLE_CONNECTIONS = "DB_MAX_IDLE_CONNECTIONS"
	ENV_KEY_RATE_LIMIT              = "RATE_LIMIT"
	ENV_KEY_RATE_LIMIT_BURST        = "RATE_LIMIT_BURST"
	ENV_KEY_OTEL_ENABLED            = "OTEL_ENABLED"
	ENV_KEY_OTEL_SERVICE_NAME       = "OTEL_SERVICE_NAME"
	ENV_KEY_OTEL_ENDPOINT           = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

const (
	DB_DRIVER_POSTGRES = "postgres"
	DB_DRIVER_MEMORY   = "memory"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"local"`
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`

	DBDriver             string `env:"DB_DRIVER" envDefault:"postgres"`
	DBHost               string `env:"DB_HOST" envDefault:"localhost"`
	DBPort               string `env:"DB_PORT" envDefault:"5432"`
	DBUser               string `env:"DB_USER"`
	DBPassword           string `env:"DB_PASSWORD"`
	DBDatabase           string `env:"DB_DATABASE"`
	DBSSLMode            string `env:"DB_SSLMODE" envDefault:"disable"`
	DBMaxOpenConnections int    `env:"DB_MAX_OPEN_CONNECTIONS" envDefault:"25"`
	DBMaxIdleConnections int    `env:"DB_MAX_IDLE_CONNECTIONS" envDefault:"5"`

	// requests per second per client ip, 0 disables the limiter
	RateLimit      float64 `env:"RATE_LIMIT" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	OTelEnabled     bool   `env:"OTEL_ENABLED" envDefault:"true"`
	OTelServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"assetgroups-api"`
	OTelEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads the process environment (and a .env file, when present) into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DB_DRIVER_POSTGRES, DB_DRIVER_MEMORY:
	default:
		return fmt.Errorf("unsupported %s %q", ENV_KEY_DB_DRIVER, c.DBDriver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid %s %d", ENV_KEY_PORT, c.Port)
	}
	return nil
}

// DSN is the postgres connection string built from the DB_* keys.
func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBDatabase, c.DBSSLMode)
}

func (c Config) IsLocal() bool {
	return c.AppEnv == "local"
}
