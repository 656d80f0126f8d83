// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// BadgerDriver selects the embedded key-value backend instead of SQL.
const BadgerDriver = "badger"

type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DBDriver           string        `env:"DB_DRIVER" envDefault:"sqlite3" validate:"oneof=postgres pgx mysql sqlite3 badger"`
	DatabaseURL        string        `env:"DATABASE_URL" validate:"required_unless=DBDriver badger"`
	BadgerPath         string        `env:"BADGER_PATH" envDefault:"data/reviews" validate:"required_if=DBDriver badger"`
	DBDefaultTimeout   time.Duration `env:"DB_DEFAULT_TIMEOUT" envDefault:"10s"`
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`
	MigrateOnStart     bool          `env:"MIGRATE_ON_START" envDefault:"false"`
	MigrateURL         string        `env:"MIGRATE_URL"`

	JWTSecret   string        `env:"JWT_SECRET" validate:"required,min=16"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	MaxBodySize int64         `env:"MAX_BODY_BYTES" envDefault:"65536" validate:"gt=0"`
}

var validate = validator.New()

// Load reads the optional dotenv files, then the environment, and validates
// the result. Variables already set in the environment win over dotenv.
func Load(dotenvFiles ...string) (Config, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints. Call it again after applying flag
// overrides.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
