package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port          int        `env:"PORT" envDefault:"8080"`
	PublicBaseURL string     `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	CORSOrigin    string     `env:"CORS_ORIGIN" envDefault:"*"`
	APIToken      string     `env:"API_TOKEN,required,notEmpty"`
	DefaultUserID string     `env:"DEFAULT_USER_ID" envDefault:"dev-user"`
	LogLevel      slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	Version       string     `env:"VERSION" envDefault:"dev"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DBPath      string `env:"DB_PATH" envDefault:"data/tabletop.db"`

	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"100"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitSweep  string        `env:"RATE_LIMIT_SWEEP" envDefault:"@every 1m"`

	ChallengeTTL   time.Duration `env:"CHALLENGE_TTL" envDefault:"168h"`
	ChallengeSweep string        `env:"CHALLENGE_SWEEP" envDefault:"@hourly"`

	DivisionSize      int  `env:"DIVISION_SIZE" envDefault:"10"`
	ValidateResponses bool `env:"VALIDATE_RESPONSES" envDefault:"true"`
	SeedDemo          bool `env:"SEED_DEMO" envDefault:"false"`

	// FederationServers is a list of name=url pairs.
	FederationServers map[string]string `env:"FEDERATION_SERVERS" envSeparator:"," envKeyValSeparator:"="`
}

// HTTPAddr is the listen address derived from Port.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("STORE_DRIVER must be memory or sqlite, got %q", c.StoreDriver)
	}
	if c.RateLimitMax <= 0 {
		return errors.New("RATE_LIMIT_MAX must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT_WINDOW must be positive")
	}
	if c.DivisionSize < 2 {
		return errors.New("DIVISION_SIZE must be at least 2")
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	return nil
}
