package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backends for the session store.
const (
	StoreNone     = ""
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Addr  string `env:"ADDR" envDefault:":8080"`
	Debug bool   `env:"DEBUG" envDefault:"false"`

	// OriginPatterns loosens the websocket origin check, e.g. for a dev
	// client on another port. Empty keeps same-origin only.
	OriginPatterns []string `env:"ORIGIN_PATTERNS" envSeparator:","`

	// RosterPath overrides the embedded god catalog.
	RosterPath string `env:"ROSTER_PATH"`

	StoreBackend string        `env:"STORE_BACKEND"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`
}

// Load reads .env if present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.StoreBackend {
	case StoreNone, StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	return cfg, nil
}
