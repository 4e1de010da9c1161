package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	integrations "github.com/goliatone/go-integrations"
	"github.com/goliatone/go-integrations/providers/github"
	"github.com/goliatone/go-integrations/providers/hubspot"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

const (
	driverMemory   = "memory"
	driverRedis    = "redis"
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

type providerEnv struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURI  string `env:"REDIRECT_URI"`
}

func (p providerEnv) settings() integrations.ClientSettings {
	return integrations.ClientSettings{
		ClientID:     strings.TrimSpace(p.ClientID),
		ClientSecret: strings.TrimSpace(p.ClientSecret),
		RedirectURI:  strings.TrimSpace(p.RedirectURI),
	}
}

type daemonConfig struct {
	ListenAddr      string        `env:"INTEGRATIONS_LISTEN_ADDR" envDefault:":8000"`
	LogLevel        string        `env:"INTEGRATIONS_LOG_LEVEL" envDefault:"info"`
	LogDevelopment  bool          `env:"INTEGRATIONS_LOG_DEVELOPMENT"`
	StoreDriver     string        `env:"INTEGRATIONS_STORE_DRIVER" envDefault:"redis"`
	RedisURL        string        `env:"INTEGRATIONS_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	DatabaseDSN     string        `env:"INTEGRATIONS_DATABASE_DSN"`
	MaxMemoryKeys   int           `env:"INTEGRATIONS_MEMORY_MAX_ENTRIES" envDefault:"10000"`
	JanitorInterval time.Duration `env:"INTEGRATIONS_JANITOR_INTERVAL" envDefault:"1m"`
	RateLimitRPM    int           `env:"INTEGRATIONS_RATE_LIMIT_RPM" envDefault:"600"`
	StateTTL        time.Duration `env:"INTEGRATIONS_STATE_TTL" envDefault:"10m"`
	CredentialTTL   time.Duration `env:"INTEGRATIONS_CREDENTIAL_TTL" envDefault:"10m"`
	PageLimit       int           `env:"INTEGRATIONS_LOAD_PAGE_LIMIT" envDefault:"20"`
	ShutdownTimeout time.Duration `env:"INTEGRATIONS_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	HubSpot providerEnv `envPrefix:"HUBSPOT_"`
	GitHub  providerEnv `envPrefix:"GITHUB_"`
}

// loadConfig reads an optional .env file first so real environment values
// still win, then parses the environment.
func loadConfig(dotenvFiles ...string) (daemonConfig, error) {
	_ = godotenv.Load(dotenvFiles...)
	return parseConfig(env.Options{})
}

func parseConfig(opts env.Options) (daemonConfig, error) {
	var cfg daemonConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return daemonConfig{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.TrimSpace(strings.ToLower(cfg.StoreDriver))
	if err := cfg.validate(); err != nil {
		return daemonConfig{}, err
	}
	return cfg, nil
}

func (c daemonConfig) validate() error {
	switch c.StoreDriver {
	case driverMemory, driverRedis:
	case driverSQLite, driverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("INTEGRATIONS_DATABASE_DSN is required for store driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unsupported store driver %q", c.StoreDriver)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("INTEGRATIONS_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// serviceConfig is the runtime layer handed to the service; anything left
// zero falls back to the service defaults.
func (c daemonConfig) serviceConfig() integrations.Config {
	cfg := integrations.DefaultConfig()
	if c.StateTTL > 0 {
		cfg.StateTTL = c.StateTTL
	}
	if c.CredentialTTL > 0 {
		cfg.CredentialTTL = c.CredentialTTL
	}
	if c.PageLimit > 0 {
		cfg.Load.PageLimit = c.PageLimit
	}
	return cfg
}

func (c daemonConfig) providerSettings() map[string]integrations.ClientSettings {
	return map[string]integrations.ClientSettings{
		hubspot.ProviderID: c.HubSpot.settings(),
		github.ProviderID:  c.GitHub.settings(),
	}
}
