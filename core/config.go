package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultStateTTL        = 10 * time.Minute
	defaultCredentialTTL   = 10 * time.Minute
	defaultPageLimit       = 20
	maxPageLimit           = 100
	defaultLoadWorkers     = 4
	defaultPollInterval    = 500 * time.Millisecond
	defaultPollTimeout     = 2 * time.Minute
	defaultKeyPrefix       = "integrations"
	defaultServiceName     = "integrations"
	defaultMaxStoreEntries = 10000
)

type LoadConfig struct {
	PageLimit   int `koanf:"page_limit" mapstructure:"page_limit"`
	Concurrency int `koanf:"concurrency" mapstructure:"concurrency"`
}

type PollConfig struct {
	Interval time.Duration `koanf:"interval" mapstructure:"interval"`
	Timeout  time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type Config struct {
	ServiceName   string        `koanf:"service_name" mapstructure:"service_name"`
	KeyPrefix     string        `koanf:"key_prefix" mapstructure:"key_prefix"`
	StateTTL      time.Duration `koanf:"state_ttl" mapstructure:"state_ttl"`
	CredentialTTL time.Duration `koanf:"credential_ttl" mapstructure:"credential_ttl"`
	Load          LoadConfig    `koanf:"load" mapstructure:"load"`
	Poll          PollConfig    `koanf:"poll" mapstructure:"poll"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:   defaultServiceName,
		KeyPrefix:     defaultKeyPrefix,
		StateTTL:      defaultStateTTL,
		CredentialTTL: defaultCredentialTTL,
		Load: LoadConfig{
			PageLimit:   defaultPageLimit,
			Concurrency: defaultLoadWorkers,
		},
		Poll: PollConfig{
			Interval: defaultPollInterval,
			Timeout:  defaultPollTimeout,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.KeyPrefix) == "" {
		return fmt.Errorf("core: key_prefix is required")
	}
	if c.StateTTL <= 0 {
		return fmt.Errorf("core: state_ttl must be positive")
	}
	if c.CredentialTTL <= 0 {
		return fmt.Errorf("core: credential_ttl must be positive")
	}
	if c.Load.PageLimit <= 0 || c.Load.PageLimit > maxPageLimit {
		return fmt.Errorf("core: load.page_limit must be between 1 and %d", maxPageLimit)
	}
	if c.Load.Concurrency <= 0 {
		return fmt.Errorf("core: load.concurrency must be positive")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("core: poll.interval must be positive")
	}
	if c.Poll.Timeout < c.Poll.Interval {
		return fmt.Errorf("core: poll.timeout must not be shorter than poll.interval")
	}
	return nil
}
