// Package config loads the agent proxy configuration from environment
// variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Config is the agent proxy configuration.
type Config struct {
	// Origin is the application origin the proxy forwards to.
	Origin string `env:"AGENT_ORIGIN" envDefault:"http://localhost:4000"`

	// Namespace and Version name the tier set.
	Namespace string `env:"AGENT_NAMESPACE" envDefault:"app"`
	Version   string `env:"AGENT_VERSION" envDefault:"v1"`

	// Manifest overrides the provisioned resources (comma separated).
	Manifest []string `env:"AGENT_MANIFEST" envSeparator:","`

	// Store selects the tier backend: memory, redis or badger.
	Store     string `env:"STORE_BACKEND" envDefault:"memory"`
	RedisURL  string `env:"REDIS_URL" envDefault:"localhost:6379"`
	BadgerDir string `env:"BADGER_PATH" envDefault:"./data/tiers"`

	// MemoryLimit bounds the memory backend in bytes, 0 for unlimited.
	MemoryLimit int64 `env:"MEMORY_LIMIT_BYTES" envDefault:"0"`

	// PushURL is an optional ws:// endpoint delivering push messages.
	PushURL string `env:"PUSH_URL"`

	Port string `env:"PORT" envDefault:"8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	NetworkTimeout       time.Duration `env:"NETWORK_TIMEOUT" envDefault:"30s"`
	UserAgent            string        `env:"USER_AGENT" envDefault:"offline-agent/0.1.0"`
	ProvisionConcurrency int           `env:"PROVISION_CONCURRENCY" envDefault:"4"`
}

// Load parses the environment into a validated Config.
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

// Validate checks values the environment parser cannot.
func (c Config) Validate() error {
	if _, err := c.OriginURL(); err != nil {
		return err
	}

	switch strings.ToLower(c.Store) {
	case BackendMemory, BackendRedis, BackendBadger:
	default:
		return fmt.Errorf("STORE_BACKEND must be memory, redis or badger (got %q)", c.Store)
	}

	if c.ProvisionConcurrency < 1 {
		return fmt.Errorf("PROVISION_CONCURRENCY must be >= 1 (got %d)", c.ProvisionConcurrency)
	}
	if c.NetworkTimeout <= 0 {
		return fmt.Errorf("NETWORK_TIMEOUT must be positive (got %s)", c.NetworkTimeout)
	}
	if c.PushURL != "" {
		u, err := url.Parse(c.PushURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("PUSH_URL must be a ws:// or wss:// url (got %q)", c.PushURL)
		}
	}
	return nil
}

// OriginURL returns the parsed origin.
func (c Config) OriginURL() (*url.URL, error) {
	u, err := url.Parse(c.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse AGENT_ORIGIN: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("AGENT_ORIGIN must be an absolute http(s) url (got %q)", c.Origin)
	}
	return u, nil
}

// ManifestOrDefault returns the configured manifest or def when none is set.
func (c Config) ManifestOrDefault(def []string) []string {
	var out []string
	for _, m := range c.Manifest {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}
