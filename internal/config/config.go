// Package config loads vaultctl settings from VAULT_* environment variables
// over compiled defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/cerbyonvault/vaultclient/client"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "VAULT_"

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Credential backends selectable with VAULT_STORE
const (
	StoreMemory    = "memory"
	StoreFile      = "fs"
	StoreSQL       = "gorm"
	StoreDatastore = "gae"
	StoreRedis     = "redis"
)

// Config holds all vaultctl configuration
type Config struct {
	APIURL         string        `koanf:"api_url"`
	Margin         time.Duration `koanf:"margin"`
	RefreshTimeout time.Duration `koanf:"refresh_timeout"`

	// Credential storage
	Store      string `koanf:"store"`
	StorePath  string `koanf:"store_path"` // fs directory or sqlite file
	Profile    string `koanf:"profile"`
	Passphrase string `koanf:"passphrase"` // fs at-rest encryption, optional

	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	RedisTTL      time.Duration `koanf:"redis_ttl"`

	DatastoreProject   string `koanf:"datastore_project"`
	DatastoreNamespace string `koanf:"datastore_namespace"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	ConsoleAddr     string        `koanf:"console_addr"`
	SessionLifetime time.Duration `koanf:"session_lifetime"`
}

func defaults() *Config {
	return &Config{
		APIURL:          "http://localhost:8000/api",
		Margin:          client.DefaultMargin,
		RefreshTimeout:  client.DefaultRefreshTimeout,
		Store:           StoreFile,
		Profile:         "default",
		RedisAddr:       "localhost:6379",
		RedisTTL:        7 * 24 * time.Hour,
		LogLevel:        "info",
		LogFormat:       "text",
		ConsoleAddr:     "127.0.0.1:8080",
		SessionLifetime: 24 * time.Hour,
	}
}

// Load reads VAULT_* variables (VAULT_API_URL, VAULT_MARGIN, ...) over the
// compiled defaults and validates the result
func Load() (*Config, error) {
	k := koanf.New(".")
	cfg := defaults()

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside the client
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("%w: api_url is required", ErrInvalidConfig)
	}
	if c.Margin <= 0 {
		return fmt.Errorf("%w: margin must be positive, got %s", ErrInvalidConfig, c.Margin)
	}
	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("%w: refresh_timeout must be positive", ErrInvalidConfig)
	}
	switch c.Store {
	case StoreMemory, StoreFile:
	case StoreSQL:
		if c.StorePath == "" {
			return fmt.Errorf("%w: store_path is required for the gorm store", ErrInvalidConfig)
		}
	case StoreDatastore:
		if c.DatastoreProject == "" {
			return fmt.Errorf("%w: datastore_project is required for the gae store", ErrInvalidConfig)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr is required for the redis store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	if c.Profile == "" {
		return fmt.Errorf("%w: profile is required", ErrInvalidConfig)
	}
	return nil
}

// ClientOptions returns the AuthClient options implied by the configuration
func (c *Config) ClientOptions() []client.ClientOption {
	return []client.ClientOption{
		client.WithMargin(c.Margin),
		client.WithRefreshTimeout(c.RefreshTimeout),
	}
}
