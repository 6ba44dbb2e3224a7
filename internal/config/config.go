// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package config loads service configuration from defaults, an optional
// YAML file, GATEKEEP_-prefixed environment variables, and command-line
// flags, in increasing order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Session store backends.
const (
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
)

const envPrefix = "GATEKEEP_"

// Config is the full service configuration.
type Config struct {
	ListenAddr  string `koanf:"listen_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	DatabaseURL string `koanf:"database_url"`
	LogFormat   string `koanf:"log_format"`

	Session SessionConfig `koanf:"session"`
	Cookie  CookieConfig  `koanf:"cookie"`
	Redis   RedisConfig   `koanf:"redis"`
	Argon2  Argon2Config  `koanf:"argon2"`
}

// SessionConfig controls session lifetime and the backing store.
type SessionConfig struct {
	// Store selects the session backend: "postgres" or "redis".
	Store string `koanf:"store"`

	// TTL is the fixed session time-to-live. Never extended on access.
	TTL time.Duration `koanf:"ttl"`

	// SweepInterval is how often expired sessions are purged.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// Secret signs the session cookie. Required; treated as a secret input
	// and never logged.
	Secret string `koanf:"secret"`
}

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	Name   string `koanf:"name"`
	Secure bool   `koanf:"secure"`
}

// RedisConfig configures the optional Redis session store.
type RedisConfig struct {
	Addr string `koanf:"addr"`
	DB   int    `koanf:"db"`
}

// Argon2Config tunes the password hashing cost. Zero values fall back to
// the hasher defaults; previously issued hashes stay valid because the
// parameters are embedded in each hash.
type Argon2Config struct {
	Time    uint32 `koanf:"time"`
	Memory  uint32 `koanf:"memory"`
	Threads uint8  `koanf:"threads"`
}

// defaults are the baseline configuration, overridden by file, env, flags.
func defaults() map[string]any {
	return map[string]any{
		"listen_addr":            ":8080",
		"metrics_addr":           "127.0.0.1:9100",
		"log_format":             "json",
		"session.store":          SessionStorePostgres,
		"session.ttl":            "1h",
		"session.sweep_interval": "5m",
		"cookie.name":            "gk_session",
		"cookie.secure":          false,
		"redis.addr":             "127.0.0.1:6379",
		"redis.db":               0,
	}
}

// Load builds the configuration. path is an optional YAML file; flags is an
// optional flag set whose changed flags take highest precedence.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", path).
				Wrap(err)
		}
	}

	// GATEKEEP_SESSION__TTL=30m -> session.ttl; double underscore nests so
	// keys like database_url survive intact.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for required and coherent values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen_addr is required")
	}
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.Session.Store != SessionStorePostgres && c.Session.Store != SessionStoreRedis {
		return oops.Code("CONFIG_INVALID").Errorf("session.store must be 'postgres' or 'redis', got %q", c.Session.Store)
	}
	if c.Session.TTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session.ttl must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session.sweep_interval must be positive")
	}
	if c.Session.Secret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("session.secret is required")
	}
	if c.Session.Store == SessionStoreRedis && c.Redis.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("redis.addr is required when session.store is redis")
	}
	return nil
}
