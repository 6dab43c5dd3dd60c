// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

// Package config loads identityd configuration from defaults, an
// optional YAML file, command-line flags, and environment variables for
// secrets. The resulting Config is immutable after Load.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the process-wide identityd configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Reset    ResetConfig    `koanf:"reset"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig holds HTTP listener addresses.
type ServerConfig struct {
	Addr        string `koanf:"addr"`
	MetricsAddr string `koanf:"metrics_addr"`
}

// DatabaseConfig holds the PostgreSQL connection string.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// SessionConfig holds session-token issuance settings. Secret is the
// process-wide signing key, read once at startup and never mutated.
type SessionConfig struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
}

// ResetConfig holds reset-token issuance settings.
type ResetConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	From     string `koanf:"from"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        "127.0.0.1:8080",
			MetricsAddr: "127.0.0.1:9100",
		},
		Session: SessionConfig{
			TTL: 24 * time.Hour,
		},
		Reset: ResetConfig{
			TTL: 30 * time.Minute,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Log: LogConfig{
			Format: "json",
		},
	}
}

// flagKeys maps command-line flag names onto config keys. Only flags
// listed here participate in the merge.
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"metrics-addr": "server.metrics_addr",
	"database-url": "database.url",
	"session-ttl":  "session.ttl",
	"reset-ttl":    "reset.ttl",
	"log-format":   "log.format",
}

// Load builds the configuration: defaults, then the YAML file at path
// (if non-empty), then any changed flags, then the DATABASE_URL and
// SESSION_SECRET environment variables for values that should not live
// in files.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.Session.Secret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
// Presence of the database URL and session secret is checked by the
// commands that need them, so offline commands keep working.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.Log.Format).
			Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if c.Session.TTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session ttl must be positive")
	}
	if c.Reset.TTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("reset ttl must be positive")
	}
	return nil
}
