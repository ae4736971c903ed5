// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

// Package config loads Oryen settings from defaults, a YAML file, the
// environment and command flags, in increasing priority.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/oryen/oryen/internal/xdg"
)

// EnvPrefix prefixes every environment override, e.g. ORYEN_DATABASE_URL.
const EnvPrefix = "ORYEN_"

// Identity providers.
const (
	ProviderMemory   = "memory"
	ProviderPostgres = "postgres"
)

// Config is the resolved configuration.
type Config struct {
	Log        LogConfig        `koanf:"log"`
	Provider   string           `koanf:"provider"`
	Database   DatabaseConfig   `koanf:"database"`
	Seed       SeedConfig       `koanf:"seed"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Onboarding OnboardingConfig `koanf:"onboarding"`
	Lookup     LookupConfig     `koanf:"lookup"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Format string `koanf:"format"`
}

// DatabaseConfig locates the PostgreSQL provider.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// SeedConfig names a YAML seed file loaded at startup.
type SeedConfig struct {
	File string `koanf:"file"`
}

// MetricsConfig is the observability listener. Empty disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// OnboardingConfig controls the first-launch pages.
type OnboardingConfig struct {
	Skip bool `koanf:"skip"`
}

// LookupConfig bounds directory calls.
type LookupConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	Retries int           `koanf:"retries"`
}

var defaults = map[string]any{
	"log.format":      "text",
	"provider":        ProviderMemory,
	"database.url":    "",
	"seed.file":       "",
	"metrics.addr":    "",
	"onboarding.skip": false,
	"lookup.timeout":  "10s",
	"lookup.retries":  2,
}

// flagKeys maps command flag names to configuration keys.
var flagKeys = map[string]string{
	"log-format":      "log.format",
	"provider":        "provider",
	"database-url":    "database.url",
	"seed-file":       "seed.file",
	"metrics-addr":    "metrics.addr",
	"skip-onboarding": "onboarding.skip",
	"lookup-timeout":  "lookup.timeout",
	"lookup-retries":  "lookup.retries",
}

// RegisterFlags adds the configuration flags to flags. Their defaults are
// informational; unset flags never override the file or environment.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("log-format", "text", "log format (json or text)")
	flags.String("provider", ProviderMemory, "identity provider (memory or postgres)")
	flags.String("database-url", "", "PostgreSQL URL for the postgres provider")
	flags.String("seed-file", "", "YAML file of accounts to load at startup")
	flags.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	flags.Bool("skip-onboarding", false, "start at kind selection")
	flags.Duration("lookup-timeout", 10*time.Second, "timeout for each directory call")
	flags.Int("lookup-retries", 2, "retries for read-only lookups on connection errors")
}

// Load resolves the configuration. path is the YAML file to read; when
// empty the XDG default is used if it exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if err := loadFile(k, path); err != nil {
		return nil, err
	}

	// DATABASE_URL is honored as a fallback for the prefixed variable.
	if url := os.Getenv("DATABASE_URL"); url != "" {
		if err := k.Set("database.url", url); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		def, err := xdg.ConfigFile()
		if err != nil {
			return nil //nolint:nilerr // no home directory means no default file
		}
		path = def
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// envKey turns ORYEN_DATABASE_URL into database.url.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	switch {
	case c.Log.Format != "json" && c.Log.Format != "text":
		return invalid("log.format", "must be 'json' or 'text', got %q", c.Log.Format)
	case c.Provider != ProviderMemory && c.Provider != ProviderPostgres:
		return invalid("provider", "must be %q or %q, got %q", ProviderMemory, ProviderPostgres, c.Provider)
	case c.Provider == ProviderPostgres && c.Database.URL == "":
		return invalid("database.url", "is required for the postgres provider")
	case c.Lookup.Timeout <= 0:
		return invalid("lookup.timeout", "must be positive, got %s", c.Lookup.Timeout)
	case c.Lookup.Retries < 0:
		return invalid("lookup.retries", "must not be negative, got %d", c.Lookup.Retries)
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(key+" "+format, args...)
}
