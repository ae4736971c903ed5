// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryen/oryen/internal/config"
	"github.com/oryen/oryen/pkg/errutil"
)

// isolate points the XDG default at an empty directory and clears the
// variables Load reads.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "")
	for _, key := range []string{"LOG_FORMAT", "PROVIDER", "DATABASE_URL", "SEED_FILE", "METRICS_ADDR",
		"ONBOARDING_SKIP", "LOOKUP_TIMEOUT", "LOOKUP_RETRIES"} {
		t.Setenv(config.EnvPrefix+key, "")
		require.NoError(t, os.Unsetenv(config.EnvPrefix+key))
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, config.ProviderMemory, cfg.Provider)
	assert.Equal(t, 10*time.Second, cfg.Lookup.Timeout)
	assert.Equal(t, 2, cfg.Lookup.Retries)
	assert.False(t, cfg.Onboarding.Skip)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadLayers(t *testing.T) {
	isolate(t)
	path := writeFile(t, `
log:
  format: json
provider: postgres
database:
  url: postgres://file@localhost/oryen
lookup:
  timeout: 3s
onboarding:
  skip: true
`)

	t.Run("file", func(t *testing.T) {
		cfg, err := config.Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "json", cfg.Log.Format)
		assert.Equal(t, config.ProviderPostgres, cfg.Provider)
		assert.Equal(t, "postgres://file@localhost/oryen", cfg.Database.URL)
		assert.Equal(t, 3*time.Second, cfg.Lookup.Timeout)
		assert.True(t, cfg.Onboarding.Skip)
	})

	t.Run("environment beats file", func(t *testing.T) {
		t.Setenv("ORYEN_DATABASE_URL", "postgres://env@localhost/oryen")
		t.Setenv("ORYEN_LOOKUP_RETRIES", "5")
		cfg, err := config.Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "postgres://env@localhost/oryen", cfg.Database.URL)
		assert.Equal(t, 5, cfg.Lookup.Retries)
	})

	t.Run("unprefixed DATABASE_URL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://plain@localhost/oryen")
		cfg, err := config.Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "postgres://plain@localhost/oryen", cfg.Database.URL)
	})

	t.Run("changed flags beat everything", func(t *testing.T) {
		t.Setenv("ORYEN_LOG_FORMAT", "json")
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		config.RegisterFlags(flags)
		require.NoError(t, flags.Parse([]string{"--log-format=text", "--lookup-timeout=250ms"}))

		cfg, err := config.Load(path, flags)
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.Log.Format)
		assert.Equal(t, 250*time.Millisecond, cfg.Lookup.Timeout)
		assert.True(t, cfg.Onboarding.Skip, "unchanged flags keep the file value")
	})
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	isolate(t)
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
}

func TestValidate(t *testing.T) {
	valid := config.Config{
		Log:      config.LogConfig{Format: "text"},
		Provider: config.ProviderMemory,
		Lookup:   config.LookupConfig{Timeout: time.Second},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
		key    string
	}{
		{"log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"provider", func(c *config.Config) { c.Provider = "ldap" }, "provider"},
		{"postgres without url", func(c *config.Config) { c.Provider = config.ProviderPostgres }, "database.url"},
		{"timeout", func(c *config.Config) { c.Lookup.Timeout = 0 }, "lookup.timeout"},
		{"retries", func(c *config.Config) { c.Lookup.Retries = -1 }, "lookup.retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "key", tt.key)
		})
	}
}

func TestEnvOverrideIsValidated(t *testing.T) {
	isolate(t)
	t.Setenv("ORYEN_PROVIDER", "postgres")
	_, err := config.Load("", nil)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}
