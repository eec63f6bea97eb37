package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 500, cfg.Scanning.Concurrency)
	assert.Equal(t, time.Second, cfg.Scanning.Timeout)
	assert.Equal(t, "well-known", cfg.Scanning.DefaultPorts)
	assert.Equal(t, "127.0.0.1:8080", cfg.GetAPIAddress())
	assert.True(t, cfg.IsAPIEnabled())
}

func TestLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("valid yaml overrides defaults", func(t *testing.T) {
		path := writeConfig(t, "portsweep.yaml", `
scanning:
  concurrency: 250
  timeout: 750ms
  rate_limit: 500
resolver:
  nameserver: 127.0.0.1:5353
logging:
  level: debug
  format: json
schedules:
  - name: nightly
    cron: "0 2 * * *"
    host: 10.0.0.1
    ports: well-known
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 250, cfg.Scanning.Concurrency)
		assert.Equal(t, 750*time.Millisecond, cfg.Scanning.Timeout)
		assert.InDelta(t, 500.0, cfg.Scanning.RateLimit, 0.001)
		assert.Equal(t, "127.0.0.1:5353", cfg.Resolver.Nameserver)
		assert.Equal(t, logging.LevelDebug, cfg.Logging.Level)
		assert.Equal(t, logging.FormatJSON, cfg.Logging.Format)
		require.Len(t, cfg.Schedules, 1)
		assert.Equal(t, "nightly", cfg.Schedules[0].Name)
		// untouched sections keep their defaults
		assert.Equal(t, 8080, cfg.API.Port)
	})

	t.Run("valid json config", func(t *testing.T) {
		path := writeConfig(t, "portsweep.json", `{"scanning": {"concurrency": 8}}`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.Scanning.Concurrency)
	})

	t.Run("invalid yaml syntax", func(t *testing.T) {
		path := writeConfig(t, "broken.yaml", "scanning: [unclosed")
		_, err := Load(path)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeConfiguration))
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := writeConfig(t, "bad.yaml", "scanning:\n  concurrency: 0\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeValidation))
		assert.Contains(t, err.Error(), "scanning.concurrency")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"concurrency above maximum", func(c *Config) { c.Scanning.Concurrency = 10001 }, "scanning.concurrency"},
		{"zero timeout", func(c *Config) { c.Scanning.Timeout = 0 }, "scanning.timeout"},
		{"negative rate", func(c *Config) { c.Scanning.RateLimit = -1 }, "scanning.rate_limit"},
		{"bad nameserver", func(c *Config) { c.Resolver.Nameserver = "not a server" }, "resolver.nameserver"},
		{"api port out of range", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"auth without keys", func(c *Config) { c.API.AuthEnabled = true }, "api.api_key_hashes"},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"schedule without host", func(c *Config) {
			c.Schedules = []ScheduleConfig{{Name: "a", Cron: "@hourly"}}
		}, "schedules[0].host"},
		{"duplicate schedule names", func(c *Config) {
			c.Schedules = []ScheduleConfig{
				{Name: "a", Cron: "@hourly", Host: "h"},
				{Name: "a", Cron: "@daily", Host: "h"},
			}
		}, "schedules[1].name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeValidation), "unexpected code for %v", err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "portsweep.yaml")

	cfg := Default()
	cfg.Scanning.Concurrency = 42
	cfg.Schedules = []ScheduleConfig{{Name: "hourly", Cron: "@hourly", Host: "localhost", Ports: "22,80"}}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Scanning.Concurrency)
	assert.Equal(t, cfg.Schedules, loaded.Schedules)
	assert.Equal(t, cfg.Scanning.Timeout, loaded.Scanning.Timeout)
}
