package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads; t.Setenv restores them after
// the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvConfigFile, EnvAPIURL, EnvPort, EnvDBPath, EnvLogLevel,
		EnvHTTPTimeout, EnvPageSize, EnvMaxVisiblePages,
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	lvl, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIURL, "https://red.example.edu/api")
	t.Setenv(EnvPort, "9090")
	t.Setenv(EnvDBPath, "/tmp/red.db")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvHTTPTimeout, "3s")
	t.Setenv(EnvPageSize, "12")
	t.Setenv(EnvMaxVisiblePages, "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Config{
		APIURL:          "https://red.example.edu/api",
		Port:            9090,
		DBPath:          "/tmp/red.db",
		LogLevel:        "warn",
		HTTPTimeout:     3 * time.Second,
		PageSize:        12,
		MaxVisiblePages: 7,
	}, cfg)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "red.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"apiUrl: https://yaml.example.edu/api\nport: 7000\nhttpTimeout: 20s\npageSize: 6\n",
	), 0o600))
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvPort, "7001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://yaml.example.edu/api", cfg.APIURL)
	assert.Equal(t, 7001, cfg.Port, "env wins over the file")
	assert.Equal(t, 20*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 6, cfg.PageSize)
	assert.Equal(t, 5, cfg.MaxVisiblePages, "keys missing from the file keep their default")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port not a number", map[string]string{EnvPort: "eighty"}},
		{"bad timeout", map[string]string{EnvHTTPTimeout: "soon"}},
		{"missing config file", map[string]string{EnvConfigFile: "/nonexistent/red.yaml"}},
		{"relative API URL", map[string]string{EnvAPIURL: "/api"}},
		{"zero page size", map[string]string{EnvPageSize: "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty API URL", func(c *Config) { c.APIURL = "" }},
		{"API URL without host", func(c *Config) { c.APIURL = "http://" }},
		{"negative port", func(c *Config) { c.Port = -1 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }},
		{"negative page size", func(c *Config) { c.PageSize = -3 }},
		{"zero window", func(c *Config) { c.MaxVisiblePages = 0 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
