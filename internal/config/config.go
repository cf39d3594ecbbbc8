// Package config loads settings shared by the server and the CLI.
//
// PRECEDENCE (later wins):
//  1. built-in defaults
//  2. the YAML file named by RED_CONFIG, if set
//  3. environment variables, including those read from a local .env file
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvConfigFile      = "RED_CONFIG"
	EnvAPIURL          = "RED_API_URL"
	EnvPort            = "PORT"
	EnvDBPath          = "RED_DB_PATH"
	EnvLogLevel        = "RED_LOG_LEVEL"
	EnvHTTPTimeout     = "RED_HTTP_TIMEOUT"
	EnvPageSize        = "RED_PAGE_SIZE"
	EnvMaxVisiblePages = "RED_MAX_VISIBLE_PAGES"
)

type Config struct {
	APIURL          string        `yaml:"apiUrl"`
	Port            int           `yaml:"port"`
	DBPath          string        `yaml:"dbPath"`
	LogLevel        string        `yaml:"logLevel"`
	HTTPTimeout     time.Duration `yaml:"httpTimeout"`
	PageSize        int           `yaml:"pageSize"`
	MaxVisiblePages int           `yaml:"maxVisiblePages"`
}

func Default() Config {
	return Config{
		APIURL:          "http://localhost:4000/api",
		Port:            8080,
		DBPath:          "data/session.db",
		LogLevel:        "debug",
		HTTPTimeout:     15 * time.Second,
		PageSize:        9,
		MaxVisiblePages: 5,
	}
}

// Load builds the configuration and validates it. A missing .env file is
// not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.mergeEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile overlays the keys present in a YAML file.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	if v, ok := os.LookupEnv(EnvAPIURL); ok {
		c.APIURL = v
	}
	if v, ok := os.LookupEnv(EnvDBPath); ok {
		c.DBPath = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvHTTPTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", EnvHTTPTimeout, v, err)
		}
		c.HTTPTimeout = d
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvPort, &c.Port},
		{EnvPageSize, &c.PageSize},
		{EnvMaxVisiblePages, &c.MaxVisiblePages},
	}
	for _, in := range ints {
		v, ok := os.LookupEnv(in.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", in.name, v, err)
		}
		*in.dst = n
	}
	return nil
}

// Validate rejects settings the rest of the program can not work with.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if c.APIURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: API URL %q must be an absolute URL", c.APIURL)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("config: database path is empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: HTTP timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("config: page size must be positive, got %d", c.PageSize)
	}
	if c.MaxVisiblePages <= 0 {
		return fmt.Errorf("config: visible page window must be positive, got %d", c.MaxVisiblePages)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
