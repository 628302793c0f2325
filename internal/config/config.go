// Package config loads the StellarS3 service configuration.
//
// The file holds only how the service runs (listen address, logging,
// request timeout, client reuse). Storage credentials never live here;
// they arrive with every command.
package config

import (
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/stellars3/internal/errs"
)

// Environment variables consulted by Load.
const (
	EnvConfigPath = "STELLAR_CONFIG"
	EnvAddr       = "STELLAR_ADDR"
	EnvLogLevel   = "STELLAR_LOG_LEVEL"
	EnvLogFormat  = "STELLAR_LOG_FORMAT"
)

// Config holds all configuration for the service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// LogConfig mirrors logger.Config.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	TimeFormat string `yaml:"time_format"`
}

// StorageConfig controls how commands talk to providers.
type StorageConfig struct {
	// RequestTimeout bounds each command; 0 leaves the SDK default.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ReuseClients keeps one client per connection instead of building
	// one per command.
	ReuseClients bool `yaml:"reuse_clients"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:7878",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    64 << 20,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			TimeFormat: "rfc3339",
		},
	}
}

// Load reads the YAML file at path on top of Default and applies
// environment overrides. An empty path falls back to $STELLAR_CONFIG; when
// that is empty too only defaults and environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindConfig, "failed to read config file", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errs.Wrap(errs.ErrKindConfig, "failed to parse config file", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errs.New(errs.ErrKindConfig, "server.addr is required")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errs.Newf(errs.ErrKindConfig, "log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Storage.RequestTimeout < 0 {
		return errs.New(errs.ErrKindConfig, "storage.request_timeout must not be negative")
	}
	if c.Server.MaxBodyBytes < 0 {
		return errs.New(errs.ErrKindConfig, "server.max_body_bytes must not be negative")
	}
	return nil
}
