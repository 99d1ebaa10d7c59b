// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration. Values come from environment
// variables first; an optional YAML file named by XHSDL_CONFIG overrides them.
type Config struct {
	App     App     `yaml:"app"`
	Session Session `yaml:"session"`
	HTTP    HTTP    `yaml:"http"`
	Dir     Dir     `yaml:"dir"`
	Metrics Metrics `yaml:"metrics"`
}

// App holds application-wide configuration.
type App struct {
	LogLevel  string `env:"XHSDL_APP_LOG_LEVEL"  envDefault:"info" yaml:"logLevel"`
	LogFormat string `env:"XHSDL_APP_LOG_FORMAT" envDefault:"text" yaml:"logFormat"`

	// ConfigFile points at an optional YAML overlay; empty disables it.
	ConfigFile string `env:"XHSDL_CONFIG" envDefault:"" yaml:"-"`
}

// Session holds orchestrator configuration.
type Session struct {
	Timeout         time.Duration `env:"XHSDL_SESSION_TIMEOUT"          envDefault:"10m" yaml:"timeout"`
	EventBuffer     int           `env:"XHSDL_SESSION_EVENT_BUFFER"     envDefault:"64"  yaml:"eventBuffer"`
	FallbackWorkers int           `env:"XHSDL_SESSION_FALLBACK_WORKERS" envDefault:"2"   yaml:"fallbackWorkers"`
}

// HTTP holds the fetch client configuration.
type HTTP struct {
	Timeout   time.Duration `env:"XHSDL_HTTP_TIMEOUT"    envDefault:"30s" yaml:"timeout"`
	UserAgent string        `env:"XHSDL_HTTP_USER_AGENT" envDefault:"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36" yaml:"userAgent"` //nolint:lll

	// Proxy is a single optional proxy URL for all fetch requests.
	Proxy string `env:"XHSDL_HTTP_PROXY" envDefault:"" yaml:"proxy"`

	// Cookie is a raw Cookie header; some notes only expose full detail to
	// logged-in sessions.
	Cookie string `env:"XHSDL_HTTP_COOKIE" envDefault:"" yaml:"cookie"`
}

// Dir holds directory paths for downloaded media.
type Dir struct {
	Downloads string `env:"XHSDL_DIR_DOWNLOADS" envDefault:"./downloads" yaml:"downloads"`
}

// Metrics holds the optional Prometheus listener configuration. The core
// packages never open ports; only the CLI uses this.
type Metrics struct {
	Addr            string        `env:"XHSDL_METRICS_ADDR"             envDefault:""   yaml:"addr"`
	ShutdownTimeout time.Duration `env:"XHSDL_METRICS_SHUTDOWN_TIMEOUT" envDefault:"3s" yaml:"shutdownTimeout"`
}

// SetAbsPaths converts all directory paths to absolute paths.
func (c *Dir) SetAbsPaths() error {
	var err error
	if c.Downloads, err = filepath.Abs(c.Downloads); err != nil {
		return fmt.Errorf("downloads: %w", err)
	}

	return nil
}

// New loads configuration from environment variables, then applies the YAML
// overlay when one is configured.
func New() (*Config, error) {
	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.App.ConfigFile != "" {
		if err := cfg.applyFile(cfg.App.ConfigFile); err != nil {
			return nil, fmt.Errorf("apply config file: %w", err)
		}
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	return cfg, nil
}

// applyFile overlays YAML values onto the env-parsed config. Absent keys keep
// their env values.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}

	return nil
}
