// Package config provides configuration loading and management for the
// Loom Studio client.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides
const EnvPrefix = "LOOM"

const (
	defaultRequestTimeout     = 30 * time.Second
	defaultCloseCheckInterval = 2 * time.Second
	defaultStatusProbeEvery   = 5
	defaultPollInterval       = 2 * time.Second
	defaultGracePeriod        = 5 * time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
	data []byte
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// WithConfigData loads configuration from raw YAML bytes
func WithConfigData(data []byte) Option {
	return func(cfg *loaderConfig) error {
		cfg.data = data
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Server describes the Loom Studio instance the client talks to
	Server ServerConfig `yaml:"server"`

	// Auth tunes the browser sign-in coordinator
	Auth AuthConfig `yaml:"auth,omitempty"`

	// Jobs tunes the background job coordinator
	Jobs JobsConfig `yaml:"jobs,omitempty"`
}

// ServerConfig defines the target service settings
type ServerConfig struct {
	// BaseURL is the root URL of the Loom Studio instance, e.g.
	// "https://studio.example.com"
	BaseURL string `yaml:"baseURL"`

	// RequestTimeout bounds individual probe requests (e.g. "30s")
	RequestTimeout string `yaml:"requestTimeout,omitempty"`
}

// GetRequestTimeout returns the parsed request timeout, falling back to the
// default when unset or invalid
func (s *ServerConfig) GetRequestTimeout() time.Duration {
	return parseDurationOrDefault(s.RequestTimeout, defaultRequestTimeout)
}

// AuthConfig defines browser sign-in coordinator settings
type AuthConfig struct {
	// CloseCheckInterval is how often the coordinator checks whether the
	// browser context has gone away (e.g. "2s")
	CloseCheckInterval string `yaml:"closeCheckInterval,omitempty"`

	// StatusProbeEvery makes every Nth close-check tick also issue an
	// authoritative session-status probe, bounding the worst-case detection
	// latency for sign-ins that never message back
	StatusProbeEvery int `yaml:"statusProbeEvery,omitempty"`
}

// GetCloseCheckInterval returns the parsed close-check interval
func (a *AuthConfig) GetCloseCheckInterval() time.Duration {
	return parseDurationOrDefault(a.CloseCheckInterval, defaultCloseCheckInterval)
}

// GetStatusProbeEvery returns the authoritative-probe sub-schedule, always >= 1
func (a *AuthConfig) GetStatusProbeEvery() int {
	if a.StatusProbeEvery < 1 {
		return defaultStatusProbeEvery
	}
	return a.StatusProbeEvery
}

// JobsConfig defines background job coordinator settings
type JobsConfig struct {
	// PollInterval is the fixed interval between job status probes (e.g. "2s")
	PollInterval string `yaml:"pollInterval,omitempty"`

	// GracePeriod is how long a terminal outcome stays visible before the
	// session resets and a new job can start (e.g. "5s")
	GracePeriod string `yaml:"gracePeriod,omitempty"`
}

// GetPollInterval returns the parsed poll interval
func (j *JobsConfig) GetPollInterval() time.Duration {
	return parseDurationOrDefault(j.PollInterval, defaultPollInterval)
}

// GetGracePeriod returns the parsed grace period
func (j *JobsConfig) GetGracePeriod() time.Duration {
	return parseDurationOrDefault(j.GracePeriod, defaultGracePeriod)
}

func parseDurationOrDefault(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// LoadConfig loads and parses configuration from a YAML file or raw data,
// then applies environment overrides with the LOOM prefix
// (e.g. LOOM_SERVER_BASEURL).
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}

	data := loaderCfg.data
	if loaderCfg.path != "" {
		read, err := readConfigFile(loaderCfg.path)
		if err != nil {
			return nil, err
		}
		data = read
	}

	if data != nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return data, nil
}

// applyEnvOverrides layers LOOM_-prefixed environment variables over the
// file-provided values
func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if baseURL := v.GetString("server.baseurl"); baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}
	if timeout := v.GetString("server.requesttimeout"); timeout != "" {
		cfg.Server.RequestTimeout = timeout
	}
	if interval := v.GetString("jobs.pollinterval"); interval != "" {
		cfg.Jobs.PollInterval = interval
	}
}

func (c *Config) validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.baseURL is required: set it in the config file or via LOOM_SERVER_BASEURL")
	}

	parsed, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.baseURL is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("server.baseURL must use http or https, got %q", c.Server.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("server.baseURL is missing a host: %q", c.Server.BaseURL)
	}

	if c.Auth.StatusProbeEvery < 0 {
		return fmt.Errorf("auth.statusProbeEvery must be positive, got %d", c.Auth.StatusProbeEvery)
	}

	return nil
}
