// Package config handles broadcast hub configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/ssebroadcastd/config.yaml, /config/config.yaml,
// /etc/ssebroadcastd/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "ssebroadcastd", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/ssebroadcastd/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all broadcast hub configuration.
type Config struct {
	Listen               ListenConfig  `yaml:"listen"`
	Mount                string        `yaml:"mount"`
	BypassAuthentication bool          `yaml:"bypass_authentication"`
	JWTSecret            string        `yaml:"jwt_secret"`
	AllowedOrigins       []string      `yaml:"allowed_origins"`
	AllowCredentials     bool          `yaml:"allow_credentials"`
	HeartbeatIntervalSec int           `yaml:"heartbeat_interval_sec"`
	LogLevel             string        `yaml:"log_level"`
	Metrics              MetricsConfig `yaml:"metrics"`
}

// ListenConfig defines the public subscriber endpoint's bind settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// MetricsConfig defines the Prometheus exposition server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates
// the result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${JWT_SECRET}). This is a
	// convenience for container deployments; the recommended approach
	// is to inject secrets directly via the environment.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. After this, callers can read any field
// without checking for empty strings or zero values.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Mount == "" {
		c.Mount = "/sse/broadcast"
	}
	if c.HeartbeatIntervalSec == 0 {
		c.HeartbeatIntervalSec = 15
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
}

// Validate checks that the configuration is internally consistent.
// It runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range (1-65535)", c.Listen.Port)
	}
	if !strings.HasPrefix(c.Mount, "/") {
		return fmt.Errorf("mount %q must start with /", c.Mount)
	}
	if c.HeartbeatIntervalSec < 1 {
		return fmt.Errorf("heartbeat_interval_sec %d must be positive", c.HeartbeatIntervalSec)
	}
	if !c.BypassAuthentication && c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required when bypass_authentication is false")
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d out of range (1-65535)", c.Metrics.Port)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a default configuration suitable for local development
// with authentication bypassed. All defaults are already applied.
func Default() *Config {
	cfg := &Config{
		BypassAuthentication: true,
	}
	cfg.applyDefaults()
	return cfg
}
