package monitoring

import (
	"fmt"
	"strings"

	"github.com/compozy/docqa/pkg/config"
)

// Config holds configuration for monitoring service
type Config struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path"    yaml:"path"    mapstructure:"path"`
}

// DefaultConfig returns default monitoring configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled: false,
		Path:    "/metrics",
	}
}

// FromAppConfig maps the application monitoring section, filling the default path.
func FromAppConfig(cfg *config.Config) *Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	out.Enabled = cfg.Monitoring.Enabled
	if cfg.Monitoring.Path != "" {
		out.Path = cfg.Monitoring.Path
	}
	return out
}

// Validate validates the monitoring configuration
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("monitoring path cannot be empty")
	}
	if c.Path[0] != '/' {
		return fmt.Errorf("monitoring path must start with '/': got %s", c.Path)
	}
	if strings.HasPrefix(c.Path, "/api/") {
		return fmt.Errorf("monitoring path cannot be under /api/")
	}
	if strings.ContainsRune(c.Path, '?') {
		return fmt.Errorf("monitoring path cannot contain query parameters")
	}
	if isReservedPath(c.Path) {
		return fmt.Errorf("monitoring path %s conflicts with a service route", c.Path)
	}
	return nil
}

func isReservedPath(path string) bool {
	switch strings.TrimSuffix(path, "/") {
	case "", "/health", "/status", "/hackrx/run":
		return true
	default:
		return false
	}
}
