package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// cliFlagPaths maps command line flag names to configuration paths.
var cliFlagPaths = map[string]string{
	"host":            "server.host",
	"port":            "server.port",
	"auth-token":      "server.auth.token",
	"no-auth":         "server.auth.enabled",
	"fetch-timeout":   "fetch.timeout",
	"default-type":    "fetch.default_type",
	"chunk-size":      "chunking.size",
	"chunk-overlap":   "chunking.overlap",
	"top-k":           "retrieval.top_k",
	"threshold":       "retrieval.threshold",
	"max-chunks":      "retrieval.max_chunks",
	"context-tokens":  "retrieval.max_tokens",
	"embedder":        "embedder.provider",
	"embedder-model":  "embedder.model",
	"llm":             "llm.provider",
	"model":           "llm.model",
	"llm-timeout":     "llm.timeout",
	"max-concurrency": "llm.max_concurrency",
	"log-level":       "runtime.log_level",
	"log-json":        "runtime.log_json",
	"base-url":        "cli.base_url",
	"api-key":         "cli.api_key",
}

// CLIFlagPath returns the configuration path bound to a flag name.
func CLIFlagPath(flag string) (string, bool) {
	path, ok := cliFlagPaths[flag]
	return path, ok
}

// cliProvider implements Source interface for CLI flags.
type cliProvider struct {
	flags map[string]any
}

// NewCLIProvider creates a source from flags that were explicitly set.
func NewCLIProvider(flags map[string]any) Source {
	return &cliProvider{flags: flags}
}

func (c *cliProvider) Load() (map[string]any, error) {
	config := make(map[string]any)
	for key, value := range c.flags {
		path, ok := cliFlagPaths[key]
		if !ok {
			continue
		}
		if key == "no-auth" {
			enabled, isBool := value.(bool)
			if !isBool {
				return nil, fmt.Errorf("flag %s must be a boolean", key)
			}
			value = !enabled
		}
		if err := setNested(config, path, value); err != nil {
			return nil, fmt.Errorf("failed to set CLI flag %s: %w", key, err)
		}
	}
	return config, nil
}

func (c *cliProvider) Type() SourceType {
	return SourceCLI
}

// setNested sets a value in a nested map structure using dot notation.
func setNested(m map[string]any, path string, value any) error {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	current := m
	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if _, exists := current[part]; !exists {
			current[part] = make(map[string]any)
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return fmt.Errorf("configuration conflict: key %q is not a map", strings.Join(parts[:i+1], "."))
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
	return nil
}

// yamlProvider implements Source interface for YAML files.
type yamlProvider struct {
	path string
}

// NewYAMLProvider creates a YAML file source. A missing file yields no values.
func NewYAMLProvider(path string) Source {
	return &yamlProvider{path: path}
}

func (y *yamlProvider) Load() (map[string]any, error) {
	data, err := os.ReadFile(y.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]any), nil
		}
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file: %w", err)
	}
	return filterNilValues(config), nil
}

// filterNilValues drops nil leaves so they do not override defaults.
func filterNilValues(m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			if filtered := filterNilValues(nested); len(filtered) > 0 {
				result[k] = filtered
			}
			continue
		}
		result[k] = v
	}
	return result
}

func (y *yamlProvider) Type() SourceType {
	return SourceYAML
}
