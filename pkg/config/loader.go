package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// loader implements the Service interface for configuration management.
type loader struct {
	koanf      *koanf.Koanf
	validator  *validator.Validate
	metadata   Metadata
	metadataMu sync.RWMutex
	mu         sync.Mutex
}

// sensitiveStringDecodeHook converts plain strings to SensitiveString
func sensitiveStringDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(SensitiveString("")) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	default:
		return data, nil
	}
}

// NewService creates a new configuration service with validation support.
func NewService() Service {
	return &loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
		metadata: Metadata{
			Sources: make(map[string]SourceType),
		},
	}
}

// Load layers configuration in increasing precedence: defaults, file
// sources, environment variables, then command line flags.
func (l *loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reset()
	files, flags := splitSources(sources)
	if err := l.applyLayer(SourceDefault, func() error {
		return l.koanf.Load(structs.Provider(Default(), "koanf"), nil)
	}); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	for _, source := range files {
		if err := l.loadSource(source); err != nil {
			return nil, err
		}
	}
	if err := l.applyLayer(SourceEnv, l.loadEnvironment); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	for _, source := range flags {
		if err := l.loadSource(source); err != nil {
			return nil, err
		}
	}
	return l.unmarshalAndValidate()
}

// splitSources separates CLI sources, which always apply last, from the rest.
func splitSources(sources []Source) (files, flags []Source) {
	for _, source := range sources {
		switch {
		case source == nil:
		case source.Type() == SourceCLI:
			flags = append(flags, source)
		default:
			files = append(files, source)
		}
	}
	return files, flags
}

func (l *loader) reset() {
	l.koanf = koanf.New(".")
	l.metadataMu.Lock()
	l.metadata.Sources = make(map[string]SourceType)
	l.metadata.LoadedAt = time.Now()
	l.metadataMu.Unlock()
}

// applyLayer runs load and attributes every key it added or changed to source.
func (l *loader) applyLayer(source SourceType, load func() error) error {
	before := l.koanf.All()
	if err := load(); err != nil {
		return err
	}
	after := l.koanf.All()
	l.metadataMu.Lock()
	defer l.metadataMu.Unlock()
	for key, value := range after {
		if prev, ok := before[key]; !ok || !reflect.DeepEqual(prev, value) {
			l.metadata.Sources[key] = source
		}
	}
	return nil
}

// loadEnvironment reads only the variables declared through env struct tags.
func (l *loader) loadEnvironment() error {
	envToPath := GenerateEnvToConfigMap()
	return l.koanf.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key string, value string) (string, any) {
			path, ok := envToPath[key]
			if !ok || value == "" {
				return "", nil
			}
			return path, value
		},
	}), nil)
}

func (l *loader) loadSource(source Source) error {
	data, err := source.Load()
	if err != nil {
		return fmt.Errorf("failed to load from source %s: %w", source.Type(), err)
	}
	if len(data) == 0 {
		return nil
	}
	return l.applyLayer(source.Type(), func() error {
		for key, value := range flattenMap("", data) {
			if err := l.koanf.Set(key, value); err != nil {
				return fmt.Errorf("failed to set key %s from source %s: %w", key, source.Type(), err)
			}
		}
		return nil
	})
}

// flattenMap turns nested maps into dot separated keys.
func flattenMap(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			maps.Copy(out, flattenMap(key, nested))
			continue
		}
		out[key] = v
	}
	return out
}

func (l *loader) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := l.koanf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				sensitiveStringDecodeHook,
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// Validate checks struct tags first, then cross-field rules.
func (l *loader) Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := l.validator.Struct(config); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := validateCustom(config); err != nil {
		return fmt.Errorf("custom validation failed: %w", err)
	}
	return nil
}

// GetSource returns the layer that last set key.
func (l *loader) GetSource(key string) SourceType {
	l.metadataMu.RLock()
	defer l.metadataMu.RUnlock()
	if source, ok := l.metadata.Sources[key]; ok {
		return source
	}
	return SourceDefault
}

func validateCustom(config *Config) error {
	var errs []error
	if config.Chunking.Overlap >= config.Chunking.Size {
		errs = append(errs, fmt.Errorf(
			"chunking overlap (%d) must be smaller than chunk size (%d)",
			config.Chunking.Overlap,
			config.Chunking.Size,
		))
	}
	if config.Monitoring.Enabled && !strings.HasPrefix(config.Monitoring.Path, "/") {
		errs = append(errs, fmt.Errorf("monitoring path must start with '/': got %q", config.Monitoring.Path))
	}
	if config.RateLimit.Enabled && (config.RateLimit.Limit <= 0 || config.RateLimit.Period <= 0) {
		errs = append(errs, errors.New("rate limit requires a positive limit and period"))
	}
	return errors.Join(errs...)
}
