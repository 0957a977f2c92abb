package vectordb

import (
	"context"
	"errors"
	"fmt"
)

var (
	errInvalidDimension = errors.New("vector_db dimension cannot be negative")
	errInvalidMetric    = errors.New("vector_db metric is not supported")
)

// New instantiates a vector store backed by the requested provider.
func New(_ context.Context, cfg *Config) (Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ProviderMemory, "":
		return newMemoryStore(cfg), nil
	default:
		return nil, fmt.Errorf("vector_db %q: provider %q is not supported", cfg.ID, cfg.Provider)
	}
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("vector_db config is required")
	}
	if cfg.Dimension < 0 {
		return fmt.Errorf("vector_db %q: %w", cfg.ID, errInvalidDimension)
	}
	switch cfg.Metric {
	case "", MetricInnerProduct:
	default:
		return fmt.Errorf("vector_db %q: %w: %q", cfg.ID, errInvalidMetric, cfg.Metric)
	}
	return nil
}
