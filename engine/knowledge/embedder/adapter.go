package embedder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/compozy/docqa/engine/core"
	"github.com/compozy/docqa/pkg/logger"
)

// Adapter wraps a langchaingo embedder implementation and augments error reporting.
type Adapter struct {
	id        string
	provider  Provider
	model     string
	dimension int
	batchSize int
	impl      embeddings.Embedder
	recorder  Recorder
	cache     *vectorCache
}

var (
	errMissingID        = errors.New("embedder id is required")
	errMissingProvider  = errors.New("embedder provider is required")
	errMissingModel     = errors.New("embedder model is required")
	errInvalidDimension = errors.New("embedder dimension must be greater than zero")
	errInvalidBatchSize = errors.New("embedder batch size must be greater than zero")
	// ErrDimensionMismatch marks provider vectors whose length differs from
	// the configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// New constructs a provider-backed embedder adapter.
func New(ctx context.Context, cfg *Config) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	impl, err := buildProviderEmbedder(ctx, cfg,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(cfg.StripNewLines),
	)
	if err != nil {
		return nil, err
	}
	return newAdapter(cfg, impl)
}

// Wrap constructs an adapter around an existing langchaingo embedder.
func Wrap(cfg *Config, impl embeddings.Embedder) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	if impl == nil {
		return nil, fmt.Errorf("embedder %q: implementation is required", cfg.ID)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return newAdapter(cfg, impl)
}

func newAdapter(cfg *Config, impl embeddings.Embedder) (*Adapter, error) {
	a := &Adapter{
		id:        cfg.ID,
		provider:  cfg.Provider,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
		impl:      impl,
	}
	if cfg.CacheSize > 0 {
		cache, err := newVectorCache(cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedder %q: %w", cfg.ID, err)
		}
		a.cache = cache
	}
	return a, nil
}

// WithRecorder attaches telemetry and returns the adapter.
func (a *Adapter) WithRecorder(recorder Recorder) *Adapter {
	a.recorder = recorder
	return a
}

// Dimension returns the configured vector dimension.
func (a *Adapter) Dimension() int {
	return a.dimension
}

// BatchSize returns the configured batch size.
func (a *Adapter) BatchSize() int {
	return a.batchSize
}

// EmbedDocuments embeds texts in order, serving repeats from the cache.
func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if a.cache != nil {
		return a.cachedEmbedDocuments(ctx, texts)
	}
	start := time.Now()
	vectors, err := a.impl.EmbedDocuments(ctx, texts)
	a.record(ctx, len(texts), start, err)
	if err != nil {
		return nil, a.withContext(err)
	}
	if len(vectors) != len(texts) {
		return nil, a.withContext(fmt.Errorf("received %d embeddings for %d texts", len(vectors), len(texts)))
	}
	if err := a.checkDimensions(vectors...); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if a.cache != nil {
		vector, ok := a.cache.get(text)
		a.recordCache(ctx, ok)
		if ok {
			return vector, nil
		}
	}
	start := time.Now()
	vector, err := a.impl.EmbedQuery(ctx, text)
	a.record(ctx, 1, start, err)
	if err != nil {
		return nil, a.withContext(err)
	}
	if err := a.checkDimensions(vector); err != nil {
		return nil, err
	}
	a.cache.put(text, vector)
	return vector, nil
}

// cachedEmbedDocuments sends each distinct uncached text to the provider once
// and fans the vectors back out to every position holding that text.
func (a *Adapter) cachedEmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	positions := make(map[string][]int)
	var pending []string
	for i, text := range texts {
		vector, ok := a.cache.get(text)
		a.recordCache(ctx, ok)
		if ok {
			results[i] = vector
			continue
		}
		if _, queued := positions[text]; !queued {
			pending = append(pending, text)
		}
		positions[text] = append(positions[text], i)
	}
	if len(pending) == 0 {
		return results, nil
	}
	start := time.Now()
	embedded, err := a.impl.EmbedDocuments(ctx, pending)
	a.record(ctx, len(pending), start, err)
	if err != nil {
		return nil, a.withContext(err)
	}
	if len(embedded) != len(pending) {
		return nil, a.withContext(fmt.Errorf("received %d embeddings for %d texts", len(embedded), len(pending)))
	}
	if err := a.checkDimensions(embedded...); err != nil {
		return nil, err
	}
	for i, text := range pending {
		for _, pos := range positions[text] {
			results[pos] = slices.Clone(embedded[i])
		}
		a.cache.put(text, embedded[i])
	}
	return results, nil
}

func (a *Adapter) record(ctx context.Context, count int, start time.Time, err error) {
	elapsed := time.Since(start)
	log := logger.FromContext(ctx)
	if err != nil {
		log.Warn("Embedding request failed",
			"embedder_id", a.id,
			"provider", a.provider,
			"model", a.model,
			"texts", count,
			"error", core.RedactError(err),
		)
	} else {
		log.Debug("Embeddings generated",
			"embedder_id", a.id,
			"provider", a.provider,
			"texts", count,
			"duration_seconds", elapsed.Seconds(),
		)
	}
	if a.recorder != nil {
		a.recorder.RecordEmbedding(ctx, string(a.provider), count, elapsed, err)
	}
}

func (a *Adapter) recordCache(ctx context.Context, hit bool) {
	if a.recorder != nil {
		a.recorder.RecordEmbeddingCache(ctx, string(a.provider), hit)
	}
}

func (a *Adapter) checkDimensions(vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != a.dimension {
			return a.withContext(fmt.Errorf("%w: vector %d has %d values, want %d", ErrDimensionMismatch, i, len(v), a.dimension))
		}
	}
	return nil
}

func (a *Adapter) withContext(err error) error {
	return fmt.Errorf("embedder %q: %w", a.id, err)
}

func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return errMissingID
	}
	if strings.TrimSpace(string(cfg.Provider)) == "" {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errMissingProvider)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errMissingModel)
	}
	if cfg.Dimension <= 0 {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errInvalidDimension)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errInvalidBatchSize)
	}
	return nil
}

func buildProviderEmbedder(
	ctx context.Context,
	cfg *Config,
	options ...embeddings.Option,
) (embeddings.Embedder, error) {
	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch cfg.Provider {
	case ProviderOpenAI:
		client, err = newOpenAIClient(cfg)
	case ProviderGoogleAI:
		client, err = newGoogleClient(ctx, cfg)
	case ProviderOllama:
		client, err = newOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("embedder %q: provider %q is not supported", cfg.ID, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("embedder %q: failed to initialize %s client: %w", cfg.ID, cfg.Provider, err)
	}
	embedder, err := embeddings.NewEmbedder(client, options...)
	if err != nil {
		return nil, fmt.Errorf("embedder %q: failed to construct %s embedder: %w", cfg.ID, cfg.Provider, err)
	}
	return embedder, nil
}

func newOpenAIClient(cfg *Config) (embeddings.EmbedderClient, error) {
	opts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func newGoogleClient(ctx context.Context, cfg *Config) (embeddings.EmbedderClient, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultGoogleModel
	}
	opts := []googleai.Option{googleai.WithDefaultEmbeddingModel(model)}
	if cfg.APIKey != "" {
		opts = append(opts, googleai.WithAPIKey(cfg.APIKey))
	}
	return googleai.New(ctx, opts...)
}

func newOllamaClient(cfg *Config) (embeddings.EmbedderClient, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	return ollama.New(opts...)
}
