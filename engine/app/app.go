package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/compozy/docqa/engine/document"
	"github.com/compozy/docqa/engine/infra/monitoring"
	"github.com/compozy/docqa/engine/knowledge/chunk"
	"github.com/compozy/docqa/engine/knowledge/embedder"
	llmadapter "github.com/compozy/docqa/engine/llm/adapter"
	"github.com/compozy/docqa/engine/llm/answer"
	"github.com/compozy/docqa/engine/pipeline"
	"github.com/compozy/docqa/pkg/config"
	"github.com/compozy/docqa/pkg/logger"
)

// App holds the wired question answering pipeline and its collaborators.
type App struct {
	Pipeline   *pipeline.Orchestrator
	Monitoring *monitoring.Service
	llm        llmadapter.LLMClient
}

// Option customizes Build.
type Option func(*options)

type options struct {
	monitoring bool
	llmClient  llmadapter.LLMClient
	embedder   embedder.Embedder
	downloader document.Downloader
	factory    llmadapter.Factory
	tokens     answer.TokenCounter
}

// WithMonitoring creates the metrics service from the monitoring config section.
func WithMonitoring() Option {
	return func(o *options) {
		o.monitoring = true
	}
}

// WithLLMClient replaces the provider client built from config.
func WithLLMClient(client llmadapter.LLMClient) Option {
	return func(o *options) {
		o.llmClient = client
	}
}

// WithEmbedder replaces the provider embedder built from config.
func WithEmbedder(emb embedder.Embedder) Option {
	return func(o *options) {
		o.embedder = emb
	}
}

// WithDownloader replaces the HTTP fetcher.
func WithDownloader(d document.Downloader) Option {
	return func(o *options) {
		o.downloader = d
	}
}

// WithTokenCounter replaces the tiktoken counter used for prompt sizes and
// the context token budget.
func WithTokenCounter(counter answer.TokenCounter) Option {
	return func(o *options) {
		o.tokens = counter
	}
}

// Build wires every component described by cfg.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: configuration is required")
	}
	o := &options{factory: llmadapter.NewDefaultFactory()}
	for _, opt := range opts {
		opt(o)
	}
	log := logger.FromContext(ctx)
	a := &App{}
	var recorder *monitoring.Recorder
	if o.monitoring {
		a.Monitoring = monitoring.NewMonitoringServiceWithFallback(ctx, monitoring.FromAppConfig(cfg))
		if a.Monitoring.IsInitialized() {
			a.Monitoring.SetAsGlobal()
			recorder = a.Monitoring.Recorder()
		}
	}
	emb, err := buildEmbedder(ctx, cfg, o, recorder)
	if err != nil {
		return nil, err
	}
	client := o.llmClient
	if client == nil {
		client, err = o.factory.CreateClient(ctx, LLMProviderConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("app: llm client: %w", err)
		}
	}
	a.llm = client
	tokens := o.tokens
	if tokens == nil {
		tokens = answer.NewTiktokenCounter("")
	}
	genOpts := append(generatorOptions(cfg, recorder), answer.WithTokenCounter(tokens))
	generator, err := answer.New(client, genOpts...)
	if err != nil {
		return nil, a.fail(err)
	}
	documents, err := buildDocumentProcessor(cfg, o)
	if err != nil {
		return nil, a.fail(err)
	}
	pipelineOpts := []pipeline.Option{pipeline.WithTokenCounter(tokens)}
	if recorder != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithRecorder(recorder))
	}
	a.Pipeline, err = pipeline.New(documents, emb, generator, pipeline.Settings{
		TopK:      cfg.Retrieval.TopK,
		Threshold: cfg.Retrieval.Threshold,
		MaxChunks: cfg.Retrieval.MaxChunks,
		MaxTokens: cfg.Retrieval.MaxTokens,
	}, pipelineOpts...)
	if err != nil {
		return nil, a.fail(err)
	}
	log.Info("Pipeline ready",
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"embedder_provider", cfg.Embedder.Provider,
		"embedder_model", cfg.Embedder.Model,
	)
	return a, nil
}

// Close releases the LLM client and flushes metrics.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.llm != nil {
		if err := a.llm.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app: close llm client: %w", err))
		}
	}
	if a.Monitoring != nil {
		if err := a.Monitoring.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app: shutdown monitoring: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) fail(err error) error {
	if a.llm != nil {
		_ = a.llm.Close()
	}
	return fmt.Errorf("app: %w", err)
}

// LLMProviderConfig maps the llm config section.
func LLMProviderConfig(cfg *config.Config) *llmadapter.ProviderConfig {
	return &llmadapter.ProviderConfig{
		Provider:    llmadapter.ProviderName(cfg.LLM.Provider),
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey.Value(),
		APIURL:      cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
}

// EmbedderConfig maps the embedder config section. A Google embedder
// without its own key reuses the Gemini key.
func EmbedderConfig(cfg *config.Config) *embedder.Config {
	key := cfg.Embedder.APIKey.Value()
	if key == "" && embedder.Provider(cfg.Embedder.Provider) == embedder.ProviderGoogleAI &&
		llmadapter.ProviderName(cfg.LLM.Provider) == llmadapter.ProviderGoogle {
		key = cfg.LLM.APIKey.Value()
	}
	return &embedder.Config{
		ID:            "default",
		Provider:      embedder.Provider(cfg.Embedder.Provider),
		Model:         cfg.Embedder.Model,
		APIKey:        key,
		BaseURL:       cfg.Embedder.BaseURL,
		Dimension:     cfg.Embedder.Dimension,
		BatchSize:     cfg.Embedder.BatchSize,
		StripNewLines: cfg.Embedder.StripNewLines,
		CacheSize:     cfg.Embedder.CacheSize,
	}
}

func buildEmbedder(
	ctx context.Context,
	cfg *config.Config,
	o *options,
	recorder *monitoring.Recorder,
) (embedder.Embedder, error) {
	if o.embedder != nil {
		return o.embedder, nil
	}
	adapter, err := embedder.New(ctx, EmbedderConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("app: embedder: %w", err)
	}
	if recorder != nil {
		adapter = adapter.WithRecorder(recorder)
	}
	return adapter, nil
}

func generatorOptions(cfg *config.Config, recorder *monitoring.Recorder) []answer.Option {
	opts := []answer.Option{
		answer.WithTimeout(cfg.LLM.Timeout),
		answer.WithRetry(cfg.LLM.RetryAttempts, cfg.LLM.RetryBackoff),
		answer.WithMaxConcurrency(cfg.LLM.MaxConcurrency),
		answer.WithSampling(cfg.LLM.Temperature, cfg.LLM.MaxTokens),
	}
	if recorder != nil {
		opts = append(opts, answer.WithRecorder(recorder))
	}
	return opts
}

func buildDocumentProcessor(cfg *config.Config, o *options) (*document.Processor, error) {
	fallback, err := document.ParseType(cfg.Fetch.DefaultType)
	if err != nil {
		return nil, err
	}
	chunker, err := chunk.NewProcessor(chunk.Settings{Size: cfg.Chunking.Size, Overlap: cfg.Chunking.Overlap})
	if err != nil {
		return nil, err
	}
	downloader := o.downloader
	if downloader == nil {
		downloader = document.NewFetcher(document.FetchConfig{
			Timeout:      cfg.Fetch.Timeout,
			MaxBytes:     cfg.Fetch.MaxBytes,
			MaxRedirects: cfg.Fetch.MaxRedirects,
			Retries:      cfg.Fetch.Retries,
			UserAgent:    cfg.Fetch.UserAgent,
		})
	}
	return document.NewProcessor(downloader, document.NewClassifier(fallback), chunker)
}
