package embedder

import (
	"context"
	"time"
)

// Provider identifies an embedding backend.
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderGoogleAI Provider = "googleai"
	ProviderOllama   Provider = "ollama"
)

const DefaultGoogleModel = "text-embedding-004"

// Config captures the embedder settings.
type Config struct {
	ID            string
	Provider      Provider
	Model         string
	APIKey        string
	BaseURL       string
	Dimension     int
	BatchSize     int
	StripNewLines bool
	CacheSize     int
}

// Embedder turns texts into dense vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Recorder receives embedding telemetry. A nil Recorder is ignored.
type Recorder interface {
	RecordEmbedding(ctx context.Context, provider string, texts int, duration time.Duration, err error)
	RecordEmbeddingCache(ctx context.Context, provider string, hit bool)
}
