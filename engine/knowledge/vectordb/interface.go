package vectordb

import (
	"context"
)

// Provider enumerates supported vector store backends.
type Provider string

const (
	// ProviderMemory keeps vectors in process memory for the lifetime of the store.
	ProviderMemory Provider = "memory"
)

// Metric selects the similarity function.
type Metric string

const (
	// MetricInnerProduct scores by dot product. Callers normalize vectors
	// upfront so that scores equal cosine similarity.
	MetricInnerProduct Metric = "ip"
)

const defaultTopK = 5

// Record represents a chunk held by the vector store.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// SearchOptions controls similarity search execution.
type SearchOptions struct {
	TopK     int
	MinScore float64
}

// Match captures a similarity search result. Position is the record's
// insertion order inside the store.
type Match struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
	Position int
}

// Store exposes the minimal contract for indexing and retrieval.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error)
	Len() int
	Close(ctx context.Context) error
}

// Config captures the store settings.
type Config struct {
	ID        string
	Provider  Provider
	Metric    Metric
	Dimension int
}
