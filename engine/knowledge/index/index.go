package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/compozy/docqa/engine/core"
	"github.com/compozy/docqa/engine/knowledge/chunk"
	"github.com/compozy/docqa/engine/knowledge/embedder"
	"github.com/compozy/docqa/engine/knowledge/vectordb"
	"github.com/compozy/docqa/pkg/logger"
)

const (
	DefaultTopK      = 5
	DefaultThreshold = 0.5
	// MetaSimilarityScore is added to result metadata by Result.Metadata.
	MetaSimilarityScore = "similarity_score"
)

// Result is a chunk returned by Search together with its similarity score.
type Result struct {
	ID       string
	Text     string
	Score    float64
	metadata map[string]any
}

// Metadata returns a copy of the chunk metadata with the similarity score.
func (r Result) Metadata() map[string]any {
	out := core.CloneMap(r.metadata)
	if out == nil {
		out = make(map[string]any, 1)
	}
	out[MetaSimilarityScore] = r.Score
	return out
}

type generation struct {
	id    uint64
	store vectordb.Store
}

// Index holds at most one generation of embedded chunks. Reindex replaces the
// whole generation; Search only ever observes a complete one.
type Index struct {
	embedder  embedder.Embedder
	topK      int
	threshold float64

	mu      sync.RWMutex
	current *generation
	nextID  uint64
}

// Option customizes an Index.
type Option func(*Index)

// WithTopK sets the default number of results.
func WithTopK(topK int) Option {
	return func(ix *Index) {
		if topK > 0 {
			ix.topK = topK
		}
	}
}

// WithThreshold sets the default minimum similarity score.
func WithThreshold(threshold float64) Option {
	return func(ix *Index) {
		ix.threshold = threshold
	}
}

// New creates an empty index.
func New(emb embedder.Embedder, opts ...Option) (*Index, error) {
	if emb == nil {
		return nil, errors.New("index: embedder is required")
	}
	ix := &Index{
		embedder:  emb,
		topK:      DefaultTopK,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

func newStore(ctx context.Context, gen uint64) (vectordb.Store, error) {
	return vectordb.New(ctx, &vectordb.Config{
		ID:       "generation-" + strconv.FormatUint(gen, 10),
		Provider: vectordb.ProviderMemory,
		Metric:   vectordb.MetricInnerProduct,
	})
}

// TopK returns the default result count.
func (ix *Index) TopK() int { return ix.topK }

// Threshold returns the default minimum score.
func (ix *Index) Threshold() float64 { return ix.threshold }

// Reindex drops the live generation, then embeds chunks into a fresh one. On
// any error the index is left empty and Search yields nil until the next
// successful Reindex.
func (ix *Index) Reindex(ctx context.Context, chunks []chunk.Chunk) error {
	log := logger.FromContext(ctx)
	start := time.Now()
	ix.mu.Lock()
	previous := ix.current
	ix.current = nil
	ix.nextID++
	genID := ix.nextID
	ix.mu.Unlock()
	ix.release(ctx, previous)
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = ix.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("index: embed chunks: %w", err)
		}
		if len(vectors) != len(chunks) {
			return fmt.Errorf("index: received %d embeddings for %d chunks", len(vectors), len(chunks))
		}
	}
	records := make([]vectordb.Record, len(chunks))
	for i := range chunks {
		records[i] = vectordb.Record{
			ID:        chunks[i].ID,
			Text:      chunks[i].Text,
			Embedding: normalize(vectors[i]),
			Metadata:  chunks[i].Metadata,
		}
	}
	store, err := newStore(ctx, genID)
	if err != nil {
		return fmt.Errorf("index: create store: %w", err)
	}
	if err := store.Upsert(ctx, records); err != nil {
		_ = store.Close(ctx)
		return fmt.Errorf("index: load generation %d: %w", genID, err)
	}
	if store.Len() != len(records) {
		_ = store.Close(ctx)
		return fmt.Errorf("index: generation %d holds %d records, want %d (duplicate chunk ids?)", genID, store.Len(), len(records))
	}
	ix.mu.Lock()
	replaced := ix.current
	ix.current = &generation{id: genID, store: store}
	ix.mu.Unlock()
	ix.release(ctx, replaced)
	log.Info("Index generation built",
		"generation", genID,
		"chunks", len(records),
		"duration_seconds", time.Since(start).Seconds(),
	)
	return nil
}

// Search returns up to topK chunks scoring at least threshold, best first,
// equal scores in corpus order. An index without a generation yields nil.
func (ix *Index) Search(ctx context.Context, query string, topK int, threshold float64) ([]Result, error) {
	if !ix.Indexed() {
		return nil, nil
	}
	if topK <= 0 {
		topK = ix.topK
	}
	vector, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("index: embed query: %w", err)
	}
	vector = normalize(vector)
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.current == nil {
		return nil, nil
	}
	matches, err := ix.current.store.Search(ctx, vector, vectordb.SearchOptions{TopK: topK, MinScore: threshold})
	if err != nil {
		return nil, fmt.Errorf("index: search generation %d: %w", ix.current.id, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	results := make([]Result, len(matches))
	for i := range matches {
		results[i] = Result{
			ID:       matches[i].ID,
			Text:     matches[i].Text,
			Score:    matches[i].Score,
			metadata: matches[i].Metadata,
		}
	}
	return results, nil
}

// Generation returns the live generation id, zero when nothing is indexed.
func (ix *Index) Generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.current == nil {
		return 0
	}
	return ix.current.id
}

// Len returns the number of chunks in the live generation.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.current == nil {
		return 0
	}
	return ix.current.store.Len()
}

// Indexed reports whether a generation is live.
func (ix *Index) Indexed() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.current != nil
}

// Close releases the live generation.
func (ix *Index) Close(ctx context.Context) error {
	ix.mu.Lock()
	current := ix.current
	ix.current = nil
	ix.mu.Unlock()
	if current == nil {
		return nil
	}
	return current.store.Close(ctx)
}

// release closes a detached generation. Failures are logged only.
func (ix *Index) release(ctx context.Context, gen *generation) {
	if gen == nil {
		return
	}
	if err := gen.store.Close(ctx); err != nil {
		logger.FromContext(ctx).Warn("Failed to close index generation", "generation", gen.id, "error", err)
	}
}

// normalize returns v scaled to unit length; zero vectors are returned as is.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
