package index

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/docqa/engine/knowledge/chunk"
)

// keywordEmbedder counts vocabulary words, giving predictable similarities.
type keywordEmbedder struct {
	vocab []string
	mu    sync.Mutex
	fail  error
}

func newKeywordEmbedder(vocab ...string) *keywordEmbedder {
	return &keywordEmbedder{vocab: vocab}
}

func (e *keywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	out := make([]float32, len(e.vocab))
	for i, word := range e.vocab {
		out[i] = float32(strings.Count(lower, word))
	}
	return out
}

func (e *keywordEmbedder) setFailure(err error) {
	e.mu.Lock()
	e.fail = err
	e.mu.Unlock()
}

func (e *keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return nil, e.fail
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func makeChunks(t *testing.T, source string, texts ...string) []chunk.Chunk {
	t.Helper()
	out := make([]chunk.Chunk, len(texts))
	for i, text := range texts {
		out[i] = chunk.Chunk{
			ID:   "chunk_" + string(rune('0'+i)),
			Text: text,
			Metadata: map[string]any{
				chunk.MetaSourceURL:  source,
				chunk.MetaChunkIndex: i,
			},
		}
	}
	return out
}

func TestIndex_Search(t *testing.T) {
	t.Run("Should return nothing before the first reindex", func(t *testing.T) {
		ix, err := New(newKeywordEmbedder("grace"))
		require.NoError(t, err)
		results, err := ix.Search(t.Context(), "grace period", 5, 0)
		require.NoError(t, err)
		assert.Nil(t, results)
		assert.False(t, ix.Indexed())
		assert.Equal(t, uint64(0), ix.Generation())
	})

	t.Run("Should rank by cosine similarity and expose the score in metadata", func(t *testing.T) {
		ix, err := New(newKeywordEmbedder("grace", "premium", "surgery"))
		require.NoError(t, err)
		require.NoError(t, ix.Reindex(t.Context(), makeChunks(t, "a",
			"surgery is covered",
			"grace period for premium payment",
			"premium is due monthly",
		)))
		results, err := ix.Search(t.Context(), "grace premium", 3, 0)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "chunk_1", results[0].ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
		assert.Equal(t, "chunk_2", results[1].ID)
		assert.InDelta(t, 0.7071, results[1].Score, 1e-3)
		assert.Equal(t, "chunk_0", results[2].ID)
		assert.InDelta(t, 0.0, results[2].Score, 1e-6)
		meta := results[0].Metadata()
		assert.Equal(t, "a", meta[chunk.MetaSourceURL])
		assert.InDelta(t, results[0].Score, meta[MetaSimilarityScore], 1e-9)
	})

	t.Run("Should filter by threshold", func(t *testing.T) {
		ix, err := New(newKeywordEmbedder("grace", "premium", "surgery"))
		require.NoError(t, err)
		require.NoError(t, ix.Reindex(t.Context(), makeChunks(t, "a",
			"surgery is covered",
			"grace period for premium payment",
			"premium is due monthly",
		)))
		all, err := ix.Search(t.Context(), "grace premium", 5, 0)
		require.NoError(t, err)
		strict, err := ix.Search(t.Context(), "grace premium", 5, 0.9)
		require.NoError(t, err)
		assert.Less(t, len(strict), len(all))
		for _, r := range strict {
			assert.GreaterOrEqual(t, r.Score, 0.9)
		}
	})

	t.Run("Should break score ties by corpus position", func(t *testing.T) {
		ix, err := New(newKeywordEmbedder("waiting"))
		require.NoError(t, err)
		require.NoError(t, ix.Reindex(t.Context(), makeChunks(t, "a",
			"waiting period one",
			"waiting period two",
			"waiting period three",
		)))
		results, err := ix.Search(t.Context(), "waiting", 2, 0.5)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "chunk_0", results[0].ID)
		assert.Equal(t, "chunk_1", results[1].ID)
	})

	t.Run("Should fall back to the default top k", func(t *testing.T) {
		ix, err := New(newKeywordEmbedder("x"), WithTopK(1), WithThreshold(0.1))
		require.NoError(t, err)
		require.NoError(t, ix.Reindex(t.Context(), makeChunks(t, "a", "x", "xx")))
		results, err := ix.Search(t.Context(), "x", 0, ix.Threshold())
		require.NoError(t, err)
		assert.Len(t, results, 1)
		assert.Equal(t, 1, ix.TopK())
	})
}

func TestIndex_Reindex(t *testing.T) {
	t.Run("Should replace the previous generation entirely", func(t *testing.T) {
		ix, err := New(newKeywordEmbedder("policy", "claim"))
		require.NoError(t, err)
		require.NoError(t, ix.Reindex(t.Context(), makeChunks(t, "doc-a", "policy terms", "claim policy")))
		assert.Equal(t, uint64(1), ix.Generation())
		require.NoError(t, ix.Reindex(t.Context(), makeChunks(t, "doc-b", "claim form")))
		assert.Equal(t, uint64(2), ix.Generation())
		assert.Equal(t, 1, ix.Len())
		results, err := ix.Search(t.Context(), "policy claim", 10, -1)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for _, r := range results {
			assert.Equal(t, "doc-b", r.Metadata()[chunk.MetaSourceURL])
		}
	})

	t.Run("Should clear the previous generation when embedding fails", func(t *testing.T) {
		emb := newKeywordEmbedder("policy")
		ix, err := New(emb)
		require.NoError(t, err)
		require.NoError(t, ix.Reindex(t.Context(), makeChunks(t, "doc-a", "policy terms")))
		emb.setFailure(errors.New("quota exceeded"))
		err = ix.Reindex(t.Context(), makeChunks(t, "doc-b", "policy override"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
		emb.setFailure(nil)
		assert.False(t, ix.Indexed())
		assert.Equal(t, uint64(0), ix.Generation())
		assert.Equal(t, 0, ix.Len())
		results, err := ix.Search(t.Context(), "policy", 5, 0)
		require.NoError(t, err)
		assert.Nil(t, results)
		require.NoError(t, ix.Reindex(t.Context(), makeChunks(t, "doc-b", "policy override")))
		results, err = ix.Search(t.Context(), "policy", 5, 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "doc-b", results[0].Metadata()[chunk.MetaSourceURL])
	})

	t.Run("Should reject duplicate chunk ids", func(t *testing.T) {
		ix, err := New(newKeywordEmbedder("a"))
		require.NoError(t, err)
		chunks := makeChunks(t, "doc", "a", "a a")
		chunks[1].ID = chunks[0].ID
		require.Error(t, ix.Reindex(t.Context(), chunks))
		assert.False(t, ix.Indexed())
	})

	t.Run("Should only expose complete generations during concurrent reindex", func(t *testing.T) {
		ix, err := New(newKeywordEmbedder("alpha", "beta"))
		require.NoError(t, err)
		require.NoError(t, ix.Reindex(t.Context(), makeChunks(t, "doc-a", "alpha", "alpha beta")))
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i%2 == 0 {
					assert.NoError(t, ix.Reindex(t.Context(), makeChunks(t, "doc-b", "beta", "alpha beta")))
					return
				}
				results, err := ix.Search(t.Context(), "alpha beta", 2, 0)
				assert.NoError(t, err)
				if results != nil {
					assert.Len(t, results, 2)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 2, ix.Len())
	})
}

func TestNormalize(t *testing.T) {
	t.Run("Should scale to unit length", func(t *testing.T) {
		out := normalize([]float32{3, 4})
		assert.InDelta(t, 0.6, out[0], 1e-6)
		assert.InDelta(t, 0.8, out[1], 1e-6)
	})

	t.Run("Should leave zero vectors untouched", func(t *testing.T) {
		assert.Equal(t, []float32{0, 0}, normalize([]float32{0, 0}))
	})
}
