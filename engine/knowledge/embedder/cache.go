package embedder

import (
	"crypto/sha256"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// vectorCache keeps embeddings keyed by the SHA-256 of their text. The LRU is
// safe for concurrent use; vectors are cloned on the way in and out so
// callers can mutate what they receive. A nil cache is a valid no-op.
type vectorCache struct {
	entries *lru.Cache[[sha256.Size]byte, []float32]
}

func newVectorCache(size int) (*vectorCache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be greater than zero, got %d", size)
	}
	entries, err := lru.New[[sha256.Size]byte, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	return &vectorCache{entries: entries}, nil
}

func (c *vectorCache) get(text string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	vector, ok := c.entries.Get(sha256.Sum256([]byte(text)))
	if !ok {
		return nil, false
	}
	return slices.Clone(vector), true
}

func (c *vectorCache) put(text string, vector []float32) {
	if c == nil || len(vector) == 0 {
		return
	}
	c.entries.Add(sha256.Sum256([]byte(text)), slices.Clone(vector))
}

func (c *vectorCache) size() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
