package vectordb

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/compozy/docqa/engine/core"
)

// memoryStore is an exact, brute-force store. Records keep insertion order,
// so the vector at position i always belongs to records[i].
type memoryStore struct {
	mu        sync.RWMutex
	id        string
	dimension int
	records   []Record
	positions map[string]int
}

func newMemoryStore(cfg *Config) *memoryStore {
	return &memoryStore{
		id:        cfg.ID,
		dimension: cfg.Dimension,
		positions: make(map[string]int),
	}
}

// Upsert appends new records and replaces existing IDs in place.
// The whole batch is rejected when any embedding has the wrong dimension.
func (s *memoryStore) Upsert(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dimension := s.dimension
	if dimension == 0 {
		dimension = len(records[0].Embedding)
	}
	for i := range records {
		if len(records[i].Embedding) == 0 {
			return fmt.Errorf("memory store %q: record %q has no embedding", s.id, records[i].ID)
		}
		if len(records[i].Embedding) != dimension {
			return fmt.Errorf(
				"memory store %q: record %q dimension mismatch (got %d want %d)",
				s.id,
				records[i].ID,
				len(records[i].Embedding),
				dimension,
			)
		}
	}
	s.dimension = dimension
	for i := range records {
		rec := Record{
			ID:        records[i].ID,
			Text:      records[i].Text,
			Embedding: slices.Clone(records[i].Embedding),
			Metadata:  core.CloneMap(records[i].Metadata),
		}
		if pos, ok := s.positions[rec.ID]; ok {
			s.records[pos] = rec
			continue
		}
		s.positions[rec.ID] = len(s.records)
		s.records = append(s.records, rec)
	}
	return nil
}

// Search scores every record and returns at most TopK matches with
// Score >= MinScore, best first. Equal scores keep insertion order.
func (s *memoryStore) Search(_ context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("memory store %q: query dimension mismatch (got %d want %d)", s.id, len(query), s.dimension)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	candidates := make([]Match, 0, len(s.records))
	for pos := range s.records {
		rec := &s.records[pos]
		score := innerProduct(rec.Embedding, query)
		if score < opts.MinScore {
			continue
		}
		candidates = append(candidates, Match{
			ID:       rec.ID,
			Score:    score,
			Text:     rec.Text,
			Metadata: core.CloneMap(rec.Metadata),
			Position: pos,
		})
	}
	slices.SortStableFunc(candidates, func(a, b Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return a.Position - b.Position
		}
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (s *memoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *memoryStore) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.positions = make(map[string]int)
	return nil
}

func innerProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
