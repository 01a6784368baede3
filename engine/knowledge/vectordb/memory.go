package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

type memoryStore struct {
	mu        sync.RWMutex
	records   map[string]Record
	dimension int
	maxTopK   int
}

func newMemoryStore(cfg *Config) *memoryStore {
	return &memoryStore{
		records:   make(map[string]Record),
		dimension: cfg.Dimension,
		maxTopK:   cfg.MaxTopK,
	}
}

func (m *memoryStore) Upsert(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range records {
		rec := records[i]
		if len(rec.Embedding) != m.dimension {
			return fmt.Errorf(
				"memory: record %q dimension mismatch (got %d want %d)",
				rec.ID, len(rec.Embedding), m.dimension,
			)
		}
		m.records[rec.ID] = rec
	}
	return nil
}

func (m *memoryStore) Search(_ context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != m.dimension {
		return nil, fmt.Errorf("memory: query dimension mismatch (got %d want %d)", len(query), m.dimension)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultSearchTopK
	}
	if m.maxTopK > 0 && topK > m.maxTopK {
		topK = m.maxTopK
	}
	m.mu.RLock()
	matches := make([]Match, 0, len(m.records))
	for _, rec := range m.records {
		if !matchesFilters(rec.Metadata, opts.Filters) {
			continue
		}
		score := cosineSimilarity(query, rec.Embedding)
		if score < opts.MinScore {
			continue
		}
		matches = append(matches, Match{ID: rec.ID, Score: score, Text: rec.Text, Metadata: rec.Metadata})
	}
	m.mu.RUnlock()
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *memoryStore) Delete(_ context.Context, filter Filter) error {
	if len(filter.IDs) == 0 && len(filter.Metadata) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range filter.IDs {
		delete(m.records, id)
	}
	if len(filter.Metadata) > 0 {
		for id, rec := range m.records {
			if matchesFilters(rec.Metadata, filter.Metadata) {
				delete(m.records, id)
			}
		}
	}
	return nil
}

func (m *memoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *memoryStore) Close(_ context.Context) error {
	return nil
}

func matchesFilters(meta map[string]any, filters map[string]string) bool {
	for key, want := range filters {
		got, ok := meta[key]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

func cosineSimilarity(a []float32, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
