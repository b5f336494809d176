package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"kanun/llm"
)

// MemoryStore is an in-memory Store using brute-force cosine similarity.
// It backs tests and small local corpora; production deployments use
// RedisStore.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]llm.VectorRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{namespaces: make(map[string]map[string]llm.VectorRecord)}
}

// Upsert writes records into a namespace, overwriting existing IDs.
func (s *MemoryStore) Upsert(ctx context.Context, namespace string, records []llm.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		// A cancelled upsert must not leave partial index state behind.
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]llm.VectorRecord, len(records))
		s.namespaces[namespace] = ns
	}
	for _, rec := range records {
		ns[rec.ID] = rec
	}
	return nil
}

// Search returns the topK records nearest to the query vector by cosine
// similarity, highest first.
func (s *MemoryStore) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]llm.ScoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	ns := s.namespaces[namespace]

	results := make([]llm.ScoredRecord, 0, len(ns))
	for _, rec := range ns {
		results = append(results, llm.ScoredRecord{
			Record: rec,
			Score:  cosine(vector, rec.Values),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of records stored in a namespace.
func (s *MemoryStore) Count(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces[namespace])
}

// Close releases nothing; it exists to satisfy Store.
func (s *MemoryStore) Close() error { return nil }

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
