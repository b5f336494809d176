package vector

import (
	"context"

	"kanun/llm"
)

// DefaultNamespace is the implicit namespace holding every chunk. Category
// namespaces partition the same index for cheaper scoped searches.
const DefaultNamespace = ""

// Store is a namespaced nearest-neighbor index over vector records.
type Store interface {
	// Upsert writes records into a namespace. Record IDs are unique within
	// the namespace; writing an existing ID overwrites the previous values.
	Upsert(ctx context.Context, namespace string, records []llm.VectorRecord) error

	// Search returns the topK records of a namespace nearest to the query
	// vector, highest similarity first. The query path never mutates the
	// index.
	Search(ctx context.Context, namespace string, vector []float32, topK int) ([]llm.ScoredRecord, error)

	// Close releases any connections or resources.
	Close() error
}

// StoreConfig holds configuration shared by store implementations.
type StoreConfig struct {
	// EmbeddingDim is the vector dimension; it must match the embedding
	// model.
	EmbeddingDim int

	// IndexName is the name of the vector index.
	IndexName string

	// KeyPrefix namespaces stored records inside the backing database.
	KeyPrefix string
}

// DefaultStoreConfig returns the default store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		EmbeddingDim: 1536,
		IndexName:    "kanun-laws",
		KeyPrefix:    "vec:",
	}
}
