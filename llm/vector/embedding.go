package vector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"kanun/llm"
)

// retryDelay is how long the gateway sleeps before its single retry against a
// failing embedding provider. Retrying is the gateway's responsibility, not
// the caller's.
const retryDelay = 2 * time.Second

// EmbeddingService wraps an embedding model for vector generation. Batched
// calls are the norm; single-text embedding goes through the same path.
type EmbeddingService struct {
	embedder embedding.Embedder
	dim      int
}

// NewEmbeddingService creates a new embedding service for vectors of the
// given dimension.
func NewEmbeddingService(embedder embedding.Embedder, dim int) *EmbeddingService {
	return &EmbeddingService{embedder: embedder, dim: dim}
}

// Dimension returns the embedding dimension.
func (s *EmbeddingService) Dimension() int {
	return s.dim
}

// wrapEmbedErr classifies an embed failure. An expired deadline is a
// retrieval timeout so callers bounding the whole retrieval see it as one;
// everything else is a provider failure.
func wrapEmbedErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: embedding: %v", llm.ErrRetrievalTimeout, err)
	}
	return fmt.Errorf("%w: %v", llm.ErrEmbeddingProvider, err)
}

// Embed generates an embedding vector for a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", llm.ErrEmbeddingProvider)
	}
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embedding vectors for multiple texts. A provider
// failure is retried once after a short sleep, then surfaced as
// ErrEmbeddingProvider.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", llm.ErrEmbeddingProvider)
	}

	vectors, err := s.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, wrapEmbedErr(ctx, ctx.Err())
		case <-time.After(retryDelay):
		}
		vectors, err = s.embedder.EmbedStrings(ctx, texts)
		if err != nil {
			return nil, wrapEmbedErr(ctx, err)
		}
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", llm.ErrEmbeddingProvider, len(vectors), len(texts))
	}

	result := make([][]float32, len(vectors))
	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", llm.ErrEmbeddingProvider, i)
		}
		result[i] = make([]float32, len(vec))
		for j, v := range vec {
			result[i][j] = float32(v)
		}
	}
	return result, nil
}
