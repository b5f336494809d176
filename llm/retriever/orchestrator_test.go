package retriever

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"

	"kanun/llm"
	"kanun/llm/vector"
)

// fakeEmbedder returns the unit query vector for every input.
type fakeEmbedder struct{}

func (fakeEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

// scoredVec builds a unit vector whose cosine similarity against the query
// vector {1, 0} equals score.
func scoredVec(score float64) []float32 {
	return []float32{float32(score), float32(math.Sqrt(1 - score*score))}
}

func seedRecord(id, text string, score float64) llm.VectorRecord {
	return llm.VectorRecord{
		ID:     id,
		Values: scoredVec(score),
		Metadata: llm.Metadata{
			Text:   text,
			Source: "Page 1 from Some Act",
		},
	}
}

func newTestEmbeddings() *vector.EmbeddingService {
	return vector.NewEmbeddingService(fakeEmbedder{}, 2)
}

func TestNamespaceScopedRetrieval(t *testing.T) {
	store := vector.NewMemoryStore()
	ctx := context.Background()

	// The same chunk text indexed in two namespaces with different scores,
	// plus one below the threshold.
	mustUpsert(t, store, "ns1", []llm.VectorRecord{seedRecord("1", "dup", 0.9)})
	mustUpsert(t, store, "ns2", []llm.VectorRecord{
		seedRecord("1", "dup", 0.7),
		seedRecord("2", "other", 0.8),
		seedRecord("3", "low", 0.5),
	})

	o, err := NewOrchestrator(store, newTestEmbeddings(), nil, OrchestratorConfig{
		Mode:           ModeNamespaceScoped,
		TopK:           5,
		ScoreThreshold: 0.6,
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	_, candidates, err := o.Retrieve(ctx, "q", []string{"ns1", "ns2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2 after threshold and dedupe", len(candidates))
	}
	if candidates[0].ChunkText != "dup" || candidates[1].ChunkText != "other" {
		t.Errorf("order = %q, %q", candidates[0].ChunkText, candidates[1].ChunkText)
	}
	// Deduplication keeps the highest-scoring instance.
	if candidates[0].Score < 0.85 {
		t.Errorf("kept the lower-scoring duplicate: %v", candidates[0].Score)
	}
	for _, cand := range candidates {
		if !cand.HasScore {
			t.Error("namespace-scoped candidates must carry scores")
		}
	}
}

func TestNamespaceScopedNoCategories(t *testing.T) {
	store := vector.NewMemoryStore()
	mustUpsert(t, store, vector.DefaultNamespace, []llm.VectorRecord{seedRecord("1", "x", 0.9)})

	o, err := NewOrchestrator(store, newTestEmbeddings(), nil, OrchestratorConfig{
		Mode: ModeNamespaceScoped,
		TopK: 5,
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	formatted, candidates, err := o.Retrieve(context.Background(), "q", nil)
	if err != nil {
		t.Fatal(err)
	}
	// No categories means no results; the default namespace is not an
	// implicit fallback.
	if formatted != "" || len(candidates) != 0 {
		t.Errorf("got context %q with %d candidates, want none", formatted, len(candidates))
	}
}

// reverseReranker reorders candidates back to front.
type reverseReranker struct{}

func (reverseReranker) Rerank(ctx context.Context, query string, candidates []string) ([]RankedIndex, error) {
	out := make([]RankedIndex, 0, len(candidates))
	for i := len(candidates) - 1; i >= 0; i-- {
		out = append(out, RankedIndex{Index: i, Score: float64(len(candidates) - i)})
	}
	return out, nil
}

func TestRerankedRetrieval(t *testing.T) {
	store := vector.NewMemoryStore()
	mustUpsert(t, store, vector.DefaultNamespace, []llm.VectorRecord{
		seedRecord("1", "first", 0.9),
		seedRecord("2", "second", 0.8),
		seedRecord("3", "third", 0.7),
	})

	o, err := NewOrchestrator(store, newTestEmbeddings(), reverseReranker{}, OrchestratorConfig{
		Mode: ModeReranked,
		TopK: 3,
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	_, candidates, err := o.Retrieve(context.Background(), "q", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 3 {
		t.Fatalf("got %d candidates, want 3", len(candidates))
	}
	// Similarity order is first, second, third; the reranker reverses it.
	want := []string{"third", "second", "first"}
	for i, cand := range candidates {
		if cand.ChunkText != want[i] {
			t.Errorf("position %d = %q, want %q", i, cand.ChunkText, want[i])
		}
		if cand.HasScore {
			t.Error("reranked candidates must not carry similarity scores")
		}
	}
}

func TestRerankedModeRequiresReranker(t *testing.T) {
	_, err := NewOrchestrator(vector.NewMemoryStore(), newTestEmbeddings(), nil, OrchestratorConfig{
		Mode: ModeReranked,
		TopK: 3,
	}, zap.NewNop())
	if !errors.Is(err, llm.ErrConfiguration) {
		t.Errorf("error = %v, want ErrConfiguration", err)
	}
}

// stallStore blocks every search until the context expires.
type stallStore struct{}

func (stallStore) Upsert(ctx context.Context, namespace string, records []llm.VectorRecord) error {
	return nil
}

func (stallStore) Search(ctx context.Context, namespace string, vec []float32, topK int) ([]llm.ScoredRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stallStore) Close() error { return nil }

func TestRetrieveTimeout(t *testing.T) {
	o, err := NewOrchestrator(stallStore{}, newTestEmbeddings(), nil, OrchestratorConfig{
		Mode:    ModeNamespaceScoped,
		TopK:    3,
		Timeout: 10 * time.Millisecond,
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = o.Retrieve(context.Background(), "q", []string{"ns"})
	if !errors.Is(err, llm.ErrRetrievalTimeout) {
		t.Errorf("error = %v, want ErrRetrievalTimeout", err)
	}
}

func TestFormatContext(t *testing.T) {
	candidates := []llm.RetrievedCandidate{
		{
			ChunkText: "धारा एक",
			Metadata:  llm.Metadata{Text: "धारा एक", Source: "Page 1 from Constitution"},
			Score:     0.9123,
			HasScore:  true,
		},
		{
			ChunkText: "second chunk",
			Metadata:  llm.Metadata{Text: "second chunk", Source: "Page 2 from Constitution"},
		},
	}

	got := FormatContext(candidates)
	blocks := strings.Split(got, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if !strings.HasPrefix(blocks[0], "Content: धारा एक\nMetadata: ") {
		t.Errorf("block 0 = %q", blocks[0])
	}
	if !strings.Contains(blocks[0], "Relevance Score: 0.9123") {
		t.Errorf("score line missing from %q", blocks[0])
	}
	if strings.Contains(blocks[1], "Relevance Score") {
		t.Error("unscored candidate must not render a score line")
	}
	// Chunk text is the content line; the metadata JSON must not repeat it.
	if strings.Contains(blocks[0], `"text":"धारा एक"`) {
		t.Error("metadata JSON repeats the chunk text")
	}
	if !strings.Contains(blocks[0], "धारा एक") {
		t.Error("Devanagari content was escaped")
	}

	if FormatContext(nil) != "" {
		t.Error("no candidates must format to an empty string")
	}
}

func mustUpsert(t *testing.T, store vector.Store, namespace string, records []llm.VectorRecord) {
	t.Helper()
	if err := store.Upsert(context.Background(), namespace, records); err != nil {
		t.Fatal(err)
	}
}
