package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"kanun/llm"
	"kanun/llm/vector"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	// ModeNamespaceScoped searches only the namespaces the reformulator
	// picked, with a score threshold standing in for a reranker.
	ModeNamespaceScoped Mode = "namespace"

	// ModeReranked searches the default namespace and lets a cross-encoder
	// style reranker reorder the candidate set.
	ModeReranked Mode = "reranked"
)

// OrchestratorConfig bounds one retrieval round.
type OrchestratorConfig struct {
	Mode           Mode
	TopK           int
	ScoreThreshold float32
	Timeout        time.Duration
}

// Validate fails fast on an unusable retrieval configuration.
func (c OrchestratorConfig) Validate() error {
	switch c.Mode {
	case ModeNamespaceScoped, ModeReranked:
	default:
		return fmt.Errorf("%w: unknown retrieval mode %q", llm.ErrConfiguration, c.Mode)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", llm.ErrConfiguration, c.TopK)
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("%w: score threshold %v out of [0,1]", llm.ErrConfiguration, c.ScoreThreshold)
	}
	return nil
}

// Orchestrator fans a reformulated query out to the vector index, merges and
// filters the results, and formats the surviving candidates into the context
// block the answer composer consumes. The query path is read-only on the
// index.
type Orchestrator struct {
	store      vector.Store
	embeddings *vector.EmbeddingService
	reranker   Reranker
	cfg        OrchestratorConfig
	log        *zap.Logger
}

// NewOrchestrator wires a retrieval orchestrator. The reranker may be nil
// when the mode is namespace-scoped.
func NewOrchestrator(store vector.Store, embeddings *vector.EmbeddingService, reranker Reranker, cfg OrchestratorConfig, log *zap.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode == ModeReranked && reranker == nil {
		return nil, fmt.Errorf("%w: reranked mode requires a reranker", llm.ErrConfiguration)
	}
	return &Orchestrator{store: store, embeddings: embeddings, reranker: reranker, cfg: cfg, log: log}, nil
}

// Retrieve runs one retrieval round for a reformulated question and returns
// the formatted context together with the surviving candidates. An empty
// candidate list yields an empty context string; downstream must treat that
// as "cannot answer".
func (o *Orchestrator) Retrieve(ctx context.Context, reformulatedQuestion string, categories []string) (string, []llm.RetrievedCandidate, error) {
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	var (
		candidates []llm.RetrievedCandidate
		err        error
	)
	switch o.cfg.Mode {
	case ModeReranked:
		candidates, err = o.retrieveReranked(ctx, reformulatedQuestion)
	default:
		candidates, err = o.retrieveNamespaceScoped(ctx, reformulatedQuestion, categories)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", nil, fmt.Errorf("%w: %v", llm.ErrRetrievalTimeout, err)
		}
		return "", nil, err
	}

	o.log.Debug("retrieval finished",
		zap.String("mode", string(o.cfg.Mode)),
		zap.Int("candidates", len(candidates)))
	return FormatContext(candidates), candidates, nil
}

// retrieveNamespaceScoped searches each picked namespace, merges by
// concatenation, filters by score, sorts descending and deduplicates by
// exact chunk text keeping the highest-scoring instance. No categories means
// no results; there is no implicit fallback to the default namespace.
func (o *Orchestrator) retrieveNamespaceScoped(ctx context.Context, question string, categories []string) ([]llm.RetrievedCandidate, error) {
	if len(categories) == 0 {
		return nil, nil
	}

	queryVec, err := o.embeddings.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	// Per-namespace searches share no mutable state, so they run
	// concurrently; merge order stays deterministic by category position.
	results := make([][]llm.ScoredRecord, len(categories))
	errs := make([]error, len(categories))
	var wg sync.WaitGroup
	for i, namespace := range categories {
		wg.Add(1)
		go func(i int, namespace string) {
			defer wg.Done()
			results[i], errs[i] = o.store.Search(ctx, namespace, queryVec, o.cfg.TopK)
		}(i, namespace)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var merged []llm.RetrievedCandidate
	for _, records := range results {
		for _, rec := range records {
			if rec.Score < o.cfg.ScoreThreshold {
				continue
			}
			merged = append(merged, llm.RetrievedCandidate{
				ChunkText: rec.Record.Metadata.Text,
				Metadata:  rec.Record.Metadata,
				Score:     rec.Score,
				HasScore:  true,
			})
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })

	// After the descending sort the first instance of a chunk text is the
	// highest-scoring one.
	seen := make(map[string]bool, len(merged))
	deduped := merged[:0]
	for _, cand := range merged {
		if seen[cand.ChunkText] {
			continue
		}
		seen[cand.ChunkText] = true
		deduped = append(deduped, cand)
	}
	return deduped, nil
}

// retrieveReranked searches the default namespace and trusts the reranker's
// ordering of the candidate set. No threshold filter and no deduplication:
// the reranker reorders what similarity search found.
func (o *Orchestrator) retrieveReranked(ctx context.Context, question string) ([]llm.RetrievedCandidate, error) {
	queryVec, err := o.embeddings.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	records, err := o.store.Search(ctx, vector.DefaultNamespace, queryVec, o.cfg.TopK)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Record.Metadata.Text
	}
	ranked, err := o.reranker.Rerank(ctx, question, texts)
	if err != nil {
		return nil, err
	}

	candidates := make([]llm.RetrievedCandidate, 0, len(ranked))
	for _, r := range ranked {
		candidates = append(candidates, llm.RetrievedCandidate{
			ChunkText: records[r.Index].Record.Metadata.Text,
			Metadata:  records[r.Index].Record.Metadata,
		})
	}
	return candidates, nil
}

// FormatContext renders candidates as context blocks: content, metadata and,
// when the candidate carries one, the relevance score. Blocks are joined by
// a blank line; no candidates means an empty string.
func FormatContext(candidates []llm.RetrievedCandidate) string {
	if len(candidates) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		var sb strings.Builder
		sb.WriteString("Content: ")
		sb.WriteString(cand.ChunkText)
		sb.WriteString("\nMetadata: ")
		sb.WriteString(metadataJSON(cand.Metadata))
		if cand.HasScore {
			fmt.Fprintf(&sb, "\nRelevance Score: %.4f", cand.Score)
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n\n")
}

// metadataJSON renders metadata without the chunk text (already shown as
// content) and without HTML escaping, preserving Devanagari verbatim.
func metadataJSON(m llm.Metadata) string {
	m.Text = ""
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "{}"
	}
	return strings.TrimSpace(buf.String())
}
