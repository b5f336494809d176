package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"kanun/llm"
)

// RankedIndex is one reranker verdict: the candidate's position in the input
// slice and its query-conditioned relevance score.
type RankedIndex struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Reranker reorders a candidate set by query-conditioned relevance. It never
// filters: every input index appears in the output exactly once.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]RankedIndex, error)
}

// ModelReranker scores (query, candidate) pairs with a chat model under a
// strict-JSON contract. It stands in for a dedicated cross-encoder service
// while keeping the same reorder-only semantics.
type ModelReranker struct {
	model model.BaseChatModel
	log   *zap.Logger
}

// NewModelReranker creates a chat-model-backed reranker.
func NewModelReranker(chatModel model.BaseChatModel, log *zap.Logger) *ModelReranker {
	return &ModelReranker{model: chatModel, log: log}
}

type rerankScores struct {
	Scores []RankedIndex `json:"scores"`
}

// Rerank asks the model for a score per passage and returns all indices
// ordered by descending score. Unscored indices keep their original order at
// the tail with score zero so the contract of "reorder, never filter" holds
// even against a sloppy model.
func (r *ModelReranker) Rerank(ctx context.Context, query string, candidates []string) ([]RankedIndex, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var passages strings.Builder
	for i, cand := range candidates {
		fmt.Fprintf(&passages, "[%d] %s\n\n", i, cand)
	}

	resp, err := r.model.Generate(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(rerankPrompt, query, passages.String())),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrRerankProvider, err)
	}

	var parsed rerankScores
	if err := LenientUnmarshal(resp.Content, &parsed); err != nil {
		r.log.Error("rerank output did not parse after repair",
			zap.String("output", resp.Content),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", llm.ErrRerankProvider, err)
	}

	seen := make(map[int]bool, len(candidates))
	ranked := make([]RankedIndex, 0, len(candidates))
	for _, entry := range parsed.Scores {
		if entry.Index < 0 || entry.Index >= len(candidates) || seen[entry.Index] {
			continue
		}
		seen[entry.Index] = true
		ranked = append(ranked, entry)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	for i := range candidates {
		if !seen[i] {
			ranked = append(ranked, RankedIndex{Index: i})
		}
	}
	return ranked, nil
}
