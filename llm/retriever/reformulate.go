package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"kanun/llm"
)

// Reformulator rewrites a raw user question into a retrieval-optimized
// Nepali phrase plus candidate document categories, using a fixed strict-JSON
// model contract.
type Reformulator struct {
	model   model.BaseChatModel
	catalog map[string]string
	log     *zap.Logger
}

// NewReformulator creates a reformulator over the given category catalog
// (namespace name to description; may be empty).
func NewReformulator(chatModel model.BaseChatModel, catalog map[string]string, log *zap.Logger) *Reformulator {
	if catalog == nil {
		catalog = map[string]string{}
	}
	return &Reformulator{model: chatModel, catalog: catalog, log: log}
}

// Reformulate invokes the model and repairs/parses its output. A response
// that does not parse even after repair is a reproducible format defect, so
// it is surfaced as ErrMalformedReformulation and never retried here.
func (r *Reformulator) Reformulate(ctx context.Context, question string, history []*schema.Message) (llm.ReformulatedQuery, error) {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(fmt.Sprintf(reformulatePrompt, r.catalogJSON())))
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(question))

	resp, err := r.model.Generate(ctx, messages)
	if err != nil {
		return llm.ReformulatedQuery{}, fmt.Errorf("reformulating question: %w", err)
	}

	var query llm.ReformulatedQuery
	if err := LenientUnmarshal(resp.Content, &query); err != nil {
		r.log.Error("reformulation output did not parse after repair",
			zap.String("output", resp.Content),
			zap.Error(err))
		return llm.ReformulatedQuery{}, fmt.Errorf("%w: %v", llm.ErrMalformedReformulation, err)
	}
	if query.UserQuestion == "" {
		query.UserQuestion = question
	}
	if query.ReformulatedQuestion == "" {
		return llm.ReformulatedQuery{}, fmt.Errorf("%w: missing reformulated_question", llm.ErrMalformedReformulation)
	}
	if query.Categories == nil {
		query.Categories = []string{}
	}
	return query, nil
}

// catalogJSON renders the category catalog for the prompt, keeping
// Devanagari descriptions unescaped.
func (r *Reformulator) catalogJSON() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.catalog); err != nil {
		return "{}"
	}
	return buf.String()
}
