package retriever

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"kanun/llm"
)

// Router dispatches a reformulated query to the branch that should answer
// it: vector search for domain questions, plain conversation for chitchat.
type Router interface {
	Route(ctx context.Context, query llm.ReformulatedQuery) (llm.AnswerRecord, error)
}

// History exposes the chat history of the current session.
type History interface {
	Add(ctx context.Context, msg *schema.Message) error
	List(ctx context.Context) ([]*schema.Message, error)
}

// Pipeline is the request-time facade: reformulate, route, answer. Every
// failure past configuration degrades to a polite response; nothing in the
// round-trip crashes a user request.
type Pipeline struct {
	reformulator *Reformulator
	router       Router
	history      History
	log          *zap.Logger
}

// NewPipeline wires the query pipeline.
func NewPipeline(reformulator *Reformulator, router Router, history History, log *zap.Logger) *Pipeline {
	return &Pipeline{reformulator: reformulator, router: router, history: history, log: log}
}

// Invoke runs one full request cycle for a user question.
func (p *Pipeline) Invoke(ctx context.Context, question string) llm.AnswerRecord {
	history, err := p.history.List(ctx)
	if err != nil {
		p.log.Warn("loading chat history failed, continuing without", zap.Error(err))
	}

	record := p.answer(ctx, question, history)

	if err := p.history.Add(ctx, schema.UserMessage(question)); err != nil {
		p.log.Warn("storing user message failed", zap.Error(err))
	}
	if err := p.history.Add(ctx, schema.AssistantMessage(record.Answer, nil)); err != nil {
		p.log.Warn("storing assistant message failed", zap.Error(err))
	}
	return record
}

func (p *Pipeline) answer(ctx context.Context, question string, history []*schema.Message) llm.AnswerRecord {
	query, err := p.reformulator.Reformulate(ctx, question, history)
	if err != nil {
		if errors.Is(err, llm.ErrMalformedReformulation) {
			// Reproducible format defect: asking again with the same input
			// would fail the same way, so ask the user instead.
			p.log.Error("reformulation failed", zap.String("question", question), zap.Error(err))
			return llm.AnswerRecord{Answer: rephraseAnswer}
		}
		p.log.Error("reformulation call failed", zap.String("question", question), zap.Error(err))
		return llm.AnswerRecord{Answer: retryAnswer}
	}

	record, err := p.router.Route(ctx, query)
	if err != nil {
		p.log.Error("routing failed",
			zap.String("question", question),
			zap.String("reformulated", query.ReformulatedQuestion),
			zap.Error(err))
		return llm.AnswerRecord{Answer: retryAnswer}
	}
	return record
}
