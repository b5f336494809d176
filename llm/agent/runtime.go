package agent

import (
	"context"

	"go.uber.org/zap"

	"kanun/llm"
	"kanun/llm/retriever"
	"kanun/pubsub"
)

// ChatEvent is the payload published on the chat broker.
type ChatEvent struct {
	Question string
	Answer   llm.AnswerRecord
}

// Runtime drives the question pipeline and publishes lifecycle events so the
// terminal UI can react without calling into the pipeline directly.
type Runtime struct {
	pipeline *retriever.Pipeline
	broker   *pubsub.Broker[ChatEvent]
	log      *zap.Logger
}

func NewRuntime(pipeline *retriever.Pipeline, log *zap.Logger) *Runtime {
	return &Runtime{
		pipeline: pipeline,
		broker:   pubsub.NewBroker[ChatEvent](),
		log:      log,
	}
}

func (r *Runtime) Broker() *pubsub.Broker[ChatEvent] {
	return r.broker
}

// Run answers one question, publishing an event when the question is
// accepted and another when the answer record is ready.
func (r *Runtime) Run(ctx context.Context, question string) llm.AnswerRecord {
	r.broker.Publish(pubsub.QuestionAcceptedEvent, ChatEvent{Question: question})
	record := r.pipeline.Invoke(ctx, question)
	r.broker.Publish(pubsub.AnswerReadyEvent, ChatEvent{Question: question, Answer: record})
	return record
}

func (r *Runtime) Shutdown() {
	r.broker.Shutdown()
}
