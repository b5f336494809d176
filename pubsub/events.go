package pubsub

import "context"

const (
	// QuestionAcceptedEvent fires when a user question enters the pipeline.
	QuestionAcceptedEvent EventType = "question_accepted"
	// AnswerReadyEvent fires when a final answer record is available.
	AnswerReadyEvent EventType = "answer_ready"
)

// Subscriber hands out event channels that close when the context ends.
type Subscriber[T any] interface {
	Subscribe(context.Context) <-chan Event[T]
}

type (
	// EventType identifies a pipeline lifecycle stage.
	EventType string

	// Event carries a typed payload through the broker.
	Event[T any] struct {
		Type    EventType
		Payload T
	}

	// Publisher fans an event out to every active subscriber.
	Publisher[T any] interface {
		Publish(EventType, T)
	}
)
