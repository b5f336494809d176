package pubsub

import (
	"context"
	"testing"
	"time"
)

func TestBrokerFlow(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := broker.Subscribe(ctx)

	received := make(chan string, 1)
	go func() {
		for event := range events {
			if event.Type == AnswerReadyEvent {
				received <- event.Payload
			}
		}
	}()

	const answer = "The Constitution of Nepal guarantees this right."
	broker.Publish(AnswerReadyEvent, answer)

	select {
	case msg := <-received:
		if msg != answer {
			t.Errorf("got %q, want %q", msg, answer)
		}
	case <-time.After(1 * time.Second):
		t.Error("timed out waiting for event")
	}
}

func TestAutoUnsubscribe(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())

	_ = broker.Subscribe(ctx)
	if broker.SubscriberCount() != 1 {
		t.Fatalf("subscriber count = %d, want 1", broker.SubscriberCount())
	}

	cancel()
	time.Sleep(10 * time.Millisecond)

	if broker.SubscriberCount() != 0 {
		t.Errorf("subscriber not removed after context cancel, count = %d", broker.SubscriberCount())
	}
}

func TestNonBlockingPublish(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Shutdown()

	// Slow subscriber that never drains its channel.
	_ = broker.Subscribe(context.Background())

	for i := 0; i < bufferSize*2; i++ {
		broker.Publish(QuestionAcceptedEvent, i)
	}
}

func TestBrokerShutdown(t *testing.T) {
	broker := NewBroker[string]()

	events := broker.Subscribe(context.Background())
	broker.Shutdown()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("channel still open after shutdown")
		}
	case <-time.After(1 * time.Second):
		t.Error("channel not closed after shutdown")
	}
}

func TestSubscribeAfterShutdown(t *testing.T) {
	broker := NewBroker[string]()
	broker.Shutdown()

	events := broker.Subscribe(context.Background())
	if _, ok := <-events; ok {
		t.Error("expected a closed channel from a shut-down broker")
	}
}
