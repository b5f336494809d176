package retriever

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"kanun/llm"
)

func TestReformulateParsesRepairedOutput(t *testing.T) {
	model := &fakeChatModel{replies: []string{
		"```json\n{\n\"user_question\": \"q\",\n\"reformulated_question\": \"सुधारिएको प्रश्न\",\n\"categories\": [\"doc-num-2\"],\n}\n```",
	}}
	r := NewReformulator(model, map[string]string{"doc-num-2": "criminal law"}, zap.NewNop())

	query, err := r.Reformulate(context.Background(), "q", nil)
	if err != nil {
		t.Fatal(err)
	}
	if query.ReformulatedQuestion != "सुधारिएको प्रश्न" {
		t.Errorf("reformulated = %q", query.ReformulatedQuestion)
	}
	if len(query.Categories) != 1 || query.Categories[0] != "doc-num-2" {
		t.Errorf("categories = %v", query.Categories)
	}

	// The catalog reaches the system prompt unescaped.
	system := model.calls[0][0]
	if !strings.Contains(system.Content, "criminal law") {
		t.Error("catalog missing from the system prompt")
	}
}

func TestReformulateDefaultsUserQuestion(t *testing.T) {
	model := &fakeChatModel{replies: []string{
		`{"reformulated_question":"r"}`,
	}}
	r := NewReformulator(model, nil, zap.NewNop())

	query, err := r.Reformulate(context.Background(), "original question", nil)
	if err != nil {
		t.Fatal(err)
	}
	if query.UserQuestion != "original question" {
		t.Errorf("user question = %q, want the input question", query.UserQuestion)
	}
	if query.Categories == nil {
		t.Error("categories must be an empty slice, not nil")
	}
}

func TestReformulateMalformedOutput(t *testing.T) {
	model := &fakeChatModel{replies: []string{"I'd rather chat than emit JSON."}}
	r := NewReformulator(model, nil, zap.NewNop())

	_, err := r.Reformulate(context.Background(), "q", nil)
	if !errors.Is(err, llm.ErrMalformedReformulation) {
		t.Errorf("error = %v, want ErrMalformedReformulation", err)
	}
}

func TestReformulateMissingReformulatedQuestion(t *testing.T) {
	model := &fakeChatModel{replies: []string{`{"user_question":"q","categories":[]}`}}
	r := NewReformulator(model, nil, zap.NewNop())

	_, err := r.Reformulate(context.Background(), "q", nil)
	if !errors.Is(err, llm.ErrMalformedReformulation) {
		t.Errorf("error = %v, want ErrMalformedReformulation", err)
	}
}

func TestReformulatePassesHistory(t *testing.T) {
	model := &fakeChatModel{replies: []string{
		`{"user_question":"q","reformulated_question":"r","categories":[]}`,
	}}
	r := NewReformulator(model, nil, zap.NewNop())

	history := []*schema.Message{
		schema.UserMessage("earlier question"),
		schema.AssistantMessage("earlier answer", nil),
	}
	_, err := r.Reformulate(context.Background(), "q", history)
	if err != nil {
		t.Fatal(err)
	}
	// System prompt first, then the history, then the user question.
	msgs := model.calls[0]
	if len(msgs) != 4 {
		t.Fatalf("model got %d messages, want 4", len(msgs))
	}
	if msgs[1].Content != "earlier question" {
		t.Errorf("history not passed through: %q", msgs[1].Content)
	}
	if msgs[len(msgs)-1].Content != "q" {
		t.Errorf("last message = %q, want the user question", msgs[len(msgs)-1].Content)
	}
}
