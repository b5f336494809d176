package retriever

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestComposeEmptyContextRefuses(t *testing.T) {
	model := &fakeChatModel{replies: []string{"should never be asked"}}
	c := NewComposer(model, zap.NewNop())

	record, err := c.Compose(context.Background(), "q", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if record.Answer != refusalAnswer {
		t.Errorf("answer = %q, want the refusal reply", record.Answer)
	}
	if record.Source != "" || record.Link != "" {
		t.Errorf("refusal must not carry a citation: %+v", record)
	}
	if len(model.calls) != 0 {
		t.Error("the model must not be called for an empty context")
	}
}

func TestComposeParsesAnswer(t *testing.T) {
	model := &fakeChatModel{replies: []string{
		`{"answer":"चोरी गर्दा कैद हुन्छ।","source":"Page 12 from Criminal Code","link":"https://example.org/code.pdf"}`,
	}}
	c := NewComposer(model, zap.NewNop())

	record, err := c.Compose(context.Background(), "what happens for theft", "Content: something", nil)
	if err != nil {
		t.Fatal(err)
	}
	if record.Answer != "चोरी गर्दा कैद हुन्छ।" {
		t.Errorf("answer = %q", record.Answer)
	}
	if record.Source != "Page 12 from Criminal Code" {
		t.Errorf("source = %q", record.Source)
	}

	// The context and question both reach the model.
	last := model.calls[0][len(model.calls[0])-1]
	if !strings.Contains(last.Content, "Content: something") {
		t.Error("formatted context missing from the prompt")
	}
	if !strings.Contains(last.Content, "what happens for theft") {
		t.Error("question missing from the prompt")
	}
}

func TestComposeMalformedDegradesToRawText(t *testing.T) {
	model := &fakeChatModel{replies: []string{"Here is your answer in plain prose."}}
	c := NewComposer(model, zap.NewNop())

	record, err := c.Compose(context.Background(), "q", "Content: x", nil)
	if err != nil {
		t.Fatal(err)
	}
	if record.Answer != "Here is your answer in plain prose." {
		t.Errorf("answer = %q", record.Answer)
	}
	if record.Source != "" || record.Link != "" {
		t.Errorf("degraded record must not carry a citation: %+v", record)
	}
}

func TestComposeEmptyAnswerFieldDegrades(t *testing.T) {
	raw := `{"answer":"","source":"stale","link":"stale"}`
	model := &fakeChatModel{replies: []string{raw}}
	c := NewComposer(model, zap.NewNop())

	record, err := c.Compose(context.Background(), "q", "Content: x", nil)
	if err != nil {
		t.Fatal(err)
	}
	if record.Answer != raw {
		t.Errorf("answer = %q, want the raw model output", record.Answer)
	}
	if record.Source != "" || record.Link != "" {
		t.Errorf("citation fields must be cleared on degrade: %+v", record)
	}
}

func TestConverse(t *testing.T) {
	model := &fakeChatModel{replies: []string{"Namaste! I am the Nepal Law AI."}}
	c := NewComposer(model, zap.NewNop())

	record, err := c.Converse(context.Background(), "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if record.Answer != "Namaste! I am the Nepal Law AI." {
		t.Errorf("answer = %q", record.Answer)
	}
	if record.Source != "" || record.Link != "" {
		t.Errorf("chitchat must not carry a citation: %+v", record)
	}
}
