package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"kanun/llm"
)

type fakeChatModel struct {
	reply string
	err   error
	calls int
}

func (m *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported")
}

func newTestRouter(t *testing.T, verdict string, verdictErr error) (*Router, *SearchRequest, *ConversationRequest) {
	t.Helper()

	var gotSearch SearchRequest
	var gotConv ConversationRequest

	search := func(ctx context.Context, req *SearchRequest) (*llm.AnswerRecord, error) {
		gotSearch = *req
		return &llm.AnswerRecord{Answer: "from search", Source: "Page 1 from Act"}, nil
	}
	conv := func(ctx context.Context, req *ConversationRequest) (*llm.AnswerRecord, error) {
		gotConv = *req
		return &llm.AnswerRecord{Answer: "from conversation"}, nil
	}

	r, err := NewRouter(&fakeChatModel{reply: verdict, err: verdictErr}, search, conv, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return r, &gotSearch, &gotConv
}

func TestRouteVectorSearchPassthrough(t *testing.T) {
	r, gotSearch, _ := newTestRouter(t, "vector_search", nil)

	query := llm.ReformulatedQuery{
		UserQuestion:         "what is the theft law",
		ReformulatedQuestion: "चोरी सम्बन्धी कानून के हो",
		Categories:           []string{"doc-num-1", "doc-num-4"},
	}
	record, err := r.Route(context.Background(), query)
	if err != nil {
		t.Fatal(err)
	}
	if record.Answer != "from search" {
		t.Errorf("answer = %q", record.Answer)
	}

	// The structured query reaches the branch verbatim.
	if gotSearch.UserQuestion != query.UserQuestion {
		t.Errorf("user question = %q", gotSearch.UserQuestion)
	}
	if gotSearch.ReformulatedQuestion != query.ReformulatedQuestion {
		t.Errorf("reformulated question = %q", gotSearch.ReformulatedQuestion)
	}
	if len(gotSearch.Categories) != 2 || gotSearch.Categories[1] != "doc-num-4" {
		t.Errorf("categories = %v", gotSearch.Categories)
	}
}

func TestRouteConversation(t *testing.T) {
	r, gotSearch, gotConv := newTestRouter(t, "conversation", nil)

	record, err := r.Route(context.Background(), llm.ReformulatedQuery{UserQuestion: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if record.Answer != "from conversation" {
		t.Errorf("answer = %q", record.Answer)
	}
	if gotConv.UserQuestion != "hello" {
		t.Errorf("conversation got %q", gotConv.UserQuestion)
	}
	if gotSearch.UserQuestion != "" {
		t.Error("search branch must not run for chitchat")
	}
}

func TestRouteClassifierErrorFallsBackToSearch(t *testing.T) {
	r, gotSearch, _ := newTestRouter(t, "", errors.New("model down"))

	record, err := r.Route(context.Background(), llm.ReformulatedQuery{UserQuestion: "q", ReformulatedQuestion: "r"})
	if err != nil {
		t.Fatal(err)
	}
	if record.Answer != "from search" {
		t.Errorf("answer = %q, want the search branch", record.Answer)
	}
	if gotSearch.UserQuestion != "q" {
		t.Error("search branch did not run on classifier failure")
	}
}

func TestRouteUnrecognizedVerdictFallsBackToSearch(t *testing.T) {
	r, gotSearch, _ := newTestRouter(t, "maybe both?", nil)

	_, err := r.Route(context.Background(), llm.ReformulatedQuery{UserQuestion: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if gotSearch.UserQuestion != "q" {
		t.Error("unrecognized verdict must route to vector search")
	}
}

func TestRouteBranchErrorSurfaces(t *testing.T) {
	search := func(ctx context.Context, req *SearchRequest) (*llm.AnswerRecord, error) {
		return nil, errors.New("index unavailable")
	}
	conv := func(ctx context.Context, req *ConversationRequest) (*llm.AnswerRecord, error) {
		return &llm.AnswerRecord{}, nil
	}
	r, err := NewRouter(&fakeChatModel{reply: "vector_search"}, search, conv, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Route(context.Background(), llm.ReformulatedQuery{UserQuestion: "q"}); err == nil {
		t.Error("branch errors must surface to the caller")
	}
}
