package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"kanun/llm"
)

const (
	// VectorSearchToolName answers legal questions from retrieved context.
	VectorSearchToolName = "vector_search"
	// ConversationToolName handles greetings and chitchat.
	ConversationToolName = "conversation"
)

// classifyPrompt asks the model which branch should answer. One word out;
// anything unrecognized falls back to vector search.
const classifyPrompt = `
You are a router for the Nepal Law AI assistant. Decide which tool should answer the user's question.

Tools:
- vector_search: useful for answering any legal questions related to Nepal laws, constitution, rules and regulations etc.
- conversation: useful for greetings and general conversation.

Respond with exactly one word: either "vector_search" or "conversation".

Examples:
Question: What is the punishment for theft in Nepal? -> vector_search
Question: hello, how are you? -> conversation
Question: के नेपालमा गाँजा बेच्न पाइन्छ? -> vector_search
Question: तिम्रो नाम के हो? -> conversation

Question: %s
`

// SearchRequest is the structured record handed to the vector search branch.
// The router marshals it from the reformulated query itself; the fields are
// never reconstructed from model text, so they pass through verbatim.
type SearchRequest struct {
	UserQuestion         string   `json:"user_question" jsonschema:"description=The original question from the user"`
	ReformulatedQuestion string   `json:"reformulated_question" jsonschema:"description=Retrieval-optimized rewrite of the question in Nepali"`
	Categories           []string `json:"categories" jsonschema:"description=Candidate document categories that might contain the answer"`
}

// ConversationRequest is the structured record handed to the conversation
// branch.
type ConversationRequest struct {
	UserQuestion string `json:"user_question" jsonschema:"description=The original question from the user"`
}

// SearchFunc answers a domain question from retrieved context.
type SearchFunc func(ctx context.Context, req *SearchRequest) (*llm.AnswerRecord, error)

// ConversationFunc answers greetings and chitchat.
type ConversationFunc func(ctx context.Context, req *ConversationRequest) (*llm.AnswerRecord, error)

// Router is a two-branch dispatcher: classify intent with the chat model,
// then invoke exactly one tool. Both tools are terminal; their output is
// returned without post-processing.
type Router struct {
	model        model.BaseChatModel
	vectorSearch tool.InvokableTool
	conversation tool.InvokableTool
	log          *zap.Logger
}

// NewRouter builds the two tools and the router around them.
func NewRouter(chatModel model.BaseChatModel, search SearchFunc, conv ConversationFunc, log *zap.Logger) (*Router, error) {
	searchTool, err := utils.InferTool(
		VectorSearchToolName,
		"Useful for answering any legal questions related to Nepal laws, constitution, rules and regulations etc.",
		utils.InvokeFunc[*SearchRequest, *llm.AnswerRecord](search),
	)
	if err != nil {
		return nil, fmt.Errorf("building vector search tool: %w", err)
	}
	convTool, err := utils.InferTool(
		ConversationToolName,
		"Useful for greetings, general conversation.",
		utils.InvokeFunc[*ConversationRequest, *llm.AnswerRecord](conv),
	)
	if err != nil {
		return nil, fmt.Errorf("building conversation tool: %w", err)
	}
	return &Router{model: chatModel, vectorSearch: searchTool, conversation: convTool, log: log}, nil
}

// Route classifies the question's intent and dispatches to one branch.
func (r *Router) Route(ctx context.Context, query llm.ReformulatedQuery) (llm.AnswerRecord, error) {
	name := r.classify(ctx, query.UserQuestion)

	var (
		args interface{}
		t    tool.InvokableTool
	)
	switch name {
	case ConversationToolName:
		args = ConversationRequest{UserQuestion: query.UserQuestion}
		t = r.conversation
	default:
		args = SearchRequest{
			UserQuestion:         query.UserQuestion,
			ReformulatedQuestion: query.ReformulatedQuestion,
			Categories:           query.Categories,
		}
		t = r.vectorSearch
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return llm.AnswerRecord{}, fmt.Errorf("marshalling %s arguments: %w", name, err)
	}
	out, err := t.InvokableRun(ctx, string(payload))
	if err != nil {
		return llm.AnswerRecord{}, fmt.Errorf("running %s: %w", name, err)
	}

	var record llm.AnswerRecord
	if err := json.Unmarshal([]byte(out), &record); err != nil {
		return llm.AnswerRecord{}, fmt.Errorf("decoding %s output: %w", name, err)
	}
	return record, nil
}

// classify picks the branch. A model failure or an unrecognized verdict
// routes to vector search: a wrongly retrieved chitchat answer is cheap, a
// dropped legal question is not.
func (r *Router) classify(ctx context.Context, question string) string {
	resp, err := r.model.Generate(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(classifyPrompt, question)),
	})
	if err != nil {
		r.log.Warn("intent classification failed, defaulting to vector search", zap.Error(err))
		return VectorSearchToolName
	}
	verdict := strings.ToLower(strings.TrimSpace(resp.Content))
	if strings.Contains(verdict, ConversationToolName) {
		return ConversationToolName
	}
	return VectorSearchToolName
}
