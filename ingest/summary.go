package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// summaryPages is how many opening pages feed the document summary. Legal
// documents put title, gazette date and scope on their first pages.
const summaryPages = 2

// summaryPrompt condenses the opening pages of a legal document into a short
// English summary carried in vector metadata.
const summaryPrompt = `
You are an expert document summarizer. Provide a concise and comprehensive summary of the following text, capturing the key points and main ideas.
The text is in Nepali, so try to understand it properly, and generate the summary purely in English.
The text is a legal document related to Nepal laws.

The generated summary must be strictly less than 100 words.

TEXT: %s

SUMMARY:
`

// Summarizer generates short English summaries of Nepali legal documents.
type Summarizer struct {
	model model.BaseChatModel
}

// NewSummarizer creates a summarizer over the given model.
func NewSummarizer(chatModel model.BaseChatModel) *Summarizer {
	return &Summarizer{model: chatModel}
}

// Summarize produces a summary from a document's opening pages.
func (s *Summarizer) Summarize(ctx context.Context, pages []string) (string, error) {
	if len(pages) == 0 {
		return "", nil
	}
	n := summaryPages
	if len(pages) < n {
		n = len(pages)
	}
	text := strings.Join(pages[:n], "\n")

	resp, err := s.model.Generate(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(summaryPrompt, text)),
	})
	if err != nil {
		return "", fmt.Errorf("summarizing document: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
