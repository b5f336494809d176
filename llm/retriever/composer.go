package retriever

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"kanun/llm"
)

// Composer turns formatted context plus the user question into a cited
// answer. Citation metadata is best effort; the answer text is the
// load-bearing output.
type Composer struct {
	model model.BaseChatModel
	log   *zap.Logger
}

// NewComposer creates an answer composer.
func NewComposer(chatModel model.BaseChatModel, log *zap.Logger) *Composer {
	return &Composer{model: chatModel, log: log}
}

// Compose invokes the model under the answer contract and parses its output
// into an AnswerRecord.
//
// An empty formatted context short-circuits to a deterministic polite
// refusal with no citation: by contract the model could not ground an answer
// anyway, and skipping the call removes any chance of a hallucinated one.
// Output that fails to parse even after repair degrades to the raw text with
// empty citation fields rather than failing the request.
func (c *Composer) Compose(ctx context.Context, question, formattedContext string, history []*schema.Message) (llm.AnswerRecord, error) {
	if formattedContext == "" {
		return llm.AnswerRecord{Answer: refusalAnswer}, nil
	}

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(composeSystemPrompt))
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(fmt.Sprintf(composeHumanPrompt, formattedContext, question)))

	resp, err := c.model.Generate(ctx, messages)
	if err != nil {
		return llm.AnswerRecord{}, fmt.Errorf("composing answer: %w", err)
	}

	var record llm.AnswerRecord
	if err := LenientUnmarshal(resp.Content, &record); err != nil {
		c.log.Warn("answer output did not parse after repair, degrading to raw text",
			zap.Error(fmt.Errorf("%w: %v", llm.ErrMalformedAnswer, err)))
		return llm.AnswerRecord{Answer: resp.Content}, nil
	}
	if record.Answer == "" {
		record.Answer = resp.Content
		record.Source = ""
		record.Link = ""
	}
	return record, nil
}

// Converse answers greetings and chitchat. The output is plain text and
// never carries a citation.
func (c *Composer) Converse(ctx context.Context, question string, history []*schema.Message) (llm.AnswerRecord, error) {
	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(fmt.Sprintf(conversationPrompt, question)))

	resp, err := c.model.Generate(ctx, messages)
	if err != nil {
		return llm.AnswerRecord{}, fmt.Errorf("conversation reply: %w", err)
	}
	return llm.AnswerRecord{Answer: resp.Content}, nil
}
