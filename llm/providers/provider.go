package providers

import (
	"context"
	"fmt"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	geminiModel "github.com/cloudwego/eino-ext/components/model/gemini"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	einoEmbedding "github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"kanun/llm"
)

// Provider is the closed set of supported model providers. The provider is
// resolved exactly once at configuration-load time; request paths never
// branch on it again.
type Provider string

const (
	// ProviderOpenAI covers any OpenAI-compatible endpoint.
	ProviderOpenAI Provider = "openai"
	// ProviderGemini is Google Gemini.
	ProviderGemini Provider = "gemini"
)

// ParseProvider validates a provider name from configuration.
func ParseProvider(name string) (Provider, error) {
	switch Provider(name) {
	case ProviderOpenAI, ProviderGemini:
		return Provider(name), nil
	default:
		return "", fmt.Errorf("%w: unknown provider %q", llm.ErrConfiguration, name)
	}
}

// ChatModelConfig defines the configuration for creating a chat model.
type ChatModelConfig struct {
	Provider Provider
	APIKey   string
	BaseURL  string
	Model    string
}

// NewChatModel creates a chat model for the configured provider.
func NewChatModel(ctx context.Context, cfg *ChatModelConfig) (model.ToolCallingChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required for provider %q", llm.ErrConfiguration, cfg.Provider)
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		return openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
		if err != nil {
			return nil, fmt.Errorf("creating genai client: %w", err)
		}
		return geminiModel.NewChatModel(ctx, &geminiModel.Config{
			Client: client,
			Model:  cfg.Model,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", llm.ErrConfiguration, cfg.Provider)
	}
}

// EmbeddingConfig defines the configuration for creating an embedding model.
type EmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewEmbeddingModel creates an OpenAI-compatible embedding model.
func NewEmbeddingModel(ctx context.Context, cfg *EmbeddingConfig) (einoEmbedding.Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: embedding API key is required", llm.ErrConfiguration)
	}
	return openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
}
