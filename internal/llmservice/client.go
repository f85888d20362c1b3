package llmservice

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"brand-rag/internal/config"
)

// NewModel returns a chat model for the configured provider.
func NewModel(cfg *config.LLMConfig) (llms.Model, error) {
	if cfg == nil {
		return nil, fmt.Errorf("inference config is required")
	}
	httpClient := &http.Client{Timeout: timeout(cfg)}

	switch cfg.Provider {
	case "", "openai":
		llm, err := openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
			openai.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai client: %w", err)
		}
		return llm, nil
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
			ollama.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported inference provider: %q", cfg.Provider)
	}
}

// call llm
func GenerateContent(ctx context.Context, llmConfig *config.LLMConfig, tools []llms.Tool, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Generating content")
	llm, err := NewModel(llmConfig)
	if err != nil {
		return nil, err
	}
	return Generate(ctx, llm, tools, messages)
}

// Generate runs one completion against an existing model.
func Generate(ctx context.Context, llm llms.Model, tools []llms.Tool, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	var opts []llms.CallOption
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}
	resp, err := llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}
	return resp, nil
}

func timeout(cfg *config.LLMConfig) time.Duration {
	if cfg.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}
