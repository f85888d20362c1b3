package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"brand-rag/internal/config"
)

// NewEmbedder builds the configured embedder with its decorators applied:
// dimension check, then cache, then rate limit.
func NewEmbedder(cfg *config.LLMConfig) (embeddings.Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedding config is required")
	}

	log.Debug().Interface("config", map[string]any{
		"provider":   cfg.Provider,
		"base_url":   cfg.BaseURL,
		"model":      cfg.Model,
		"dimensions": cfg.Dimensions,
	}).Msg("Loaded embedding config")

	var (
		base embeddings.Embedder
		err  error
	)
	switch cfg.Provider {
	case "", "openai":
		base, err = NewOpenAIEmbedder(cfg)
	case "ollama":
		base, err = NewOllamaEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	e := WithRateLimit(base, cfg.RateLimit)
	e, err = WithCache(e, cfg.Model, cfg.CacheSize, time.Duration(cfg.CacheTTL)*time.Second)
	if err != nil {
		return nil, err
	}
	return WithDimensionCheck(e, cfg.Dimensions), nil
}

// NewOpenAIEmbedder talks to an OpenAI compatible /embeddings endpoint.
func NewOpenAIEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	httpClient := &http.Client{Timeout: timeout(cfg)}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithHTTPClient(dimensionsDoer{next: httpClient, dimensions: cfg.Dimensions}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// NewOllamaEmbedder uses a local Ollama server.
func NewOllamaEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(&http.Client{Timeout: timeout(cfg)}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func timeout(cfg *config.LLMConfig) time.Duration {
	if cfg.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}

// dimensionsDoer adds the requested output size to /embeddings request bodies.
type dimensionsDoer struct {
	next       *http.Client
	dimensions int
}

func (d dimensionsDoer) Do(req *http.Request) (*http.Response, error) {
	if d.dimensions <= 0 || req.Body == nil || !strings.HasSuffix(req.URL.Path, "/embeddings") {
		return d.next.Do(req)
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding request: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		if _, ok := payload["dimensions"]; !ok {
			payload["dimensions"] = d.dimensions
			if b, err := json.Marshal(payload); err == nil {
				body = b
			}
		}
	}

	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return d.next.Do(req)
}
