package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"brand-rag/internal/llmservice"
	"brand-rag/internal/models"
	"brand-rag/internal/vectorindex"
)

type Searcher struct {
	embedder embeddings.Embedder
	index    vectorindex.Index
}

func NewSearcher(embedder embeddings.Embedder, index vectorindex.Index) *Searcher {
	return &Searcher{embedder: embedder, index: index}
}

// Query embeds text and returns the topK nearest records, best first.
func (s *Searcher) Query(ctx context.Context, text string, topK int, filter models.Filter) ([]models.QueryResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("query text is required")
	}
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be at least 1, got %d", topK)
	}

	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.index.Query(ctx, vector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	log.Debug().Str("query", text).Int("top_k", topK).Int("results", len(results)).Msg("Searched index")
	return results, nil
}

// Answer asks the model to answer query from the retrieved texts only.
func Answer(ctx context.Context, llm llms.Model, query string, results []models.QueryResult) (*models.PromptResponse, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no documents retrieved for %q", query)
	}

	var docs strings.Builder
	var sources []string
	seen := map[string]bool{}
	for _, r := range results {
		fmt.Fprintf(&docs, "[%s | %s | page %d]\n%s%s", r.Metadata.Source, r.Metadata.Section, r.Metadata.PageNum, r.Metadata.Text, models.ContextSeparator)
		if !seen[r.Metadata.Source] {
			seen[r.Metadata.Source] = true
			sources = append(sources, r.Metadata.Source)
		}
	}

	prompt := fmt.Sprintf(models.AnswerPromptTemplate, strings.TrimSpace(docs.String()), query)
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	resp, err := llmservice.Generate(ctx, llm, nil, messages)
	if err != nil {
		return nil, err
	}

	return &models.PromptResponse{
		Query:   query,
		Source:  strings.Join(sources, ", "),
		Content: resp.Choices[0].Content,
	}, nil
}
