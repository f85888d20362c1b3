package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"

	"brand-rag/internal/config"
)

func fakeOpenAI(t *testing.T, dims int, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*seen = body

		inputs, _ := body["input"].([]any)
		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		for i := range inputs {
			resp.Data = append(resp.Data, item{Embedding: make([]float32, dims), Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func testLLMConfig(url string) *config.LLMConfig {
	return &config.LLMConfig{
		Provider:   "openai",
		BaseURL:    url + "/v1",
		Key:        "sk-test",
		Model:      "text-embedding-3-small",
		Dimensions: 8,
		CacheSize:  16,
	}
}

func TestNewEmbedderSendsDimensions(t *testing.T) {
	var seen map[string]any
	srv := fakeOpenAI(t, 8, &seen)
	defer srv.Close()

	e, err := NewEmbedder(testLLMConfig(srv.URL))
	require.NoError(t, err)

	v, err := e.EmbedQuery(context.Background(), "BRAND VOICE\n\nwarm")
	require.NoError(t, err)
	assert.Len(t, v, 8)

	assert.Equal(t, "text-embedding-3-small", seen["model"])
	assert.EqualValues(t, 8, seen["dimensions"])
	assert.Equal(t, []any{"BRAND VOICE\n\nwarm"}, seen["input"])
}

func TestNewEmbedderDimensionMismatch(t *testing.T) {
	var seen map[string]any
	srv := fakeOpenAI(t, 4, &seen)
	defer srv.Close()

	e, err := NewEmbedder(testLLMConfig(srv.URL))
	require.NoError(t, err)

	_, err = e.EmbedQuery(context.Background(), "colour")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestNewEmbedderUnsupportedProvider(t *testing.T) {
	_, err := NewEmbedder(&config.LLMConfig{Provider: "bedrock"})
	assert.ErrorContains(t, err, "unsupported embedding provider")
}

type countingClient struct {
	calls int
	dims  int
	err   error
}

func (c *countingClient) embedder(t *testing.T) embeddings.Embedder {
	t.Helper()
	e, err := embeddings.NewEmbedder(embeddings.EmbedderClientFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		c.calls++
		if c.err != nil {
			return nil, c.err
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			v := make([]float32, c.dims)
			v[0] = float32(len(text))
			out[i] = v
		}
		return out, nil
	}))
	require.NoError(t, err)
	return e
}

func TestWithCache(t *testing.T) {
	client := &countingClient{dims: 3}
	e, err := WithCache(client.embedder(t), "m", 8, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := e.EmbedQuery(ctx, "spyder")
	require.NoError(t, err)
	second, err := e.EmbedQuery(ctx, "spyder")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.calls)

	docs, err := e.EmbedDocuments(ctx, []string{"spyder", "pro"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, first, docs[0])
	assert.EqualValues(t, 3, docs[1][0])
	assert.Equal(t, 2, client.calls)

	_, err = e.EmbedDocuments(ctx, []string{"pro", "spyder"})
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}

func TestWithCacheDisabled(t *testing.T) {
	client := &countingClient{dims: 3}
	base := client.embedder(t)
	e, err := WithCache(base, "m", 0, time.Minute)
	require.NoError(t, err)
	assert.Same(t, base, e)
}

func TestWithCacheDoesNotStoreErrors(t *testing.T) {
	client := &countingClient{dims: 3, err: errors.New("rate limited")}
	e, err := WithCache(client.embedder(t), "m", 8, time.Minute)
	require.NoError(t, err)

	_, err = e.EmbedQuery(context.Background(), "x")
	assert.Error(t, err)
	_, err = e.EmbedQuery(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, 2, client.calls)
}

func TestWithDimensionCheck(t *testing.T) {
	client := &countingClient{dims: 3}
	e := WithDimensionCheck(client.embedder(t), 3)
	_, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.NoError(t, err)

	e = WithDimensionCheck(client.embedder(t), 1536)
	_, err = e.EmbedDocuments(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestWithRateLimitHonoursContext(t *testing.T) {
	client := &countingClient{dims: 3}
	e := WithRateLimit(client.embedder(t), 0.001)

	ctx := context.Background()
	_, err := e.EmbedQuery(ctx, "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = e.EmbedQuery(ctx, "second")
	assert.Error(t, err)
	assert.Equal(t, 1, client.calls)
}

func TestWithRateLimitDisabled(t *testing.T) {
	client := &countingClient{dims: 3}
	base := client.embedder(t)
	assert.Same(t, base, WithRateLimit(base, 0))
}
