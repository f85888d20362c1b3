package pinecone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/rs/zerolog/log"

	"brand-rag/internal/config"
	"brand-rag/internal/models"
)

const sourceTag = "brand_rag"

var ErrMissingAPIKey = errors.New("pinecone api key is required")

// indexConnection is the part of *pinecone.IndexConnection the client uses.
type indexConnection interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

// Client reads and writes one Pinecone index namespace.
type Client struct {
	conn      indexConnection
	host      string
	namespace string
}

// New connects to the configured index. When no host is set it is looked up
// through the control plane.
func New(ctx context.Context, cfg *config.PineconeConfig, index *config.IndexConfig, httpClient *http.Client) (*Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey:     strings.TrimSpace(cfg.APIKey),
		Host:       strings.TrimRight(cfg.ControllerURL, "/"),
		RestClient: httpClient,
		SourceTag:  sourceTag,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		desc, err := pc.DescribeIndex(ctx, index.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to describe index %s: %w", index.Name, err)
		}
		if desc.Host == "" {
			return nil, fmt.Errorf("index %s has no host", index.Name)
		}
		host = desc.Host
	}
	host = strings.TrimRight(strings.TrimPrefix(host, "https://"), "/")

	conn, err := pc.Index(pinecone.NewIndexConnParams{Host: host, Namespace: index.Namespace})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index %s: %w", index.Name, err)
	}

	log.Debug().Str("host", host).Str("namespace", index.Namespace).Msg("Pinecone client ready")
	return &Client{conn: conn, host: host, namespace: index.Namespace}, nil
}

// Upsert writes records in a single request. Existing ids are overwritten.
func (c *Client) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	vectors := make([]*pinecone.Vector, len(records))
	for i, r := range records {
		md, err := toMetadata(r.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", r.ID, err)
		}
		values := r.Values
		vectors[i] = &pinecone.Vector{Id: r.ID, Values: &values, Metadata: md}
	}

	n, err := c.conn.UpsertVectors(ctx, vectors)
	if err != nil {
		return fmt.Errorf("failed to upsert %d vectors: %w", len(records), err)
	}
	if int(n) != len(records) {
		log.Warn().Int("sent", len(records)).Uint32("upserted", n).Msg("Pinecone upsert count differs")
	}
	return nil
}

// Query returns up to topK matches ordered by descending score.
func (c *Client) Query(ctx context.Context, values []float32, topK int, filter models.Filter) ([]models.QueryResult, error) {
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be at least 1, got %d", topK)
	}
	f, err := toFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}

	resp, err := c.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          values,
		TopK:            uint32(topK),
		MetadataFilter:  f,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	results := make([]models.QueryResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		results = append(results, models.QueryResult{
			ID:       m.Vector.Id,
			Score:    m.Score,
			Metadata: fromMetadata(m.Vector.Metadata),
		})
	}
	return results, nil
}

func (c *Client) DescribeStats(ctx context.Context) (models.IndexStats, error) {
	resp, err := c.conn.DescribeIndexStats(ctx)
	if err != nil {
		return models.IndexStats{}, fmt.Errorf("failed to describe index stats: %w", err)
	}
	stats := models.IndexStats{
		TotalVectorCount: int(resp.TotalVectorCount),
		Namespaces:       make(map[string]int, len(resp.Namespaces)),
	}
	if resp.Dimension != nil {
		stats.Dimension = int(*resp.Dimension)
	}
	for name, ns := range resp.Namespaces {
		if ns != nil {
			stats.Namespaces[name] = int(ns.VectorCount)
		}
	}
	return stats, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
