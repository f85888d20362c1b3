package vectorindex

import (
	"context"
	"fmt"

	"brand-rag/internal/chromemdb"
	"brand-rag/internal/config"
	"brand-rag/internal/db"
	"brand-rag/internal/models"
	"brand-rag/internal/pinecone"
	"brand-rag/internal/qdrantdb"
)

// Index is a vector store keyed by record id.
type Index interface {
	// Upsert inserts or replaces records by id.
	Upsert(ctx context.Context, records []models.VectorRecord) error
	// Query returns at most topK results, best match first.
	Query(ctx context.Context, vector []float32, topK int, filter models.Filter) ([]models.QueryResult, error)
	DescribeStats(ctx context.Context) (models.IndexStats, error)
	Close() error
}

var (
	_ Index = (*pinecone.Client)(nil)
	_ Index = (*qdrantdb.Store)(nil)
	_ Index = (*chromemdb.VectorDBManager)(nil)
	_ Index = (*db.Store)(nil)
)

// Open connects to the backend named by cfg.Index.Backend.
func Open(ctx context.Context, cfg *config.Config) (Index, error) {
	var (
		idx Index
		err error
	)
	switch cfg.Index.Backend {
	case "", "pinecone":
		var c *pinecone.Client
		c, err = pinecone.New(ctx, &cfg.Pinecone, &cfg.Index, nil)
		idx = c
	case "qdrant":
		var s *qdrantdb.Store
		s, err = qdrantdb.New(ctx, &cfg.Qdrant, cfg.Index.Name, cfg.EmbedLLM.Dimensions)
		idx = s
	case "chromem":
		var m *chromemdb.VectorDBManager
		m, err = chromemdb.NewVectorDBManager(&cfg.Chromem, cfg.Index.Name, cfg.EmbedLLM.Dimensions)
		idx = m
	case "pgvector":
		var s *db.Store
		s, err = db.New(ctx, &cfg.Database)
		idx = s
	default:
		return nil, fmt.Errorf("unsupported index backend: %q", cfg.Index.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s index: %w", cfg.Index.Backend, err)
	}
	return idx, nil
}
