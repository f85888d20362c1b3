package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"brand-rag/internal/config"
	"brand-rag/internal/helper"
	"brand-rag/internal/models"
)

// chromem keeps one goroutine per document; records are added one at a time
const addConcurrency = 1

var errNoEmbeddingFunc = errors.New("chromem collection only accepts precomputed embeddings")

// VectorDBManager wraps a chromem-go database holding a single collection.
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	inMemory      bool
	compress      bool
	encryptionKey string
	filePath      string
	dimension     int
}

// NewVectorDBManager opens (or creates) the collection. In-memory databases
// are loaded from, and saved back to, an encrypted export file when an
// encryption key is configured. dimension is reported by DescribeStats until
// an upsert shows the stored vector length.
func NewVectorDBManager(cfg *config.ChromemConfig, collectionName string, dimension int) (*VectorDBManager, error) {
	m := &VectorDBManager{
		dimension:     dimension,
		dbPath:        cfg.Path,
		inMemory:      cfg.InMemory,
		compress:      cfg.Compress,
		encryptionKey: cfg.EncryptionKey,
		filePath:      filepath.Join(cfg.Path, collectionName+".chromem"),
	}

	if cfg.InMemory {
		m.db = chromem.NewDB()
		if m.encryptionKey != "" && helper.FileExists(m.filePath) {
			if err := m.db.ImportFromFile(m.filePath, m.encryptionKey, collectionName); err != nil {
				return nil, fmt.Errorf("failed to import %s: %w", m.filePath, err)
			}
			log.Debug().Str("file", m.filePath).Msg("Imported chromem export")
		}
	} else {
		if err := helper.CreateFolder(cfg.Path); err != nil {
			return nil, err
		}
		db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
		m.db = db
	}

	if _, err := m.GetOrCreateCollection(collectionName); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// Upsert adds records; an existing id is overwritten.
func (m *VectorDBManager) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Metadata.Text,
			Metadata:  r.Metadata.StringMap(),
			Embedding: r.Values,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, addConcurrency); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	m.dimension = len(records[0].Values)
	return nil
}

// Query runs a similarity search. topK is capped at the collection size.
func (m *VectorDBManager) Query(ctx context.Context, values []float32, topK int, filter models.Filter) ([]models.QueryResult, error) {
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be at least 1, got %d", topK)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("query embedding is required")
	}
	count := m.collection.Count()
	if count == 0 {
		return nil, nil
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: values,
		NResults:       min(topK, count),
		Where:          filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.QueryResult, len(results))
	for i, r := range results {
		out[i] = models.QueryResult{
			ID:       r.ID,
			Score:    r.Similarity,
			Metadata: models.MetadataFromStrings(r.Metadata),
		}
	}
	return out, nil
}

func (m *VectorDBManager) DescribeStats(_ context.Context) (models.IndexStats, error) {
	count := m.collection.Count()
	return models.IndexStats{
		Dimension:        m.dimension,
		TotalVectorCount: count,
		Namespaces:       map[string]int{m.collection.Name: count},
	}, nil
}

// Export writes the collection to an encrypted file.
func (m *VectorDBManager) Export(_ context.Context) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}
	if err := helper.CreateFolder(m.dbPath); err != nil {
		return err
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", m.filePath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Close saves in-memory databases that have an encryption key.
func (m *VectorDBManager) Close() error {
	if m.inMemory && m.encryptionKey != "" {
		return m.Export(context.Background())
	}
	return nil
}
