package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"brand-rag/internal/config"
	"brand-rag/internal/models"
)

// queries are only rendered, never executed
func offlineDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN("postgres://postgres@localhost:5432/brand?sslmode=disable")))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertQuery(t *testing.T) {
	rows := toRows([]models.VectorRecord{{
		ID:       "bec617dacb37ea54cc548224cd27847c",
		Values:   []float32{0.5, 0.25},
		Metadata: models.Metadata{Source: "a.pdf", DocType: "brand_guidelines", ChunkIndex: 0, Section: "LOGO", PageNum: 1, Text: "logo"},
	}})

	query := upsertQuery(offlineDB(t), &rows).String()
	assert.Contains(t, query, `INSERT INTO "brand_vectors"`)
	assert.Contains(t, query, "ON CONFLICT (id) DO UPDATE")
	assert.Contains(t, query, "embedding = EXCLUDED.embedding")
	assert.Contains(t, query, "'[0.5,0.25]'")
	assert.NotContains(t, query, `"score"`)
}

func TestSearchQuery(t *testing.T) {
	var rows []VectorRow
	q, err := searchQuery(offlineDB(t), &rows, []float32{1, 0}, 3, models.Filter{"doc_type": "product_info"})
	require.NoError(t, err)

	query := q.String()
	assert.Contains(t, query, `1 - (v.embedding <=> '[1,0]') AS score`)
	assert.Contains(t, query, `"v"."doc_type" = 'product_info'`)
	assert.Contains(t, query, `ORDER BY v.embedding <=> '[1,0]'`)
	assert.Contains(t, query, "LIMIT 3")
}

func TestSearchQueryRejectsUnknownFilter(t *testing.T) {
	var rows []VectorRow
	_, err := searchQuery(offlineDB(t), &rows, []float32{1}, 3, models.Filter{"text": "x"})
	assert.ErrorContains(t, err, "unsupported filter key")
}

func TestRowMetadataRoundTrip(t *testing.T) {
	rec := models.VectorRecord{
		ID:       "playbook-hooks-6",
		Values:   []float32{1, 2, 3},
		Metadata: models.Metadata{Source: "playbook.md", DocType: "playbook", ChunkIndex: 6, Section: "hooks", Title: "Hooks", PageNum: 1, Text: "t"},
	}
	rows := toRows([]models.VectorRecord{rec})
	require.Len(t, rows, 1)
	assert.Equal(t, rec.Values, rows[0].Embedding.Slice())
	assert.Equal(t, rec.Metadata, rows[0].metadata())
}

func TestConnectDB(t *testing.T) {
	sqldb, err := ConnectDB(&config.DatabaseConfig{DSN: "postgres://postgres@localhost:5432/brand?sslmode=disable"})
	require.NoError(t, err)
	assert.NoError(t, sqldb.Close())

	sqldb, err = ConnectDB(&config.DatabaseConfig{Driver: "pq", DSN: "postgres://postgres@localhost:5432/brand?sslmode=disable"})
	require.NoError(t, err)
	assert.NoError(t, sqldb.Close())

	_, err = ConnectDB(&config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
}
