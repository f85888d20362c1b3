package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"brand-rag/internal/config"
	"brand-rag/internal/models"
)

const tableName = "brand_vectors"

// VectorRow is one stored chunk. Score is only filled by similarity queries.
type VectorRow struct {
	bun.BaseModel `bun:"table:brand_vectors,alias:v"`
	ID            string          `bun:"id,pk"`
	Source        string          `bun:"source,notnull"`
	DocType       string          `bun:"doc_type,notnull"`
	ChunkIndex    int             `bun:"chunk_index,notnull"`
	Section       string          `bun:"section"`
	Title         string          `bun:"title"`
	PageNum       int             `bun:"page_num"`
	Text          string          `bun:"text"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Score         float64         `bun:"score,scanonly"`
}

// filterable metadata keys and their columns
var filterColumns = map[string]string{
	"source":   "v.source",
	"doc_type": "v.doc_type",
	"section":  "v.section",
}

type Store struct {
	db *bun.DB
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a pool with the configured driver: "pgdriver" (default) or "pq".
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "", "pgdriver":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	case "pq":
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return sqldb, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// New connects and makes sure the vector extension and table exist.
func New(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: NewDB(sqldb, cfg.Debug)}
	if err := s.InitDB(ctx); err != nil {
		s.db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*VectorRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create %s: %w", tableName, err)
	}
	return nil
}

// Upsert inserts records, replacing rows whose id already exists.
func (s *Store) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := toRows(records)
	if _, err := upsertQuery(s.db, &rows).Exec(ctx); err != nil {
		return fmt.Errorf("failed to upsert %d rows: %w", len(rows), err)
	}
	return nil
}

func upsertQuery(db bun.IDB, rows *[]VectorRow) *bun.InsertQuery {
	return db.NewInsert().
		Model(rows).
		On("CONFLICT (id) DO UPDATE").
		Set("source = EXCLUDED.source").
		Set("doc_type = EXCLUDED.doc_type").
		Set("chunk_index = EXCLUDED.chunk_index").
		Set("section = EXCLUDED.section").
		Set("title = EXCLUDED.title").
		Set("page_num = EXCLUDED.page_num").
		Set("text = EXCLUDED.text").
		Set("embedding = EXCLUDED.embedding")
}

// Query orders rows by cosine distance; score is cosine similarity.
func (s *Store) Query(ctx context.Context, values []float32, topK int, filter models.Filter) ([]models.QueryResult, error) {
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be at least 1, got %d", topK)
	}
	var rows []VectorRow
	q, err := searchQuery(s.db, &rows, values, topK, filter)
	if err != nil {
		return nil, err
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	results := make([]models.QueryResult, len(rows))
	for i, r := range rows {
		results[i] = models.QueryResult{ID: r.ID, Score: float32(r.Score), Metadata: r.metadata()}
	}
	return results, nil
}

func searchQuery(db bun.IDB, rows *[]VectorRow, values []float32, topK int, filter models.Filter) (*bun.SelectQuery, error) {
	vec := pgvector.NewVector(values)
	q := db.NewSelect().
		Model(rows).
		ColumnExpr("v.*").
		ColumnExpr("1 - (v.embedding <=> ?) AS score", vec)
	for key, value := range filter {
		col, ok := filterColumns[key]
		if !ok {
			return nil, fmt.Errorf("unsupported filter key: %q", key)
		}
		q = q.Where("? = ?", bun.Ident(col), value)
	}
	return q.OrderExpr("v.embedding <=> ?", vec).Limit(topK), nil
}

func (s *Store) DescribeStats(ctx context.Context) (models.IndexStats, error) {
	count, err := s.db.NewSelect().Model((*VectorRow)(nil)).Count(ctx)
	if err != nil {
		return models.IndexStats{}, fmt.Errorf("failed to count rows: %w", err)
	}

	var dim int
	err = s.db.NewSelect().Model((*VectorRow)(nil)).ColumnExpr("vector_dims(v.embedding)").Limit(1).Scan(ctx, &dim)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.IndexStats{}, fmt.Errorf("failed to read vector dimension: %w", err)
	}

	return models.IndexStats{
		Dimension:        dim,
		TotalVectorCount: count,
		Namespaces:       map[string]int{tableName: count},
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toRows(records []models.VectorRecord) []VectorRow {
	rows := make([]VectorRow, len(records))
	for i, r := range records {
		m := r.Metadata
		rows[i] = VectorRow{
			ID:         r.ID,
			Source:     m.Source,
			DocType:    m.DocType,
			ChunkIndex: m.ChunkIndex,
			Section:    m.Section,
			Title:      m.Title,
			PageNum:    m.PageNum,
			Text:       m.Text,
			Embedding:  pgvector.NewVector(r.Values),
		}
	}
	return rows
}

func (r VectorRow) metadata() models.Metadata {
	return models.Metadata{
		Source:     r.Source,
		DocType:    r.DocType,
		ChunkIndex: r.ChunkIndex,
		Section:    r.Section,
		Title:      r.Title,
		PageNum:    r.PageNum,
		Text:       r.Text,
	}
}
