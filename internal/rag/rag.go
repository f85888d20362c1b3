package rag

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"brand-rag/internal/config"
	"brand-rag/internal/helper"
	"brand-rag/internal/models"
	"brand-rag/internal/parser"
	"brand-rag/internal/vectorindex"
)

// DocumentResult reports what happened to one manifest entry.
type DocumentResult struct {
	Filename string `json:"filename"`
	DocType  string `json:"doc_type"`
	Chunks   int    `json:"chunks"`
	Skipped  bool   `json:"skipped"`
}

// Summary is the outcome of an ingestion run.
type Summary struct {
	RunID     string
	Documents []DocumentResult
	Total     int
	Stats     *models.IndexStats
}

// Ingestor turns documents into embedded, metadata-tagged vectors.
type Ingestor struct {
	cfg      *config.Config
	embedder embeddings.Embedder
	index    vectorindex.Index
	out      io.Writer
}

// NewIngestor wires the pipeline. embedder and index may be nil for dry runs.
func NewIngestor(cfg *config.Config, embedder embeddings.Embedder, index vectorindex.Index) *Ingestor {
	return &Ingestor{cfg: cfg, embedder: embedder, index: index, out: os.Stdout}
}

// SetOutput redirects dry-run dumps.
func (i *Ingestor) SetOutput(w io.Writer) {
	i.out = w
}

// Run ingests docs in order. Missing files are skipped; any extraction,
// embedding or index error aborts the run.
func (i *Ingestor) Run(ctx context.Context, docs []config.Document, dryRun bool) (Summary, error) {
	if !dryRun && (i.embedder == nil || i.index == nil) {
		return Summary{}, fmt.Errorf("embedder and index are required unless dry run")
	}

	runID, err := helper.GenerateUUID()
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{RunID: runID}
	logger := log.With().Str("run_id", runID).Logger()
	logger.Info().Int("documents", len(docs)).Bool("dry_run", dryRun).Str("docs_dir", i.cfg.DocsDir).Msg("Starting ingestion")

	for _, doc := range docs {
		path := doc.Resolve(i.cfg.DocsDir)
		result := DocumentResult{Filename: doc.Filename, DocType: doc.DocType}

		if !helper.FileExists(path) {
			logger.Warn().Str("file", doc.Filename).Msg("File not found, skipping")
			result.Skipped = true
			summary.Documents = append(summary.Documents, result)
			continue
		}

		records, err := i.Prepare(doc, path)
		if err != nil {
			return summary, err
		}
		result.Chunks = len(records)
		logger.Info().Str("file", doc.Filename).Str("doc_type", doc.DocType).Int("chunks", len(records)).Msg("Chunked document")

		if dryRun {
			helper.PrettyFprint(i.out, records)
		} else if err := i.embedAndUpsert(ctx, doc.Filename, records); err != nil {
			return summary, err
		}

		summary.Total += result.Chunks
		summary.Documents = append(summary.Documents, result)
	}

	logger.Info().Int("total_chunks", summary.Total).Msg("Ingestion finished")
	if dryRun {
		return summary, nil
	}

	stats, err := i.index.DescribeStats(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to describe index: %w", err)
	}
	summary.Stats = &stats
	logger.Info().
		Int("dimension", stats.Dimension).
		Int("total_vectors", stats.TotalVectorCount).
		Interface("namespaces", stats.Namespaces).
		Msg("Index stats")
	return summary, nil
}

// Prepare extracts and chunks one document into records without vectors.
func (i *Ingestor) Prepare(doc config.Document, path string) ([]models.VectorRecord, error) {
	opts := parser.NewChunkOptions(i.cfg)
	if isPlaybook(doc, path) {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", doc.Filename, err)
		}
		return PlaybookRecords(filepath.Base(path), parser.SplitPlaybook(src, opts.MaxSize)), nil
	}

	pages, err := parser.ExtractPages(path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("file", doc.Filename).Int("pages", len(pages)).Msg("Extracted pages")
	return ChunkRecords(filepath.Base(path), doc.DocType, parser.ChunkPages(pages, opts)), nil
}

// ChunkRecords tags chunks with their source. Ids are stable per (source, index).
func ChunkRecords(source, docType string, chunks []models.Chunk) []models.VectorRecord {
	records := make([]models.VectorRecord, len(chunks))
	for n, c := range chunks {
		records[n] = models.VectorRecord{
			ID: helper.VectorID(source, c.Index),
			Metadata: models.Metadata{
				Source:     source,
				DocType:    docType,
				ChunkIndex: c.Index,
				Section:    models.Truncate(c.Section, models.SectionLimit),
				PageNum:    c.Page,
				Text:       c.Text,
			},
		}
	}
	return records
}

// PlaybookRecords tags playbook sections; every section is reported as page 1.
func PlaybookRecords(source string, sections []parser.PlaybookSection) []models.VectorRecord {
	records := make([]models.VectorRecord, len(sections))
	for n, s := range sections {
		records[n] = models.VectorRecord{
			ID: fmt.Sprintf("playbook-%s-%d", s.Slug, n),
			Metadata: models.Metadata{
				Source:     source,
				DocType:    models.DocTypePlaybook,
				ChunkIndex: n,
				Section:    models.Truncate(s.Slug, models.SectionLimit),
				Title:      s.Title,
				PageNum:    1,
				Text:       s.Text,
			},
		}
	}
	return records
}

// embedAndUpsert embeds each record's full text, then stores truncated
// metadata in batches of cfg.RAG.BatchSize.
func (i *Ingestor) embedAndUpsert(ctx context.Context, filename string, records []models.VectorRecord) error {
	batchSize := i.cfg.RAG.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	batch := make([]models.VectorRecord, 0, batchSize)
	for n, r := range records {
		values, err := i.embedder.EmbedQuery(ctx, r.Metadata.Text)
		if err != nil {
			return fmt.Errorf("failed to embed %s chunk %d: %w", filename, r.Metadata.ChunkIndex, err)
		}
		r.Values = values
		r.Metadata.Text = models.Truncate(r.Metadata.Text, models.TextLimit)
		batch = append(batch, r)

		if len(batch) >= batchSize {
			if err := i.index.Upsert(ctx, batch); err != nil {
				return fmt.Errorf("failed to upsert %s: %w", filename, err)
			}
			log.Info().Str("file", filename).Msgf("Uploaded batch (%d/%d chunks)", n+1, len(records))
			batch = make([]models.VectorRecord, 0, batchSize)
		}
	}

	if len(batch) > 0 {
		if err := i.index.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", filename, err)
		}
	}
	log.Info().Str("file", filename).Int("chunks", len(records)).Msg("Embedded and uploaded")
	return nil
}

func isPlaybook(doc config.Document, path string) bool {
	return doc.DocType == models.DocTypePlaybook || strings.EqualFold(filepath.Ext(path), ".md")
}
