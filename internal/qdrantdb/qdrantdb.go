package qdrantdb

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"

	"brand-rag/internal/config"
	"brand-rag/internal/models"
)

// payload key holding the caller's record id when it is not a UUID
const recordIDKey = "record_id"

type Store struct {
	client     *qdrant.Client
	collection string
	dimensions uint64
}

// New connects to Qdrant and creates the collection when it does not exist.
func New(ctx context.Context, cfg *config.QdrantConfig, collection string, dimensions int) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &Store{client: client, collection: collection, dimensions: uint64(dimensions)}
	if err := s.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}

	log.Info().Str("collection", s.collection).Uint64("size", s.dimensions).Msg("Creating qdrant collection")
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		payload, err := toPayload(r)
		if err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(r.ID)),
			Vectors: qdrant.NewVectorsDense(r.Values),
			Payload: payload,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, values []float32, topK int, filter models.Filter) ([]models.QueryResult, error) {
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be at least 1, got %d", topK)
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(values),
		Limit:          qdrant.PtrOf(uint64(topK)),
		Filter:         toFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", s.collection, err)
	}

	results := make([]models.QueryResult, 0, len(points))
	for _, p := range points {
		id := p.GetId().GetUuid()
		if v, ok := p.GetPayload()[recordIDKey]; ok && v.GetStringValue() != "" {
			id = v.GetStringValue()
		}
		results = append(results, models.QueryResult{
			ID:       id,
			Score:    p.GetScore(),
			Metadata: fromPayload(p.GetPayload()),
		})
	}
	return results, nil
}

func (s *Store) DescribeStats(ctx context.Context) (models.IndexStats, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return models.IndexStats{}, fmt.Errorf("failed to get collection info: %w", err)
	}
	count := int(info.GetPointsCount())
	return models.IndexStats{
		Dimension:        int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()),
		TotalVectorCount: count,
		Namespaces:       map[string]int{s.collection: count},
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// PointID maps a record id onto the UUID space Qdrant accepts. 32 character
// hex digests are used as the UUID bytes; anything else gets a name based UUID.
func PointID(id string) string {
	if len(id) == 32 {
		if b, err := hex.DecodeString(strings.ToLower(id)); err == nil {
			if u, err := uuid.FromBytes(b); err == nil {
				return u.String()
			}
		}
	}
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

func toPayload(r models.VectorRecord) (map[string]*qdrant.Value, error) {
	m := r.Metadata
	in := map[string]any{
		recordIDKey:   r.ID,
		"source":      m.Source,
		"doc_type":    m.DocType,
		"chunk_index": m.ChunkIndex,
		"section":     m.Section,
		"page_num":    m.PageNum,
		"text":        m.Text,
	}
	if m.Title != "" {
		in["title"] = m.Title
	}
	return qdrant.TryValueMap(in)
}

func fromPayload(p map[string]*qdrant.Value) models.Metadata {
	return models.Metadata{
		Source:     p["source"].GetStringValue(),
		DocType:    p["doc_type"].GetStringValue(),
		ChunkIndex: int(p["chunk_index"].GetIntegerValue()),
		Section:    p["section"].GetStringValue(),
		Title:      p["title"].GetStringValue(),
		PageNum:    int(p["page_num"].GetIntegerValue()),
		Text:       p["text"].GetStringValue(),
	}
}

func toFilter(f models.Filter) *qdrant.Filter {
	if len(f) == 0 {
		return nil
	}
	conds := make([]*qdrant.Condition, 0, len(f))
	for k, v := range f {
		conds = append(conds, qdrant.NewMatchKeyword(k, v))
	}
	return &qdrant.Filter{Must: conds}
}
