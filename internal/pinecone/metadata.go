package pinecone

import (
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"brand-rag/internal/models"
)

func toMetadataMap(m models.Metadata) map[string]any {
	out := map[string]any{
		"source":      m.Source,
		"doc_type":    m.DocType,
		"chunk_index": m.ChunkIndex,
		"section":     m.Section,
		"page_num":    m.PageNum,
		"text":        m.Text,
	}
	if m.Title != "" {
		out["title"] = m.Title
	}
	return out
}

func toMetadata(m models.Metadata) (*structpb.Struct, error) {
	return structpb.NewStruct(toMetadataMap(m))
}

func fromMetadata(s *structpb.Struct) models.Metadata {
	if s == nil {
		return models.Metadata{}
	}
	return fromMetadataMap(s.AsMap())
}

func fromMetadataMap(in map[string]any) models.Metadata {
	return models.Metadata{
		Source:     stringValue(in["source"]),
		DocType:    stringValue(in["doc_type"]),
		ChunkIndex: intValue(in["chunk_index"]),
		Section:    stringValue(in["section"]),
		Title:      stringValue(in["title"]),
		PageNum:    intValue(in["page_num"]),
		Text:       stringValue(in["text"]),
	}
}

// toFilter builds a Pinecone metadata filter; keys are combined with AND.
func toFilter(f models.Filter) (*structpb.Struct, error) {
	if len(f) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = map[string]any{"$eq": v}
	}
	return structpb.NewStruct(out)
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func intValue(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}
