package models

import (
	"strconv"
	"strings"
)

const (
	SectionLimit = 200
	TextLimit    = 1000
)

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if n < 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// StringMap flattens metadata for stores that only keep string values.
func (m Metadata) StringMap() map[string]string {
	out := map[string]string{
		"source":      m.Source,
		"doc_type":    m.DocType,
		"chunk_index": strconv.Itoa(m.ChunkIndex),
		"section":     m.Section,
		"page_num":    strconv.Itoa(m.PageNum),
		"text":        m.Text,
	}
	if m.Title != "" {
		out["title"] = m.Title
	}
	return out
}

// MetadataFromStrings is the inverse of StringMap. Unparseable numbers become 0.
func MetadataFromStrings(in map[string]string) Metadata {
	chunkIndex, _ := strconv.Atoi(strings.TrimSpace(in["chunk_index"]))
	pageNum, _ := strconv.Atoi(strings.TrimSpace(in["page_num"]))
	return Metadata{
		Source:     in["source"],
		DocType:    in["doc_type"],
		ChunkIndex: chunkIndex,
		Section:    in["section"],
		Title:      in["title"],
		PageNum:    pageNum,
		Text:       in["text"],
	}
}
