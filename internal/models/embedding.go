package models

// Page is the extracted text of one document page (1-based).
type Page struct {
	Number int
	Text   string
}

// Chunk represents a section-tagged span of document text
type Chunk struct {
	Index   int    `json:"chunk_index"`
	Section string `json:"section"`
	Text    string `json:"text"`
	Page    int    `json:"page_num"`
}

// Metadata is stored next to every vector.
type Metadata struct {
	Source     string `json:"source"`
	DocType    string `json:"doc_type"`
	ChunkIndex int    `json:"chunk_index"`
	Section    string `json:"section"`
	Title      string `json:"title,omitempty"`
	PageNum    int    `json:"page_num"`
	Text       string `json:"text"`
}

type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

type QueryResult struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Filter is an equality filter on metadata keys (source, doc_type, section).
type Filter map[string]string

type IndexStats struct {
	Dimension        int
	TotalVectorCount int
	Namespaces       map[string]int
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
}
