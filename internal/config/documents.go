package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is one entry of the ingestion list.
type Document struct {
	Filename string `yaml:"filename"`
	DocType  string `yaml:"doc_type"`
}

type manifestFile struct {
	Documents []Document `yaml:"documents"`
}

// DefaultDocuments is the fixed list ingested when no manifest is configured.
var DefaultDocuments = []Document{
	{Filename: "Datacolor_Spyder Pro Upgrade_Creative Brief_102625_v2-Final.pdf", DocType: "creative_brief"},
	{Filename: "Datacolor SpyderPro Fact Sheet-Final-EN-USD.pdf", DocType: "product_info"},
	{Filename: "Datacolor_Guidelines_EN_2019.pdf", DocType: "brand_guidelines"},
	{Filename: "CAI Brand Guidelines.pdf", DocType: "brand_guidelines"},
	{Filename: "playbook.md", DocType: "playbook"},
}

// LoadDocuments returns the manifest's documents, or DefaultDocuments when path is empty.
func LoadDocuments(path string) ([]Document, error) {
	if path == "" {
		docs := make([]Document, len(DefaultDocuments))
		copy(docs, DefaultDocuments)
		return docs, nil
	}

	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m manifestFile
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	for i, d := range m.Documents {
		if strings.TrimSpace(d.Filename) == "" {
			return nil, fmt.Errorf("manifest %s: document %d has no filename", path, i)
		}
		if strings.TrimSpace(d.DocType) == "" {
			return nil, fmt.Errorf("manifest %s: %s has no doc_type", path, d.Filename)
		}
	}
	return m.Documents, nil
}

// Resolve joins a document filename onto the docs directory.
func (d Document) Resolve(docsDir string) string {
	if filepath.IsAbs(d.Filename) {
		return d.Filename
	}
	return filepath.Join(expandHome(docsDir), d.Filename)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
