package docs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Chunk is one piece of a documentation page.
type Chunk struct {
	URL         string    `json:"url" yaml:"url"`
	ChunkNumber int       `json:"chunk_number" yaml:"chunk_number"`
	Title       string    `json:"title" yaml:"title"`
	Summary     string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	Content     string    `json:"content" yaml:"content"`
	Embedding   []float64 `json:"embedding,omitempty" yaml:"embedding,omitempty"`
}

// Corpus is the on-disk documentation set.
type Corpus struct {
	Source string  `json:"source,omitempty" yaml:"source,omitempty"`
	Chunks []Chunk `json:"chunks" yaml:"chunks"`
}

// LoadCorpus reads a corpus from a .json, .yaml or .yml file.
func LoadCorpus(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	var c Corpus
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &c)
	default:
		return nil, fmt.Errorf("unsupported corpus format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("decode corpus %s: %w", path, err)
	}

	for i, ch := range c.Chunks {
		if ch.URL == "" {
			return nil, fmt.Errorf("corpus %s: chunk %d has no url", path, i)
		}
	}
	return &c, nil
}

// Save writes the corpus as indented JSON, embeddings included.
func (c *Corpus) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
