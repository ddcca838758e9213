package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"contract-assistant/internal/model"

	"github.com/cloudwego/eino/components/embedding"
)

var ErrInvalidIndex = errors.New("invalid vector index")

// Index is the persisted template vector index.
type Index struct {
	Model     string  `json:"model"`
	Dimension int     `json:"dimension"`
	Entries   []Entry `json:"entries"`
}

type Entry struct {
	TemplateID string    `json:"template_id"`
	Vector     []float64 `json:"vector"`
}

// TemplateLookup resolves template ids stored in the index.
type TemplateLookup interface {
	Get(id string) (model.Template, bool)
}

func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", path, err)
	}

	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
	}
	return &ix, nil
}

// Save writes the index through a temp file so readers never see a partial
// file.
func (ix *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// Validate checks that every entry has the index dimension and points at a
// known template.
func (ix *Index) Validate(templates TemplateLookup) error {
	for i, e := range ix.Entries {
		if len(e.Vector) != ix.Dimension {
			return fmt.Errorf("%w: entry %d has dimension %d, want %d", ErrInvalidIndex, i, len(e.Vector), ix.Dimension)
		}
		if _, ok := templates.Get(e.TemplateID); !ok {
			return fmt.Errorf("%w: entry %d references unknown template %q", ErrInvalidIndex, i, e.TemplateID)
		}
	}
	return nil
}

// BuildIndex embeds description and text of every template.
func BuildIndex(ctx context.Context, embedder embedding.Embedder, modelName string, list []model.Template) (*Index, error) {
	texts := make([]string, len(list))
	for i, t := range list {
		texts[i] = IndexText(t)
	}

	vectors, err := embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(list) {
		return nil, fmt.Errorf("%w: got %d vectors for %d templates", ErrInvalidIndex, len(vectors), len(list))
	}

	ix := &Index{Model: modelName, Entries: make([]Entry, 0, len(list))}
	for i, t := range list {
		if i == 0 {
			ix.Dimension = len(vectors[i])
		}
		ix.Entries = append(ix.Entries, Entry{TemplateID: t.ID, Vector: vectors[i]})
	}
	return ix, nil
}

// IndexText is the text embedded for a template.
func IndexText(t model.Template) string {
	if t.Description == "" {
		return t.Body
	}
	return t.Description + "\n\n" + t.Body
}
