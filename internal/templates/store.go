package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"contract-assistant/internal/model"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyStore      = errors.New("template store is empty")
	ErrInvalidTemplate = errors.New("invalid template")
	ErrUnsupportedFile = errors.New("unsupported template file")
)

// Store is the read-only contract corpus. It is loaded once at startup.
type Store struct {
	templates []model.Template
	byID      map[string]int
}

// Load reads templates from a .json or .yaml file holding a list of
// {descrizione, testo, link} entries. Entries without an id get template-N.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates %s: %w", path, err)
	}

	var list []model.Template
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &list)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &list)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates %s: %w", path, err)
	}

	return NewStore(list)
}

func NewStore(list []model.Template) (*Store, error) {
	if len(list) == 0 {
		return nil, ErrEmptyStore
	}

	s := &Store{
		templates: make([]model.Template, 0, len(list)),
		byID:      make(map[string]int, len(list)),
	}
	for i, t := range list {
		if strings.TrimSpace(t.Body) == "" {
			return nil, fmt.Errorf("%w: entry %d has no text", ErrInvalidTemplate, i)
		}
		if t.ID == "" {
			t.ID = fmt.Sprintf("template-%d", i+1)
		}
		if _, dup := s.byID[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidTemplate, t.ID)
		}
		s.byID[t.ID] = len(s.templates)
		s.templates = append(s.templates, t)
	}
	return s, nil
}

func (s *Store) Get(id string) (model.Template, bool) {
	i, ok := s.byID[id]
	if !ok {
		return model.Template{}, false
	}
	return s.templates[i], true
}

// All returns the templates in file order.
func (s *Store) All() []model.Template {
	return append([]model.Template(nil), s.templates...)
}

func (s *Store) Len() int {
	return len(s.templates)
}
