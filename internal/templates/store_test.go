package templates

import (
	"os"
	"path/filepath"
	"testing"

	"contract-assistant/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "contratti.json", `[
		{"descrizione": "Contratto di edizione", "testo": "Autore: [Nome Autore]", "link": "https://example.com/a"},
		{"id": "traduzione", "descrizione": "Contratto di traduzione", "testo": "Traduttore: [Nome]", "link": ""}
	]`)

	store, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	first, ok := store.Get("template-1")
	require.True(t, ok)
	assert.Equal(t, "Contratto di edizione", first.Description)
	assert.Equal(t, "Autore: [Nome Autore]", first.Body)
	assert.Equal(t, "https://example.com/a", first.Link)

	_, ok = store.Get("traduzione")
	assert.True(t, ok)

	_, ok = store.Get("missing")
	assert.False(t, ok)
	_, ok = store.Get("template-0")
	assert.False(t, ok)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "contratti.yaml", `
- id: edizione
  descrizione: Contratto di edizione
  testo: "Royalty: [Percentuale]%"
  link: https://example.com/edizione
`)

	store, err := Load(path)
	require.NoError(t, err)

	tpl, ok := store.Get("edizione")
	require.True(t, ok)
	assert.Equal(t, "Royalty: [Percentuale]%", tpl.Body)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "contratti.txt", "[]"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = Load(writeFile(t, "contratti.json", "[]"))
	assert.ErrorIs(t, err, ErrEmptyStore)

	_, err = Load(writeFile(t, "contratti.json", "{not json"))
	assert.Error(t, err)
}

func TestNewStoreValidation(t *testing.T) {
	_, err := NewStore([]model.Template{{ID: "a", Body: "  "}})
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	_, err = NewStore([]model.Template{{ID: "a", Body: "x"}, {ID: "a", Body: "y"}})
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestAllReturnsCopy(t *testing.T) {
	store, err := NewStore([]model.Template{{ID: "a", Body: "x"}})
	require.NoError(t, err)

	all := store.All()
	all[0].Body = "changed"

	tpl, _ := store.Get("a")
	assert.Equal(t, "x", tpl.Body)
}
