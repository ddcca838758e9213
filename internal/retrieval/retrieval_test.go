package retrieval

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"contract-assistant/internal/model"
	"contract-assistant/internal/templates"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder maps text onto three axes: edizione, traduzione, illustrazione.
type keywordEmbedder struct {
	err   error
	calls int
}

func (e *keywordEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		out[i] = []float64{
			float64(strings.Count(lower, "edizione")),
			float64(strings.Count(lower, "traduzione")),
			float64(strings.Count(lower, "illustrazione")),
		}
	}
	return out, nil
}

func testStore(t *testing.T) *templates.Store {
	t.Helper()
	store, err := templates.NewStore([]model.Template{
		{ID: "edizione", Description: "Contratto di edizione", Body: "L'Autore [Nome Autore] cede i diritti di edizione.", Link: "https://example.com/edizione"},
		{ID: "traduzione", Description: "Contratto di traduzione", Body: "Il Traduttore [Nome] esegue la traduzione.", Link: "https://example.com/traduzione"},
		{ID: "illustrazione", Description: "Contratto di illustrazione", Body: "L'Illustratore realizza l'illustrazione.", Link: ""},
	})
	require.NoError(t, err)
	return store
}

func buildTestIndex(t *testing.T, store *templates.Store, emb embedding.Embedder) *Index {
	t.Helper()
	ix, err := BuildIndex(context.Background(), emb, "keyword", store.All())
	require.NoError(t, err)
	return ix
}

func TestBuildIndex(t *testing.T) {
	store := testStore(t)
	ix := buildTestIndex(t, store, &keywordEmbedder{})

	assert.Equal(t, "keyword", ix.Model)
	assert.Equal(t, 3, ix.Dimension)
	require.Len(t, ix.Entries, 3)
	assert.Equal(t, "edizione", ix.Entries[0].TemplateID)
	assert.NoError(t, ix.Validate(store))
}

func TestIndexSaveLoad(t *testing.T) {
	store := testStore(t)
	ix := buildTestIndex(t, store, &keywordEmbedder{})

	path := filepath.Join(t.TempDir(), "nested", "index.json")
	require.NoError(t, ix.Save(path))

	loaded, err := LoadIndex(path)
	require.NoError(t, err)
	assert.Equal(t, ix, loaded)
}

func TestIndexValidate(t *testing.T) {
	store := testStore(t)

	bad := &Index{Dimension: 3, Entries: []Entry{{TemplateID: "sconosciuto", Vector: []float64{1, 0, 0}}}}
	assert.ErrorIs(t, bad.Validate(store), ErrInvalidIndex)

	short := &Index{Dimension: 3, Entries: []Entry{{TemplateID: "edizione", Vector: []float64{1, 0}}}}
	assert.ErrorIs(t, short.Validate(store), ErrInvalidIndex)
}

func TestRetrieverRanksByCosine(t *testing.T) {
	store := testStore(t)
	emb := &keywordEmbedder{}
	r := NewIndexRetriever(buildTestIndex(t, store, emb), emb, store)

	docs, err := r.Retrieve(context.Background(), "vorrei una traduzione dal francese", retriever.WithTopK(2))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "traduzione", docs[0].MetaData[MetaTemplateID])
	assert.Equal(t, "Contratto di traduzione", docs[0].MetaData[MetaDescription])
	assert.InDelta(t, 1.0, docs[0].Score(), 1e-9)
	assert.GreaterOrEqual(t, docs[0].Score(), docs[1].Score())
}

func TestRetrieverEmptyIndex(t *testing.T) {
	emb := &keywordEmbedder{}
	r := NewIndexRetriever(&Index{}, emb, testStore(t))

	docs, err := r.Retrieve(context.Background(), "edizione")
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, emb.calls)
}

func TestMatcherFindBestTemplate(t *testing.T) {
	store := testStore(t)
	emb := &keywordEmbedder{}
	m := NewMatcher(NewIndexRetriever(buildTestIndex(t, store, emb), emb, store), store)

	tpl, err := m.FindBestTemplate(context.Background(), "contratto di edizione per un romanzo")
	require.NoError(t, err)
	assert.Equal(t, "edizione", tpl.ID)
	assert.Equal(t, "https://example.com/edizione", tpl.Link)
}

func TestMatcherErrors(t *testing.T) {
	store := testStore(t)

	t.Run("empty index", func(t *testing.T) {
		m := NewMatcher(NewIndexRetriever(&Index{}, &keywordEmbedder{}, store), store)
		_, err := m.FindBestTemplate(context.Background(), "edizione")
		assert.ErrorIs(t, err, ErrNoTemplate)
	})

	t.Run("unknown template id", func(t *testing.T) {
		ix := &Index{Dimension: 3, Entries: []Entry{{TemplateID: "rimosso", Vector: []float64{1, 0, 0}}}}
		m := NewMatcher(NewIndexRetriever(ix, &keywordEmbedder{}, store), store)
		_, err := m.FindBestTemplate(context.Background(), "edizione")
		assert.ErrorIs(t, err, ErrNoTemplate)
	})

	t.Run("embedding failure", func(t *testing.T) {
		emb := &keywordEmbedder{}
		ix := buildTestIndex(t, store, emb)
		emb.err = errors.New("rate limited")
		m := NewMatcher(NewIndexRetriever(ix, emb, store), store)
		_, err := m.FindBestTemplate(context.Background(), "edizione")
		assert.ErrorIs(t, err, ErrSearchUnavailable)
	})
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Zero(t, cosineSimilarity([]float64{1}, []float64{1, 1}))
}
