package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

const (
	MetaTemplateID  = "template_id"
	MetaDescription = "descrizione"
	MetaLink        = "link"
)

// IndexRetriever ranks indexed templates by cosine similarity to the query.
type IndexRetriever struct {
	index     *Index
	embedder  embedding.Embedder
	templates TemplateLookup
}

var _ retriever.Retriever = (*IndexRetriever)(nil)

func NewIndexRetriever(index *Index, embedder embedding.Embedder, templates TemplateLookup) *IndexRetriever {
	return &IndexRetriever{
		index:     index,
		embedder:  embedder,
		templates: templates,
	}
}

func (r *IndexRetriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := 1
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)

	if r.index == nil || len(r.index.Entries) == 0 {
		return []*schema.Document{}, nil
	}

	emb := r.embedder
	if options.Embedding != nil {
		emb = options.Embedding
	}
	vectors, err := emb.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	queryVec := vectors[0]
	if len(queryVec) != r.index.Dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(queryVec), r.index.Dimension)
	}

	type scored struct {
		entry Entry
		score float64
	}
	ranked := make([]scored, 0, len(r.index.Entries))
	for _, e := range r.index.Entries {
		score := cosineSimilarity(queryVec, e.Vector)
		if options.ScoreThreshold != nil && score < *options.ScoreThreshold {
			continue
		}
		ranked = append(ranked, scored{entry: e, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	k := len(ranked)
	if options.TopK != nil && *options.TopK > 0 && *options.TopK < k {
		k = *options.TopK
	}

	docs := make([]*schema.Document, 0, k)
	for _, s := range ranked[:k] {
		doc := &schema.Document{
			ID: s.entry.TemplateID,
			MetaData: map[string]any{
				MetaTemplateID: s.entry.TemplateID,
			},
		}
		if t, ok := r.templates.Get(s.entry.TemplateID); ok {
			doc.Content = t.Body
			doc.MetaData[MetaDescription] = t.Description
			doc.MetaData[MetaLink] = t.Link
		}
		docs = append(docs, doc.WithScore(s.score))
	}
	return docs, nil
}

// cosineSimilarity returns 0 when either vector has zero norm.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
