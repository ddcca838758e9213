// Package retrieval picks the stored contract template closest to a request.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"contract-assistant/internal/model"
	"contract-assistant/pkg/logger"

	"github.com/cloudwego/eino/components/retriever"
)

var (
	ErrNoTemplate        = errors.New("no matching template")
	ErrSearchUnavailable = errors.New("template search unavailable")
)

type Matcher struct {
	retriever retriever.Retriever
	templates TemplateLookup
}

func NewMatcher(r retriever.Retriever, templates TemplateLookup) *Matcher {
	return &Matcher{
		retriever: r,
		templates: templates,
	}
}

// FindBestTemplate returns the single most similar template.
func (m *Matcher) FindBestTemplate(ctx context.Context, query string) (model.Template, error) {
	docs, err := m.retriever.Retrieve(ctx, query, retriever.WithTopK(1))
	if err != nil {
		return model.Template{}, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	if len(docs) == 0 {
		return model.Template{}, ErrNoTemplate
	}

	doc := docs[0]
	id, _ := doc.MetaData[MetaTemplateID].(string)
	if id == "" {
		id = doc.ID
	}

	t, ok := m.templates.Get(id)
	if !ok {
		return model.Template{}, fmt.Errorf("%w: unknown template id %q", ErrNoTemplate, id)
	}

	logger.Debugf("Matched template %s (score %.4f)", id, doc.Score())
	return t, nil
}
