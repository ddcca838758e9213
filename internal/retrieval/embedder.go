package retrieval

import (
	"context"
	"errors"
	"fmt"

	"contract-assistant/internal/config"
	"contract-assistant/internal/utils"

	"github.com/cloudwego/eino/components/embedding"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder implements embedding.Embedder on the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

var _ embedding.Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(cfg config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedding api key missing; set embedding.api_key or OPENAI_API_KEY")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = utils.NewHTTPClient(cfg.Timeout)
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}, nil
}

func (e *OpenAIEmbedder) Model() string {
	return e.model
}

func (e *OpenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	model := e.model
	options := embedding.GetCommonOptions(&embedding.Options{Model: &model}, opts...)
	if options.Model != nil {
		model = *options.Model
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("create embeddings: index %d out of range", item.Index)
		}
		vec := make([]float64, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float64(v)
		}
		vectors[item.Index] = vec
	}
	return vectors, nil
}
