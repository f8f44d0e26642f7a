package embed

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Client is a Provider backed by any OpenAI-compatible embeddings
// endpoint. The underlying API client is created lazily, at most once per
// Client, since provider initialization is the expensive step.
type Client struct {
	baseURL string
	apiKey  string
	model   string

	once sync.Once
	api  *openai.Client
}

// NewClient creates an embedding client. baseURL may be empty to use the
// default OpenAI endpoint.
func NewClient(baseURL, apiKey, modelName string) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey, model: modelName}
}

func (c *Client) client() *openai.Client {
	c.once.Do(func() {
		config := openai.DefaultConfig(c.apiKey)
		if c.baseURL != "" {
			config.BaseURL = c.baseURL
		}
		c.api = openai.NewClientWithConfig(config)
	})
	return c.api
}

// Encode embeds texts in a single batched API call, returning one vector
// per input in input order.
func (c *Client) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client().CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings API call: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings API returned out-of-range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
