package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/sashabaranov/go-openai"
)

// CompatibleClient implements Client against any server speaking the OpenAI embeddings
// protocol, such as a self-hosted inference server.
type CompatibleClient struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// CompatibleOption configures a CompatibleClient.
type CompatibleOption func(*openai.ClientConfig, *CompatibleClient)

// WithBaseURL sets the server base URL, e.g. http://localhost:8080/v1.
func WithBaseURL(url string) CompatibleOption {
	return func(cfg *openai.ClientConfig, _ *CompatibleClient) {
		if url != "" {
			cfg.BaseURL = url
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) CompatibleOption {
	return func(cfg *openai.ClientConfig, _ *CompatibleClient) {
		if hc != nil {
			cfg.HTTPClient = hc
		}
	}
}

// WithModel sets the embedding model. Empty keeps text-embedding-3-small.
func WithModel(model string) CompatibleOption {
	return func(_ *openai.ClientConfig, c *CompatibleClient) {
		if model != "" {
			c.model = openai.EmbeddingModel(model)
		}
	}
}

// WithDimensions requests vectors of the given size. Zero leaves it to the server.
func WithDimensions(dim int) CompatibleOption {
	return func(_ *openai.ClientConfig, c *CompatibleClient) {
		c.dimensions = dim
	}
}

// NewCompatibleClient creates a client. The API key may be empty for servers without auth.
func NewCompatibleClient(apiKey string, opts ...CompatibleOption) *CompatibleClient {
	cfg := openai.DefaultConfig(apiKey)
	c := &CompatibleClient{model: openai.SmallEmbedding3}

	for _, opt := range opts {
		opt(&cfg, c)
	}

	c.client = openai.NewClientWithConfig(cfg)

	return c
}

// GetEmbedding generates an embedding vector for the given text.
func (c *CompatibleClient) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	out, err := c.GetEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return out[0], nil
}

// GetEmbeddings generates embedding vectors for multiple texts in a batch.
// Returns an error if any text in the input is empty.
func (c *CompatibleClient) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}

	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("text at index %d cannot be empty", i)
		}
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      c.model,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings returned: got %d, expected %d", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}

	return out, nil
}

var _ Client = (*CompatibleClient)(nil)
