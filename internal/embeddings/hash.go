package embeddings

import (
	"context"
	"crypto/sha256"
	"fmt"

	pkgembeddings "github.com/formbricks/insights/pkg/embeddings"
)

// HashClient implements Client with deterministic vectors derived from the text hash.
// It needs no network access and is used for local runs and tests.
type HashClient struct {
	dimensions int
}

// NewHashClient creates a hash embedder producing vectors of the given dimensions.
func NewHashClient(dimensions int) *HashClient {
	return &HashClient{dimensions: dimensions}
}

// GetEmbedding generates a deterministic embedding based on the text hash.
func (c *HashClient) GetEmbedding(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	return c.embed(text), nil
}

// GetEmbeddings generates embeddings for multiple texts.
// Returns an error if any text is empty.
func (c *HashClient) GetEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}

	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("text at index %d cannot be empty", i)
		}
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = c.embed(text)
	}

	return out, nil
}

// embed maps hash bytes cyclically onto [-1, 1] and normalizes the result.
func (c *HashClient) embed(text string) []float32 {
	hash := sha256.Sum256([]byte(text))
	vec := make([]float32, c.dimensions)

	for i := range vec {
		vec[i] = (float32(hash[i%len(hash)]) / 127.5) - 1.0
	}

	return pkgembeddings.Normalized(vec)
}

var _ Client = (*HashClient)(nil)
