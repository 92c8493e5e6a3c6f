// Package embeddings defines the text-to-vector collaborator used by the pipeline and its
// provider-backed, deterministic and caching implementations.
package embeddings

import (
	"context"
	"fmt"

	"github.com/formbricks/insights/internal/huberrors"
)

// Client defines the interface for generating text embeddings.
type Client interface {
	// GetEmbedding generates an embedding vector for the given text.
	GetEmbedding(ctx context.Context, text string) ([]float32, error)

	// GetEmbeddings generates embedding vectors for multiple texts in a batch.
	// Results are in input order.
	GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider is implemented by the SDK clients in internal/openai and internal/googleai.
type Provider interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

// FromProvider adapts an SDK client to Client.
func FromProvider(p Provider) Client {
	return providerClient{p: p}
}

type providerClient struct {
	p Provider
}

func (c providerClient) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	return c.p.CreateEmbedding(ctx, text)
}

func (c providerClient) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return c.p.CreateEmbeddings(ctx, texts)
}

// Batch splits texts into chunks of size and embeds them sequentially. onBatch is called
// with the offset and vectors of each chunk that succeeded; failed chunks are reported to
// onError and skipped so one bad batch does not lose the rest. Batch returns the number of
// texts embedded, or ctx's error if it was cancelled.
func Batch(
	ctx context.Context,
	c Client,
	texts []string,
	size int,
	onBatch func(offset int, vectors [][]float32) error,
	onError func(offset int, err error),
) (int, error) {
	if size <= 0 {
		return 0, huberrors.NewValidationError("size", "batch size must be positive")
	}

	done := 0
	for start := 0; start < len(texts); start += size {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		end := min(start+size, len(texts))

		vectors, err := c.GetEmbeddings(ctx, texts[start:end])
		if err == nil && len(vectors) != end-start {
			err = fmt.Errorf("embedding batch returned %d vectors for %d texts", len(vectors), end-start)
		}

		if err == nil {
			err = onBatch(start, vectors)
		}

		if err != nil {
			if ctx.Err() != nil {
				return done, ctx.Err()
			}

			if onError != nil {
				onError(start, err)
			}

			continue
		}

		done += end - start
	}

	return done, nil
}
