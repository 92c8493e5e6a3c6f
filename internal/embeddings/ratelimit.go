package embeddings

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedClient spaces calls to the wrapped client with a token bucket.
type RateLimitedClient struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimitedClient allows rps calls per second with the given burst.
// A non-positive rps disables limiting.
func NewRateLimitedClient(next Client, rps float64, burst int) *RateLimitedClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	if burst < 1 {
		burst = 1
	}

	return &RateLimitedClient{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// GetEmbedding waits for a token and forwards the call.
func (c *RateLimitedClient) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return c.next.GetEmbedding(ctx, text)
}

// GetEmbeddings waits for a token and forwards the batch.
func (c *RateLimitedClient) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return c.next.GetEmbeddings(ctx, texts)
}

var _ Client = (*RateLimitedClient)(nil)
