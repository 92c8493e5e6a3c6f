package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/formbricks/insights/pkg/cache"
)

// CacheRecorder counts cache lookups. observability.EmbeddingMetrics satisfies it.
type CacheRecorder interface {
	RecordCacheLookups(ctx context.Context, hits, misses int)
}

// CachingClient memoizes embeddings by text. Single lookups coalesce concurrent misses;
// batch lookups embed only the texts not already cached.
type CachingClient struct {
	next    Client
	cache   *cache.LoaderCache[string, []float32]
	metrics CacheRecorder
}

// CachingOption configures a CachingClient.
type CachingOption func(*CachingClient)

// WithCacheMetrics records hits and misses. A nil recorder is ignored.
func WithCacheMetrics(m CacheRecorder) CachingOption {
	return func(c *CachingClient) {
		c.metrics = m
	}
}

// NewCachingClient wraps next with an LRU of size entries that expire after ttl.
func NewCachingClient(next Client, size int, ttl time.Duration, opts ...CachingOption) (*CachingClient, error) {
	lc, err := cache.NewLoaderCache[string, []float32](size, ttl, textKey)
	if err != nil {
		return nil, err
	}

	c := &CachingClient{next: next, cache: lc}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GetEmbedding returns the cached vector or loads it.
func (c *CachingClient) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	v, hit, err := c.cache.GetWithStats(ctx, text, c.next.GetEmbedding)
	if err != nil {
		return nil, err
	}

	if hit {
		c.record(ctx, 1, 0)
	} else {
		c.record(ctx, 0, 1)
	}

	return v, nil
}

// GetEmbeddings serves cached texts and embeds the rest in one call to the wrapped client.
func (c *CachingClient) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var (
		missing []string
		slots   []int
	)

	for i, t := range texts {
		if v, ok := c.cache.Peek(t); ok {
			out[i] = v

			continue
		}

		missing = append(missing, t)
		slots = append(slots, i)
	}

	c.record(ctx, len(texts)-len(missing), len(missing))

	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.next.GetEmbeddings(ctx, missing)
	if err != nil {
		return nil, err
	}

	for j, v := range loaded {
		out[slots[j]] = v
		c.cache.Add(missing[j], v)
	}

	return out, nil
}

func (c *CachingClient) record(ctx context.Context, hits, misses int) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookups(ctx, hits, misses)
	}
}

// Len reports the number of cached vectors.
func (c *CachingClient) Len() int {
	return c.cache.Len()
}

func textKey(text string) string {
	sum := sha256.Sum256([]byte(text))

	return hex.EncodeToString(sum[:])
}

var _ Client = (*CachingClient)(nil)
