package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingClient records the batches it was asked to embed.
type countingClient struct {
	mu      sync.Mutex
	batches [][]string
	failOn  string
	inner   Client
}

func (c *countingClient) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	out, err := c.GetEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return out[0], nil
}

func (c *countingClient) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.batches = append(c.batches, append([]string(nil), texts...))
	c.mu.Unlock()

	for _, t := range texts {
		if t == c.failOn {
			return nil, errors.New("provider rejected batch")
		}
	}

	return c.inner.GetEmbeddings(ctx, texts)
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}

	return math.Sqrt(s)
}

func TestHashClient_GetEmbeddings(t *testing.T) {
	c := NewHashClient(16)

	got, err := c.GetEmbeddings(context.Background(), []string{"export is slow", "dark mode"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	again, err := c.GetEmbedding(context.Background(), "export is slow")
	require.NoError(t, err)

	assert.Equal(t, got[0], again)
	assert.NotEqual(t, got[0], got[1])
	assert.Len(t, got[0], 16)
	assert.InDelta(t, 1.0, norm(got[0]), 1e-5)
}

func TestHashClient_rejectsEmptyText(t *testing.T) {
	c := NewHashClient(8)

	_, err := c.GetEmbedding(context.Background(), "")
	require.Error(t, err)

	_, err = c.GetEmbeddings(context.Background(), []string{"ok", ""})
	require.Error(t, err)

	_, err = c.GetEmbeddings(context.Background(), nil)
	require.Error(t, err)
}

func TestBatch_skipsFailedChunks(t *testing.T) {
	client := &countingClient{inner: NewHashClient(4), failOn: "c"}
	texts := []string{"a", "b", "c", "d", "e"}

	var (
		offsets []int
		failed  []int
	)

	n, err := Batch(context.Background(), client, texts, 2,
		func(offset int, vectors [][]float32) error {
			offsets = append(offsets, offset)
			assert.Len(t, vectors, min(2, len(texts)-offset))

			return nil
		},
		func(offset int, _ error) { failed = append(failed, offset) },
	)
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, []int{0, 4}, offsets)
	assert.Equal(t, []int{2}, failed)
	assert.Len(t, client.batches, 3)
}

func TestBatch_invalidSize(t *testing.T) {
	_, err := Batch(context.Background(), NewHashClient(4), []string{"a"}, 0, nil, nil)
	require.Error(t, err)
}

func TestBatch_stopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := Batch(ctx, NewHashClient(4), []string{"a", "b"}, 1,
		func(int, [][]float32) error { return nil }, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestCachingClient_GetEmbeddings_onlyLoadsMisses(t *testing.T) {
	inner := &countingClient{inner: NewHashClient(4)}
	c, err := NewCachingClient(inner, 16, time.Hour)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := c.GetEmbeddings(ctx, []string{"a", "b"})
	require.NoError(t, err)

	second, err := c.GetEmbeddings(ctx, []string{"b", "c", "a"})
	require.NoError(t, err)

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, inner.batches)
	assert.Equal(t, 3, c.Len())

	_, err = c.GetEmbeddings(ctx, []string{"a", "c"})
	require.NoError(t, err)
	assert.Len(t, inner.batches, 2)

	single, err := c.GetEmbedding(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, first[1], single)
	assert.Len(t, inner.batches, 2)
}

func TestCachingClient_doesNotCacheFailures(t *testing.T) {
	inner := &countingClient{inner: NewHashClient(4), failOn: "bad"}
	c, err := NewCachingClient(inner, 16, time.Hour)
	require.NoError(t, err)

	_, err = c.GetEmbeddings(context.Background(), []string{"ok", "bad"})
	require.Error(t, err)
	assert.Zero(t, c.Len())
}

type recordingCacheMetrics struct {
	hits, misses int
	calls        int
}

func (r *recordingCacheMetrics) RecordCacheLookups(_ context.Context, hits, misses int) {
	r.hits += hits
	r.misses += misses
	r.calls++
}

func TestCachingClient_recordsHitsAndMisses(t *testing.T) {
	rec := &recordingCacheMetrics{}
	c, err := NewCachingClient(NewHashClient(4), 16, time.Hour, WithCacheMetrics(rec))
	require.NoError(t, err)

	ctx := context.Background()

	_, err = c.GetEmbeddings(ctx, []string{"a", "b"})
	require.NoError(t, err)

	_, err = c.GetEmbedding(ctx, "a")
	require.NoError(t, err)

	_, err = c.GetEmbedding(ctx, "z")
	require.NoError(t, err)

	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 3, rec.misses)
	// One recording per call, batch lookups included.
	assert.Equal(t, 3, rec.calls)
}

type fakeProvider struct{}

func (fakeProvider) CreateEmbedding(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

func (fakeProvider) CreateEmbeddings(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{float32(i)}
	}

	return out, nil
}

func TestFromProvider(t *testing.T) {
	c := FromProvider(fakeProvider{})

	one, err := c.GetEmbedding(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, one)

	many, err := c.GetEmbeddings(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0}, {1}}, many)
}

func TestCompatibleClient_GetEmbeddings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)
		assert.Equal(t, "bge-small", req.Model)
		assert.Equal(t, 2, req.Dimensions)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "bge-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
			},
		})
	}))
	defer srv.Close()

	c := NewCompatibleClient("", WithBaseURL(srv.URL+"/v1"), WithModel("bge-small"), WithDimensions(2))

	got, err := c.GetEmbeddings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, got)
}

func TestRateLimitedClient_forwards(t *testing.T) {
	inner := &countingClient{inner: NewHashClient(4)}
	c := NewRateLimitedClient(inner, 0, 0)

	_, err := c.GetEmbeddings(context.Background(), []string{"a"})
	require.NoError(t, err)

	_, err = c.GetEmbedding(context.Background(), "b")
	require.NoError(t, err)

	assert.Len(t, inner.batches, 2)
}

func TestRateLimitedClient_respectsContext(t *testing.T) {
	c := NewRateLimitedClient(NewHashClient(4), 0.001, 1)

	_, err := c.GetEmbedding(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = c.GetEmbedding(ctx, "second")
	require.Error(t, err)
}
