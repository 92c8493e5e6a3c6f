package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/formbricks/insights/internal/config"
	"github.com/formbricks/insights/internal/embeddings"
	"github.com/formbricks/insights/internal/googleai"
	"github.com/formbricks/insights/internal/llm"
	"github.com/formbricks/insights/internal/openai"
	"github.com/formbricks/insights/pkg/httpclient"
)

var errUnsupportedProvider = errors.New("unsupported provider")

const (
	providerOpenAI           = "openai"
	providerGoogle           = "google"
	providerOpenAICompatible = "openai-compatible"
	providerHash             = "hash"
)

// newEmbedder builds the embedder for the embed-missing step. It returns (nil, nil) when
// EMBEDDING_PROVIDER is empty.
func newEmbedder(ctx context.Context, cfg config.EmbeddingConfig, cacheMetrics embeddings.CacheRecorder) (embeddings.Client, error) {
	if !cfg.Enabled() {
		slog.Info("embeddings disabled (EMBEDDING_PROVIDER not set), only embedded feedback is clustered")

		//nolint:nilnil // embedder disabled, caller checks for nil
		return nil, nil
	}

	hc := httpclient.New(httpclient.Options{})

	var client embeddings.Client

	switch cfg.Provider {
	case providerOpenAI:
		client = embeddings.FromProvider(openai.NewClient(cfg.APIKey,
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithDimensions(cfg.Dimensions),
			openai.WithHTTPClient(hc),
		))
	case providerGoogle:
		opts := []googleai.ClientOption{googleai.WithDimensions(cfg.Dimensions), googleai.WithHTTPClient(hc)}
		if cfg.Model != "" {
			opts = append(opts, googleai.WithModel(cfg.Model))
		}

		gc, err := googleai.NewClient(ctx, cfg.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("create google embedding client: %w", err)
		}

		client = embeddings.FromProvider(gc)
	case providerOpenAICompatible:
		client = embeddings.NewCompatibleClient(cfg.APIKey,
			embeddings.WithBaseURL(cfg.BaseURL),
			embeddings.WithModel(cfg.Model),
			embeddings.WithDimensions(cfg.Dimensions),
			embeddings.WithHTTPClient(hc),
		)
	case providerHash:
		// Local and offline use; no network, no rate limit.
		return embeddings.NewHashClient(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("%w: EMBEDDING_PROVIDER=%q", errUnsupportedProvider, cfg.Provider)
	}

	client = embeddings.NewRateLimitedClient(client, cfg.RateLimit, 1)

	if cfg.CacheSize > 0 {
		cached, err := embeddings.NewCachingClient(client, cfg.CacheSize, cfg.CacheTTL, embeddings.WithCacheMetrics(cacheMetrics))
		if err != nil {
			return nil, fmt.Errorf("create embedding cache: %w", err)
		}

		client = cached
	}

	slog.Info("embeddings enabled",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"dimensions", cfg.Dimensions,
		"cache_size", cfg.CacheSize,
	)

	return client, nil
}

// newGenerator builds the text generation collaborator. It returns (nil, nil) when LLM_PROVIDER
// is empty and every title and insight comes from the deterministic templates.
func newGenerator(ctx context.Context, cfg config.LLMConfig) (llm.Generator, error) {
	if !cfg.Enabled() {
		slog.Info("LLM disabled (LLM_PROVIDER not set), using deterministic titles and insights")

		//nolint:nilnil // generator disabled, caller checks for nil
		return nil, nil
	}

	hc := httpclient.New(httpclient.Options{Timeout: cfg.Timeout})

	var gen llm.Generator

	switch cfg.Provider {
	case providerOpenAI:
		gen = openai.NewClient(cfg.APIKey, openai.WithChatModel(cfg.Model), openai.WithHTTPClient(hc))
	case providerGoogle:
		gc, err := googleai.NewClient(ctx, cfg.APIKey, googleai.WithChatModel(cfg.Model), googleai.WithHTTPClient(hc))
		if err != nil {
			return nil, fmt.Errorf("create google generation client: %w", err)
		}

		gen = gc
	default:
		return nil, fmt.Errorf("%w: LLM_PROVIDER=%q", errUnsupportedProvider, cfg.Provider)
	}

	slog.Info("LLM enabled", "provider", cfg.Provider, "model", cfg.Model, "rate_limit", cfg.RateLimit)

	return llm.NewRateLimited(gen, cfg.RateLimit, 1), nil
}
