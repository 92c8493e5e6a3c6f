// Package googleai wraps the Google Gen AI SDK (Gemini API) for embeddings and JSON generation.
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/formbricks/insights/internal/llm"
	"google.golang.org/genai"
)

var (
	// ErrEmptyInput is returned when an embedding input text is empty.
	ErrEmptyInput = errors.New("googleai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("googleai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("googleai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("googleai: embedding dimension mismatch")
)

const (
	defaultDimension = 1536
	defaultModel     = "gemini-embedding-001"
	defaultChatModel = "gemini-2.5-flash"
	jsonMIMEType     = "application/json"
)

// Client calls the Gemini embeddings and generation APIs via the Google Gen AI SDK.
type Client struct {
	client     *genai.Client
	model      string
	chatModel  string
	dimensions int
	httpClient *http.Client
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension (must match DB column).
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithModel sets the embedding model name (e.g. gemini-embedding-001). Empty uses default.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithChatModel sets the generation model. Empty uses default.
func WithChatModel(model string) ClientOption {
	return func(c *Client) {
		c.chatModel = model
	}
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	client := &Client{
		model:      defaultModel,
		chatModel:  defaultChatModel,
		dimensions: defaultDimension,
	}
	for _, opt := range opts {
		opt(client)
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: client.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	client.client = genaiClient

	return client, nil
}

// CreateEmbedding returns the embedding vector for the given text using the configured model.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	out, err := c.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}

	return out[0], nil
}

// CreateEmbeddings embeds texts in one request, returning vectors in input order.
func (c *Client) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 || c.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	contents := make([]*genai.Content, len(inputs))
	for i, in := range inputs {
		in = strings.TrimSpace(in)
		if in == "" {
			return nil, fmt.Errorf("%w (index %d)", ErrEmptyInput, i)
		}
		contents[i] = genai.NewContentFromText(in, genai.RoleUser)
	}

	model := c.model
	if model == "" {
		model = defaultModel
	}

	//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32
	dimInt32 := int32(c.dimensions)

	resp, err := c.client.Models.EmbedContent(ctx, model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dimInt32,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	if len(resp.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("%w: got %d of %d", ErrNoEmbeddingInResponse, len(resp.Embeddings), len(inputs))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if len(emb.Values) != c.dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb.Values), c.dimensions)
		}

		out[i] = append([]float32(nil), emb.Values...)
	}

	return out, nil
}

// Complete generates text for the prompt. A prompt with a Schema requests a JSON response.
func (c *Client) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	model := c.chatModel
	if model == "" {
		model = defaultChatModel
	}

	temp := float32(p.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
	}

	if p.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}

	if p.MaxTokens > 0 && p.MaxTokens <= math.MaxInt32 {
		cfg.MaxOutputTokens = int32(p.MaxTokens)
	}

	if p.Schema != nil {
		cfg.ResponseMIMEType = jsonMIMEType
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(p.User), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generation: %w", err)
	}

	return resp.Text(), nil
}

var _ llm.Generator = (*Client)(nil)
