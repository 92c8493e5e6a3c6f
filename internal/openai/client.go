// Package openai wraps the official OpenAI Go SDK for embeddings and JSON chat completions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/formbricks/insights/internal/llm"
	"github.com/invopop/jsonschema"
	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

var (
	// ErrEmptyInput is returned when an embedding input text is empty.
	ErrEmptyInput = errors.New("openai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("openai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("openai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("openai: embedding dimension mismatch")
	// ErrNoChoices is returned when a completion has no choices.
	ErrNoChoices = errors.New("openai: completion has no choices")
)

const (
	defaultDimension = 1536
	defaultChatModel = "gpt-4o-mini"
)

// Client calls the OpenAI embeddings and chat completions APIs via the official SDK.
type Client struct {
	sdk            openaisdk.Client
	dimensions     int
	embeddingModel string
	chatModel      string
	httpClient     *http.Client
	baseURL        string
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension (must match DB column).
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithEmbeddingModel sets the embedding model. Empty uses text-embedding-3-small.
func WithEmbeddingModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithChatModel sets the completion model. Empty uses gpt-4o-mini.
func WithChatModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.chatModel = model
		}
	}
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the SDK at an OpenAI-compatible endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// NewClient creates an OpenAI client using the official SDK.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		dimensions:     defaultDimension,
		embeddingModel: string(openaisdk.EmbeddingModelTextEmbedding3Small),
		chatModel:      defaultChatModel,
	}

	for _, opt := range opts {
		opt(client)
	}

	sdkOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if client.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(client.httpClient))
	}

	if client.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(client.baseURL))
	}

	client.sdk = openaisdk.NewClient(sdkOpts...)

	return client
}

// CreateEmbedding returns the embedding vector for the given text.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	out, err := c.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}

	return out[0], nil
}

// CreateEmbeddings embeds texts in a single request. Results are returned in input order and
// each has the configured dimensions.
func (c *Client) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyInput
	}

	texts := make([]string, len(inputs))
	for i, in := range inputs {
		texts[i] = strings.TrimSpace(in)
		if texts[i] == "" {
			return nil, fmt.Errorf("%w (index %d)", ErrEmptyInput, i)
		}
	}

	if c.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:      openaisdk.EmbeddingModel(c.embeddingModel),
		Dimensions: param.NewOpt(int64(c.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d of %d", ErrNoEmbeddingInResponse, len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) != c.dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), c.dimensions)
		}

		vec := make([]float32, len(d.Embedding))
		for j := range d.Embedding {
			vec[j] = float32(d.Embedding[j])
		}
		out[i] = vec
	}

	return out, nil
}

// Complete runs a chat completion. When the prompt carries a Schema the response is
// constrained to JSON matching it.
func (c *Client) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if p.System != "" {
		messages = append(messages, openaisdk.SystemMessage(p.System))
	}
	messages = append(messages, openaisdk.UserMessage(p.User))

	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(c.chatModel),
		Messages:    messages,
		Temperature: param.NewOpt(p.Temperature),
	}

	if p.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(p.MaxTokens))
	}

	if p.Schema != nil {
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openaisdk.ResponseFormatJSONSchemaParam{
				JSONSchema: openaisdk.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName(p.SchemaName),
					Schema: Schema(p.Schema),
					Strict: param.NewOpt(true),
				},
			},
		}
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return resp.Choices[0].Message.Content, nil
}

// Schema reflects v into an inline JSON schema that satisfies strict structured outputs:
// no references and no additional properties.
func Schema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	return reflector.Reflect(v)
}

func schemaName(name string) string {
	if name == "" {
		return "response"
	}

	return name
}

var _ llm.Generator = (*Client)(nil)
