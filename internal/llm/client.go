package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/liftbuddy/config"
	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrEmptyEmbedding is returned when the provider answers without a vector.
	ErrEmptyEmbedding = errors.New("empty embedding")
	// ErrDimensionMismatch is returned when the vector length differs from the configured dimensions.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrNoChoices is returned when a completion carries no choices.
	ErrNoChoices = errors.New("completion returned no choices")
)

// Schema names a JSON schema that constrains structured generation.
type Schema struct {
	Name       string
	Definition json.RawMessage
}

// Options configures Client.
type Options struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Dimensions     int
	Temperature    float32
	MaxTokens      int
	Timeout        time.Duration
	MaxRetries     int
	Backoff        time.Duration
}

// OptionsFromConfig maps the llm config section onto Options.
func OptionsFromConfig(cfg config.LLMConfig) Options {
	return Options{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Dimensions:     cfg.EmbeddingDimensions,
		Temperature:    cfg.Temperature,
		MaxTokens:      cfg.MaxTokens,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
	}
}

// Client talks to an OpenAI compatible API for chat completions and embeddings.
type Client struct {
	api  *openai.Client
	opts Options
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 300 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	cc := openai.DefaultConfig(opts.APIKey)
	if strings.TrimSpace(opts.BaseURL) != "" {
		cc.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cc.HTTPClient = &http.Client{Timeout: opts.Timeout}
	return &Client{api: openai.NewClientWithConfig(cc), opts: opts}
}

// Generate returns the model's free-form answer to prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := c.chatRequest(prompt)
	var out string
	err := c.retry(ctx, "generate", func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrNoChoices
		}
		out = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// GenerateStructured asks the model for a JSON document conforming to schema and returns it raw.
// The caller is responsible for validating the document.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema Schema) (json.RawMessage, error) {
	if len(schema.Definition) == 0 {
		return nil, fmt.Errorf("schema definition required")
	}
	req := c.chatRequest(prompt)
	// A literal 0 is dropped by omitempty and the provider falls back to 1.
	req.Temperature = math.SmallestNonzeroFloat32
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   schema.Name,
			Schema: schema.Definition,
			Strict: false,
		},
	}
	var out string
	err := c.retry(ctx, "generate_structured", func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrNoChoices
		}
		out = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate structured: %w", err)
	}
	out, err = extractJSONObject(out)
	if err != nil {
		return nil, fmt.Errorf("generate structured: %w", err)
	}
	if !json.Valid([]byte(out)) {
		return nil, fmt.Errorf("generate structured: response is not valid JSON")
	}
	return json.RawMessage(out), nil
}

// Embed returns the vector for text. It never returns a zero-length vector without an error.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embed: text is empty")
	}
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.opts.EmbeddingModel),
	}
	if c.opts.Dimensions > 0 {
		req.Dimensions = c.opts.Dimensions
	}
	var vec []float32
	err := c.retry(ctx, "embed", func(ctx context.Context) error {
		resp, err := c.api.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return ErrEmptyEmbedding
		}
		vec = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embed: %w", ErrEmptyEmbedding)
	}
	if c.opts.Dimensions > 0 && len(vec) != c.opts.Dimensions {
		return nil, fmt.Errorf("embed: got %d values want %d: %w", len(vec), c.opts.Dimensions, ErrDimensionMismatch)
	}
	return vec, nil
}

func (c *Client) chatRequest(prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       c.opts.ChatModel,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
}
