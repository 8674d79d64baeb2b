// Package genai provides plan generation using the OpenAI chat completion API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/orbitplan/orbit/internal/models"
)

// Generation parameters fixed by the product: one model, one temperature,
// JSON-only responses.
const (
	// Model is the chat model used for every plan generation.
	Model = openai.ChatModelGPT4_1Mini
	// Temperature is the fixed sampling temperature.
	Temperature = 0.7
)

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding the environment variable.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// Client wraps the OpenAI chat completion service for generating plans.
type Client struct {
	client openai.Client
}

// NewClient initializes a new GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	slog.Debug("genai.NewClient: config loaded", "api_key_set", cfg.APIKey != "")
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set: %w", models.ErrMisconfigured)
	}
	return &Client{client: openai.NewClient(option.WithAPIKey(cfg.APIKey))}, nil
}

// GeneratePlan sends the system and user prompts to the chat completion API
// and returns the raw textual content of the first choice. The request asks
// for a JSON-object response; parsing is the caller's concern.
func (c *Client) GeneratePlan(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		slog.Error("genai.GeneratePlan: chat completion failed", "error", err)
		return "", fmt.Errorf("%w: %v", models.ErrGenerationService, err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("genai.GeneratePlan: response contained no choices")
		return "", models.ErrMalformedResponse
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		slog.Error("genai.GeneratePlan: response contained no content")
		return "", models.ErrMalformedResponse
	}
	slog.Debug("genai.GeneratePlan: content received", "length", len(content))
	return content, nil
}
