// Package openai wraps the Chat Completions API behind a two-message call.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/gostly/gostly-backend/pkg/config"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("completion api key is not configured")
	// ErrEmptyCompletion is returned when the model produced no text.
	ErrEmptyCompletion = errors.New("completion returned no text")
)

// Client issues single-turn chat completions.
type Client struct {
	api         openai.Client
	configured  bool
	model       string
	temperature float64
	maxTokens   int64
	timeout     time.Duration
}

// NewClient builds a client from config. A missing API key yields a client
// whose calls fail with ErrNotConfigured.
func NewClient(cfg config.OpenAIConfig) *Client {
	c := &Client{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return c
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	c.api = openai.NewClient(opts...)
	c.configured = true
	return c
}

// Configured reports whether an API key was supplied.
func (c *Client) Configured() bool {
	return c != nil && c.configured
}

// Complete sends the system instruction and user message and returns the
// trimmed completion text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(c.maxTokens)
	}

	response, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(response.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
