package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	DefaultTimeout     = 12 * time.Second
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.2
)

var (
	errMissingAPIKey = errors.New("API key not set; run 'gco config set-key' or export OPENAI_API_KEY")
	errEmptyResponse = errors.New("LLM returned empty response")
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	opts Options
	api  chatCompleter
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}

	c := &Client{opts: opts}
	if opts.APIKey != "" {
		clientConfig := openai.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			clientConfig.BaseURL = strings.TrimRight(opts.BaseURL, "/")
		}
		c.api = openai.NewClientWithConfig(clientConfig)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.opts.Model
}

// Generate sends one system and one user message and returns the reply.
// It makes a single attempt bounded by the configured timeout.
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	if c.api == nil {
		return "", errMissingAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call LLM: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errEmptyResponse
	}
	return content, nil
}

// TestConnection sends a minimal request to verify credentials and model.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.Generate(ctx, "You are a connectivity check.", "Reply with OK.")
	return err
}
