// Package genai provides GenAI-enhanced operations using the OpenAI API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 30 * time.Second

// ClientInterface defines the generation operations the flow engines need.
// Implementations must be safe for concurrent use.
type ClientInterface interface {
	// Generate produces a completion for the given system and user prompts.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// GenerateWithMessages produces a completion over a full message history.
	GenerateWithMessages(ctx context.Context, messages []ChatMessage) (string, error)
}

// ChatMessage is one turn of a chat completion request.
type ChatMessage struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	client      openai.Client
	model       openai.ChatModel
	temperature float64
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the default chat model.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = openai.ChatModel(model)
	}
}

// WithTemperature overrides the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// NewClient initializes a GenAI client with the given API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai.NewClient: API key is empty")
	}
	c := &Client{
		client:      openai.NewClient(option.WithAPIKey(apiKey)),
		model:       openai.ChatModelGPT4oMini,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(c)
	}
	slog.Debug("genai.NewClient: client initialized", "model", c.model)
	return c, nil
}

// Generate produces a completion for the given system and user prompts.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.GenerateWithMessages(ctx, []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
}

// GenerateWithMessages produces a completion over a full message history.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []ChatMessage) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Temperature: openai.Float(c.temperature),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for _, m := range messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		slog.Error("Client.GenerateWithMessages: completion failed", "error", err, "model", c.model)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	slog.Debug("Client.GenerateWithMessages: completion succeeded", "messageCount", len(messages))
	return resp.Choices[0].Message.Content, nil
}
