package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"flomentum/internal/config"
	"flomentum/ports"
)

// AnthropicClient implements ChatClient on the Anthropic messages API
type AnthropicClient struct {
	client      anthropic.Client
	model       anthropic.Model
	temperature float64
}

// NewAnthropicClient creates an Anthropic-backed chat client
func NewAnthropicClient(cfg config.AIConfig) (ports.ChatClient, error) {
	if cfg.AnthropicKey == "" {
		return nil, fmt.Errorf("missing Anthropic API key")
	}
	return &AnthropicClient{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.AnthropicKey)),
		model:       anthropic.Model(cfg.AnthropicModel),
		temperature: cfg.Temperature,
	}, nil
}

// ChatCompletion sends one prompt and returns the concatenated text blocks
func (c *AnthropicClient) ChatCompletion(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(c.temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic message: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic response missing text content")
	}
	return sb.String(), nil
}
