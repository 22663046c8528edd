// Package llm provides the AI vendor clients: chat completion backends for
// OpenAI and Anthropic, a circuit-breaking retry wrapper, the structured
// biomarker insight generator, and the lab document extractor.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"flomentum/internal/config"
	"flomentum/ports"
)

const systemPrompt = "You are a careful health data assistant. Output exactly what the user asks for, nothing else."

// OpenAIClient implements ChatClient on the OpenAI chat completions API
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIClient creates an OpenAI-backed chat client
func NewOpenAIClient(cfg config.AIConfig) (ports.ChatClient, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("missing OpenAI API key")
	}
	return &OpenAIClient{
		client:      openai.NewClient(cfg.OpenAIKey),
		model:       cfg.OpenAIModel,
		temperature: float32(cfg.Temperature),
	}, nil
}

// ChatCompletion sends one prompt and returns the completion text
func (c *OpenAIClient) ChatCompletion(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}
	return resp.Choices[0].Message.Content, nil
}
