package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Guilherme9797/meu-app/internal/domain"
)

// ChatModel generates completions through the OpenAI-compatible chat API.
type ChatModel struct {
	client      *openai.Client
	model       string
	temperature float32
}

// ChatConfig holds the chat provider settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// NewChatModel creates an OpenAI-compatible chat client.
func NewChatModel(cfg *ChatConfig) *ChatModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &ChatModel{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
	}
}

// Generate implements domain.ChatModel.
func (m *ChatModel) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: m.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat API error %d: %s: %w",
				apiErr.HTTPStatusCode, apiErr.Message, domain.ErrChatProvider)
		}
		return "", fmt.Errorf("chat request failed: %w", domain.ErrChatProvider)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty chat response: %w", domain.ErrChatProvider)
	}
	return resp.Choices[0].Message.Content, nil
}
