package llm

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/satriahrh/cocoa-relay/domain"
)

type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIClient(apiKey, model string, timeout time.Duration) *OpenAIClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
	}
}

// Generate implements domain.CompletionProvider.
func (c *OpenAIClient) Generate(ctx context.Context, prompt domain.PromptDocument) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(prompt),
	})
	if err != nil {
		return "", &domain.ProviderError{Provider: "openai", Reason: "chat completion", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &domain.ProviderError{Provider: "openai", Reason: "empty choices"}
	}

	raw := resp.Choices[0].Message.Content
	if strings.TrimSpace(raw) == "" {
		return "", &domain.ProviderError{Provider: "openai", Reason: "empty response"}
	}
	return raw, nil
}

func toOpenAIMessages(prompt domain.PromptDocument) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(prompt.Turns))
	for _, turn := range prompt.Turns {
		role := openai.ChatMessageRoleAssistant
		if turn.Role == domain.UserRole {
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Text,
		})
	}
	return msgs
}
