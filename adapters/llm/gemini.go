package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/satriahrh/cocoa-relay/domain"
)

const DefaultGeminiModel = "gemini-2.0-flash-001"

type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	client, err := genai.NewClient(
		ctx,
		&genai.ClientConfig{
			APIKey:      apiKey,
			Backend:     genai.BackendGeminiAPI,
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	return &GeminiClient{client: client, model: model, timeout: timeout}, nil
}

// Generate implements domain.CompletionProvider.
func (g *GeminiClient) Generate(ctx context.Context, prompt domain.PromptDocument) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, toGeminiContents(prompt), nil)
	if err != nil {
		return "", &domain.ProviderError{Provider: "gemini", Reason: "generate content", Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &domain.ProviderError{Provider: "gemini", Reason: "no candidates"}
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &domain.ProviderError{Provider: "gemini", Reason: "empty response"}
	}
	return text, nil
}

func toGeminiContents(prompt domain.PromptDocument) []*genai.Content {
	contents := make([]*genai.Content, len(prompt.Turns))
	for i, turn := range prompt.Turns {
		role := genai.RoleModel
		if turn.Role == domain.UserRole {
			role = genai.RoleUser
		}
		contents[i] = &genai.Content{
			Role: role,
			Parts: []*genai.Part{
				{Text: turn.Text},
			},
		}
	}
	return contents
}
