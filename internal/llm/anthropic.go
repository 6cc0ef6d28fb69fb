package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements the Provider interface for Anthropic's Claude API.
type AnthropicProvider struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int
}

// NewAnthropicProvider creates a new Anthropic provider. An empty baseURL
// uses the SDK default.
func NewAnthropicProvider(apiKey, model, baseURL string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: defaultMaxTokens,
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// GenerateSQL sends the system prompt and question to the Messages API.
func (p *AnthropicProvider) GenerateSQL(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	maxTokens := tokenLimit(req.MaxTokens, p.maxTokens)

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: req.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content = block.Text
			break
		}
	}
	if content == "" {
		return GenerateResponse{}, fmt.Errorf("%w: %s returned no text", ErrProvider, p.model)
	}

	genResp := ParseResponse(content)
	genResp.Tokens = int(msg.Usage.InputTokens + msg.Usage.OutputTokens)
	return genResp, nil
}
