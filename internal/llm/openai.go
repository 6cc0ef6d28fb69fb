package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, OpenRouter, Groq, a local proxy).
type OpenAIProvider struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	client    *http.Client
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

// GenerateSQL asks the model with the system prompt as the first message.
// Sampling is deterministic.
func (p *OpenAIProvider) GenerateSQL(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	in := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.Prompt},
		},
		MaxCompletionTokens: tokenLimit(req.MaxTokens, p.maxTokens),
	}

	var out chatResponse
	if err := p.post(ctx, "/chat/completions", in, &out); err != nil {
		return GenerateResponse{}, err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return GenerateResponse{}, fmt.Errorf("%w: %s returned no choices", ErrProvider, p.model)
	}

	resp := ParseResponse(out.Choices[0].Message.Content)
	resp.Tokens = out.Usage.TotalTokens
	return resp, nil
}

// post sends in as JSON to path and decodes a 200 reply into out. Every
// failure is wrapped in ErrProvider; API error bodies contribute their
// message.
func (p *OpenAIProvider) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	res, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrProvider, err)
	}

	if res.StatusCode != http.StatusOK {
		var apiErr chatError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%w: %s: %s", ErrProvider, res.Status, apiErr.Error.Message)
		}
		return fmt.Errorf("%w: %s", ErrProvider, res.Status)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrProvider, err)
	}
	return nil
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
	Temperature         float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
