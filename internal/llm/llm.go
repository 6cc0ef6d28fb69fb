// Package llm sends the SurveyBot system prompt and a user question to a
// language model provider.
package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/JonMunkholm/SurveyBot/internal/config"
)

var (
	// ErrNotConfigured is returned by NewProvider when no API key is set.
	ErrNotConfigured = errors.New("llm: no API key configured")

	// ErrProvider wraps every failure reported by a provider: transport
	// errors, non-2xx statuses and replies without text.
	ErrProvider = errors.New("llm: provider request failed")
)

// Provider defines the interface for LLM integrations.
type Provider interface {
	// GenerateSQL answers a question under the given system prompt.
	GenerateSQL(ctx context.Context, req GenerateRequest) (GenerateResponse, error)

	// Name returns the provider name for logging.
	Name() string
}

// GenerateRequest contains the input for SQL generation.
type GenerateRequest struct {
	SystemPrompt string
	Prompt       string
	MaxTokens    int // 0 uses the provider's configured limit
}

// GenerateResponse is a successful model reply.
type GenerateResponse struct {
	Reply  string // full model reply
	SQL    string // first ```sql block of the reply, if any
	Tokens int
}

// HasSQL reports whether the reply contained a SQL block.
func (r GenerateResponse) HasSQL() bool {
	return r.SQL != ""
}

const (
	defaultMaxTokens      = 1024
	defaultOpenAIModel    = "gpt-4o"
	defaultOpenAIBaseURL  = "https://api.openai.com/v1"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
)

// NewProvider creates the provider selected by cfg.Provider. Missing model
// and base URL fall back to the provider's defaults.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	switch cfg.Provider {
	case "", "openai":
		return &OpenAIProvider{
			apiKey:    cfg.APIKey,
			model:     orDefault(cfg.Model, defaultOpenAIModel),
			baseURL:   strings.TrimRight(orDefault(cfg.BaseURL, defaultOpenAIBaseURL), "/"),
			maxTokens: maxTokens,
			client:    newHTTPClient(),
		}, nil
	case "anthropic":
		p := NewAnthropicProvider(cfg.APIKey, orDefault(cfg.Model, defaultAnthropicModel), cfg.BaseURL)
		p.maxTokens = maxTokens
		return p, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (supported: openai, anthropic)", cfg.Provider)
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func tokenLimit(requested, configured int) int {
	if requested > 0 {
		return requested
	}
	return configured
}

var sqlFence = regexp.MustCompile("(?is)```\\s*sql\\s*\\n(.*?)```")

// ParseResponse keeps the full reply and extracts the first fenced SQL block.
// The SQL is returned as written; it is neither validated nor executed.
func ParseResponse(raw string) GenerateResponse {
	reply := strings.TrimSpace(raw)
	resp := GenerateResponse{Reply: reply}
	if m := sqlFence.FindStringSubmatch(reply); m != nil {
		resp.SQL = strings.TrimSpace(m[1])
	}
	return resp
}
