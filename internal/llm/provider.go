// Package llm provides the chat-completion adapter used for notification
// extraction. Both supported backends speak the OpenAI-compatible
// /chat/completions protocol over net/http.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 45 * time.Second

// Default base URLs per provider.
const (
	VolcBaseURL       = "https://ark.cn-beijing.volces.com/api/v3"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

var (
	// ErrMissingCredentials is returned when a provider has no API key or model.
	ErrMissingCredentials = errors.New("llm: api key and model are required")
	// ErrEmptyResponse is returned when the API answers without any choices.
	ErrEmptyResponse = errors.New("llm: response contained no choices")
)

// Provider is the interface for LLM completions.
type Provider interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns a human-readable provider name (e.g., "volc/ep-2025...").
	Name() string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int     // 0 = provider default
	Temperature float64 // 0.0-2.0
	Format      string  // "json" asks for a JSON object response
	System      string  // optional system prompt
}

// Config holds provider configuration.
type Config struct {
	Provider string        // "volc" (default) or "openrouter"
	Model    string        // model name; for volc this is the endpoint id
	APIKey   string        // bearer key
	BaseURL  string        // optional URL override
	Timeout  time.Duration // per-request timeout (0 = DefaultTimeout)
}

// NewProvider creates an LLM provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.Model) == "" {
		return nil, ErrMissingCredentials
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := &chatProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   strings.TrimSpace(cfg.Model),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "volc", "ark", "doubao":
		p.name = "volc"
		if p.baseURL == "" {
			p.baseURL = VolcBaseURL
		}
	case "openrouter":
		p.name = "openrouter"
		if p.baseURL == "" {
			p.baseURL = OpenRouterBaseURL
		}
		p.headers = map[string]string{
			"HTTP-Referer": "https://github.com/vgh186/feishu",
			"X-Title":      "feishu-notify",
		}
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: volc, openrouter)", cfg.Provider)
	}
	return p, nil
}
