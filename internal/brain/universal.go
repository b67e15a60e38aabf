package brain

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Provider presets.
//
// Every backend except Anthropic speaks OpenAI chat completions, so they all
// go through OpenAIProvider with a different base URL:
//   - OpenAI  (https://api.openai.com/v1)
//   - Groq    (https://api.groq.com/openai/v1)
//   - Ollama  (http://localhost:11434/v1)
// ---------------------------------------------------------------------------

// ProviderConfig describes how to connect to an LLM provider.
type ProviderConfig struct {
	// Name selects the preset: "openai", "groq", "ollama" or "anthropic".
	Name string `json:"name"`

	// BaseURL overrides the preset URL. Empty keeps the preset.
	BaseURL string `json:"base_url,omitempty"`

	// APIKey is the bearer token. Empty for local models.
	APIKey string `json:"api_key,omitempty"`

	// Model overrides the preset default model.
	Model string `json:"model,omitempty"`

	// Timeout bounds a single HTTP call. Default: 120s.
	Timeout time.Duration `json:"timeout,omitempty"`
}

type preset struct {
	baseURL string
	model   string
	hosted  bool // needs an API key
}

var presets = map[string]preset{
	"openai":    {baseURL: "https://api.openai.com/v1/", model: "gpt-4o-mini", hosted: true},
	"groq":      {baseURL: "https://api.groq.com/openai/v1/", model: "openai/gpt-oss-120b", hosted: true},
	"ollama":    {baseURL: "http://localhost:11434/v1/", model: "llama3.3"},
	"anthropic": {baseURL: "https://api.anthropic.com/", model: "claude-sonnet-4-20250514", hosted: true},
}

// KnownProvider reports whether name has a preset.
func KnownProvider(name string) bool {
	_, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// RequiresAPIKey reports whether the named provider is a hosted service.
func RequiresAPIKey(name string) bool {
	return presets[strings.ToLower(strings.TrimSpace(name))].hosted
}

// DefaultModel returns the preset model for a provider, or "".
func DefaultModel(name string) string {
	return presets[strings.ToLower(strings.TrimSpace(name))].model
}

// NewProvider builds an LLMProvider from a config.
func NewProvider(cfg ProviderConfig) (LLMProvider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q", cfg.Name)
	}
	if p.hosted && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("provider %q: missing API key", name)
	}

	baseURL := p.baseURL
	if strings.TrimSpace(cfg.BaseURL) != "" {
		baseURL = cfg.BaseURL
	}
	model := p.model
	if strings.TrimSpace(cfg.Model) != "" {
		model = cfg.Model
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	if name == "anthropic" {
		return NewClaudeProvider(cfg.APIKey,
			WithClaudeBaseURL(baseURL),
			WithClaudeHTTPClient(client),
			WithClaudeDefaultModel(model),
		), nil
	}
	return NewOpenAIProvider(cfg.APIKey,
		WithOpenAIName(name),
		WithOpenAIBaseURL(baseURL),
		WithOpenAIHTTPClient(client),
		WithOpenAIDefaultModel(model),
	), nil
}
