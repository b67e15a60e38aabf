package brain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
)

const claudeDefaultMaxTokens = 1024

// ClaudeOption configures a ClaudeProvider.
type ClaudeOption func(*claudeOptions)

type claudeOptions struct {
	baseURL      string
	httpClient   *http.Client
	defaultModel string
}

// WithClaudeBaseURL overrides the API base URL (useful for testing).
func WithClaudeBaseURL(url string) ClaudeOption {
	return func(o *claudeOptions) {
		o.baseURL = url
	}
}

// WithClaudeHTTPClient sets a custom HTTP client.
func WithClaudeHTTPClient(c *http.Client) ClaudeOption {
	return func(o *claudeOptions) {
		o.httpClient = c
	}
}

// WithClaudeDefaultModel sets the default model when none is specified in the request.
func WithClaudeDefaultModel(model string) ClaudeOption {
	return func(o *claudeOptions) {
		o.defaultModel = model
	}
}

// ClaudeProvider implements LLMProvider for the Anthropic Messages API.
type ClaudeProvider struct {
	client       anthropic.Client
	defaultModel string
}

// NewClaudeProvider creates a new Claude provider.
func NewClaudeProvider(apiKey string, opts ...ClaudeOption) *ClaudeProvider {
	o := claudeOptions{
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		defaultModel: "claude-sonnet-4-20250514",
	}
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []aoption.RequestOption{
		aoption.WithAPIKey(strings.TrimSpace(apiKey)),
		aoption.WithHTTPClient(o.httpClient),
		aoption.WithMaxRetries(0),
	}
	if strings.TrimSpace(o.baseURL) != "" {
		reqOpts = append(reqOpts, aoption.WithBaseURL(strings.TrimSpace(o.baseURL)))
	}
	return &ClaudeProvider{
		client:       anthropic.NewClient(reqOpts...),
		defaultModel: o.defaultModel,
	}
}

// Name returns the provider name.
func (p *ClaudeProvider) Name() string { return "anthropic" }

// Complete sends one Messages API request.
func (p *ClaudeProvider) Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = claudeDefaultMaxTokens
	}

	system, turns := systemAndTurns(req.Messages)
	msgs := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		if m.Role == "assistant" {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Messages:    msgs,
		Temperature: anthropic.Float(req.Temperature),
	}
	if strings.TrimSpace(system) != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("anthropic: API error %d: %w", apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("anthropic: request: %w", err)
	}

	result := &LLMResponse{
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		LatencyMs:    time.Since(start).Milliseconds(),
		StopReason:   string(msg.StopReason),
	}
	var text []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text = append(text, tb.Text)
		}
	}
	result.Content = strings.Join(text, "")
	return result, nil
}
