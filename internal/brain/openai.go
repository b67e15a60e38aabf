package brain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
)

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*openAIOptions)

type openAIOptions struct {
	name         string
	baseURL      string
	httpClient   *http.Client
	defaultModel string
}

// WithOpenAIBaseURL points the client at any OpenAI-compatible endpoint
// (Groq, Ollama, a test server).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) {
		o.baseURL = url
	}
}

// WithOpenAIHTTPClient sets a custom HTTP client.
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(o *openAIOptions) {
		o.httpClient = c
	}
}

// WithOpenAIDefaultModel sets the default model.
func WithOpenAIDefaultModel(model string) OpenAIOption {
	return func(o *openAIOptions) {
		o.defaultModel = model
	}
}

// WithOpenAIName sets the name reported by Name().
func WithOpenAIName(name string) OpenAIOption {
	return func(o *openAIOptions) {
		o.name = name
	}
}

// OpenAIProvider implements LLMProvider for OpenAI chat completions and any
// endpoint that speaks the same protocol.
type OpenAIProvider struct {
	client       openai.Client
	name         string
	defaultModel string
}

// NewOpenAIProvider creates a provider. apiKey may be empty for local servers.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	o := openAIOptions{
		name:         "openai",
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		defaultModel: "gpt-4o-mini",
	}
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []ooption.RequestOption{
		ooption.WithAPIKey(strings.TrimSpace(apiKey)),
		ooption.WithHTTPClient(o.httpClient),
		// Retries would hide a failed call from the user for minutes.
		ooption.WithMaxRetries(0),
	}
	if strings.TrimSpace(o.baseURL) != "" {
		reqOpts = append(reqOpts, ooption.WithBaseURL(strings.TrimSpace(o.baseURL)))
	}
	return &OpenAIProvider{
		client:       openai.NewClient(reqOpts...),
		name:         o.name,
		defaultModel: o.defaultModel,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return p.name }

// Complete sends one chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%s: API error %d: %w", p.name, apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("%s: request: %w", p.name, err)
	}

	result := &LLMResponse{
		Model:        resp.Model,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		LatencyMs:    time.Since(start).Milliseconds(),
	}
	if len(resp.Choices) > 0 {
		result.Content = resp.Choices[0].Message.Content
		result.StopReason = string(resp.Choices[0].FinishReason)
	}
	return result, nil
}
