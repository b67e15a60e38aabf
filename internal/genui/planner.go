package genui

import (
	"context"

	"github.com/uiforge/uiforge/internal/brain"
)

const (
	defaultPlannerTemperature = 0
	defaultPlannerMaxTokens   = 600
)

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithPlannerModel overrides the provider's default model.
func WithPlannerModel(model string) PlannerOption {
	return func(p *Planner) {
		p.model = model
	}
}

// WithPlannerTemperature sets the sampling temperature.
func WithPlannerTemperature(t float64) PlannerOption {
	return func(p *Planner) {
		p.temperature = t
	}
}

// WithPlannerMaxTokens caps the completion length.
func WithPlannerMaxTokens(n int) PlannerOption {
	return func(p *Planner) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithPlannerUsage calls fn with the token counts of every successful call.
func WithPlannerUsage(fn func(model string, inputTokens, outputTokens int)) PlannerOption {
	return func(p *Planner) {
		p.usage = fn
	}
}

// Planner asks the LLM for a new UI description. It only moves text: parsing
// and sanitizing the reply is the caller's job.
type Planner struct {
	llm         brain.LLMProvider
	model       string
	temperature float64
	maxTokens   int
	usage       func(model string, inputTokens, outputTokens int)
}

// NewPlanner creates a Planner on top of an LLM provider.
func NewPlanner(llm brain.LLMProvider, opts ...PlannerOption) *Planner {
	p := &Planner{
		llm:         llm,
		temperature: defaultPlannerTemperature,
		maxTokens:   defaultPlannerMaxTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan sends one request and returns the model's raw text.
func (p *Planner) Plan(ctx context.Context, userInput, currentCode string) (string, error) {
	resp, err := p.llm.Complete(ctx, brain.LLMRequest{
		Messages: []brain.Message{
			{Role: "system", Content: SystemPromptPlanner},
			{Role: "user", Content: BuildPlannerPrompt(userInput, currentCode)},
		},
		Model:       p.model,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if p.usage != nil {
		p.usage(resp.Model, resp.InputTokens, resp.OutputTokens)
	}
	return resp.Content, nil
}
