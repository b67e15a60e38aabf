// Package brain is the LLM transport: a provider interface plus adapters for
// OpenAI-compatible endpoints and the Anthropic API.
package brain

import (
	"context"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// LLMRequest holds parameters for an LLM completion call.
type LLMRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature"` // sent as-is; zero is a valid setting
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// LLMResponse holds the response from an LLM call.
type LLMResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	LatencyMs    int64  `json:"latency_ms"`
	StopReason   string `json:"stop_reason"`
}

// LLMProvider is the abstract interface for LLM backends.
type LLMProvider interface {
	Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error)
	Name() string
}

// systemAndTurns splits system messages from the conversation turns.
func systemAndTurns(msgs []Message) (string, []Message) {
	var system string
	turns := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}
