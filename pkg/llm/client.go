// Package llm provides the adapter through which agents and the
// collaboration analyzer reach LLM backends. A Service fans per-agent
// requests out to providers and implements primary/fallback model
// selection; individual providers speak the OpenAI-compatible
// chat-completions protocol over HTTP.
package llm

import (
	"context"
	"time"
)

// Chat-completion message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat-completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a single chat-completion call.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Response is the outcome of a chat-completion call. Success is false
// when the provider returned an error payload or was unreachable; in
// that case Error carries the reason and Content is empty.
type Response struct {
	Content  string        `json:"content"`
	Model    string        `json:"model"`
	Provider string        `json:"provider"`
	Usage    Usage         `json:"usage"`
	Latency  time.Duration `json:"latency"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
}

// Client is one provider backend. Implementations must be safe for
// concurrent use.
type Client interface {
	// ChatCompletion performs one completion round trip. Transport and
	// provider errors are returned as errors; the *Response is non-nil
	// only on success.
	ChatCompletion(ctx context.Context, req Request) (*Response, error)
}
