package llmadapter

import (
	"context"
	"errors"
	"strings"
)

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat prompt.
type Message struct {
	Role    string
	Content string
}

// CallOptions carries sampling settings. Zero values leave the provider default.
type CallOptions struct {
	Temperature float64
	MaxTokens   int32
	StopWords   []string
}

// LLMRequest is a provider independent chat completion request.
// SystemPrompt is sent as its own system message ahead of Messages.
type LLMRequest struct {
	SystemPrompt string
	Messages     []Message
	Options      CallOptions
}

// Validate rejects requests that carry no prompt text.
func (r *LLMRequest) Validate() error {
	if r == nil {
		return errors.New("llm request is required")
	}
	if strings.TrimSpace(r.SystemPrompt) != "" {
		return nil
	}
	for _, m := range r.Messages {
		if strings.TrimSpace(m.Content) != "" {
			return nil
		}
	}
	return errors.New("llm request has no prompt content")
}

// Usage is the token accounting reported by the provider, when available.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMResponse is the text completion plus optional usage.
type LLMResponse struct {
	Content string
	Usage   *Usage
}

// LLMClient generates completions for answer generation.
type LLMClient interface {
	GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
	Close() error
}

// Factory builds an LLMClient from provider settings.
type Factory interface {
	CreateClient(ctx context.Context, config *ProviderConfig) (LLMClient, error)
}

var _ Factory = (*DefaultFactory)(nil)
