package llmadapter

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ProviderName identifies an LLM backend.
type ProviderName string

const (
	ProviderGoogle ProviderName = "google"
	ProviderOpenAI ProviderName = "openai"
	ProviderOllama ProviderName = "ollama"
	ProviderMock   ProviderName = "mock"
)

const DefaultGoogleModel = "gemini-2.0-flash"

// ProviderConfig selects and configures an LLM backend.
type ProviderConfig struct {
	Provider    ProviderName
	Model       string
	APIKey      string
	APIURL      string
	Temperature float64
	MaxTokens   int
}

// CreateLLM creates an LLM instance based on the provider configuration
func CreateLLM(ctx context.Context, provider *ProviderConfig) (llms.Model, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider config must not be nil")
	}
	switch provider.Provider {
	case ProviderGoogle:
		return createGoogleLLM(ctx, provider)
	case ProviderOpenAI:
		return createOpenAILLM(provider)
	case ProviderOllama:
		return createOllamaLLM(provider)
	case ProviderMock:
		return NewMockLLM(provider.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider.Provider)
	}
}

func createGoogleLLM(ctx context.Context, p *ProviderConfig) (llms.Model, error) {
	model := p.Model
	if model == "" {
		model = DefaultGoogleModel
	}
	if p.APIKey == "" {
		return nil, fmt.Errorf("googleai requires an API key")
	}
	if p.APIURL != "" {
		return nil, fmt.Errorf("googleai does not support custom API URL")
	}
	return googleai.New(ctx,
		googleai.WithDefaultModel(model),
		googleai.WithAPIKey(p.APIKey),
	)
}

func createOpenAILLM(p *ProviderConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(p.Model),
	}
	if p.APIKey != "" {
		opts = append(opts, openai.WithToken(p.APIKey))
	}
	if p.APIURL != "" {
		opts = append(opts, openai.WithBaseURL(p.APIURL))
	}
	return openai.New(opts...)
}

func createOllamaLLM(p *ProviderConfig) (llms.Model, error) {
	opts := []ollama.Option{
		ollama.WithModel(p.Model),
	}
	if p.APIURL != "" {
		opts = append(opts, ollama.WithServerURL(p.APIURL))
	}
	return ollama.New(opts...)
}

// MockLLM answers deterministically from the prompt. The reply names the
// question and the first context line so that tests and local runs can
// check the wiring without a provider.
type MockLLM struct {
	model string
}

// NewMockLLM creates a new mock LLM
func NewMockLLM(model string) *MockLLM {
	return &MockLLM{model: model}
}

// GenerateContent implements llms.Model with predictable responses
func (m *MockLLM) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var human string
	for _, message := range messages {
		if message.Role != llms.ChatMessageTypeHuman {
			continue
		}
		for _, part := range message.Parts {
			if text, ok := part.(llms.TextContent); ok {
				human += text.Text
			}
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: mockAnswer(human)}},
	}, nil
}

// Call implements the legacy Call interface
func (m *MockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func mockAnswer(prompt string) string {
	question := sectionAfter(prompt, "Question: ")
	evidence := firstContextLine(prompt)
	if question == "" {
		return "Mock response: no question found"
	}
	if evidence == "" {
		return fmt.Sprintf("Mock answer to %q: the provided context does not contain this information.", question)
	}
	return fmt.Sprintf("Mock answer to %q based on: %s", question, evidence)
}

func sectionAfter(prompt, marker string) string {
	idx := strings.LastIndex(prompt, marker)
	if idx < 0 {
		return ""
	}
	rest := prompt[idx+len(marker):]
	if end := strings.Index(rest, "\n"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func firstContextLine(prompt string) string {
	const maxLen = 120
	idx := strings.Index(prompt, "[Context 1]")
	if idx < 0 {
		return ""
	}
	lines := strings.SplitN(prompt[idx:], "\n", 3)
	if len(lines) < 2 {
		return ""
	}
	line := strings.TrimSpace(lines[1])
	if utf8.RuneCountInString(line) > maxLen {
		line = string([]rune(line)[:maxLen])
	}
	return line
}
