package llmadapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// LangChainAdapter adapts langchaingo to our LLMClient interface
type LangChainAdapter struct {
	model    llms.Model
	provider ProviderConfig
	parser   *ErrorParser
}

// NewLangChainAdapter creates a new LangChain adapter
func NewLangChainAdapter(ctx context.Context, config *ProviderConfig) (*LangChainAdapter, error) {
	model, err := CreateLLM(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM model: %w", err)
	}
	return WrapModel(config, model), nil
}

// WrapModel builds an adapter around an existing langchaingo model.
func WrapModel(config *ProviderConfig, model llms.Model) *LangChainAdapter {
	return &LangChainAdapter{
		model:    model,
		provider: *config,
		parser:   NewErrorParser(string(config.Provider)),
	}
}

// GenerateContent implements LLMClient interface
func (a *LangChainAdapter) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	messages := a.convertMessages(req)
	response, err := a.model.GenerateContent(ctx, messages, a.buildCallOptions(req)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("langchain GenerateContent failed: %w", errors.Join(ctxErr, err))
		}
		if llmErr := a.parser.ParseError(err); llmErr != nil {
			return nil, llmErr
		}
		return nil, fmt.Errorf("langchain GenerateContent failed: %w", err)
	}
	return a.convertResponse(response)
}

// Close implements LLMClient interface
func (a *LangChainAdapter) Close() error {
	return nil
}

// convertMessages converts our Message format to langchain MessageContent
func (a *LangChainAdapter) convertMessages(req *LLMRequest) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		messages = append(messages, llms.TextParts(a.mapMessageRole(msg.Role), msg.Content))
	}
	return messages
}

// mapMessageRole maps our role to langchain ChatMessageType
func (a *LangChainAdapter) mapMessageRole(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// buildCallOptions builds langchain call options from our request
func (a *LangChainAdapter) buildCallOptions(req *LLMRequest) []llms.CallOption {
	var options []llms.CallOption
	temperature := req.Options.Temperature
	if temperature <= 0 {
		temperature = a.provider.Temperature
	}
	if temperature > 0 {
		options = append(options, llms.WithTemperature(temperature))
	}
	maxTokens := int(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = a.provider.MaxTokens
	}
	if maxTokens > 0 {
		options = append(options, llms.WithMaxTokens(maxTokens))
	}
	if len(req.Options.StopWords) > 0 {
		options = append(options, llms.WithStopWords(req.Options.StopWords))
	}
	return options
}

// convertResponse converts langchain response to our format
func (a *LangChainAdapter) convertResponse(resp *llms.ContentResponse) (*LLMResponse, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, NewErrorWithCode(ErrCodeEmptyResponse, "empty response from LLM", string(a.provider.Provider), nil)
	}
	choice := resp.Choices[0]
	return &LLMResponse{
		Content: choice.Content,
		Usage:   usageFromGenerationInfo(choice.GenerationInfo),
	}, nil
}

// usageFromGenerationInfo reads the token counters providers report in GenerationInfo.
func usageFromGenerationInfo(info map[string]any) *Usage {
	if len(info) == 0 {
		return nil
	}
	prompt, okPrompt := intValue(info["PromptTokens"])
	completion, okCompletion := intValue(info["CompletionTokens"])
	total, okTotal := intValue(info["TotalTokens"])
	if !okPrompt && !okCompletion && !okTotal {
		return nil
	}
	if !okTotal {
		total = prompt + completion
	}
	return &Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
