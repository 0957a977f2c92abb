package llmadapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ClientConstructor builds a client for one provider.
type ClientConstructor func(ctx context.Context, config *ProviderConfig) (LLMClient, error)

func langChainConstructor(ctx context.Context, config *ProviderConfig) (LLMClient, error) {
	adapter, err := NewLangChainAdapter(ctx, config)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

// DefaultFactory dispatches on ProviderConfig.Provider.
type DefaultFactory struct {
	constructors map[ProviderName]ClientConstructor
}

// NewDefaultFactory knows the google, openai, ollama and mock providers.
func NewDefaultFactory() *DefaultFactory {
	return &DefaultFactory{
		constructors: map[ProviderName]ClientConstructor{
			ProviderGoogle: langChainConstructor,
			ProviderOpenAI: langChainConstructor,
			ProviderOllama: langChainConstructor,
			ProviderMock:   langChainConstructor,
		},
	}
}

// Register adds or replaces the constructor for a provider.
func (f *DefaultFactory) Register(name ProviderName, constructor ClientConstructor) {
	f.constructors[name] = constructor
}

// Providers lists the registered provider names.
func (f *DefaultFactory) Providers() []string {
	names := make([]string, 0, len(f.constructors))
	for name := range f.constructors {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

// CreateClient builds the client for config.Provider.
func (f *DefaultFactory) CreateClient(ctx context.Context, config *ProviderConfig) (LLMClient, error) {
	if config == nil {
		return nil, errors.New("llm: provider config is required")
	}
	constructor, ok := f.constructors[config.Provider]
	if !ok {
		return nil, fmt.Errorf("llm: unknown provider %q (supported: %s)",
			config.Provider, strings.Join(f.Providers(), ", "))
	}
	return constructor(ctx, config)
}
