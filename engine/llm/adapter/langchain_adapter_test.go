package llmadapter

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func userRequest(text string) *LLMRequest {
	return &LLMRequest{Messages: []Message{{Role: RoleUser, Content: text}}}
}

type recordingModel struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (m *recordingModel) GenerateContent(
	_ context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.options)
	}
	return m.resp, m.err
}

func (m *recordingModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func TestLangChainAdapter_ConvertMessages(t *testing.T) {
	adapter := &LangChainAdapter{}

	t.Run("Should convert messages with system prompt", func(t *testing.T) {
		req := LLMRequest{
			SystemPrompt: "You are an expert",
			Messages: []Message{
				{Role: RoleUser, Content: "Hello"},
				{Role: RoleAssistant, Content: "Hi there!"},
			},
		}
		messages := adapter.convertMessages(&req)
		require.Len(t, messages, 3)
		assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].Role)
		assert.Equal(t, "You are an expert", messages[0].Parts[0].(llms.TextContent).Text)
		assert.Equal(t, llms.ChatMessageTypeHuman, messages[1].Role)
		assert.Equal(t, llms.ChatMessageTypeAI, messages[2].Role)
	})

	t.Run("Should handle messages without system prompt", func(t *testing.T) {
		messages := adapter.convertMessages(&LLMRequest{Messages: []Message{{Role: "other", Content: "x"}}})
		require.Len(t, messages, 1)
		assert.Equal(t, llms.ChatMessageTypeHuman, messages[0].Role)
	})
}

func TestLangChainAdapter_GenerateContent(t *testing.T) {
	t.Run("Should apply provider defaults and read usage", func(t *testing.T) {
		model := &recordingModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
			Content:        "thirty days",
			GenerationInfo: map[string]any{"PromptTokens": 10, "CompletionTokens": 3},
		}}}}
		adapter := WrapModel(&ProviderConfig{Provider: ProviderGoogle, Temperature: 0.1, MaxTokens: 256}, model)
		resp, err := adapter.GenerateContent(t.Context(), &LLMRequest{
			SystemPrompt: "system",
			Messages:     []Message{{Role: RoleUser, Content: "question"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "thirty days", resp.Content)
		require.NotNil(t, resp.Usage)
		assert.Equal(t, 13, resp.Usage.TotalTokens)
		assert.InDelta(t, 0.1, model.options.Temperature, 1e-9)
		assert.Equal(t, 256, model.options.MaxTokens)
		assert.Len(t, model.messages, 2)
	})

	t.Run("Should classify provider failures", func(t *testing.T) {
		model := &recordingModel{err: errors.New("googleapi: Error 429: Resource has been exhausted")}
		adapter := WrapModel(&ProviderConfig{Provider: ProviderGoogle}, model)
		_, err := adapter.GenerateContent(t.Context(), userRequest("hi"))
		var llmErr *Error
		require.ErrorAs(t, err, &llmErr)
		assert.Equal(t, http.StatusTooManyRequests, llmErr.StatusCode)
		assert.True(t, IsRetryable(err))
	})

	t.Run("Should report empty responses", func(t *testing.T) {
		adapter := WrapModel(&ProviderConfig{Provider: ProviderOpenAI}, &recordingModel{resp: &llms.ContentResponse{}})
		_, err := adapter.GenerateContent(t.Context(), userRequest("hi"))
		var llmErr *Error
		require.ErrorAs(t, err, &llmErr)
		assert.Equal(t, ErrCodeEmptyResponse, llmErr.Code)
	})

	t.Run("Should not retry caller cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		adapter := WrapModel(&ProviderConfig{Provider: ProviderOpenAI}, &recordingModel{err: errors.New("request failed")})
		_, err := adapter.GenerateContent(ctx, userRequest("hi"))
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, IsRetryable(err))
	})
}

func TestErrorParser(t *testing.T) {
	parser := NewErrorParser("google")
	cases := []struct {
		msg       string
		status    int
		code      string
		retryable bool
	}{
		{msg: "unexpected status code: 503", status: http.StatusServiceUnavailable, retryable: true},
		{msg: "API key not valid. Please pass a valid API key.", status: http.StatusUnauthorized},
		{msg: "quota exceeded for project", code: ErrCodeQuotaExceeded},
		{msg: "dial tcp: connection refused", code: ErrCodeConnectionRefused, retryable: true},
		{msg: "request timed out", code: ErrCodeTimeout, retryable: true},
		{msg: "blocked by safety settings", code: ErrCodeContentPolicy},
	}
	for _, tc := range cases {
		t.Run("Should classify "+tc.msg, func(t *testing.T) {
			llmErr := parser.ParseError(errors.New(tc.msg))
			require.NotNil(t, llmErr)
			assert.Equal(t, tc.status, llmErr.StatusCode)
			assert.Equal(t, tc.code, llmErr.Code)
			assert.Equal(t, tc.retryable, llmErr.IsRetryable())
		})
	}

	t.Run("Should leave unknown errors unclassified", func(t *testing.T) {
		assert.Nil(t, parser.ParseError(errors.New("something odd")))
		assert.Nil(t, parser.ParseError(nil))
	})
}

func TestMockLLM(t *testing.T) {
	t.Run("Should answer from the question and first context block", func(t *testing.T) {
		client, err := NewDefaultFactory().CreateClient(t.Context(), &ProviderConfig{Provider: ProviderMock})
		require.NoError(t, err)
		resp, err := client.GenerateContent(t.Context(), &LLMRequest{
			SystemPrompt: "system",
			Messages: []Message{{Role: RoleUser, Content: "Context from retrieved documents:\n" +
				"[Context 1] (Score: 0.91)\nThe grace period is thirty days.\n\n" +
				"Question: What is the grace period?\n\nPlease answer."}},
		})
		require.NoError(t, err)
		assert.Equal(t, `Mock answer to "What is the grace period?" based on: The grace period is thirty days.`, resp.Content)
		require.NoError(t, client.Close())
	})

	t.Run("Should say when context is missing", func(t *testing.T) {
		out := mockAnswer("Context from retrieved documents:\n\n\nQuestion: Is dental covered?\n")
		assert.Contains(t, out, "does not contain")
	})

	t.Run("Should reject unknown providers", func(t *testing.T) {
		_, err := NewDefaultFactory().CreateClient(t.Context(), &ProviderConfig{Provider: "anthropic"})
		require.Error(t, err)
		_, err = CreateLLM(t.Context(), &ProviderConfig{Provider: ProviderGoogle})
		require.Error(t, err)
	})

	t.Run("Should reject requests without prompt text", func(t *testing.T) {
		client, err := NewDefaultFactory().CreateClient(t.Context(), &ProviderConfig{Provider: ProviderMock})
		require.NoError(t, err)
		_, err = client.GenerateContent(t.Context(), &LLMRequest{Messages: []Message{{Role: RoleUser, Content: "  "}}})
		require.Error(t, err)
	})
}

func TestDefaultFactory(t *testing.T) {
	t.Run("Should use a registered constructor", func(t *testing.T) {
		factory := NewDefaultFactory()
		var got *ProviderConfig
		factory.Register("custom", func(_ context.Context, cfg *ProviderConfig) (LLMClient, error) {
			got = cfg
			return WrapModel(&ProviderConfig{Provider: ProviderMock}, NewMockLLM("")), nil
		})
		_, err := factory.CreateClient(t.Context(), &ProviderConfig{Provider: "custom", Model: "m"})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "m", got.Model)
		assert.Contains(t, factory.Providers(), "custom")
	})
}
