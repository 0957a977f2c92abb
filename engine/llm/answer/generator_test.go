package answer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmadapter "github.com/compozy/docqa/engine/llm/adapter"
)

// scriptedClient answers by echoing the question unless a hook intervenes.
type scriptedClient struct {
	mu       sync.Mutex
	requests []*llmadapter.LLMRequest
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	hook     func(question string, attempt int32) error
}

func (c *scriptedClient) GenerateContent(ctx context.Context, req *llmadapter.LLMRequest) (*llmadapter.LLMResponse, error) {
	attempt := c.calls.Add(1)
	current := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if current <= peak || c.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	question := questionOf(req)
	if c.hook != nil {
		if err := c.hook(question, attempt); err != nil {
			return nil, err
		}
	}
	return &llmadapter.LLMResponse{Content: "  answer: " + question + "\n"}, nil
}

func (c *scriptedClient) Close() error { return nil }

func questionOf(req *llmadapter.LLMRequest) string {
	content := req.Messages[0].Content
	idx := strings.Index(content, "Question: ")
	rest := content[idx+len("Question: "):]
	return rest[:strings.Index(rest, "\n")]
}

func newTestGenerator(t *testing.T, client llmadapter.LLMClient, opts ...Option) *Generator {
	t.Helper()
	opts = append([]Option{WithTokenCounter(RuneCounter{}), WithRetry(0, time.Millisecond)}, opts...)
	g, err := New(client, opts...)
	require.NoError(t, err)
	return g
}

func TestGenerator_Answer(t *testing.T) {
	t.Run("Should send the system and grounded user prompt and trim the reply", func(t *testing.T) {
		client := &scriptedClient{}
		g := newTestGenerator(t, client)
		out := g.Answer(t.Context(), "What is the grace period?", "[Context 1] (Score: 0.90)\nThirty days.")
		assert.Equal(t, "answer: What is the grace period?", out)
		require.Len(t, client.requests, 1)
		req := client.requests[0]
		assert.Equal(t, SystemPrompt, req.SystemPrompt)
		assert.Equal(t, llmadapter.RoleUser, req.Messages[0].Role)
		assert.Equal(t,
			"Context from retrieved documents:\n[Context 1] (Score: 0.90)\nThirty days.\n\n"+
				"Question: What is the grace period?\n\n"+
				"Please provide a comprehensive answer based on the context above.",
			req.Messages[0].Content,
		)
	})

	t.Run("Should turn failures into an apology", func(t *testing.T) {
		client := &scriptedClient{hook: func(string, int32) error { return errors.New("model unavailable") }}
		g := newTestGenerator(t, client)
		out := g.Answer(t.Context(), "q", "")
		assert.Equal(t, "I apologize, but I encountered an error while processing your query: model unavailable", out)
	})

	t.Run("Should retry transient failures", func(t *testing.T) {
		client := &scriptedClient{hook: func(_ string, attempt int32) error {
			if attempt < 3 {
				return errors.New("status code: 503")
			}
			return nil
		}}
		g := newTestGenerator(t, client, WithRetry(2, time.Millisecond))
		assert.Equal(t, "answer: q", g.Answer(t.Context(), "q", ""))
		assert.Equal(t, int32(3), client.calls.Load())
	})

	t.Run("Should not retry permanent failures", func(t *testing.T) {
		client := &scriptedClient{hook: func(string, int32) error {
			return llmadapter.NewError(401, "bad key", "google", nil)
		}}
		g := newTestGenerator(t, client, WithRetry(2, time.Millisecond))
		assert.Contains(t, g.Answer(t.Context(), "q", ""), "I apologize")
		assert.Equal(t, int32(1), client.calls.Load())
	})

	t.Run("Should bound each attempt with the timeout", func(t *testing.T) {
		client := &scriptedClient{delay: time.Second}
		g := newTestGenerator(t, client, WithTimeout(20*time.Millisecond))
		out := g.Answer(t.Context(), "q", "")
		assert.Contains(t, out, "deadline exceeded")
	})
}

func TestGenerator_AnswerMany(t *testing.T) {
	t.Run("Should keep input order", func(t *testing.T) {
		g := newTestGenerator(t, &scriptedClient{})
		queries := []string{"one", "two", "three", "four"}
		answers, err := g.AnswerMany(t.Context(), queries, make([]string, len(queries)))
		require.NoError(t, err)
		assert.Equal(t, []string{"answer: one", "answer: two", "answer: three", "answer: four"}, answers)
	})

	t.Run("Should isolate a failing question", func(t *testing.T) {
		client := &scriptedClient{hook: func(question string, _ int32) error {
			if question == "two" {
				return errors.New("boom")
			}
			return nil
		}}
		g := newTestGenerator(t, client)
		answers, err := g.AnswerMany(t.Context(), []string{"one", "two", "three"}, []string{"", "", ""})
		require.NoError(t, err)
		assert.Equal(t, "answer: one", answers[0])
		assert.Equal(t, "I apologize, but I encountered an error while processing your query: boom", answers[1])
		assert.Equal(t, "answer: three", answers[2])
	})

	t.Run("Should report a panicking unit at its own slot", func(t *testing.T) {
		client := &scriptedClient{hook: func(question string, _ int32) error {
			if question == "b" {
				panic("nil document")
			}
			return nil
		}}
		g := newTestGenerator(t, client)
		answers, err := g.AnswerMany(t.Context(), []string{"a", "b"}, []string{"", ""})
		require.NoError(t, err)
		assert.Equal(t, "answer: a", answers[0])
		assert.Equal(t, "Error processing query: nil document", answers[1])
	})

	t.Run("Should fill every slot when the batch cannot start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		client := &scriptedClient{}
		g := newTestGenerator(t, client)
		answers, err := g.AnswerMany(ctx, []string{"a", "b"}, []string{"", ""})
		require.NoError(t, err)
		assert.Equal(t, []string{"Error processing queries: context canceled", "Error processing queries: context canceled"}, answers)
		assert.Equal(t, int32(0), client.calls.Load())
	})

	t.Run("Should reject mismatched lengths", func(t *testing.T) {
		g := newTestGenerator(t, &scriptedClient{})
		_, err := g.AnswerMany(t.Context(), []string{"a"}, nil)
		require.Error(t, err)
	})

	t.Run("Should respect the concurrency cap", func(t *testing.T) {
		client := &scriptedClient{delay: 10 * time.Millisecond}
		g := newTestGenerator(t, client, WithMaxConcurrency(2))
		queries := []string{"a", "b", "c", "d", "e", "f"}
		_, err := g.AnswerMany(t.Context(), queries, make([]string, len(queries)))
		require.NoError(t, err)
		assert.LessOrEqual(t, client.peak.Load(), int32(2))
	})

	t.Run("Should return an empty slice for no questions", func(t *testing.T) {
		g := newTestGenerator(t, &scriptedClient{})
		answers, err := g.AnswerMany(t.Context(), nil, nil)
		require.NoError(t, err)
		assert.Empty(t, answers)
	})
}

func TestPrompt(t *testing.T) {
	t.Run("Should place context before the question", func(t *testing.T) {
		assert.Equal(t,
			"Context from retrieved documents:\nctx\n\nQuestion: q\n\nPlease provide a comprehensive answer based on the context above.",
			UserPrompt("q", "ctx"),
		)
	})

	t.Run("Should estimate tokens by characters", func(t *testing.T) {
		assert.Equal(t, 0, RuneCounter{}.CountTokens(t.Context(), ""))
		assert.Equal(t, 1, RuneCounter{}.CountTokens(t.Context(), "ab"))
		assert.Equal(t, 3, RuneCounter{}.CountTokens(t.Context(), "twelve chars"))
	})
}
