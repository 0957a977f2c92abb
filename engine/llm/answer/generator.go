package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	llmadapter "github.com/compozy/docqa/engine/llm/adapter"
	"github.com/compozy/docqa/pkg/logger"
)

const (
	DefaultTimeout       = 60 * time.Second
	DefaultRetryAttempts = 2
	DefaultRetryBackoff  = 500 * time.Millisecond
	maxRetryBackoff      = 10 * time.Second
)

// Outcome is the result of one question in a batch.
type Outcome struct {
	Text string
	Err  error
}

// String resolves the outcome into the answer shown to callers.
func (o Outcome) String() string {
	if o.Err != nil {
		return "Error processing query: " + o.Err.Error()
	}
	return o.Text
}

// Recorder receives generation telemetry. A nil Recorder is ignored.
type Recorder interface {
	RecordGeneration(ctx context.Context, duration time.Duration, promptTokens int, err error)
}

// Generator asks the LLM to answer questions from retrieved context.
type Generator struct {
	client         llmadapter.LLMClient
	timeout        time.Duration
	retryAttempts  int
	retryBackoff   time.Duration
	maxConcurrency int
	temperature    float64
	maxTokens      int32
	counter        TokenCounter
	recorder       Recorder
}

type Option func(*Generator)

// WithTimeout bounds each LLM attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Generator) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// WithRetry sets how many times a retryable failure is repeated.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(g *Generator) {
		if attempts >= 0 {
			g.retryAttempts = attempts
		}
		if backoff > 0 {
			g.retryBackoff = backoff
		}
	}
}

// WithMaxConcurrency caps in-flight questions; zero dispatches every question at once.
func WithMaxConcurrency(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.maxConcurrency = n
		}
	}
}

// WithSampling overrides the provider temperature and output limit.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(g *Generator) {
		g.temperature = temperature
		g.maxTokens = int32(min(maxTokens, 1<<30)) // #nosec G115 -- clamped above
	}
}

func WithTokenCounter(counter TokenCounter) Option {
	return func(g *Generator) {
		if counter != nil {
			g.counter = counter
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(g *Generator) {
		g.recorder = recorder
	}
}

func New(client llmadapter.LLMClient, opts ...Option) (*Generator, error) {
	if client == nil {
		return nil, errors.New("answer: llm client is required")
	}
	g := &Generator{
		client:        client,
		timeout:       DefaultTimeout,
		retryAttempts: DefaultRetryAttempts,
		retryBackoff:  DefaultRetryBackoff,
		counter:       NewTiktokenCounter(defaultEncoding),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Answer returns the model's answer or, on failure, an apology naming the error.
func (g *Generator) Answer(ctx context.Context, query, docContext string) string {
	text, err := g.generate(ctx, query, docContext)
	if err != nil {
		logger.FromContext(ctx).Error("Answer generation failed", "error", err, "query_length", len(query))
		return "I apologize, but I encountered an error while processing your query: " + err.Error()
	}
	return text
}

// AnswerMany answers every query concurrently and returns the answers in
// input order. A failing question never affects the others.
func (g *Generator) AnswerMany(ctx context.Context, queries, contexts []string) ([]string, error) {
	if len(queries) != len(contexts) {
		return nil, fmt.Errorf("answer: got %d queries but %d contexts", len(queries), len(contexts))
	}
	answers := make([]string, len(queries))
	if err := ctx.Err(); err != nil {
		for i := range answers {
			answers[i] = "Error processing queries: " + err.Error()
		}
		return answers, nil
	}
	outcomes := make([]Outcome, len(queries))
	var group errgroup.Group
	if g.maxConcurrency > 0 {
		group.SetLimit(g.maxConcurrency)
	}
	for i := range queries {
		group.Go(func() error {
			outcomes[i] = g.answerOne(ctx, queries[i], contexts[i])
			return nil
		})
	}
	_ = group.Wait()
	for i := range outcomes {
		answers[i] = outcomes[i].String()
	}
	return answers, nil
}

func (g *Generator) answerOne(ctx context.Context, query, docContext string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("Answer unit panicked", "panic", r)
			out = Outcome{Err: fmt.Errorf("%v", r)}
		}
	}()
	return Outcome{Text: g.Answer(ctx, query, docContext)}
}

func (g *Generator) generate(ctx context.Context, query, docContext string) (string, error) {
	req := &llmadapter.LLMRequest{
		SystemPrompt: SystemPrompt,
		Messages: []llmadapter.Message{
			{Role: llmadapter.RoleUser, Content: UserPrompt(query, docContext)},
		},
		Options: llmadapter.CallOptions{
			Temperature: g.temperature,
			MaxTokens:   g.maxTokens,
		},
	}
	promptTokens := g.counter.CountTokens(ctx, SystemPrompt) + g.counter.CountTokens(ctx, req.Messages[0].Content)
	start := time.Now()
	resp, err := g.invoke(ctx, req)
	if g.recorder != nil {
		g.recorder.RecordGeneration(ctx, time.Since(start), promptTokens, err)
	}
	if err != nil {
		return "", err
	}
	logger.FromContext(ctx).Debug("Answer generated",
		"prompt_tokens", promptTokens,
		"duration_seconds", time.Since(start).Seconds(),
	)
	return strings.TrimSpace(resp.Content), nil
}

func (g *Generator) invoke(ctx context.Context, req *llmadapter.LLMRequest) (*llmadapter.LLMResponse, error) {
	backoff := retry.WithMaxRetries(
		uint64(g.retryAttempts), // #nosec G115 -- non-negative by construction
		retry.WithCappedDuration(maxRetryBackoff, retry.NewExponential(g.retryBackoff)),
	)
	var response *llmadapter.LLMResponse
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		resp, callErr := g.client.GenerateContent(attemptCtx, req)
		if callErr != nil {
			if ctx.Err() == nil && llmadapter.IsRetryable(callErr) {
				logger.FromContext(ctx).Warn("Retrying answer generation", "error", callErr)
				return retry.RetryableError(callErr)
			}
			return callErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}
