package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/compozy/docqa/engine/knowledge/index"
	"github.com/compozy/docqa/pkg/logger"
)

const DefaultMaxChunks = 3

// Searcher is the subset of index.Index used for retrieval.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, threshold float64) ([]index.Result, error)
	Threshold() float64
}

// TokenCounter sizes result texts against the token budget.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) int
}

type runeCounter struct{}

func (runeCounter) CountTokens(_ context.Context, text string) int {
	count := len([]rune(text))
	if count == 0 {
		return 0
	}
	tokens := count / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

type Service struct {
	searcher  Searcher
	maxChunks int
	maxTokens int
	counter   TokenCounter
	tracer    trace.Tracer
}

type Option func(*Service)

// WithMaxChunks sets the chunk count used when callers pass zero.
func WithMaxChunks(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxChunks = n
		}
	}
}

// WithMaxTokens drops trailing results once the counted total exceeds n.
// A nil counter keeps the four-characters-per-token estimate.
func WithMaxTokens(n int, counter TokenCounter) Option {
	return func(s *Service) {
		s.maxTokens = n
		if counter != nil {
			s.counter = counter
		}
	}
}

func NewService(searcher Searcher, opts ...Option) (*Service, error) {
	if searcher == nil {
		return nil, errors.New("retriever: searcher is required")
	}
	s := &Service{
		searcher:  searcher,
		maxChunks: DefaultMaxChunks,
		counter:   runeCounter{},
		tracer:    otel.Tracer("docqa.knowledge.retriever"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetContext renders the best chunks for query as numbered, scored blocks.
// It returns an empty string when nothing clears the index threshold.
func (s *Service) GetContext(ctx context.Context, query string, maxChunks int) (string, error) {
	results, err := s.Retrieve(ctx, query, maxChunks)
	if err != nil {
		return "", err
	}
	return Format(results), nil
}

// Format renders results in rank order.
func Format(results []index.Result) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, len(results))
	for i := range results {
		parts[i] = fmt.Sprintf("[Context %d] (Score: %.2f)\n%s", i+1, results[i].Score, results[i].Text)
	}
	return strings.Join(parts, "\n\n")
}

// Retrieve returns the raw search results for query.
func (s *Service) Retrieve(ctx context.Context, query string, maxChunks int) (results []index.Result, err error) {
	if maxChunks <= 0 {
		maxChunks = s.maxChunks
	}
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "retriever.GetContext", trace.WithAttributes(
		attribute.Int("query_length", len(query)),
		attribute.Int("max_chunks", maxChunks),
	))
	defer s.finishRetrieve(ctx, span, start, &results, &err)

	logger.FromContext(ctx).Debug("Context retrieval started", "query_length", len(query), "max_chunks", maxChunks)
	results, err = s.searcher.Search(ctx, query, maxChunks, s.searcher.Threshold())
	if err != nil {
		return nil, fmt.Errorf("retriever: %w", err)
	}
	results = s.trimToBudget(ctx, results)
	return results, nil
}

func (s *Service) trimToBudget(ctx context.Context, results []index.Result) []index.Result {
	if s.maxTokens <= 0 || len(results) == 0 {
		return results
	}
	total := 0
	for i := range results {
		total += s.counter.CountTokens(ctx, results[i].Text)
		if total > s.maxTokens {
			return results[:i]
		}
	}
	return results
}

func (s *Service) finishRetrieve(
	ctx context.Context,
	span trace.Span,
	start time.Time,
	results *[]index.Result,
	runErr *error,
) {
	seconds := time.Since(start).Seconds()
	log := logger.FromContext(ctx)
	if runErr != nil && *runErr != nil {
		err := *runErr
		log.Error("Context retrieval failed", "error", err, "duration_seconds", seconds)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return
	}
	total := len(*results)
	attrs := []attribute.KeyValue{attribute.Int("results", total)}
	if total > 0 {
		attrs = append(attrs, attribute.Float64("top_score", (*results)[0].Score))
	}
	log.Debug("Context retrieval finished", "results", total, "duration_seconds", seconds)
	span.SetAttributes(attrs...)
	span.End()
}
