package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/compozy/docqa/engine/core"
	"github.com/compozy/docqa/engine/knowledge/chunk"
	"github.com/compozy/docqa/engine/knowledge/embedder"
	"github.com/compozy/docqa/engine/knowledge/index"
	"github.com/compozy/docqa/engine/knowledge/retriever"
	"github.com/compozy/docqa/pkg/logger"
)

var (
	// ErrDocumentProcessing marks failures to fetch, extract or chunk the document.
	ErrDocumentProcessing = errors.New("failed to process document")
	// ErrIndexing marks failures to embed or index the chunks.
	ErrIndexing = errors.New("failed to index document")
)

// DocumentProcessor turns a document URL into chunks.
type DocumentProcessor interface {
	Process(ctx context.Context, rawURL string) ([]chunk.Chunk, error)
}

// AnswerGenerator answers questions from per-question context.
type AnswerGenerator interface {
	AnswerMany(ctx context.Context, queries, contexts []string) ([]string, error)
}

// Recorder receives pipeline telemetry. A nil Recorder is ignored.
type Recorder interface {
	RecordStage(ctx context.Context, stage string, duration time.Duration, err error)
	RecordRequest(ctx context.Context, questions int, duration time.Duration, err error)
}

// Settings configures retrieval for each request.
type Settings struct {
	TopK      int
	Threshold float64
	MaxChunks int
	// MaxTokens caps each question's context; 0 disables the cap.
	MaxTokens int
}

// DefaultSettings mirrors the retrieval defaults.
func DefaultSettings() Settings {
	return Settings{TopK: index.DefaultTopK, Threshold: index.DefaultThreshold, MaxChunks: retriever.DefaultMaxChunks}
}

// Orchestrator runs document processing, indexing, retrieval and answering.
type Orchestrator struct {
	documents DocumentProcessor
	embedder  embedder.Embedder
	generator AnswerGenerator
	settings  Settings
	recorder  Recorder
	counter   retriever.TokenCounter
	tracer    trace.Tracer
}

type Option func(*Orchestrator)

func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

// WithTokenCounter sets the counter used for the context token budget.
func WithTokenCounter(counter retriever.TokenCounter) Option {
	return func(o *Orchestrator) {
		o.counter = counter
	}
}

func New(
	documents DocumentProcessor,
	emb embedder.Embedder,
	generator AnswerGenerator,
	settings Settings,
	opts ...Option,
) (*Orchestrator, error) {
	if documents == nil {
		return nil, errors.New("pipeline: document processor is required")
	}
	if emb == nil {
		return nil, errors.New("pipeline: embedder is required")
	}
	if generator == nil {
		return nil, errors.New("pipeline: answer generator is required")
	}
	defaults := DefaultSettings()
	if settings.TopK <= 0 {
		settings.TopK = defaults.TopK
	}
	if settings.MaxChunks <= 0 {
		settings.MaxChunks = defaults.MaxChunks
	}
	o := &Orchestrator{
		documents: documents,
		embedder:  emb,
		generator: generator,
		settings:  settings,
		tracer:    otel.Tracer("docqa.pipeline"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Process answers questions about the document at documentURL. Answers keep
// the order of questions. Each call builds its own index, so concurrent calls
// never observe each other's documents. No questions yields an empty answer
// list without fetching the document.
func (o *Orchestrator) Process(ctx context.Context, documentURL string, questions []string) (answers []string, err error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "pipeline.Process", trace.WithAttributes(
		attribute.Int("questions", len(questions)),
	))
	log := logger.FromContext(ctx).With("url", core.RedactURL(documentURL), "questions", len(questions))
	defer func() {
		if o.recorder != nil {
			o.recorder.RecordRequest(ctx, len(questions), time.Since(start), err)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, core.RedactError(err))
		}
		span.End()
	}()
	if len(questions) == 0 {
		log.Info("No questions, skipping document")
		return []string{}, nil
	}
	log.Info("Processing request")

	chunks, err := o.processDocument(ctx, documentURL)
	if err != nil {
		return nil, err
	}
	ix, err := o.buildIndex(ctx, chunks)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := ix.Close(ctx); closeErr != nil {
			log.Warn("Failed to release request index", "error", closeErr)
		}
	}()
	contexts, err := o.retrieveContexts(ctx, ix, questions)
	if err != nil {
		return nil, err
	}
	stageStart := time.Now()
	answers, err = o.generator.AnswerMany(ctx, questions, contexts)
	o.recordStage(ctx, "answer", stageStart, err)
	if err != nil {
		return nil, fmt.Errorf("generate answers: %w", err)
	}
	log.Info("Request processed",
		"chunks", len(chunks),
		"duration_seconds", time.Since(start).Seconds(),
	)
	return answers, nil
}

func (o *Orchestrator) processDocument(ctx context.Context, documentURL string) ([]chunk.Chunk, error) {
	start := time.Now()
	chunks, err := o.documents.Process(ctx, documentURL)
	o.recordStage(ctx, "document", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentProcessing, err)
	}
	return chunks, nil
}

func (o *Orchestrator) buildIndex(ctx context.Context, chunks []chunk.Chunk) (*index.Index, error) {
	start := time.Now()
	ix, err := index.New(o.embedder, index.WithTopK(o.settings.TopK), index.WithThreshold(o.settings.Threshold))
	if err == nil {
		err = ix.Reindex(ctx, chunks)
	}
	o.recordStage(ctx, "index", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexing, err)
	}
	return ix, nil
}

// retrieveContexts fetches context per question. A failed lookup leaves that
// question with empty context instead of failing the request.
func (o *Orchestrator) retrieveContexts(ctx context.Context, ix *index.Index, questions []string) ([]string, error) {
	start := time.Now()
	svc, err := retriever.NewService(ix,
		retriever.WithMaxChunks(o.settings.MaxChunks),
		retriever.WithMaxTokens(o.settings.MaxTokens, o.counter),
	)
	if err != nil {
		return nil, err
	}
	contexts := make([]string, len(questions))
	for i, question := range questions {
		text, err := svc.GetContext(ctx, question, o.settings.MaxChunks)
		if err != nil {
			logger.FromContext(ctx).Warn("Context retrieval failed, answering without context",
				"question_index", i,
				"error", core.RedactError(err),
			)
			continue
		}
		contexts[i] = text
	}
	o.recordStage(ctx, "retrieve", start, nil)
	return contexts, nil
}

func (o *Orchestrator) recordStage(ctx context.Context, stage string, start time.Time, err error) {
	if o.recorder != nil {
		o.recorder.RecordStage(ctx, stage, time.Since(start), err)
	}
}
