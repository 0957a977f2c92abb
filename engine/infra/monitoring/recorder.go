package monitoring

import (
	"context"
	"time"

	"github.com/compozy/docqa/engine/infra/monitoring/metrics"
	"github.com/compozy/docqa/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Recorder turns pipeline, embedding and generation events into metrics.
// A nil *Recorder ignores every call.
type Recorder struct {
	requestsTotal      metric.Int64Counter
	requestDuration    metric.Float64Histogram
	questionsTotal     metric.Int64Counter
	stageDuration      metric.Float64Histogram
	embeddingTotal     metric.Int64Counter
	embeddingTexts     metric.Int64Counter
	embeddingDuration  metric.Float64Histogram
	embeddingCache     metric.Int64Counter
	generationTotal    metric.Int64Counter
	generationDuration metric.Float64Histogram
	promptTokens       metric.Int64Histogram
}

// NewRecorder creates the domain instruments on meter. Instruments that fail
// to register are logged and skipped.
func NewRecorder(ctx context.Context, meter metric.Meter) *Recorder {
	if meter == nil {
		return nil
	}
	b := &instrumentBuilder{meter: meter, log: logger.FromContext(ctx)}
	return &Recorder{
		requestsTotal: b.counter("pipeline", "requests_total", "Processed question batches"),
		requestDuration: b.histogram(
			"pipeline", "request_duration_seconds", "End-to-end batch latency", metrics.StageDurationBuckets,
		),
		questionsTotal: b.counter("pipeline", "questions_total", "Questions received"),
		stageDuration: b.histogram(
			"pipeline", "stage_duration_seconds", "Latency per pipeline stage", metrics.StageDurationBuckets,
		),
		embeddingTotal: b.counter("embedding", "requests_total", "Embedding provider calls"),
		embeddingTexts: b.counter("embedding", "texts_total", "Texts sent to the embedding provider"),
		embeddingDuration: b.histogram(
			"embedding", "duration_seconds", "Embedding provider latency", metrics.StageDurationBuckets,
		),
		embeddingCache:  b.counter("embedding", "cache_lookups_total", "Embedding cache lookups"),
		generationTotal: b.counter("llm", "generations_total", "Answer generation calls"),
		generationDuration: b.histogram(
			"llm", "generation_duration_seconds", "Answer generation latency", metrics.StageDurationBuckets,
		),
		promptTokens: b.intHistogram("llm", "prompt_tokens", "Estimated prompt tokens per question", metrics.TokenBuckets),
	}
}

// RecordRequest records one processed batch.
func (r *Recorder) RecordRequest(ctx context.Context, questions int, duration time.Duration, err error) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(outcome(err))
	addInt(ctx, r.requestsTotal, 1, attrs)
	addInt(ctx, r.questionsTotal, int64(questions), attrs)
	recordFloat(ctx, r.requestDuration, duration.Seconds(), attrs)
}

// RecordStage records the latency of a single pipeline stage.
func (r *Recorder) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	recordFloat(ctx, r.stageDuration, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		outcome(err),
	))
}

// RecordEmbedding records a provider call.
func (r *Recorder) RecordEmbedding(
	ctx context.Context,
	provider string,
	texts int,
	duration time.Duration,
	err error,
) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("provider", provider), outcome(err))
	addInt(ctx, r.embeddingTotal, 1, attrs)
	addInt(ctx, r.embeddingTexts, int64(texts), attrs)
	recordFloat(ctx, r.embeddingDuration, duration.Seconds(), attrs)
}

// RecordEmbeddingCache records a cache hit or miss.
func (r *Recorder) RecordEmbeddingCache(ctx context.Context, provider string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	addInt(ctx, r.embeddingCache, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("result", result),
	))
}

// RecordGeneration records one answered question.
func (r *Recorder) RecordGeneration(ctx context.Context, duration time.Duration, promptTokens int, err error) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(outcome(err))
	addInt(ctx, r.generationTotal, 1, attrs)
	recordFloat(ctx, r.generationDuration, duration.Seconds(), attrs)
	if r.promptTokens != nil && promptTokens > 0 {
		r.promptTokens.Record(ctx, int64(promptTokens))
	}
}

func outcome(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("outcome", outcomeError)
	}
	return attribute.String("outcome", outcomeSuccess)
}

func addInt(ctx context.Context, c metric.Int64Counter, v int64, opts ...metric.AddOption) {
	if c != nil {
		c.Add(ctx, v, opts...)
	}
}

func recordFloat(ctx context.Context, h metric.Float64Histogram, v float64, opts ...metric.RecordOption) {
	if h != nil {
		h.Record(ctx, v, opts...)
	}
}

type instrumentBuilder struct {
	meter metric.Meter
	log   logger.Logger
}

func (b *instrumentBuilder) counter(subsystem, name, desc string) metric.Int64Counter {
	full := metrics.MetricNameWithSubsystem(subsystem, name)
	c, err := b.meter.Int64Counter(full, metric.WithDescription(desc))
	if err != nil {
		b.log.Error("Failed to create counter", "metric", full, "error", err)
		return nil
	}
	return c
}

func (b *instrumentBuilder) histogram(subsystem, name, desc string, buckets []float64) metric.Float64Histogram {
	full := metrics.MetricNameWithSubsystem(subsystem, name)
	h, err := b.meter.Float64Histogram(
		full,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	if err != nil {
		b.log.Error("Failed to create histogram", "metric", full, "error", err)
		return nil
	}
	return h
}

func (b *instrumentBuilder) intHistogram(subsystem, name, desc string, buckets []float64) metric.Int64Histogram {
	full := metrics.MetricNameWithSubsystem(subsystem, name)
	h, err := b.meter.Int64Histogram(
		full,
		metric.WithDescription(desc),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	if err != nil {
		b.log.Error("Failed to create histogram", "metric", full, "error", err)
		return nil
	}
	return h
}
