package metrics

// HTTPDurationBuckets defines latency buckets for HTTP request duration metrics.
var HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// StageDurationBuckets covers pipeline stages, from a cached embedding to a full PDF download.
var StageDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120}

// TokenBuckets groups prompt sizes.
var TokenBuckets = []float64{64, 128, 256, 512, 1_000, 2_000, 4_000, 8_000, 16_000}
