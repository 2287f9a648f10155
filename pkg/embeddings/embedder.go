// Package embeddings defines the text embedding contract used by retrieval.
package embeddings

import "context"

// HealthStatus is the tri-state result of a provider health check. A
// reachable service missing the configured model is surfaced distinctly
// (degraded) from an unreachable one (unavailable).
type HealthStatus string

const (
	StatusOK          HealthStatus = "ok"
	StatusDegraded    HealthStatus = "degraded"
	StatusUnavailable HealthStatus = "unavailable"
)

// Health describes the outcome of a provider health check.
type Health struct {
	Status  HealthStatus
	Message string
}

// Usable reports whether the provider can serve embedding requests at all.
func (h Health) Usable() bool {
	return h.Status == StatusOK || h.Status == StatusDegraded
}

// Result is one successful batch embedding, paired with its source text and
// the time the call took.
type Result struct {
	Text       string
	Embedding  []float32
	DurationMs float64
}

// Stats tracks provider-level counters across calls.
type Stats struct {
	TotalRequests   int64
	TotalEmbeddings int64
	TotalFailures   int64
	TotalDurationMs float64
}

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// BatchEmbedder embeds many texts with partial-failure tolerance: a failed
// item is dropped from the result (and counted in provider stats) rather
// than failing the whole batch. Result order follows input order.
type BatchEmbedder interface {
	Embedder

	EmbedBatch(ctx context.Context, texts []string) ([]Result, error)
}

// HealthChecker verifies the embedding service is reachable and the
// configured model is present.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}
