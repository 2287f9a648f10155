// Package ollama implements pkg/embeddings against Ollama's embedding APIs.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/playbook/pkg/embeddings"
	"github.com/papercomputeco/playbook/pkg/vector"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "nomic-embed-text"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultMaxRetries is the per-item retry budget.
	DefaultMaxRetries = 3

	// DefaultBatchConcurrency bounds concurrent requests during EmbedBatch.
	DefaultBatchConcurrency = 10

	defaultTimeout = 30 * time.Second
)

// Embedder wraps Ollama's embedding API with bounded retry and concurrent
// batch fan-out.
type Embedder struct {
	baseURL     string
	model       string
	maxRetries  int
	concurrency int
	httpClient  *http.Client

	// backoffBase is the initial retry delay, doubled per attempt.
	// Overridable in tests.
	backoffBase time.Duration

	mu    sync.Mutex
	stats embeddings.Stats
}

// EmbedderConfig holds configuration for the Ollama embedder.
type EmbedderConfig struct {
	// BaseURL is the Ollama API URL (e.g., "http://localhost:11434").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the embedding model to use (e.g., "nomic-embed-text").
	// Defaults to DefaultEmbeddingModel if empty.
	Model string

	// Timeout bounds each HTTP request. Defaults to 30s if zero.
	Timeout time.Duration

	// MaxRetries is the attempt budget per embedding before the item is
	// counted as failed. Defaults to DefaultMaxRetries if zero.
	MaxRetries int

	// BatchConcurrency bounds the fan-out during EmbedBatch.
	// Defaults to DefaultBatchConcurrency if zero.
	BatchConcurrency int
}

// embedRequest is the request body for Ollama's embedding API.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the response from Ollama's embedding API.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// tagsResponse is the response from Ollama's model listing API.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewEmbedder creates a new embedder using Ollama's embedding API.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	concurrency := cfg.BatchConcurrency
	if concurrency == 0 {
		concurrency = DefaultBatchConcurrency
	}

	return &Embedder{
		baseURL:     baseURL,
		model:       model,
		maxRetries:  maxRetries,
		concurrency: concurrency,
		backoffBase: time.Second,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Embed converts text into a vector embedding, retrying transient failures
// with exponential backoff before giving up.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.embedWithRetry(ctx, text)
	if err != nil {
		return nil, err
	}
	return result.Embedding, nil
}

// EmbedBatch embeds texts concurrently up to the configured fan-out. Failed
// items are dropped from the result and counted in provider stats; the
// returned results preserve input order for pairing with source entries.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]embeddings.Result, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	slots := make([]*embeddings.Result, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, text := range texts {
		g.Go(func() error {
			result, err := e.embedWithRetry(gctx, text)
			if err != nil {
				// Partial failure: drop the item, keep the batch.
				// Context cancellation still aborts the whole call.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			}
			slots[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: batch aborted: %v", vector.ErrEmbedding, err)
	}

	results := make([]embeddings.Result, 0, len(texts))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}

	return results, nil
}

// embedWithRetry calls the embedding API with bounded exponential backoff.
func (e *Embedder) embedWithRetry(ctx context.Context, text string) (*embeddings.Result, error) {
	var lastErr error

	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := e.backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := e.embedOnce(ctx, text)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	e.mu.Lock()
	e.stats.TotalFailures++
	e.mu.Unlock()

	return nil, lastErr
}

// embedOnce performs a single embedding request.
func (e *Embedder) embedOnce(ctx context.Context, text string) (*embeddings.Result, error) {
	reqBody := embedRequest{
		Model: e.model,
		Input: text,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", vector.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/api/embed", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", vector.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()

	e.mu.Lock()
	e.stats.TotalRequests++
	e.mu.Unlock()

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", vector.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: ollama returned status %d: %s", vector.ErrEmbedding, resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", vector.ErrEmbedding, err)
	}

	if len(embedResp.Embeddings) == 0 || len(embedResp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", vector.ErrEmbedding)
	}

	durationMs := float64(time.Since(start)) / float64(time.Millisecond)

	e.mu.Lock()
	e.stats.TotalEmbeddings++
	e.stats.TotalDurationMs += durationMs
	e.mu.Unlock()

	return &embeddings.Result{
		Text:       text,
		Embedding:  embedResp.Embeddings[0],
		DurationMs: durationMs,
	}, nil
}

// HealthCheck verifies the service is reachable and the configured model is
// present. A running service missing the model reports degraded rather than
// unavailable so callers can distinguish the two conditions.
func (e *Embedder) HealthCheck(ctx context.Context) embeddings.Health {
	req, err := http.NewRequestWithContext(ctx, "GET", e.baseURL+"/api/tags", nil)
	if err != nil {
		return embeddings.Health{
			Status:  embeddings.StatusUnavailable,
			Message: fmt.Sprintf("creating request: %v", err),
		}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return embeddings.Health{
			Status:  embeddings.StatusUnavailable,
			Message: fmt.Sprintf("cannot connect to ollama: %v", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return embeddings.Health{
			Status:  embeddings.StatusUnavailable,
			Message: fmt.Sprintf("ollama returned status %d", resp.StatusCode),
		}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return embeddings.Health{
			Status:  embeddings.StatusUnavailable,
			Message: fmt.Sprintf("decoding model list: %v", err),
		}
	}

	for _, m := range tags.Models {
		if m.Name == e.model || strings.TrimSuffix(m.Name, ":latest") == e.model {
			return embeddings.Health{Status: embeddings.StatusOK, Message: "OK"}
		}
	}

	return embeddings.Health{
		Status:  embeddings.StatusDegraded,
		Message: fmt.Sprintf("model %s not found", e.model),
	}
}

// Stats returns a copy of the provider counters.
func (e *Embedder) Stats() embeddings.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)
var _ embeddings.HealthChecker = (*Embedder)(nil)
