// Package retrieval coordinates embedding generation and vector search
// across a production backend and an embedded fallback. Callers never deal
// with backend selection: the coordinator probes health lazily, picks a
// backend once, and degrades to empty results rather than failing when
// nothing usable is reachable.
package retrieval

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/embeddings"
	"github.com/papercomputeco/playbook/pkg/playbook"
	"github.com/papercomputeco/playbook/pkg/vector"
)

// Backend identifies which vector backend the coordinator selected.
type Backend int

const (
	// BackendUnselected means no probe has run yet. The next operation
	// that needs a backend triggers selection.
	BackendUnselected Backend = iota

	// BackendProduction is the external vector service.
	BackendProduction

	// BackendFallback is the embedded sqlite-vec store.
	BackendFallback

	// BackendDisabled means neither the embedder nor any backend is
	// usable. Searches return empty results without error.
	BackendDisabled
)

// String returns a human readable backend name.
func (b Backend) String() string {
	switch b {
	case BackendProduction:
		return "production"
	case BackendFallback:
		return "fallback"
	case BackendDisabled:
		return "disabled"
	default:
		return "unselected"
	}
}

// DefaultMinEntriesForIndex gates indexing until the playbook has enough
// entries for retrieval to be worth the embedding cost.
const DefaultMinEntriesForIndex = 10

// HealthChecker probes a vector backend for reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds the coordinator's collaborators and tuning knobs.
type Config struct {
	// Embedder generates embeddings for entries and queries.
	Embedder embeddings.BatchEmbedder

	// EmbedderHealth reports whether the embedder is usable. When nil the
	// embedder is assumed healthy.
	EmbedderHealth embeddings.HealthChecker

	// Production is the preferred backend. May be nil when not configured.
	Production vector.Driver

	// ProductionHealth probes the production backend before selection.
	// When nil and Production is set, production is assumed reachable.
	ProductionHealth HealthChecker

	// Fallback is the embedded backend used when production is
	// unreachable. May be nil.
	Fallback vector.Driver

	// MinEntriesForIndex gates IndexActive.
	// Defaults to DefaultMinEntriesForIndex if zero.
	MinEntriesForIndex int

	// Logger defaults to a no-op logger when nil.
	Logger *zap.Logger
}

// Coordinator routes indexing and search through the selected backend.
type Coordinator struct {
	embedder           embeddings.BatchEmbedder
	embedderHealth     embeddings.HealthChecker
	production         vector.Driver
	productionHealth   HealthChecker
	fallback           vector.Driver
	minEntriesForIndex int
	logger             *zap.Logger

	mu      sync.Mutex
	backend Backend
	driver  vector.Driver
	reason  string
}

// Match is a search hit with its similarity normalized to [0, 1].
type Match struct {
	Name           string
	Text           string
	Score          int
	Source         string
	AtomicityScore float64
	Similarity     float64
}

// IndexReport summarizes an IndexActive run.
type IndexReport struct {
	// Indexed is the number of entries upserted to the backend.
	Indexed int

	// Failed is the number of entries whose embedding failed and were
	// skipped.
	Failed int

	// Skipped is true when indexing did not run (backend disabled or the
	// entry count is below the minimum).
	Skipped bool

	// Backend is the backend the documents went to.
	Backend Backend
}

// NewCoordinator creates a retrieval coordinator. No backend is probed
// until the first operation that needs one.
func NewCoordinator(c Config) (*Coordinator, error) {
	if c.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	minEntries := c.MinEntriesForIndex
	if minEntries == 0 {
		minEntries = DefaultMinEntriesForIndex
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		embedder:           c.Embedder,
		embedderHealth:     c.EmbedderHealth,
		production:         c.Production,
		productionHealth:   c.ProductionHealth,
		fallback:           c.Fallback,
		minEntriesForIndex: minEntries,
		logger:             logger,
		backend:            BackendUnselected,
	}, nil
}

// Backend reports the currently selected backend without triggering a probe.
func (c *Coordinator) Backend() Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

// Reason explains the last selection decision, for status reporting.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Reset clears the selection so the next operation re-probes. Useful after
// a backend comes back up.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend = BackendUnselected
	c.driver = nil
	c.reason = ""
}

// selectBackend picks a backend, probing lazily on first use. The decision
// sticks until Reset is called.
func (c *Coordinator) selectBackend(ctx context.Context) (vector.Driver, Backend) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend != BackendUnselected {
		return c.driver, c.backend
	}

	if c.embedderHealth != nil {
		health := c.embedderHealth.HealthCheck(ctx)
		if !health.Usable() {
			c.backend = BackendDisabled
			c.reason = fmt.Sprintf("embedder unavailable: %s", health.Message)
			c.logger.Warn("retrieval disabled",
				zap.String("reason", c.reason),
			)
			return nil, c.backend
		}
	}

	if c.production != nil {
		reachable := true
		if c.productionHealth != nil {
			if err := c.productionHealth.HealthCheck(ctx); err != nil {
				reachable = false
				c.reason = fmt.Sprintf("production backend unreachable: %v", err)
			}
		}
		if reachable {
			c.backend = BackendProduction
			c.driver = c.production
			c.reason = "production backend healthy"
			c.logger.Info("selected production vector backend")
			return c.driver, c.backend
		}
	} else if c.reason == "" {
		c.reason = "production backend not configured"
	}

	if c.fallback != nil {
		c.backend = BackendFallback
		c.driver = c.fallback
		c.logger.Info("selected fallback vector backend",
			zap.String("reason", c.reason),
		)
		return c.driver, c.backend
	}

	c.backend = BackendDisabled
	if c.reason == "" {
		c.reason = "no vector backend configured"
	}
	c.logger.Warn("retrieval disabled",
		zap.String("reason", c.reason),
	)
	return nil, c.backend
}

// IndexActive embeds and upserts the store's active entries. Indexing is
// skipped below the minimum entry count and when retrieval is disabled.
// Entries whose embedding fails are dropped from the batch and counted.
func (c *Coordinator) IndexActive(ctx context.Context, store *playbook.Store, source string) (*IndexReport, error) {
	active := store.ListActive()
	if len(active) < c.minEntriesForIndex {
		c.logger.Debug("skipping indexing, below minimum entry count",
			zap.Int("active", len(active)),
			zap.Int("minimum", c.minEntriesForIndex),
		)
		return &IndexReport{Skipped: true, Backend: c.Backend()}, nil
	}

	driver, backend := c.selectBackend(ctx)
	if backend == BackendDisabled {
		return &IndexReport{Skipped: true, Backend: backend}, nil
	}

	texts := make([]string, len(active))
	for i, entry := range active {
		texts[i] = entry.Text
	}

	results, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d entries: %w", len(texts), err)
	}

	byText := make(map[string][]float32, len(results))
	for _, r := range results {
		byText[r.Text] = r.Embedding
	}

	docs := make([]vector.Document, 0, len(active))
	failed := 0
	for _, entry := range active {
		embedding, ok := byText[entry.Text]
		if !ok {
			failed++
			continue
		}

		var atomicity float64
		if entry.AtomicityScore != nil {
			atomicity = *entry.AtomicityScore
		}

		docs = append(docs, vector.Document{
			ID:             vector.PointID(entry.Name),
			Name:           entry.Name,
			Text:           entry.Text,
			Score:          entry.Score,
			Status:         string(entry.Status),
			Source:         source,
			AtomicityScore: atomicity,
			Embedding:      embedding,
		})
	}

	if len(docs) > 0 {
		if err := driver.Upsert(ctx, docs); err != nil {
			return nil, fmt.Errorf("upserting to %s backend: %w", backend, err)
		}
	}

	c.logger.Info("indexed active entries",
		zap.Int("indexed", len(docs)),
		zap.Int("failed", failed),
		zap.String("backend", backend.String()),
	)

	return &IndexReport{
		Indexed: len(docs),
		Failed:  failed,
		Backend: backend,
	}, nil
}

// Search embeds the query and returns up to topK active entries ranked by
// similarity. Retrieval failures are never surfaced to callers: a disabled
// backend, a failed query embedding, or a backend query error all produce
// no matches and no error, so an unreachable service costs the caller
// context rather than a failed run.
func (c *Coordinator) Search(ctx context.Context, query string, topK int, minScore *int) ([]Match, error) {
	driver, backend := c.selectBackend(ctx)
	if backend == BackendDisabled {
		return nil, nil
	}

	embedding, err := c.embedder.Embed(ctx, query)
	if err != nil {
		c.logger.Warn("query embedding failed, returning no matches",
			zap.Error(err),
		)
		return nil, nil
	}

	filter := &vector.Filter{
		Status:   string(playbook.StatusActive),
		MinScore: minScore,
	}

	results, err := driver.Query(ctx, embedding, topK, filter)
	if err != nil {
		c.logger.Warn("vector query failed, returning no matches",
			zap.String("backend", backend.String()),
			zap.Error(err),
		)
		return nil, nil
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			Name:           r.Name,
			Text:           r.Text,
			Score:          r.Document.Score,
			Source:         r.Source,
			AtomicityScore: r.AtomicityScore,
			Similarity:     normalizeSimilarity(r.Score),
		})
	}

	c.logger.Debug("search completed",
		zap.Int("matches", len(matches)),
		zap.String("backend", backend.String()),
	)

	return matches, nil
}

// RemoveEntries deletes the given entry names from the selected backend.
// A disabled backend makes this a no-op.
func (c *Coordinator) RemoveEntries(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	driver, backend := c.selectBackend(ctx)
	if backend == BackendDisabled {
		return nil
	}

	ids := make([]string, len(names))
	for i, name := range names {
		ids[i] = vector.PointID(name)
	}

	return driver.Delete(ctx, ids)
}

// Stats reports the selected backend's collection statistics, or nil when
// retrieval is disabled.
func (c *Coordinator) Stats(ctx context.Context) (*vector.Stats, error) {
	driver, backend := c.selectBackend(ctx)
	if backend == BackendDisabled {
		return nil, nil
	}
	return driver.Stats(ctx)
}

// Close releases the configured drivers and the embedder.
func (c *Coordinator) Close() error {
	var firstErr error
	if c.production != nil {
		if err := c.production.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.fallback != nil {
		if err := c.fallback.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// normalizeSimilarity clamps backend similarity scores to [0, 1]. Cosine
// similarity can go negative for dissimilar vectors; those clamp to zero.
func normalizeSimilarity(score float32) float64 {
	s := float64(score)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
