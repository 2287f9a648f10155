// Package vector provides interfaces and implementations for vector storage
// of playbook strategies.
package vector

import "context"

// Document represents a stored strategy with its embedding and payload.
type Document struct {
	// ID is the unique point identifier, a deterministic function of the
	// entry name (see PointID) so re-indexing updates rather than
	// duplicates the vector.
	ID string

	// Name is the stable playbook entry name (kpt_NNN).
	Name string

	// Text is the strategy text the embedding was generated from.
	Text string

	// Score is the entry's playbook score at index time.
	Score int

	// Status is the entry's lifecycle status at index time.
	Status string

	// Source tags where the entry was learned.
	Source string

	// AtomicityScore is the entry's quality signal, 0 when absent.
	AtomicityScore float64

	// Embedding is the vector representation of the text.
	Embedding []float32
}

// QueryResult represents a search result with its similarity score.
type QueryResult struct {
	Document

	// Score represents the backend's similarity (higher = more similar).
	// Backend-specific scales are normalized at the retrieval coordinator.
	Score float32
}

// Filter restricts query results by payload fields.
type Filter struct {
	// Status matches entries with exactly this status when non-empty.
	Status string

	// MinScore keeps entries whose playbook score is >= the value when set.
	MinScore *int
}

// Stats describes the backend collection.
type Stats struct {
	PointsCount uint64
	Collection  string
}

// Driver handles storage and retrieval of strategy embeddings. Implementers
// must make Upsert idempotent per document ID so partially completed batches
// are safe to abandon and re-run.
type Driver interface {
	// EnsureCollection creates the backing collection if it doesn't exist.
	EnsureCollection(ctx context.Context) error

	// Upsert stores documents with their embeddings, updating any
	// document whose ID already exists.
	Upsert(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding,
	// restricted by the filter.
	Query(ctx context.Context, embedding []float32, topK int, filter *Filter) ([]QueryResult, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Stats returns collection statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases any resources held by the driver.
	Close() error
}
