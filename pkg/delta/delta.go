// Package delta implements the playbook mutation engine: building an ordered
// batch of atomic operations for one update cycle, applying it to a store,
// and deriving retention archivals.
//
// Building a delta is a pure staging step with no store mutation; validation
// and conflict resolution happen at apply time. This split lets retention
// rules run over the fully staged batch before anything is committed.
package delta

import (
	"time"

	"github.com/papercomputeco/playbook/pkg/playbook"
)

// OpType identifies one of the three atomic operations.
type OpType string

const (
	OpAdd         OpType = "add"
	OpArchive     OpType = "archive"
	OpScoreUpdate OpType = "score_update"
)

// Op is one atomic mutation. Fields beyond Type and Target are populated
// per-type: Data/Reason for add, Reason for archive, Delta/Rating/
// Justification for score_update.
type Op struct {
	Type   OpType `json:"type"`
	Target string `json:"target"`

	Data   *playbook.Entry `json:"data,omitempty"`
	Reason string          `json:"reason,omitempty"`

	Delta         int    `json:"delta,omitempty"`
	Rating        string `json:"rating,omitempty"`
	Justification string `json:"justification,omitempty"`
}

// Delta is one batch of operations produced by a single update cycle.
// Timestamp is the effective time for every operation it contains.
type Delta struct {
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
	Operations []Op      `json:"operations"`
	OpCount    int       `json:"operation_count"`
}

// Builder accumulates operations for one update cycle.
type Builder struct {
	source    string
	timestamp time.Time
	ops       []Op
}

// NewBuilder creates a builder for a delta from the given source tag
// (e.g. "precompact", "session_end") stamped with the current time.
func NewBuilder(source string) *Builder {
	return NewBuilderAt(source, time.Now())
}

// NewBuilderAt creates a builder with an explicit timestamp. The engine uses
// this so one cycle's operations all share an effective time.
func NewBuilderAt(source string, ts time.Time) *Builder {
	return &Builder{
		source:    source,
		timestamp: ts,
	}
}

// AddKeyPoint stages an add operation for a new entry. Entries without text
// are dropped here; all other validation happens at apply time.
func (b *Builder) AddKeyPoint(entry *playbook.Entry, reason string) {
	if entry == nil || entry.Text == "" {
		return
	}

	b.ops = append(b.ops, Op{
		Type:   OpAdd,
		Target: entry.Name,
		Data:   entry,
		Reason: reason,
	})
}

// Archive stages an archive (soft delete) operation.
func (b *Builder) Archive(name, reason string) {
	b.ops = append(b.ops, Op{
		Type:   OpArchive,
		Target: name,
		Reason: reason,
	})
}

// UpdateScore stages a score adjustment with its rating and justification.
func (b *Builder) UpdateScore(name string, delta int, rating, justification string) {
	b.ops = append(b.ops, Op{
		Type:          OpScoreUpdate,
		Target:        name,
		Delta:         delta,
		Rating:        rating,
		Justification: justification,
	})
}

// Len returns the number of staged operations.
func (b *Builder) Len() int {
	return len(b.ops)
}

// Timestamp returns the effective time of the delta under construction.
func (b *Builder) Timestamp() time.Time {
	return b.timestamp
}

// Ops returns the staged operations in order.
func (b *Builder) Ops() []Op {
	return b.ops
}

// Build finalizes the staged operations into a Delta.
func (b *Builder) Build() *Delta {
	ops := make([]Op, len(b.ops))
	copy(ops, b.ops)

	return &Delta{
		Timestamp:  b.timestamp,
		Source:     b.source,
		Operations: ops,
		OpCount:    len(ops),
	}
}
