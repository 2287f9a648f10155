// Package engine orchestrates one playbook update cycle: load the persisted
// snapshot, stage curation and retention into a single delta, apply it to a
// copy of the store, persist the new snapshot atomically, and record the
// outcome in the history ledger.
//
// A cycle runs to completion before the next cycle starts against the same
// snapshot; the design assumes single-writer-at-a-time access. The cycle
// never depends on any network resource — retrieval degrades independently.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/curate"
	"github.com/papercomputeco/playbook/pkg/delta"
	"github.com/papercomputeco/playbook/pkg/history"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

// Config holds the engine's injected dependencies and policy knobs. All
// process state (paths, thresholds) is explicit configuration so the engine
// stays testable without ambient filesystem side effects.
type Config struct {
	// PlaybookPath is the JSON snapshot file.
	PlaybookPath string

	// HistoryPath is the JSONL ledger file.
	HistoryPath string

	// ArchiveThreshold is the retention score boundary (default -5).
	ArchiveThreshold int

	// MinAtomicity is the curation quality gate (default 0.70).
	MinAtomicity float64

	// ScoreDeltas maps ratings to score adjustments.
	ScoreDeltas curate.ScoreDeltas

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Engine runs update cycles against one persisted playbook.
type Engine struct {
	config  Config
	curator *curate.Curator
	ledger  *history.Ledger
	logger  *zap.Logger
}

// CycleResult is the outcome of one update cycle.
type CycleResult struct {
	// Delta is the applied batch of operations.
	Delta *delta.Delta

	// Report is the curation summary for the cycle.
	Report *curate.Report

	// Archived is the number of retention archivals staged this cycle.
	Archived int

	// Store is the resulting published state.
	Store *playbook.Store

	// Recorded reports whether the cycle produced operations and was
	// persisted and written to the ledger.
	Recorded bool
}

// New creates an engine. Zero-value policy fields fall back to documented
// defaults rather than erroring, so a missing configuration never aborts a
// hook cycle.
func New(c Config) (*Engine, error) {
	if c.PlaybookPath == "" {
		return nil, errors.New("playbook path is required")
	}
	if c.HistoryPath == "" {
		return nil, errors.New("history path is required")
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.ArchiveThreshold == 0 {
		c.ArchiveThreshold = delta.DefaultArchiveThreshold
	}
	if c.MinAtomicity == 0 {
		c.MinAtomicity = curate.DefaultMinAtomicity
	}
	if c.ScoreDeltas == (curate.ScoreDeltas{}) {
		c.ScoreDeltas = curate.DefaultScoreDeltas()
	}

	return &Engine{
		config:  c,
		curator: curate.New(c.MinAtomicity, c.ScoreDeltas),
		ledger:  history.NewLedger(c.HistoryPath, c.Logger),
		logger:  c.Logger,
	}, nil
}

// Ledger exposes the engine's history ledger for audit commands.
func (e *Engine) Ledger() *history.Ledger {
	return e.ledger
}

// Load reads the current playbook snapshot.
func (e *Engine) Load() (*playbook.Store, error) {
	return playbook.Load(e.config.PlaybookPath)
}

// RunCycle executes one update cycle for a reflection result from the given
// source tag. Retention runs after additions and evaluations are staged, so
// an entry downgraded to the threshold this cycle is archived in the same
// delta and a freshly added entry is never archived before it is applied.
//
// A cycle with no staged operations leaves the snapshot and ledger untouched.
// Persistence failures abort the cycle without modifying prior durable state.
func (e *Engine) RunCycle(source string, result *curate.Result) (*CycleResult, error) {
	store, err := e.Load()
	if err != nil {
		return nil, fmt.Errorf("loading playbook: %w", err)
	}

	b := delta.NewBuilder(source)
	report := e.curator.Stage(b, store, result)
	archived := delta.StageRetention(b, store, e.config.ArchiveThreshold)

	d := b.Build()
	if d.OpCount == 0 {
		e.logger.Debug("empty cycle, nothing to apply",
			zap.String("source", source),
		)
		return &CycleResult{Delta: d, Report: report, Store: store}, nil
	}

	next := delta.Apply(store, d)

	if err := playbook.Save(e.config.PlaybookPath, next); err != nil {
		return nil, fmt.Errorf("saving playbook: %w", err)
	}

	if err := e.ledger.Append(d, next); err != nil {
		return nil, fmt.Errorf("recording delta: %w", err)
	}

	e.logger.Info("applied delta",
		zap.String("source", source),
		zap.Int("operations", d.OpCount),
		zap.Int("accepted", report.Accepted),
		zap.Int("evaluated", report.Evaluated),
		zap.Int("archived", archived),
		zap.Int("active", next.ActiveCount()),
	)

	return &CycleResult{
		Delta:    d,
		Report:   report,
		Archived: archived,
		Store:    next,
		Recorded: true,
	}, nil
}

// Prune permanently removes entries that have been archived for longer than
// the day threshold, always keeping the keepRecent most recently archived.
// Active entries and the history ledger are never touched. The ledger keeps
// the full audit trail of everything the store forgets. Returns the names
// of the pruned entries so callers can clean up derived state.
func (e *Engine) Prune(daysThreshold, keepRecent int) ([]string, error) {
	store, err := e.Load()
	if err != nil {
		return nil, fmt.Errorf("loading playbook: %w", err)
	}

	var archived []*playbook.Entry
	for _, entry := range store.ListAll() {
		if !entry.Active() {
			archived = append(archived, entry)
		}
	}
	if len(archived) <= keepRecent {
		return nil, nil
	}

	sort.Slice(archived, func(i, j int) bool {
		return archived[i].ArchivedAt.After(archived[j].ArchivedAt)
	})

	cutoff := time.Now().AddDate(0, 0, -daysThreshold)
	var removed []string
	for _, entry := range archived[keepRecent:] {
		// Keep entries with unknown archive times or archived too
		// recently to discard.
		if entry.ArchivedAt.IsZero() || entry.ArchivedAt.After(cutoff) {
			continue
		}
		store.Remove(entry.Name)
		removed = append(removed, entry.Name)
	}

	if len(removed) == 0 {
		return nil, nil
	}

	if err := playbook.Save(e.config.PlaybookPath, store); err != nil {
		return nil, fmt.Errorf("saving playbook: %w", err)
	}

	e.logger.Info("pruned archived entries",
		zap.Int("removed", len(removed)),
		zap.Int("remaining", store.Len()),
	)

	return removed, nil
}
