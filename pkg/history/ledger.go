// Package history provides the append-only ledger of applied deltas.
//
// The ledger is the sole source of truth for reconstructing playbook
// evolution. One serialized record per line, UTF-8 JSONL; append is the only
// mutation this package performs. Store pruning never touches the ledger.
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/delta"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

// Record is the persisted outcome of applying one delta: the delta itself
// plus the resulting store statistics. Records are immutable once written
// and ordered by append time.
type Record struct {
	delta.Delta

	// PlaybookSize is the count of active entries after the delta.
	PlaybookSize int `json:"playbook_size"`

	// AvgScore is the average score of active entries after the delta,
	// 0.0 when the store has no active entries.
	AvgScore float64 `json:"avg_score"`
}

// Stats aggregates operation counts across the full ledger.
type Stats struct {
	TotalUpdates      int            `json:"total_updates"`
	TotalAdditions    int            `json:"total_additions"`
	TotalArchivals    int            `json:"total_archival"`
	TotalScoreUpdates int            `json:"total_score_updates"`
	UpdatesBySource   map[string]int `json:"updates_by_source"`
}

// Ledger appends records to and reads records from a JSONL file. It is the
// only writer to that file.
type Ledger struct {
	path   string
	logger *zap.Logger
}

// NewLedger creates a ledger backed by the given file path. The file is
// created lazily on first append.
func NewLedger(path string, logger *zap.Logger) *Ledger {
	return &Ledger{
		path:   path,
		logger: logger,
	}
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Append records an applied delta together with the resulting store
// statistics as one new line at the end of the ledger.
func (l *Ledger) Append(d *delta.Delta, resulting *playbook.Store) error {
	rec := Record{
		Delta:        *d,
		PlaybookSize: resulting.ActiveCount(),
		AvgScore:     resulting.AverageActiveScore(),
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding history record: %w", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}

	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("appending history record: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing history: %w", err)
	}

	l.logger.Debug("recorded delta",
		zap.String("source", d.Source),
		zap.Int("operations", d.OpCount),
		zap.Int("playbook_size", rec.PlaybookSize),
	)

	return nil
}

// Recent returns the most recent limit records in original append order.
// A missing ledger file yields an empty slice.
func (l *Ledger) Recent(limit int) ([]Record, error) {
	records, err := l.scan(nil)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	return records, nil
}

// Statistics scans the full ledger and aggregates operation counts, grouped
// by source. O(n) over small append-only records.
func (l *Ledger) Statistics() (*Stats, error) {
	stats := &Stats{
		UpdatesBySource: make(map[string]int),
	}

	_, err := l.scan(func(rec Record) {
		stats.TotalUpdates++

		source := rec.Source
		if source == "" {
			source = "unknown"
		}
		stats.UpdatesBySource[source]++

		for _, op := range rec.Operations {
			switch op.Type {
			case delta.OpAdd:
				stats.TotalAdditions++
			case delta.OpArchive:
				stats.TotalArchivals++
			case delta.OpScoreUpdate:
				stats.TotalScoreUpdates++
			}
		}
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// scan reads every record in the ledger, invoking visit per record when
// non-nil, and returns the full slice.
func (l *Ledger) scan(visit func(Record)) ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	var records []Record

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn trailing line (e.g. crash mid-append) is skipped
			// rather than poisoning the whole scan.
			l.logger.Warn("skipping unparseable history line", zap.Error(err))
			continue
		}

		if visit != nil {
			visit(rec)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning history: %w", err)
	}

	if records == nil {
		records = []Record{}
	}

	return records, nil
}
