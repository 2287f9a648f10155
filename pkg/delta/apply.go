package delta

import (
	"github.com/papercomputeco/playbook/pkg/playbook"
)

// Apply replays a delta against a store and returns the resulting state.
// The input store is never mutated: operations run against a deep copy which
// the caller publishes atomically once persistence succeeds.
//
// Apply never rejects a well-formed delta. Malformed operations (an add for
// an existing name, an archive or score update for a missing target) are
// resolved as silent no-ops so one bad upstream reference cannot discard an
// otherwise-valid batch of learning.
func Apply(store *playbook.Store, d *Delta) *playbook.Store {
	next := store.Clone()

	for _, op := range d.Operations {
		switch op.Type {
		case OpAdd:
			applyAdd(next, d, op)
		case OpArchive:
			applyArchive(next, d, op)
		case OpScoreUpdate:
			applyScoreUpdate(next, d, op)
		}
	}

	next.LastUpdated = d.Timestamp
	next.LastDeltaSource = d.Source

	return next
}

// applyAdd inserts a new active entry. Re-applying the same delta is a no-op
// because the name already exists.
func applyAdd(store *playbook.Store, d *Delta, op Op) {
	if op.Data == nil || store.Has(op.Target) {
		return
	}

	entry := op.Data.Clone()
	entry.Status = playbook.StatusActive
	entry.CreatedAt = d.Timestamp
	entry.Reason = op.Reason

	store.Upsert(entry)
}

// applyArchive soft-deletes an active entry. Missing or already-archived
// targets are no-ops, making archival idempotent and monotonic.
func applyArchive(store *playbook.Store, d *Delta, op Op) {
	entry, err := store.Get(op.Target)
	if err != nil || !entry.Active() {
		return
	}

	entry.Status = playbook.StatusArchived
	entry.ArchivedAt = d.Timestamp
	entry.ArchiveReason = op.Reason
}

// applyScoreUpdate adjusts an entry's score and appends one evaluation
// record. A missing target is silently dropped: the entry it referred to may
// have been archived or pruned in the same processing window.
func applyScoreUpdate(store *playbook.Store, d *Delta, op Op) {
	entry, err := store.Get(op.Target)
	if err != nil {
		return
	}

	oldScore := entry.Score
	entry.Score = oldScore + op.Delta
	entry.Evaluations = append(entry.Evaluations, playbook.Evaluation{
		Rating:        op.Rating,
		Delta:         op.Delta,
		Justification: op.Justification,
		OldScore:      oldScore,
		NewScore:      entry.Score,
		Timestamp:     d.Timestamp,
	})
}
