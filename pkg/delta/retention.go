package delta

import (
	"fmt"

	"github.com/papercomputeco/playbook/pkg/playbook"
)

// DefaultArchiveThreshold is the score at or below which an entry is
// archived by retention.
const DefaultArchiveThreshold = -5

// StageRetention derives archival operations from the score threshold and
// appends them to the builder. It must run after the cycle's additions and
// score updates have been staged: an entry graduating to or below the
// threshold this cycle is archived in the same delta, while entries added
// this cycle are left alone until they have been applied at least once.
//
// The effective score for each store entry is its current score plus any
// score updates staged against it in this builder. The boundary is <=, so an
// entry sitting exactly at the threshold is archived.
//
// Pure function of store state, staged operations, and the threshold.
func StageRetention(b *Builder, store *playbook.Store, threshold int) int {
	staged := make(map[string]int)
	archiving := make(map[string]struct{})
	for _, op := range b.Ops() {
		switch op.Type {
		case OpScoreUpdate:
			staged[op.Target] += op.Delta
		case OpArchive:
			archiving[op.Target] = struct{}{}
		}
	}

	count := 0
	for _, entry := range store.ListAll() {
		if !entry.Active() {
			continue
		}
		if _, ok := archiving[entry.Name]; ok {
			continue
		}

		effective := entry.Score + staged[entry.Name]
		if effective > threshold {
			continue
		}

		b.Archive(entry.Name, fmt.Sprintf("score %d at or below threshold %d", effective, threshold))
		count++
	}

	return count
}
