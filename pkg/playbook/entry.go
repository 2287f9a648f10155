// Package playbook provides the in-memory strategy store and its persisted
// snapshot format.
//
// A playbook is a collection of learned key points ("strategies"): short
// actionable text snippets with a utility score. Entries are created by the
// curation boundary, mutated exclusively through delta application, and
// served back into sessions by the retrieval layer.
package playbook

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	// StatusActive marks entries eligible for injection and indexing.
	StatusActive Status = "active"

	// StatusArchived marks entries retained for audit only. Archival is a
	// one-way transition; archived entries never return to active.
	StatusArchived Status = "archived"
)

// namePrefix is the prefix for generated entry names (kpt_001, kpt_002, ...).
const namePrefix = "kpt_"

// Evaluation is one score adjustment recorded against an entry.
// The history is append-only; its length equals the number of score updates
// ever applied to the entry.
type Evaluation struct {
	Rating        string    `json:"rating"`
	Delta         int       `json:"delta"`
	Justification string    `json:"justification,omitempty"`
	OldScore      int       `json:"old_score"`
	NewScore      int       `json:"new_score"`
	Timestamp     time.Time `json:"timestamp"`
}

// Entry is one learned key point.
type Entry struct {
	// Name is the unique stable identifier, immutable once assigned.
	// Names are never reused, even after archival.
	Name string `json:"name"`

	// Text is the strategy description and the unit of semantic search.
	Text string `json:"text"`

	// Score starts at 0 and moves only via score-update operations.
	Score int `json:"score"`

	Status Status `json:"status"`

	// AtomicityScore is an optional quality signal in [0,1] from the
	// originating observation. Nil means unfiltered.
	AtomicityScore *float64 `json:"atomicity_score,omitempty"`

	// Evidence is optional free text supporting the strategy.
	Evidence string `json:"evidence,omitempty"`

	// Reason records why the entry was added.
	Reason string `json:"reason,omitempty"`

	Evaluations []Evaluation `json:"evaluations,omitempty"`

	CreatedAt     time.Time `json:"created_at,omitzero"`
	ArchivedAt    time.Time `json:"archived_at,omitzero"`
	ArchiveReason string    `json:"archive_reason,omitempty"`
}

// Active reports whether the entry is eligible for injection and indexing.
func (e *Entry) Active() bool {
	return e.Status == StatusActive
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	if e.AtomicityScore != nil {
		v := *e.AtomicityScore
		c.AtomicityScore = &v
	}
	if len(e.Evaluations) > 0 {
		c.Evaluations = make([]Evaluation, len(e.Evaluations))
		copy(c.Evaluations, e.Evaluations)
	}
	return &c
}

// NormalizeText canonicalizes entry text for duplicate comparison:
// lowercased and trimmed of surrounding whitespace.
func NormalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// NextName generates the next entry name in the kpt_NNN sequence given the
// set of names already present in the store. The next number is one past the
// maximum parsed kpt number, regardless of gaps elsewhere in the set, so
// names are never reassigned after archival or pruning.
func NextName(existing map[string]struct{}) string {
	maxNum := 0
	for name := range existing {
		num, ok := parseName(name)
		if ok && num > maxNum {
			maxNum = num
		}
	}
	return fmt.Sprintf("%s%03d", namePrefix, maxNum+1)
}

// parseName extracts the numeric suffix from a kpt_NNN name.
func parseName(name string) (int, bool) {
	if !strings.HasPrefix(name, namePrefix) {
		return 0, false
	}
	num, err := strconv.Atoi(strings.TrimPrefix(name, namePrefix))
	if err != nil {
		return 0, false
	}
	return num, true
}
