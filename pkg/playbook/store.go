package playbook

import (
	"slices"
	"time"
)

// Store is the in-memory representation of the strategy collection.
//
// The store is exclusively mutated by delta application; readers during an
// in-progress update cycle see the previous published copy (the applier works
// on a Clone and the engine swaps it in after persistence succeeds).
type Store struct {
	// entries is the name-indexed map of all entries, archived included.
	entries map[string]*Entry

	// order preserves insertion order for stable listing and snapshots.
	order []string

	// LastUpdated and LastDeltaSource are store-level metadata set by the
	// applier after each delta.
	LastUpdated     time.Time
	LastDeltaSource string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*Entry),
	}
}

// Get retrieves an entry by name.
func (s *Store) Get(name string) (*Entry, error) {
	e, ok := s.entries[name]
	if !ok {
		return nil, NotFoundError{Name: name}
	}

	return e, nil
}

// Has checks whether an entry with the given name exists, archived included.
func (s *Store) Has(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Upsert inserts or replaces an entry keyed by its name.
func (s *Store) Upsert(e *Entry) {
	if e == nil || e.Name == "" {
		return
	}

	if _, ok := s.entries[e.Name]; !ok {
		s.order = append(s.order, e.Name)
	}
	s.entries[e.Name] = e
}

// ListAll returns all entries in insertion order, archived included.
func (s *Store) ListAll() []*Entry {
	out := make([]*Entry, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.entries[name])
	}
	return out
}

// ListActive returns the active entries in insertion order.
func (s *Store) ListActive() []*Entry {
	var out []*Entry
	for _, name := range s.order {
		if e := s.entries[name]; e.Active() {
			out = append(out, e)
		}
	}
	return out
}

// Names returns the set of all entry names, archived included. Used for
// name generation so retired names are never reassigned.
func (s *Store) Names() map[string]struct{} {
	names := make(map[string]struct{}, len(s.entries))
	for name := range s.entries {
		names[name] = struct{}{}
	}
	return names
}

// HasActiveText reports whether candidate text duplicates an active entry's
// text (case-insensitive, trimmed). Archived entries do not block reuse of
// their former text: archived strategies are considered retracted, so
// re-learning identical text after archival is allowed.
func (s *Store) HasActiveText(text string) bool {
	norm := NormalizeText(text)
	for _, e := range s.entries {
		if e.Active() && NormalizeText(e.Text) == norm {
			return true
		}
	}
	return false
}

// Len returns the total number of entries, archived included.
func (s *Store) Len() int {
	return len(s.entries)
}

// ActiveCount returns the number of active entries.
func (s *Store) ActiveCount() int {
	n := 0
	for _, e := range s.entries {
		if e.Active() {
			n++
		}
	}
	return n
}

// AverageActiveScore returns the mean score of active entries, 0.0 when none.
func (s *Store) AverageActiveScore() float64 {
	total, n := 0, 0
	for _, e := range s.entries {
		if e.Active() {
			total += e.Score
			n++
		}
	}
	if n == 0 {
		return 0.0
	}
	return float64(total) / float64(n)
}

// Clone returns a deep copy of the store. Delta application mutates a clone
// so readers never observe a partially-applied state.
func (s *Store) Clone() *Store {
	c := &Store{
		entries:         make(map[string]*Entry, len(s.entries)),
		order:           slices.Clone(s.order),
		LastUpdated:     s.LastUpdated,
		LastDeltaSource: s.LastDeltaSource,
	}
	for name, e := range s.entries {
		c.entries[name] = e.Clone()
	}
	return c
}

// Remove deletes an entry from the store. Only the engine's prune path uses
// this; delta operations never hard-delete.
func (s *Store) Remove(name string) {
	if _, ok := s.entries[name]; !ok {
		return
	}
	delete(s.entries, name)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == name })
}
