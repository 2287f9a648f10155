package playbook

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SnapshotVersion is the current persisted snapshot schema version.
const SnapshotVersion = "1.0"

// snapshot is the persisted playbook document. The file is read fully into
// memory and rewritten fully on each save; partial patching is never done.
type snapshot struct {
	Version         string            `json:"version"`
	LastUpdated     *time.Time        `json:"last_updated"`
	LastDeltaSource string            `json:"last_delta_source,omitempty"`
	KeyPoints       []json.RawMessage `json:"key_points"`
}

// Load reads a playbook snapshot from path. A missing file yields an empty
// store rather than an error, so a first update cycle starts from nothing.
//
// Legacy shapes are normalized once here: a key point may be a bare string
// or an object missing name/score fields. Entries without text are dropped.
// Nothing deeper in the pipeline branches on shape again.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewStore(), nil
		}
		return nil, fmt.Errorf("reading playbook: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing playbook: %w", err)
	}

	store := NewStore()
	if snap.LastUpdated != nil {
		store.LastUpdated = *snap.LastUpdated
	}
	store.LastDeltaSource = snap.LastDeltaSource

	names := make(map[string]struct{})
	for _, raw := range snap.KeyPoints {
		entry, err := normalizeKeyPoint(raw, names)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		names[entry.Name] = struct{}{}
		store.Upsert(entry)
	}

	return store, nil
}

// normalizeKeyPoint parses one raw key point, migrating legacy shapes.
// Returns nil for entries that should be skipped.
func normalizeKeyPoint(raw json.RawMessage, names map[string]struct{}) (*Entry, error) {
	// Legacy format: a plain string.
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text == "" {
			return nil, nil
		}
		return &Entry{
			Name:   NextName(names),
			Text:   text,
			Status: StatusActive,
		}, nil
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("parsing key point: %w", err)
	}

	if entry.Text == "" {
		return nil, nil
	}
	if entry.Name == "" {
		entry.Name = NextName(names)
	}
	if entry.Status == "" {
		entry.Status = StatusActive
	}

	return &entry, nil
}

// Save writes the store to path as a full snapshot, replacing the previous
// file atomically (write to a temp file in the same directory, then rename).
// On failure the prior durable state is left unmodified.
func Save(path string, store *Store) error {
	snap := snapshot{
		Version:         SnapshotVersion,
		LastDeltaSource: store.LastDeltaSource,
	}
	if !store.LastUpdated.IsZero() {
		t := store.LastUpdated
		snap.LastUpdated = &t
	}

	for _, e := range store.ListAll() {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding key point %s: %w", e.Name, err)
		}
		snap.KeyPoints = append(snap.KeyPoints, raw)
	}
	if snap.KeyPoints == nil {
		snap.KeyPoints = []json.RawMessage{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding playbook: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating playbook directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".playbook-*.json")
	if err != nil {
		return fmt.Errorf("creating temp playbook: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing playbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing playbook: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing playbook: %w", err)
	}

	return nil
}
