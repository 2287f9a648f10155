package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent playbook configuration stored as
// config.toml in the .playbook/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Scoring     ScoringConfig     `toml:"scoring"`
	Retention   RetentionConfig   `toml:"retention"`
	Curation    CurationConfig    `toml:"curation"`
	Inject      InjectConfig      `toml:"inject"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
}

// ScoringConfig holds the per-rating score deltas applied during updates.
type ScoringConfig struct {
	Helpful int `toml:"helpful,omitempty"`
	Neutral int `toml:"neutral,omitempty"`
	Harmful int `toml:"harmful,omitempty"`
}

// RetentionConfig holds automatic archival and pruning settings.
type RetentionConfig struct {
	// ArchiveThreshold is the score at or below which active entries are
	// archived automatically.
	ArchiveThreshold int `toml:"archive_threshold,omitempty"`

	// PruneDays is the age in days past which archived entries are
	// eligible for pruning.
	PruneDays int `toml:"prune_days,omitempty"`

	// PruneKeepRecent is how many recently archived entries prune always
	// keeps regardless of age.
	PruneKeepRecent int `toml:"prune_keep_recent,omitempty"`
}

// CurationConfig holds quality gates for new key points.
type CurationConfig struct {
	// MinAtomicity is the minimum atomicity score a key point must carry
	// to be accepted.
	MinAtomicity float64 `toml:"min_atomicity,omitempty"`
}

// InjectConfig holds retrieval output limits.
type InjectConfig struct {
	// MaxEntries caps how many strategies a search returns for context
	// injection.
	MaxEntries int `toml:"max_entries,omitempty"`
}

// VectorStoreConfig holds vector backend settings.
type VectorStoreConfig struct {
	// QdrantHost and QdrantPort locate the production backend.
	QdrantHost string `toml:"qdrant_host,omitempty"`
	QdrantPort int    `toml:"qdrant_port,omitempty"`

	// Collection names the production collection.
	Collection string `toml:"collection,omitempty"`

	// MinEntriesForIndex gates indexing until the playbook is big enough.
	MinEntriesForIndex int `toml:"min_entries_for_index,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func intKey(get func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*get(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer value %q: %w", v, err)
			}
			*get(c) = n
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"scoring.helpful": intKey(func(c *Config) *int { return &c.Scoring.Helpful }),
	"scoring.neutral": intKey(func(c *Config) *int { return &c.Scoring.Neutral }),
	"scoring.harmful": intKey(func(c *Config) *int { return &c.Scoring.Harmful }),

	"retention.archive_threshold": intKey(func(c *Config) *int { return &c.Retention.ArchiveThreshold }),
	"retention.prune_days":        intKey(func(c *Config) *int { return &c.Retention.PruneDays }),
	"retention.prune_keep_recent": intKey(func(c *Config) *int { return &c.Retention.PruneKeepRecent }),

	"curation.min_atomicity": {
		get: func(c *Config) string {
			return strconv.FormatFloat(c.Curation.MinAtomicity, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for curation.min_atomicity: %w", err)
			}
			c.Curation.MinAtomicity = f
			return nil
		},
	},

	"inject.max_entries": intKey(func(c *Config) *int { return &c.Inject.MaxEntries }),

	"vector_store.qdrant_host": {
		get: func(c *Config) string { return c.VectorStore.QdrantHost },
		set: func(c *Config, v string) error { c.VectorStore.QdrantHost = v; return nil },
	},
	"vector_store.qdrant_port": intKey(func(c *Config) *int { return &c.VectorStore.QdrantPort }),
	"vector_store.collection": {
		get: func(c *Config) string { return c.VectorStore.Collection },
		set: func(c *Config, v string) error { c.VectorStore.Collection = v; return nil },
	},
	"vector_store.min_entries_for_index": intKey(func(c *Config) *int { return &c.VectorStore.MinEntriesForIndex }),

	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
}
