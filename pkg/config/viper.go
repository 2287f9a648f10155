package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/playbook/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the PLAYBOOK_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (PLAYBOOK_EMBEDDING_MODEL, PLAYBOOK_SCORING_HARMFUL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: PLAYBOOK_EMBEDDING_MODEL, PLAYBOOK_RETENTION_ARCHIVE_THRESHOLD, etc.
	v.SetEnvPrefix("PLAYBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Scoring
	v.SetDefault("scoring.helpful", d.Scoring.Helpful)
	v.SetDefault("scoring.neutral", d.Scoring.Neutral)
	v.SetDefault("scoring.harmful", d.Scoring.Harmful)

	// Retention
	v.SetDefault("retention.archive_threshold", d.Retention.ArchiveThreshold)
	v.SetDefault("retention.prune_days", d.Retention.PruneDays)
	v.SetDefault("retention.prune_keep_recent", d.Retention.PruneKeepRecent)

	// Curation
	v.SetDefault("curation.min_atomicity", d.Curation.MinAtomicity)

	// Inject
	v.SetDefault("inject.max_entries", d.Inject.MaxEntries)

	// Vector store
	v.SetDefault("vector_store.qdrant_host", d.VectorStore.QdrantHost)
	v.SetDefault("vector_store.qdrant_port", d.VectorStore.QdrantPort)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)
	v.SetDefault("vector_store.min_entries_for_index", d.VectorStore.MinEntriesForIndex)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
}
