package config

const (
	defaultScoringHelpful = 1
	defaultScoringNeutral = -1
	defaultScoringHarmful = -3

	defaultArchiveThreshold = -5
	defaultPruneDays        = 30
	defaultPruneKeepRecent  = 10

	defaultMinAtomicity = 0.70

	defaultInjectMaxEntries = 15

	defaultQdrantHost         = "localhost"
	defaultQdrantPort         = 6334
	defaultCollection         = "playbook_strategies"
	defaultMinEntriesForIndex = 10

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Scoring: ScoringConfig{
			Helpful: defaultScoringHelpful,
			Neutral: defaultScoringNeutral,
			Harmful: defaultScoringHarmful,
		},
		Retention: RetentionConfig{
			ArchiveThreshold: defaultArchiveThreshold,
			PruneDays:        defaultPruneDays,
			PruneKeepRecent:  defaultPruneKeepRecent,
		},
		Curation: CurationConfig{
			MinAtomicity: defaultMinAtomicity,
		},
		Inject: InjectConfig{
			MaxEntries: defaultInjectMaxEntries,
		},
		VectorStore: VectorStoreConfig{
			QdrantHost:         defaultQdrantHost,
			QdrantPort:         defaultQdrantPort,
			Collection:         defaultCollection,
			MinEntriesForIndex: defaultMinEntriesForIndex,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
	}
}
