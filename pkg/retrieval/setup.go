package retrieval

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/embeddings/ollama"
	"github.com/papercomputeco/playbook/pkg/vector/qdrant"
	"github.com/papercomputeco/playbook/pkg/vector/sqlitevec"
)

// Build assembles a coordinator from persistent configuration: an Ollama
// embedder, a Qdrant production backend, and a sqlite-vec fallback at
// fallbackDBPath. Backend failures at construction time downgrade rather
// than abort, so a machine with neither service still gets a working
// (disabled) coordinator.
func Build(cfg *config.Config, fallbackDBPath string, logger *zap.Logger) (*Coordinator, error) {
	embedder, err := ollama.NewEmbedder(ollama.EmbedderConfig{
		BaseURL: cfg.Embedding.Target,
		Model:   cfg.Embedding.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	cc := Config{
		Embedder:           embedder,
		EmbedderHealth:     embedder,
		MinEntriesForIndex: cfg.VectorStore.MinEntriesForIndex,
		Logger:             logger,
	}

	production, err := qdrant.NewDriver(qdrant.Config{
		Host:           cfg.VectorStore.QdrantHost,
		Port:           cfg.VectorStore.QdrantPort,
		CollectionName: cfg.VectorStore.Collection,
		Dimensions:     cfg.Embedding.Dimensions,
	}, logger)
	if err != nil {
		logger.Warn("production vector backend unavailable",
			zap.Error(err),
		)
	} else {
		cc.Production = production
		cc.ProductionHealth = production
	}

	if fallbackDBPath != "" {
		fallback, err := sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     fallbackDBPath,
			Dimensions: cfg.Embedding.Dimensions,
		}, logger)
		if err != nil {
			logger.Warn("fallback vector backend unavailable",
				zap.Error(err),
			)
		} else {
			cc.Fallback = fallback
		}
	}

	return NewCoordinator(cc)
}
