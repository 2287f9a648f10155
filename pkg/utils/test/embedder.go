package testutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/playbook/pkg/embeddings"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// Health is what HealthCheck reports. Defaults to OK.
	Health embeddings.Health
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		Health:     embeddings.Health{Status: embeddings.StatusOK, Message: "OK"},
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Return a default embedding for any text
	return []float32{0.1, 0.2, 0.3}, nil
}

// EmbedBatch embeds each text via Embed, dropping failed items the way the
// real batch embedder does.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]embeddings.Result, error) {
	results := make([]embeddings.Result, 0, len(texts))
	for _, text := range texts {
		emb, err := m.Embed(ctx, text)
		if err != nil {
			continue
		}
		results = append(results, embeddings.Result{Text: text, Embedding: emb})
	}
	return results, nil
}

func (m *MockEmbedder) HealthCheck(_ context.Context) embeddings.Health {
	return m.Health
}

func (m *MockEmbedder) Close() error {
	return nil
}

var _ embeddings.BatchEmbedder = (*MockEmbedder)(nil)
var _ embeddings.HealthChecker = (*MockEmbedder)(nil)
