package testutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/playbook/pkg/vector"
)

// MockVectorDriver is a test vector driver
type MockVectorDriver struct {
	Documents []vector.Document
	Results   []vector.QueryResult

	// LastFilter records the filter from the most recent Query call.
	LastFilter *vector.Filter

	// FailUpsert and FailQuery force errors for degradation tests.
	FailUpsert bool
	FailQuery  bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Documents: make([]vector.Document, 0),
		Results:   make([]vector.QueryResult, 0),
	}
}

func (m *MockVectorDriver) EnsureCollection(_ context.Context) error {
	return nil
}

func (m *MockVectorDriver) Upsert(_ context.Context, docs []vector.Document) error {
	if m.FailUpsert {
		return fmt.Errorf("mock upsert failure")
	}
	m.Documents = append(m.Documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int, filter *vector.Filter) ([]vector.QueryResult, error) {
	if m.FailQuery {
		return nil, fmt.Errorf("mock query failure")
	}
	m.LastFilter = filter
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	remaining := m.Documents[:0]
	for _, doc := range m.Documents {
		keep := true
		for _, id := range ids {
			if doc.ID == id {
				keep = false
				break
			}
		}
		if keep {
			remaining = append(remaining, doc)
		}
	}
	m.Documents = remaining
	return nil
}

func (m *MockVectorDriver) Stats(_ context.Context) (*vector.Stats, error) {
	return &vector.Stats{
		PointsCount: uint64(len(m.Documents)),
		Collection:  "mock",
	}, nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

var _ vector.Driver = (*MockVectorDriver)(nil)

// MockHealthChecker reports a configurable backend health result.
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(_ context.Context) error {
	return m.Err
}
