package retrieval_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/playbook/pkg/embeddings"
	"github.com/papercomputeco/playbook/pkg/playbook"
	"github.com/papercomputeco/playbook/pkg/retrieval"
	testutils "github.com/papercomputeco/playbook/pkg/utils/test"
	"github.com/papercomputeco/playbook/pkg/vector"
)

var _ = Describe("Coordinator", func() {
	var (
		ctx        context.Context
		embedder   *testutils.MockEmbedder
		production *testutils.MockVectorDriver
		fallback   *testutils.MockVectorDriver
		prodHealth *testutils.MockHealthChecker
	)

	storeWithActive := func(n int) *playbook.Store {
		store := playbook.NewStore()
		for i := 1; i <= n; i++ {
			store.Upsert(&playbook.Entry{
				Name:   fmt.Sprintf("kpt_%03d", i),
				Text:   fmt.Sprintf("strategy number %d", i),
				Score:  i,
				Status: playbook.StatusActive,
			})
		}
		return store
	}

	newCoordinator := func(mutate func(*retrieval.Config)) *retrieval.Coordinator {
		cfg := retrieval.Config{
			Embedder:           embedder,
			EmbedderHealth:     embedder,
			Production:         production,
			ProductionHealth:   prodHealth,
			Fallback:           fallback,
			MinEntriesForIndex: 1,
		}
		if mutate != nil {
			mutate(&cfg)
		}
		coordinator, err := retrieval.NewCoordinator(cfg)
		Expect(err).NotTo(HaveOccurred())
		return coordinator
	}

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		production = testutils.NewMockVectorDriver()
		fallback = testutils.NewMockVectorDriver()
		prodHealth = &testutils.MockHealthChecker{}
	})

	Describe("NewCoordinator", func() {
		It("should require an embedder", func() {
			_, err := retrieval.NewCoordinator(retrieval.Config{})
			Expect(err).To(HaveOccurred())
		})

		It("should start unselected", func() {
			Expect(newCoordinator(nil).Backend()).To(Equal(retrieval.BackendUnselected))
		})
	})

	Describe("backend selection", func() {
		It("should pick production when everything is healthy", func() {
			c := newCoordinator(nil)

			_, err := c.Search(ctx, "query", 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Backend()).To(Equal(retrieval.BackendProduction))
		})

		It("should fall back when the production probe fails", func() {
			prodHealth.Err = errors.New("connection refused")
			c := newCoordinator(nil)

			_, err := c.Search(ctx, "query", 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Backend()).To(Equal(retrieval.BackendFallback))
			Expect(c.Reason()).To(ContainSubstring("unreachable"))
		})

		It("should use the fallback when production is not configured", func() {
			c := newCoordinator(func(cfg *retrieval.Config) {
				cfg.Production = nil
				cfg.ProductionHealth = nil
			})

			_, err := c.Search(ctx, "query", 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Backend()).To(Equal(retrieval.BackendFallback))
		})

		It("should disable retrieval when the embedder is unavailable", func() {
			embedder.Health = embeddings.Health{
				Status:  embeddings.StatusUnavailable,
				Message: "cannot connect to ollama",
			}
			c := newCoordinator(nil)

			matches, err := c.Search(ctx, "query", 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeNil())
			Expect(c.Backend()).To(Equal(retrieval.BackendDisabled))
			Expect(c.Reason()).To(ContainSubstring("embedder unavailable"))
		})

		It("should still select a backend with a degraded embedder", func() {
			embedder.Health = embeddings.Health{
				Status:  embeddings.StatusDegraded,
				Message: "model not found",
			}
			c := newCoordinator(nil)

			_, err := c.Search(ctx, "query", 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Backend()).To(Equal(retrieval.BackendProduction))
		})

		It("should disable retrieval when no backend is configured", func() {
			c := newCoordinator(func(cfg *retrieval.Config) {
				cfg.Production = nil
				cfg.ProductionHealth = nil
				cfg.Fallback = nil
			})

			matches, err := c.Search(ctx, "query", 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeNil())
			Expect(c.Backend()).To(Equal(retrieval.BackendDisabled))
		})

		It("should stick with the selection until Reset", func() {
			prodHealth.Err = errors.New("down")
			c := newCoordinator(nil)

			_, err := c.Search(ctx, "query", 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Backend()).To(Equal(retrieval.BackendFallback))

			prodHealth.Err = nil
			_, err = c.Search(ctx, "query", 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Backend()).To(Equal(retrieval.BackendFallback))

			c.Reset()
			Expect(c.Backend()).To(Equal(retrieval.BackendUnselected))

			_, err = c.Search(ctx, "query", 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Backend()).To(Equal(retrieval.BackendProduction))
		})
	})

	Describe("IndexActive", func() {
		It("should embed and upsert active entries to the selected backend", func() {
			store := storeWithActive(3)
			c := newCoordinator(nil)

			report, err := c.IndexActive(ctx, store, "manual")
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Skipped).To(BeFalse())
			Expect(report.Indexed).To(Equal(3))
			Expect(report.Backend).To(Equal(retrieval.BackendProduction))

			Expect(production.Documents).To(HaveLen(3))
			Expect(production.Documents[0].ID).To(Equal(vector.PointID("kpt_001")))
			Expect(production.Documents[0].Source).To(Equal("manual"))
			Expect(production.Documents[0].Status).To(Equal("active"))
		})

		It("should skip below the minimum entry count without probing", func() {
			c := newCoordinator(func(cfg *retrieval.Config) {
				cfg.MinEntriesForIndex = 10
			})

			report, err := c.IndexActive(ctx, storeWithActive(3), "manual")
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Skipped).To(BeTrue())
			Expect(c.Backend()).To(Equal(retrieval.BackendUnselected))
		})

		It("should skip archived entries", func() {
			store := storeWithActive(2)
			store.Upsert(&playbook.Entry{Name: "kpt_099", Text: "retired", Status: playbook.StatusArchived})
			c := newCoordinator(nil)

			report, err := c.IndexActive(ctx, store, "manual")
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Indexed).To(Equal(2))
		})

		It("should count entries whose embedding failed", func() {
			store := storeWithActive(3)
			embedder.FailOn = "strategy number 2"
			c := newCoordinator(nil)

			report, err := c.IndexActive(ctx, store, "manual")
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Indexed).To(Equal(2))
			Expect(report.Failed).To(Equal(1))
		})

		It("should skip when retrieval is disabled", func() {
			embedder.Health = embeddings.Health{Status: embeddings.StatusUnavailable}
			c := newCoordinator(nil)

			report, err := c.IndexActive(ctx, storeWithActive(3), "manual")
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Skipped).To(BeTrue())
			Expect(report.Backend).To(Equal(retrieval.BackendDisabled))
		})

		It("should surface upsert failures", func() {
			production.FailUpsert = true
			c := newCoordinator(nil)

			_, err := c.IndexActive(ctx, storeWithActive(3), "manual")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Search", func() {
		It("should filter to active entries and normalize similarity", func() {
			production.Results = []vector.QueryResult{
				{
					Document: vector.Document{Name: "kpt_001", Text: "a", Score: 4, Source: "manual", AtomicityScore: 0.8},
					Score:    0.92,
				},
				{
					Document: vector.Document{Name: "kpt_002", Text: "b", Score: 1},
					Score:    -0.3,
				},
			}
			c := newCoordinator(nil)

			matches, err := c.Search(ctx, "query", 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))

			Expect(matches[0].Name).To(Equal("kpt_001"))
			Expect(matches[0].Score).To(Equal(4))
			Expect(matches[0].Similarity).To(BeNumerically("~", 0.92, 0.001))
			Expect(matches[1].Similarity).To(Equal(0.0))

			Expect(production.LastFilter).NotTo(BeNil())
			Expect(production.LastFilter.Status).To(Equal("active"))
			Expect(production.LastFilter.MinScore).To(BeNil())
		})

		It("should pass the minimum score through to the backend filter", func() {
			minScore := 2
			c := newCoordinator(nil)

			_, err := c.Search(ctx, "query", 5, &minScore)
			Expect(err).NotTo(HaveOccurred())
			Expect(production.LastFilter.MinScore).NotTo(BeNil())
			Expect(*production.LastFilter.MinScore).To(Equal(2))
		})

		It("should return no matches and no error when the query embedding fails", func() {
			embedder.FailOn = "flaky query"
			c := newCoordinator(nil)

			matches, err := c.Search(ctx, "flaky query", 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeEmpty())
			Expect(c.Backend()).To(Equal(retrieval.BackendProduction))
		})

		It("should return no matches and no error when the backend query fails", func() {
			production.FailQuery = true
			c := newCoordinator(nil)

			matches, err := c.Search(ctx, "query", 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeEmpty())
		})
	})

	Describe("RemoveEntries", func() {
		It("should delete by derived point IDs", func() {
			production.Documents = []vector.Document{
				{ID: vector.PointID("kpt_001"), Name: "kpt_001"},
				{ID: vector.PointID("kpt_002"), Name: "kpt_002"},
			}
			c := newCoordinator(nil)

			Expect(c.RemoveEntries(ctx, []string{"kpt_001"})).To(Succeed())
			Expect(production.Documents).To(HaveLen(1))
			Expect(production.Documents[0].Name).To(Equal("kpt_002"))
		})

		It("should be a no-op when disabled", func() {
			embedder.Health = embeddings.Health{Status: embeddings.StatusUnavailable}
			c := newCoordinator(nil)

			Expect(c.RemoveEntries(ctx, []string{"kpt_001"})).To(Succeed())
		})
	})

	Describe("Stats", func() {
		It("should report the selected backend's stats", func() {
			production.Documents = []vector.Document{{ID: "x"}}
			c := newCoordinator(nil)

			stats, err := c.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.PointsCount).To(BeEquivalentTo(1))
		})

		It("should return nil when disabled", func() {
			embedder.Health = embeddings.Health{Status: embeddings.StatusUnavailable}
			c := newCoordinator(nil)

			stats, err := c.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(BeNil())
		})
	})
})
