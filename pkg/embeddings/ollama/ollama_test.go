package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/playbook/pkg/embeddings"
	"github.com/papercomputeco/playbook/pkg/embeddings/ollama"
)

// fakeOllama serves /api/embed and /api/tags with scriptable behavior.
type fakeOllama struct {
	mu sync.Mutex

	// failuresFor maps input text to the number of requests that should
	// fail with a 500 before succeeding. Negative means fail forever.
	failuresFor map[string]int

	// models is the /api/tags model list.
	models []string

	embedRequests int
}

func newFakeOllama() *fakeOllama {
	return &fakeOllama{
		failuresFor: make(map[string]int),
		models:      []string{"nomic-embed-text:latest"},
	}
}

func (f *fakeOllama) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedRequests
}

func (f *fakeOllama) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.embedRequests++
		remaining := f.failuresFor[req.Input]
		if remaining != 0 {
			if remaining > 0 {
				f.failuresFor[req.Input] = remaining - 1
			}
			f.mu.Unlock()
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		f.mu.Unlock()

		resp := map[string][][]float32{
			"embeddings": {{0.1, 0.2, float32(len(req.Input))}},
		}
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		models := make([]map[string]string, 0, len(f.models))
		for _, name := range f.models {
			models = append(models, map[string]string{"name": name})
		}
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"models": models})
	})

	return mux
}

var _ = Describe("Embedder", func() {
	var (
		fake     *fakeOllama
		server   *httptest.Server
		embedder *ollama.Embedder
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = newFakeOllama()
		server = httptest.NewServer(fake.handler())
		DeferCleanup(server.Close)

		var err error
		embedder, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: server.URL,
			Model:   "nomic-embed-text",
		})
		Expect(err).NotTo(HaveOccurred())
		ollama.SetBackoffBase(embedder, time.Millisecond)
		DeferCleanup(embedder.Close)
	})

	Describe("Embed", func() {
		It("should return the embedding for the text", func() {
			vec, err := embedder.Embed(ctx, "use retries")
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(HaveLen(3))
			Expect(vec[0]).To(BeNumerically("~", 0.1, 0.001))
		})

		It("should retry transient failures before succeeding", func() {
			fake.failuresFor["use retries"] = 2

			vec, err := embedder.Embed(ctx, "use retries")
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).NotTo(BeEmpty())
			Expect(fake.requestCount()).To(Equal(3))
		})

		It("should give up after the retry budget and count the failure", func() {
			fake.failuresFor["use retries"] = -1

			_, err := embedder.Embed(ctx, "use retries")
			Expect(err).To(HaveOccurred())
			Expect(fake.requestCount()).To(Equal(3))
			Expect(embedder.Stats().TotalFailures).To(BeEquivalentTo(1))
		})
	})

	Describe("EmbedBatch", func() {
		It("should return results in input order", func() {
			texts := []string{"alpha advice", "beta advice longer", "gamma"}

			results, err := embedder.EmbedBatch(ctx, texts)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			for i, r := range results {
				Expect(r.Text).To(Equal(texts[i]))
			}
		})

		It("should drop failed items and keep the rest in order", func() {
			fake.failuresFor["beta advice"] = -1
			texts := []string{"alpha advice", "beta advice", "gamma advice"}

			results, err := embedder.EmbedBatch(ctx, texts)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Text).To(Equal("alpha advice"))
			Expect(results[1].Text).To(Equal("gamma advice"))
		})

		It("should return nil for an empty batch", func() {
			results, err := embedder.EmbedBatch(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeNil())
		})
	})

	Describe("HealthCheck", func() {
		It("should report OK when the model is present", func() {
			health := embedder.HealthCheck(ctx)
			Expect(health.Status).To(Equal(embeddings.StatusOK))
			Expect(health.Usable()).To(BeTrue())
		})

		It("should match the model name without the latest tag", func() {
			fake.models = []string{"nomic-embed-text:latest"}
			Expect(embedder.HealthCheck(ctx).Status).To(Equal(embeddings.StatusOK))
		})

		It("should report degraded when the model is missing", func() {
			fake.models = []string{"llama3:latest"}

			health := embedder.HealthCheck(ctx)
			Expect(health.Status).To(Equal(embeddings.StatusDegraded))
			Expect(health.Message).To(ContainSubstring("nomic-embed-text"))
		})

		It("should report unavailable when the service is down", func() {
			server.Close()

			health := embedder.HealthCheck(ctx)
			Expect(health.Status).To(Equal(embeddings.StatusUnavailable))
			Expect(health.Usable()).To(BeFalse())
		})
	})

	Describe("Stats", func() {
		It("should count requests and embeddings", func() {
			_, err := embedder.Embed(ctx, "use retries")
			Expect(err).NotTo(HaveOccurred())

			stats := embedder.Stats()
			Expect(stats.TotalRequests).To(BeEquivalentTo(1))
			Expect(stats.TotalEmbeddings).To(BeEquivalentTo(1))
			Expect(stats.TotalDurationMs).To(BeNumerically(">", 0))
		})
	})
})
