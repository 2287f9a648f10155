package history_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/delta"
	"github.com/papercomputeco/playbook/pkg/history"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

var _ = Describe("Ledger", func() {
	var (
		path   string
		ledger *history.Ledger
		store  *playbook.Store
	)
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	buildDelta := func(source string, stage func(*delta.Builder)) *delta.Delta {
		b := delta.NewBuilderAt(source, ts)
		stage(b)
		return b.Build()
	}

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "history", "delta_history.jsonl")
		ledger = history.NewLedger(path, zap.NewNop())
		store = playbook.NewStore()
		store.Upsert(&playbook.Entry{Name: "kpt_001", Text: "a", Score: 3, Status: playbook.StatusActive})
	})

	Describe("Append", func() {
		It("should create missing parent directories", func() {
			d := buildDelta("test", func(b *delta.Builder) {
				b.Archive("kpt_001", "stale")
			})
			Expect(ledger.Append(d, store)).To(Succeed())
			Expect(path).To(BeAnExistingFile())
		})

		It("should record resulting store statistics", func() {
			d := buildDelta("test", func(b *delta.Builder) {
				b.UpdateScore("kpt_001", 1, "helpful", "")
			})
			Expect(ledger.Append(d, store)).To(Succeed())

			records, err := ledger.Recent(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].PlaybookSize).To(Equal(1))
			Expect(records[0].AvgScore).To(Equal(3.0))
			Expect(records[0].OpCount).To(Equal(1))
			Expect(records[0].Source).To(Equal("test"))
		})
	})

	Describe("Recent", func() {
		appendN := func(n int) {
			for range n {
				d := buildDelta("test", func(b *delta.Builder) {
					b.UpdateScore("kpt_001", 1, "helpful", "")
				})
				Expect(ledger.Append(d, store)).To(Succeed())
			}
		}

		It("should return an empty slice for a missing ledger", func() {
			records, err := ledger.Recent(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("should keep append order and honor the limit", func() {
			sources := []string{"first", "second", "third"}
			for _, src := range sources {
				d := buildDelta(src, func(b *delta.Builder) {
					b.Archive("kpt_001", "r")
				})
				Expect(ledger.Append(d, store)).To(Succeed())
			}

			records, err := ledger.Recent(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0].Source).To(Equal("second"))
			Expect(records[1].Source).To(Equal("third"))
		})

		It("should return everything when the limit exceeds the ledger", func() {
			appendN(3)
			records, err := ledger.Recent(50)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
		})

		It("should skip a torn trailing line", func() {
			appendN(2)
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.WriteString(`{"timestamp": "2026-03-01T09`)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Close()).To(Succeed())

			records, err := ledger.Recent(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})
	})

	Describe("Statistics", func() {
		It("should aggregate operation counts by type and source", func() {
			first := buildDelta("precompact", func(b *delta.Builder) {
				b.AddKeyPoint(&playbook.Entry{Name: "kpt_002", Text: "always pin dependency versions"}, "learned")
				b.UpdateScore("kpt_001", 1, "helpful", "")
			})
			Expect(ledger.Append(first, store)).To(Succeed())

			second := buildDelta("session_end", func(b *delta.Builder) {
				b.Archive("kpt_001", "stale")
			})
			Expect(ledger.Append(second, store)).To(Succeed())

			stats, err := ledger.Statistics()
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TotalUpdates).To(Equal(2))
			Expect(stats.TotalAdditions).To(Equal(1))
			Expect(stats.TotalScoreUpdates).To(Equal(1))
			Expect(stats.TotalArchivals).To(Equal(1))
			Expect(stats.UpdatesBySource).To(HaveKeyWithValue("precompact", 1))
			Expect(stats.UpdatesBySource).To(HaveKeyWithValue("session_end", 1))
		})

		It("should bucket records without a source under unknown", func() {
			d := buildDelta("", func(b *delta.Builder) {
				b.Archive("kpt_001", "r")
			})
			Expect(ledger.Append(d, store)).To(Succeed())

			stats, err := ledger.Statistics()
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.UpdatesBySource).To(HaveKeyWithValue("unknown", 1))
		})
	})
})
