package engine_test

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/playbook/pkg/curate"
	"github.com/papercomputeco/playbook/pkg/engine"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

var _ = Describe("Engine", func() {
	var (
		playbookPath string
		historyPath  string
		eng          *engine.Engine
	)

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		playbookPath = filepath.Join(dir, "playbook.json")
		historyPath = filepath.Join(dir, "delta_history.jsonl")

		var err error
		eng, err = engine.New(engine.Config{
			PlaybookPath: playbookPath,
			HistoryPath:  historyPath,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("New", func() {
		It("should require both paths", func() {
			_, err := engine.New(engine.Config{HistoryPath: historyPath})
			Expect(err).To(HaveOccurred())

			_, err = engine.New(engine.Config{PlaybookPath: playbookPath})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("RunCycle", func() {
		It("should persist accepted key points and record the delta", func() {
			result := &curate.Result{NewKeyPoints: []curate.KeyPoint{
				{Text: "use table driven tests for parser edge cases"},
			}}

			cycle, err := eng.RunCycle("session_end", result)
			Expect(err).NotTo(HaveOccurred())
			Expect(cycle.Recorded).To(BeTrue())
			Expect(cycle.Report.Accepted).To(Equal(1))
			Expect(cycle.Store.ActiveCount()).To(Equal(1))

			reloaded, err := playbook.Load(playbookPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.ActiveCount()).To(Equal(1))
			Expect(reloaded.LastDeltaSource).To(Equal("session_end"))

			records, err := eng.Ledger().Recent(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].PlaybookSize).To(Equal(1))
		})

		It("should not touch the snapshot or ledger on an empty cycle", func() {
			cycle, err := eng.RunCycle("session_end", &curate.Result{})
			Expect(err).NotTo(HaveOccurred())
			Expect(cycle.Recorded).To(BeFalse())
			Expect(cycle.Delta.OpCount).To(Equal(0))

			Expect(playbookPath).NotTo(BeAnExistingFile())
			Expect(historyPath).NotTo(BeAnExistingFile())
		})

		It("should archive an entry downgraded to the threshold in the same cycle", func() {
			store := playbook.NewStore()
			store.Upsert(&playbook.Entry{Name: "kpt_001", Text: "a", Score: 1, Status: playbook.StatusActive})
			Expect(playbook.Save(playbookPath, store)).To(Succeed())

			result := &curate.Result{Evaluations: []curate.EvaluationInput{
				{Name: "kpt_001", Rating: "harmful", Justification: "broke the build"},
				{Name: "kpt_001", Rating: "harmful", Justification: "broke it again"},
			}}

			cycle, err := eng.RunCycle("session_end", result)
			Expect(err).NotTo(HaveOccurred())
			Expect(cycle.Archived).To(Equal(1))

			entry, err := cycle.Store.Get("kpt_001")
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Score).To(Equal(-5))
			Expect(entry.Status).To(Equal(playbook.StatusArchived))
			Expect(entry.ArchiveReason).To(Equal("score -5 at or below threshold -5"))
		})

		It("should never archive an entry added in the same cycle", func() {
			result := &curate.Result{NewKeyPoints: []curate.KeyPoint{
				{Text: "use table driven tests for parser edge cases"},
			}}

			cycle, err := eng.RunCycle("session_end", result)
			Expect(err).NotTo(HaveOccurred())
			Expect(cycle.Archived).To(Equal(0))
			Expect(cycle.Store.ActiveCount()).To(Equal(1))
		})

		It("should accumulate the ledger across cycles", func() {
			first := &curate.Result{NewKeyPoints: []curate.KeyPoint{
				{Text: "use table driven tests for parser edge cases"},
			}}
			_, err := eng.RunCycle("precompact", first)
			Expect(err).NotTo(HaveOccurred())

			second := &curate.Result{Evaluations: []curate.EvaluationInput{
				{Name: "kpt_001", Rating: "helpful"},
			}}
			_, err = eng.RunCycle("session_end", second)
			Expect(err).NotTo(HaveOccurred())

			stats, err := eng.Ledger().Statistics()
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TotalUpdates).To(Equal(2))
			Expect(stats.TotalAdditions).To(Equal(1))
			Expect(stats.TotalScoreUpdates).To(Equal(1))
			Expect(stats.UpdatesBySource).To(HaveKeyWithValue("precompact", 1))
			Expect(stats.UpdatesBySource).To(HaveKeyWithValue("session_end", 1))
		})
	})

	Describe("Prune", func() {
		saveStore := func(entries ...*playbook.Entry) {
			store := playbook.NewStore()
			for _, entry := range entries {
				store.Upsert(entry)
			}
			Expect(playbook.Save(playbookPath, store)).To(Succeed())
		}

		archivedEntry := func(name string, daysAgo int) *playbook.Entry {
			return &playbook.Entry{
				Name:       name,
				Text:       "retired " + name,
				Status:     playbook.StatusArchived,
				ArchivedAt: time.Now().AddDate(0, 0, -daysAgo),
			}
		}

		It("should remove old archived entries and return their names", func() {
			saveStore(
				&playbook.Entry{Name: "kpt_001", Text: "keep me", Status: playbook.StatusActive},
				archivedEntry("kpt_002", 60),
				archivedEntry("kpt_003", 45),
			)

			removed, err := eng.Prune(30, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(ConsistOf("kpt_002"))

			reloaded, err := playbook.Load(playbookPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Has("kpt_002")).To(BeFalse())
			Expect(reloaded.Has("kpt_003")).To(BeTrue())
			Expect(reloaded.Has("kpt_001")).To(BeTrue())
		})

		It("should keep the keepRecent most recently archived regardless of age", func() {
			saveStore(
				archivedEntry("kpt_001", 100),
				archivedEntry("kpt_002", 90),
				archivedEntry("kpt_003", 80),
			)

			removed, err := eng.Prune(30, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(ConsistOf("kpt_001"))
		})

		It("should keep entries newer than the day threshold", func() {
			saveStore(
				archivedEntry("kpt_001", 5),
				archivedEntry("kpt_002", 3),
			)

			removed, err := eng.Prune(30, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeEmpty())
		})

		It("should keep archived entries with an unknown archive time", func() {
			saveStore(
				archivedEntry("kpt_001", 60),
				&playbook.Entry{Name: "kpt_002", Text: "no timestamp", Status: playbook.StatusArchived},
			)

			removed, err := eng.Prune(30, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(ConsistOf("kpt_001"))

			reloaded, err := playbook.Load(playbookPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Has("kpt_002")).To(BeTrue())
		})

		It("should never touch active entries", func() {
			saveStore(
				&playbook.Entry{Name: "kpt_001", Text: "old but active", Score: -2, Status: playbook.StatusActive},
			)

			removed, err := eng.Prune(0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeEmpty())
		})
	})
})
