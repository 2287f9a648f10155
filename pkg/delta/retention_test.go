package delta_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/playbook/pkg/delta"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

var _ = Describe("StageRetention", func() {
	var (
		store *playbook.Store
		b     *delta.Builder
	)
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		store = playbook.NewStore()
		b = delta.NewBuilderAt("test", ts)
	})

	It("should archive entries at or below the threshold", func() {
		store.Upsert(&playbook.Entry{Name: "kpt_001", Text: "a", Score: -5, Status: playbook.StatusActive})
		store.Upsert(&playbook.Entry{Name: "kpt_002", Text: "b", Score: -4, Status: playbook.StatusActive})

		count := delta.StageRetention(b, store, delta.DefaultArchiveThreshold)

		Expect(count).To(Equal(1))
		ops := b.Ops()
		Expect(ops).To(HaveLen(1))
		Expect(ops[0].Type).To(Equal(delta.OpArchive))
		Expect(ops[0].Target).To(Equal("kpt_001"))
		Expect(ops[0].Reason).To(Equal("score -5 at or below threshold -5"))
	})

	It("should count staged score updates toward the effective score", func() {
		store.Upsert(&playbook.Entry{Name: "kpt_001", Text: "a", Score: 1, Status: playbook.StatusActive})
		b.UpdateScore("kpt_001", -3, "harmful", "broke the build")
		b.UpdateScore("kpt_001", -3, "harmful", "broke it again")

		count := delta.StageRetention(b, store, delta.DefaultArchiveThreshold)

		Expect(count).To(Equal(1))
		ops := b.Ops()
		Expect(ops[2].Type).To(Equal(delta.OpArchive))
		Expect(ops[2].Reason).To(ContainSubstring("score -5"))
	})

	It("should skip entries already staged for archival", func() {
		store.Upsert(&playbook.Entry{Name: "kpt_001", Text: "a", Score: -9, Status: playbook.StatusActive})
		b.Archive("kpt_001", "curator call")

		count := delta.StageRetention(b, store, delta.DefaultArchiveThreshold)

		Expect(count).To(Equal(0))
		Expect(b.Ops()).To(HaveLen(1))
	})

	It("should skip archived entries", func() {
		store.Upsert(&playbook.Entry{Name: "kpt_001", Text: "a", Score: -10, Status: playbook.StatusArchived})

		Expect(delta.StageRetention(b, store, delta.DefaultArchiveThreshold)).To(Equal(0))
	})

	It("should leave entries staged as adds alone", func() {
		b.AddKeyPoint(&playbook.Entry{Name: "kpt_001", Text: "brand new advice starting at zero"}, "learned")

		Expect(delta.StageRetention(b, store, delta.DefaultArchiveThreshold)).To(Equal(0))
		Expect(b.Ops()).To(HaveLen(1))
	})

	It("should honor a custom threshold", func() {
		store.Upsert(&playbook.Entry{Name: "kpt_001", Text: "a", Score: -2, Status: playbook.StatusActive})

		Expect(delta.StageRetention(b, store, -2)).To(Equal(1))
	})
})
