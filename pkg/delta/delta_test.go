package delta_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/playbook/pkg/delta"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

var _ = Describe("Builder", func() {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	It("should stamp the source and timestamp on the built delta", func() {
		b := delta.NewBuilderAt("session_end", ts)
		b.Archive("kpt_001", "retired")

		d := b.Build()
		Expect(d.Source).To(Equal("session_end"))
		Expect(d.Timestamp.Equal(ts)).To(BeTrue())
		Expect(d.OpCount).To(Equal(1))
	})

	It("should drop key points with empty text", func() {
		b := delta.NewBuilderAt("test", ts)
		b.AddKeyPoint(&playbook.Entry{Name: "kpt_001", Text: ""}, "learned")
		b.AddKeyPoint(nil, "learned")

		Expect(b.Len()).To(Equal(0))
	})

	It("should keep operations in staging order", func() {
		b := delta.NewBuilderAt("test", ts)
		b.UpdateScore("kpt_001", 1, "helpful", "")
		b.AddKeyPoint(&playbook.Entry{Name: "kpt_002", Text: "prefer explicit dependency wiring"}, "learned")
		b.Archive("kpt_003", "stale")

		ops := b.Build().Operations
		Expect(ops).To(HaveLen(3))
		Expect(ops[0].Type).To(Equal(delta.OpScoreUpdate))
		Expect(ops[1].Type).To(Equal(delta.OpAdd))
		Expect(ops[2].Type).To(Equal(delta.OpArchive))
	})

	It("should snapshot operations at build time", func() {
		b := delta.NewBuilderAt("test", ts)
		b.Archive("kpt_001", "first")
		d := b.Build()
		b.Archive("kpt_002", "second")

		Expect(d.Operations).To(HaveLen(1))
		Expect(d.OpCount).To(Equal(1))
	})
})
