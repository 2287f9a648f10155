package vector_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/google/uuid"

	"github.com/papercomputeco/playbook/pkg/vector"
)

var _ = Describe("PointID", func() {
	It("should be deterministic for the same name", func() {
		Expect(vector.PointID("kpt_001")).To(Equal(vector.PointID("kpt_001")))
	})

	It("should differ across names", func() {
		Expect(vector.PointID("kpt_001")).NotTo(Equal(vector.PointID("kpt_002")))
	})

	It("should be a valid UUID", func() {
		_, err := uuid.Parse(vector.PointID("kpt_001"))
		Expect(err).NotTo(HaveOccurred())
	})
})
