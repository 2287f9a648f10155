package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/playbook/pkg/dotdir"
)

var _ = Describe("Manager", func() {
	var (
		m   *dotdir.Manager
		dir string
	)

	BeforeEach(func() {
		m = dotdir.NewManager()
		dir = filepath.Join(GinkgoT().TempDir(), ".playbook")
	})

	Describe("Target", func() {
		It("should create and return the override directory", func() {
			target, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(target).To(Equal(dir))

			info, err := os.Stat(target)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})
	})

	Describe("file paths", func() {
		It("should place the well-known files inside the target", func() {
			snapshot, err := m.SnapshotPath(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(snapshot).To(Equal(filepath.Join(dir, "playbook.json")))

			history, err := m.HistoryPath(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(Equal(filepath.Join(dir, "delta_history.jsonl")))

			vectors, err := m.VectorDBPath(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(vectors).To(Equal(filepath.Join(dir, "vectors.db")))
		})
	})
})
