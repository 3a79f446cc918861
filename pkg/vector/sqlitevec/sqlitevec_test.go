package sqlitevec_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/vector"
	"github.com/llmpagina/avamem/pkg/vector/sqlitevec"
)

var _ = Describe("Driver", func() {
	var (
		driver *sqlitevec.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		driver, err = sqlitevec.NewDriver(sqlitevec.Config{
			DBPath: filepath.Join(GinkgoT().TempDir(), "vector.db"),
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		ctx = context.Background()
		Expect(driver.EnsureCollection(ctx, "text_memories", 3)).To(Succeed())
	})

	AfterEach(func() {
		Expect(driver.Close()).To(Succeed())
	})

	It("rejects invalid collection names", func() {
		Expect(driver.EnsureCollection(ctx, "Bad-Name", 3)).To(HaveOccurred())
		Expect(driver.EnsureCollection(ctx, "drop table", 3)).To(HaveOccurred())
	})

	It("rejects operations on unknown collections", func() {
		err := driver.Upsert(ctx, "missing", []vector.Document{{ID: "a", Embedding: []float32{1, 0, 0}}})
		Expect(err).To(MatchError(vector.ErrNotFound))

		_, err = driver.Query(ctx, "missing", []float32{1, 0, 0}, vector.QueryOptions{})
		Expect(err).To(MatchError(vector.ErrNotFound))
	})

	Describe("Upsert and Query", func() {
		BeforeEach(func() {
			Expect(driver.Upsert(ctx, "text_memories", []vector.Document{
				{
					ID:        "text_1",
					Embedding: []float32{1, 0, 0},
					Content:   "mi nombre es Ana",
					Metadata:  map[string]any{"user_id": "ana@example.com"},
				},
				{
					ID:        "text_2",
					Embedding: []float32{0, 1, 0},
					Content:   "me gustan las empanadas",
					Metadata:  map[string]any{"user_id": "ana@example.com"},
				},
				{
					ID:        "text_3",
					Embedding: []float32{1, 0, 0},
					Content:   "mi nombre es Juan",
					Metadata:  map[string]any{"user_id": "juan@example.com"},
				},
			})).To(Succeed())
		})

		It("returns nearest neighbors first", func() {
			results, err := driver.Query(ctx, "text_memories", []float32{0.9, 0.1, 0}, vector.QueryOptions{
				Limit: 10,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].Document.Content).To(ContainSubstring("nombre"))
			Expect(results[0].Score).To(BeNumerically(">=", results[1].Score))
		})

		It("applies the metadata filter after the KNN pass", func() {
			results, err := driver.Query(ctx, "text_memories", []float32{1, 0, 0}, vector.QueryOptions{
				Filter: map[string]string{"user_id": "juan@example.com"},
				Limit:  10,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Document.ID).To(Equal("text_3"))
		})

		It("replaces the embedding and payload on re-upsert", func() {
			Expect(driver.Upsert(ctx, "text_memories", []vector.Document{{
				ID:        "text_1",
				Embedding: []float32{0, 0, 1},
				Content:   "mi nombre es Ana Maria",
				Metadata:  map[string]any{"user_id": "ana@example.com"},
			}})).To(Succeed())

			count, err := driver.Count(ctx, "text_memories", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(3))

			results, err := driver.Query(ctx, "text_memories", []float32{0, 0, 1}, vector.QueryOptions{Limit: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Document.ID).To(Equal("text_1"))
			Expect(results[0].Document.Content).To(Equal("mi nombre es Ana Maria"))
		})

		It("honors the score threshold", func() {
			results, err := driver.Query(ctx, "text_memories", []float32{1, 0, 0}, vector.QueryOptions{
				Limit:          10,
				ScoreThreshold: 0.99,
			})
			Expect(err).NotTo(HaveOccurred())
			for _, r := range results {
				Expect(r.Score).To(BeNumerically(">=", 0.99))
			}
		})
	})

	Describe("DeleteByFilter and Count", func() {
		BeforeEach(func() {
			Expect(driver.Upsert(ctx, "text_memories", []vector.Document{
				{ID: "a", Embedding: []float32{1, 0, 0}, Metadata: map[string]any{"user_id": "ana@example.com"}},
				{ID: "b", Embedding: []float32{0, 1, 0}, Metadata: map[string]any{"user_id": "juan@example.com"}},
			})).To(Succeed())
		})

		It("counts by filter", func() {
			count, err := driver.Count(ctx, "text_memories", map[string]string{"user_id": "ana@example.com"})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("requires a delete filter", func() {
			Expect(driver.DeleteByFilter(ctx, "text_memories", nil)).To(HaveOccurred())
		})

		It("deletes only matching documents", func() {
			Expect(driver.DeleteByFilter(ctx, "text_memories",
				map[string]string{"user_id": "ana@example.com"})).To(Succeed())

			count, err := driver.Count(ctx, "text_memories", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			count, err = driver.Count(ctx, "text_memories", map[string]string{"user_id": "ana@example.com"})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})
})
