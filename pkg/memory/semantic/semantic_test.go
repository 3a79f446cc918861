package semantic_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/memory"
	"github.com/llmpagina/avamem/pkg/memory/semantic"
	testutils "github.com/llmpagina/avamem/pkg/utils/test"
)

var _ = Describe("Backend", func() {
	var (
		embedder *testutils.MockEmbedder
		driver   *testutils.MockVectorDriver
		backend  *semantic.Backend
		ctx      context.Context
	)

	BeforeEach(func() {
		embedder = testutils.NewMockEmbedder()
		driver = testutils.NewMockVectorDriver()

		var err error
		backend, err = semantic.New(embedder, driver, semantic.Config{Dimensions: 3}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	It("requires an embedder and a driver", func() {
		_, err := semantic.New(nil, driver, semantic.Config{Dimensions: 3}, zap.NewNop())
		Expect(err).To(MatchError(memory.ErrUnavailable))

		_, err = semantic.New(embedder, nil, semantic.Config{Dimensions: 3}, zap.NewNop())
		Expect(err).To(MatchError(memory.ErrUnavailable))
	})

	It("requires embedding dimensions", func() {
		_, err := semantic.New(embedder, driver, semantic.Config{}, zap.NewNop())
		Expect(err).To(HaveOccurred())
	})

	Describe("Store and Search", func() {
		BeforeEach(func() {
			embedder.Embeddings["mi nombre es Ana"] = []float32{1, 0, 0}
			embedder.Embeddings["me gustan las empanadas"] = []float32{0, 1, 0}
			embedder.Embeddings["como me llamo"] = []float32{0.9, 0.1, 0}
		})

		It("returns the closest memories for the session", func() {
			Expect(backend.Store(ctx, memory.Entry{
				SessionID: "ana@example.com", Key: "nombre", Data: "mi nombre es Ana",
			})).To(Succeed())
			Expect(backend.Store(ctx, memory.Entry{
				SessionID: "ana@example.com", Key: "gustos", Data: "me gustan las empanadas",
			})).To(Succeed())

			records, err := backend.Search(ctx, memory.SearchRequest{
				SessionID: "ana@example.com", Query: "como me llamo", Limit: 5,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0].Key).To(Equal("nombre"))
			Expect(records[0].SearchType).To(Equal("semantic"))
			Expect(records[0].Score).To(BeNumerically(">", records[1].Score))
		})

		It("replaces the point when the same key is stored again", func() {
			Expect(backend.Store(ctx, memory.Entry{
				SessionID: "ana@example.com", Key: "nombre", Data: "mi nombre es Ana",
			})).To(Succeed())
			Expect(backend.Store(ctx, memory.Entry{
				SessionID: "ana@example.com", Key: "nombre", Data: "me gustan las empanadas",
			})).To(Succeed())

			stats, err := backend.Stats(ctx, "ana@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Memories).To(Equal(1))
		})

		It("never returns another session's memories", func() {
			Expect(backend.Store(ctx, memory.Entry{
				SessionID: "ana@example.com", Key: "nombre", Data: "mi nombre es Ana",
			})).To(Succeed())

			records, err := backend.Search(ctx, memory.SearchRequest{
				SessionID: "juan@example.com", Query: "como me llamo",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("applies the score threshold", func() {
			Expect(backend.Store(ctx, memory.Entry{
				SessionID: "ana@example.com", Key: "gustos", Data: "me gustan las empanadas",
			})).To(Succeed())

			records, err := backend.Search(ctx, memory.SearchRequest{
				SessionID:      "ana@example.com",
				Query:          "como me llamo",
				ScoreThreshold: 0.5,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("degrades to zero results when the index query fails", func() {
			driver.FailQuery = true

			records, err := backend.Search(ctx, memory.SearchRequest{
				SessionID: "ana@example.com", Query: "como me llamo",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("propagates embedding failures on store", func() {
			embedder.FailOn = "contenido prohibido"

			err := backend.Store(ctx, memory.Entry{
				SessionID: "ana@example.com", Key: "k", Data: "contenido prohibido",
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Clear", func() {
		It("removes only the session's points", func() {
			Expect(backend.Store(ctx, memory.Entry{
				SessionID: "ana@example.com", Key: "nombre", Data: "mi nombre es Ana",
			})).To(Succeed())
			Expect(backend.Store(ctx, memory.Entry{
				SessionID: "juan@example.com", Key: "nombre", Data: "me gustan las empanadas",
			})).To(Succeed())

			Expect(backend.Clear(ctx, "ana@example.com")).To(Succeed())

			anaStats, err := backend.Stats(ctx, "ana@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(anaStats.Memories).To(BeZero())

			juanStats, err := backend.Stats(ctx, "juan@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(juanStats.Memories).To(Equal(1))
		})
	})
})
