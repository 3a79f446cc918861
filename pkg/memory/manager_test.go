package memory_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/memory"
	testutils "github.com/llmpagina/avamem/pkg/utils/test"
)

var _ = Describe("Manager", func() {
	var (
		primary   *testutils.MockBackend
		secondary *testutils.MockBackend
		manager   *memory.Manager
		ctx       context.Context
	)

	BeforeEach(func() {
		primary = testutils.NewMockBackend("semantic")
		secondary = testutils.NewMockBackend("jsonfile")

		var err error
		manager, err = memory.NewManager(zap.NewNop(), []memory.Backend{primary, secondary})
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	It("requires at least one backend", func() {
		_, err := memory.NewManager(zap.NewNop(), nil)
		Expect(err).To(MatchError(memory.ErrNoBackends))
	})

	Describe("Store", func() {
		It("fans out to every backend", func() {
			results, err := manager.Store(ctx, memory.Entry{
				SessionID: "ana@example.com",
				Key:       "nombre",
				Data:      "mi nombre es Ana",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results["semantic"].OK).To(BeTrue())
			Expect(results["jsonfile"].OK).To(BeTrue())
			Expect(primary.Stored).To(HaveLen(1))
			Expect(secondary.Stored).To(HaveLen(1))
		})

		It("records a backend failure without blocking the others", func() {
			primary.FailStore = true

			results, err := manager.Store(ctx, memory.Entry{
				SessionID: "ana@example.com",
				Key:       "nombre",
				Data:      "mi nombre es Ana",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results["semantic"].OK).To(BeFalse())
			Expect(results["semantic"].Err).NotTo(BeEmpty())
			Expect(results["jsonfile"].OK).To(BeTrue())
			Expect(secondary.Stored).To(HaveLen(1))
		})

		It("fails when every backend rejects the entry", func() {
			primary.FailStore = true
			secondary.FailStore = true

			_, err := manager.Store(ctx, memory.Entry{
				SessionID: "ana@example.com",
				Key:       "nombre",
				Data:      "mi nombre es Ana",
			})
			Expect(err).To(MatchError(memory.ErrUnavailable))
		})

		It("rejects entries without a session before touching backends", func() {
			_, err := manager.Store(ctx, memory.Entry{Key: "nombre", Data: "x"})
			Expect(err).To(BeAssignableToTypeOf(memory.ValidationError{}))
			Expect(primary.Stored).To(BeEmpty())
		})

		It("rejects entries without data", func() {
			_, err := manager.Store(ctx, memory.Entry{SessionID: "s", Key: "k"})
			Expect(err).To(BeAssignableToTypeOf(memory.ValidationError{}))
		})

		It("passes oversized content through to backends that accept it", func() {
			results, err := manager.Store(ctx, memory.Entry{
				SessionID: "ana@example.com",
				Key:       "historia",
				Data:      strings.Repeat("a", memory.MaxContentBytes+10_000),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results["semantic"].OK).To(BeTrue())
			Expect(results["jsonfile"].OK).To(BeTrue())
		})
	})

	Describe("Search", func() {
		It("dedupes by key, keeping the higher-priority record", func() {
			primary.Records = []memory.Record{
				{Backend: "semantic", Key: "nombre", Content: "mi nombre es Ana", Score: 0.9},
			}
			secondary.Records = []memory.Record{
				{Backend: "jsonfile", Key: "nombre", Content: "mi nombre es Ana", Score: 0.4},
				{Backend: "jsonfile", Key: "pedido", Content: "dos empanadas", Score: 0.3},
			}

			records, err := manager.Search(ctx, memory.SearchRequest{
				SessionID: "ana@example.com",
				Query:     "nombre",
				Limit:     5,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0].Backend).To(Equal("semantic"))
			Expect(records[0].Score).To(Equal(0.9))
			Expect(records[1].Key).To(Equal("pedido"))
		})

		It("stops walking backends once the limit is satisfied", func() {
			primary.Records = []memory.Record{
				{Key: "a", Score: 0.9},
				{Key: "b", Score: 0.8},
			}
			secondary.FailSearch = true // would error if reached

			records, err := manager.Search(ctx, memory.SearchRequest{
				SessionID: "ana@example.com",
				Query:     "x",
				Limit:     2,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})

		It("sorts merged results by score descending", func() {
			primary.Records = []memory.Record{
				{Key: "a", Score: 0.2},
			}
			secondary.Records = []memory.Record{
				{Key: "b", Score: 0.7},
			}

			records, err := manager.Search(ctx, memory.SearchRequest{
				SessionID: "ana@example.com",
				Query:     "x",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].Key).To(Equal("b"))
			Expect(records[1].Key).To(Equal("a"))
		})

		It("degrades a failing backend to zero results", func() {
			primary.FailSearch = true
			secondary.Records = []memory.Record{{Key: "b", Score: 0.5}}

			records, err := manager.Search(ctx, memory.SearchRequest{
				SessionID: "ana@example.com",
				Query:     "x",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})

		It("applies the score threshold", func() {
			primary.Records = []memory.Record{
				{Key: "a", Score: 0.9},
				{Key: "b", Score: 0.1},
			}

			records, err := manager.Search(ctx, memory.SearchRequest{
				SessionID:      "ana@example.com",
				Query:          "x",
				ScoreThreshold: 0.5,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Key).To(Equal("a"))
		})

		It("rejects requests without a query", func() {
			_, err := manager.Search(ctx, memory.SearchRequest{SessionID: "s"})
			Expect(err).To(BeAssignableToTypeOf(memory.ValidationError{}))
		})
	})

	Describe("Stats", func() {
		It("aggregates counts across backends", func() {
			_, err := manager.Store(ctx, memory.Entry{
				SessionID: "ana@example.com", Key: "nombre", Data: "Ana",
			})
			Expect(err).NotTo(HaveOccurred())

			stats, err := manager.Stats(ctx, "ana@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Total).To(Equal(2))
			Expect(stats.Backends).To(HaveKey("semantic"))
			Expect(stats.Backends).To(HaveKey("jsonfile"))
		})
	})

	Describe("Clear", func() {
		It("fans out to every backend", func() {
			results, err := manager.Clear(ctx, "ana@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(results["semantic"].OK).To(BeTrue())
			Expect(primary.Cleared).To(ContainElement("ana@example.com"))
			Expect(secondary.Cleared).To(ContainElement("ana@example.com"))
		})
	})

	Describe("Status", func() {
		It("lists active and unavailable backends", func() {
			m, err := memory.NewManager(zap.NewNop(),
				[]memory.Backend{secondary},
				memory.WithUnavailable(memory.BackendStatus{
					Name: "semantic", State: memory.StateUnavailable, Reason: "embedder down",
				}),
			)
			Expect(err).NotTo(HaveOccurred())

			statuses := m.Status()
			Expect(statuses).To(HaveLen(2))
			Expect(statuses[0].State).To(Equal(memory.StateActive))
			Expect(statuses[1].State).To(Equal(memory.StateUnavailable))
			Expect(statuses[1].Reason).To(Equal("embedder down"))
		})
	})
})
