package sqlite_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/memory"
	"github.com/llmpagina/avamem/pkg/storage/sqlite"
)

var _ = Describe("Store", func() {
	var (
		store     *sqlite.Store
		dbPath    string
		imagesDir string
		ctx       context.Context
	)

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		dbPath = filepath.Join(dir, "memory.db")
		imagesDir = filepath.Join(dir, "images")

		var err error
		store, err = sqlite.NewStore(sqlite.Config{
			DBPath:    dbPath,
			ImagesDir: imagesDir,
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	writeImage := func(name string, content []byte) string {
		path := filepath.Join(GinkgoT().TempDir(), name)
		Expect(os.WriteFile(path, content, 0o644)).To(Succeed())
		return path
	}

	Describe("StoreText", func() {
		It("persists a memory and returns a conversation id", func() {
			id, err := store.StoreText(ctx, "ana@example.com", "sess-1", "nombre", "mi nombre es Ana")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeNumerically(">", 0))

			stats, err := store.UserStats(ctx, "ana@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TextMemories).To(Equal(1))
			Expect(stats.TotalConversations).To(Equal(1))
			Expect(stats.FirstInteraction).NotTo(BeZero())
		})

		It("short-circuits duplicate content for the same user", func() {
			first, err := store.StoreText(ctx, "ana@example.com", "sess-1", "nombre", "mi nombre es Ana")
			Expect(err).NotTo(HaveOccurred())

			second, err := store.StoreText(ctx, "ana@example.com", "sess-2", "nombre", "mi nombre es Ana")
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))

			stats, err := store.UserStats(ctx, "ana@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TextMemories).To(Equal(1))
		})

		It("keeps identical content separate across users", func() {
			_, err := store.StoreText(ctx, "ana@example.com", "s", "nombre", "me gustan las empanadas")
			Expect(err).NotTo(HaveOccurred())
			_, err = store.StoreText(ctx, "juan@example.com", "s", "nombre", "me gustan las empanadas")
			Expect(err).NotTo(HaveOccurred())

			anaCount, err := store.CountMemories(ctx, "ana@example.com")
			Expect(err).NotTo(HaveOccurred())
			juanCount, err := store.CountMemories(ctx, "juan@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(anaCount).To(Equal(1))
			Expect(juanCount).To(Equal(1))
		})

		It("rejects empty users and content", func() {
			_, err := store.StoreText(ctx, "", "s", "k", "contenido")
			Expect(err).To(BeAssignableToTypeOf(memory.ValidationError{}))

			_, err = store.StoreText(ctx, "ana@example.com", "s", "k", "")
			Expect(err).To(BeAssignableToTypeOf(memory.ValidationError{}))
		})
	})

	Describe("SearchText", func() {
		BeforeEach(func() {
			_, err := store.StoreText(ctx, "ana@example.com", "s", "nombre", "mi nombre es Ana y vivo en Lima")
			Expect(err).NotTo(HaveOccurred())
			_, err = store.StoreText(ctx, "ana@example.com", "s", "pedido", "quiero dos empanadas de carne")
			Expect(err).NotTo(HaveOccurred())
		})

		It("matches tokens against content", func() {
			memories, err := store.SearchText(ctx, "ana@example.com", "empanadas", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(memories).To(HaveLen(1))
			Expect(memories[0].Key).To(Equal("pedido"))
			Expect(memories[0].Keywords).To(ContainElement("empanadas"))
			Expect(memories[0].UserID).To(Equal("ana@example.com"))
		})

		It("is scoped to the user", func() {
			memories, err := store.SearchText(ctx, "juan@example.com", "empanadas", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(memories).To(BeEmpty())
		})

		It("ranks longer content first via the importance score", func() {
			memories, err := store.SearchText(ctx, "ana@example.com", "nombre empanadas", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(memories).To(HaveLen(2))
			Expect(memories[0].Importance).To(BeNumerically(">=", memories[1].Importance))
		})
	})

	Describe("StoreImage", func() {
		It("copies the file under its content hash", func() {
			path := writeImage("foto.png", []byte("fake png bytes"))

			id, existed, err := store.StoreImage(ctx, "ana@example.com", "s", path, "una foto de empanadas")
			Expect(err).NotTo(HaveOccurred())
			Expect(existed).To(BeFalse())
			Expect(id).To(BeNumerically(">", 0))

			entries, err := os.ReadDir(imagesDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Name()).To(HaveSuffix(".png"))
		})

		It("deduplicates globally by file hash", func() {
			content := []byte("same image bytes")
			first := writeImage("a.png", content)
			second := writeImage("b.png", content)

			id1, existed, err := store.StoreImage(ctx, "ana@example.com", "s", first, "foto")
			Expect(err).NotTo(HaveOccurred())
			Expect(existed).To(BeFalse())

			id2, existed, err := store.StoreImage(ctx, "juan@example.com", "s", second, "otra foto")
			Expect(err).NotTo(HaveOccurred())
			Expect(existed).To(BeTrue())
			Expect(id2).To(Equal(id1))

			entries, err := os.ReadDir(imagesDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
		})

		It("searches by description", func() {
			path := writeImage("foto.png", []byte("png payload"))
			_, _, err := store.StoreImage(ctx, "ana@example.com", "s", path, "empanadas en la mesa")
			Expect(err).NotTo(HaveOccurred())

			memories, err := store.SearchImages(ctx, "ana@example.com", "empanadas", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(memories).To(HaveLen(1))
			Expect(memories[0].Description).To(Equal("empanadas en la mesa"))
			Expect(memories[0].FileSize).To(BeNumerically(">", 0))
		})

		It("fails for a missing source file", func() {
			_, _, err := store.StoreImage(ctx, "ana@example.com", "s",
				filepath.Join(GinkgoT().TempDir(), "missing.png"), "foto")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("RecentContext", func() {
		It("returns recent memories across modalities", func() {
			_, err := store.StoreText(ctx, "ana@example.com", "s", "nombre", "mi nombre es Ana")
			Expect(err).NotTo(HaveOccurred())
			path := writeImage("foto.png", []byte("png payload"))
			_, _, err = store.StoreImage(ctx, "ana@example.com", "s", path, "una foto")
			Expect(err).NotTo(HaveOccurred())

			result, err := store.RecentContext(ctx, "ana@example.com", 7, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.TextMemories).To(HaveLen(1))
			Expect(result.ImageMemories).To(HaveLen(1))
			Expect(result.TotalConversations).To(Equal(2))
		})
	})

	Describe("CreateSemanticLink", func() {
		It("links two memories", func() {
			textID, err := store.StoreText(ctx, "ana@example.com", "s", "nombre", "mi nombre es Ana")
			Expect(err).NotTo(HaveOccurred())
			path := writeImage("foto.png", []byte("png payload"))
			imageID, _, err := store.StoreImage(ctx, "ana@example.com", "s", path, "una foto")
			Expect(err).NotTo(HaveOccurred())

			Expect(store.CreateSemanticLink(ctx, sqlite.SemanticLink{
				MemoryID1:  textID,
				MemoryID2:  imageID,
				Modality1:  "text",
				Modality2:  "image",
				Similarity: 0.8,
				LinkType:   "related",
			})).To(Succeed())
		})

		It("requires both memory ids", func() {
			err := store.CreateSemanticLink(ctx, sqlite.SemanticLink{MemoryID1: 1})
			Expect(err).To(BeAssignableToTypeOf(memory.ValidationError{}))
		})
	})

	Describe("CleanupOlderThan", func() {
		It("keeps recent conversations", func() {
			_, err := store.StoreText(ctx, "ana@example.com", "s", "nombre", "mi nombre es Ana")
			Expect(err).NotTo(HaveOccurred())

			deleted, err := store.CleanupOlderThan(ctx, 30)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeZero())

			count, err := store.CountMemories(ctx, "ana@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("removes conversations past the retention window with their children", func() {
			_, err := store.StoreText(ctx, "ana@example.com", "s", "nombre", "mi nombre es Ana")
			Expect(err).NotTo(HaveOccurred())
			path := writeImage("foto.png", []byte("png payload"))
			_, _, err = store.StoreImage(ctx, "ana@example.com", "s", path, "una foto")
			Expect(err).NotTo(HaveOccurred())

			// Backdate every conversation past the retention window.
			db, err := sql.Open("sqlite3", dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer db.Close()
			old := time.Now().UTC().AddDate(0, 0, -60).Format(time.RFC3339Nano)
			_, err = db.ExecContext(ctx, `UPDATE conversations SET timestamp = ?`, old)
			Expect(err).NotTo(HaveOccurred())

			deleted, err := store.CleanupOlderThan(ctx, 30)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(int64(2)))

			count, err := store.CountMemories(ctx, "ana@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})

		It("rejects a non-positive retention window", func() {
			_, err := store.CleanupOlderThan(ctx, 0)
			Expect(err).To(BeAssignableToTypeOf(memory.ValidationError{}))
		})
	})

	Describe("ClearUser", func() {
		It("removes only the given user's memories", func() {
			_, err := store.StoreText(ctx, "ana@example.com", "s", "nombre", "mi nombre es Ana")
			Expect(err).NotTo(HaveOccurred())
			_, err = store.StoreText(ctx, "juan@example.com", "s", "nombre", "mi nombre es Juan")
			Expect(err).NotTo(HaveOccurred())

			Expect(store.ClearUser(ctx, "ana@example.com")).To(Succeed())

			anaCount, err := store.CountMemories(ctx, "ana@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(anaCount).To(BeZero())

			juanCount, err := store.CountMemories(ctx, "juan@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(juanCount).To(Equal(1))

			stats, err := store.UserStats(ctx, "ana@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.FirstInteraction).To(BeZero())
		})
	})
})
