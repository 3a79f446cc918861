package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llmpagina/avamem/pkg/config"
)

var _ = Describe("NewDefaultConfig", func() {
	It("fills every section", func() {
		c := config.NewDefaultConfig()

		Expect(c.DataDir).To(Equal("data"))
		Expect(c.VectorStore.Provider).To(Equal("qdrant"))
		Expect(c.VectorStore.Port).To(Equal(6334))
		Expect(c.Embedding.Provider).To(Equal("ollama"))
		Expect(c.Embedding.Model).To(Equal("nomic-embed-text"))
		Expect(c.Embedding.Dimensions).To(Equal(uint(768)))
		Expect(c.Memory.QueryTimeout).To(Equal(5 * time.Second))
		Expect(c.Memory.RetentionDays).To(Equal(30))
		Expect(c.API.Listen).To(Equal(":8090"))
	})

	It("derives storage paths from the data directory", func() {
		c := config.NewDefaultConfig()

		Expect(c.Storage.SQLitePath).To(Equal(filepath.Join("data", "memory.db")))
		Expect(c.Storage.JSONDir).To(Equal(filepath.Join("data", "json_memory")))
		Expect(c.Storage.ImagesDir).To(Equal(filepath.Join("data", "stored_images")))
		Expect(c.Embedding.CacheDir).To(Equal(filepath.Join("data", "embeddings_cache")))
		Expect(c.VectorStore.Path).To(Equal(filepath.Join("data", "vector.db")))
	})
})

var _ = Describe("Resolve", func() {
	It("keeps explicitly configured paths", func() {
		c := &config.Config{
			DataDir: "/srv/ava",
			Storage: config.StorageConfig{SQLitePath: "/var/lib/ava/mem.db"},
		}
		c.Resolve()

		Expect(c.Storage.SQLitePath).To(Equal("/var/lib/ava/mem.db"))
		Expect(c.Storage.JSONDir).To(Equal(filepath.Join("/srv/ava", "json_memory")))
	})
})

var _ = Describe("InitViper", func() {
	It("applies defaults when no config file exists", func() {
		v, err := config.InitViper(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		c := config.FromViper(v)
		Expect(c.VectorStore.Provider).To(Equal("qdrant"))
		Expect(c.Memory.ScoreThreshold).To(Equal(0.3))
	})

	It("reads values from config.toml", func() {
		dir := GinkgoT().TempDir()
		toml := `
data_dir = "` + dir + `"

[embedding]
provider = "none"

[memory]
retention_days = 7
`
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644)).To(Succeed())

		v, err := config.InitViper(dir)
		Expect(err).NotTo(HaveOccurred())

		c := config.FromViper(v)
		Expect(c.DataDir).To(Equal(dir))
		Expect(c.Embedding.Provider).To(Equal("none"))
		Expect(c.Memory.RetentionDays).To(Equal(7))
		// Untouched keys keep their defaults.
		Expect(c.Embedding.Model).To(Equal("nomic-embed-text"))
		Expect(c.Storage.SQLitePath).To(Equal(filepath.Join(dir, "memory.db")))
	})

	It("lets environment variables override the file", func() {
		GinkgoT().Setenv("AVAMEM_EMBEDDING_MODEL", "all-minilm")

		v, err := config.InitViper(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		c := config.FromViper(v)
		Expect(c.Embedding.Model).To(Equal("all-minilm"))
	})
})

var _ = Describe("EnsureDirectories", func() {
	It("creates the whole data tree", func() {
		c := &config.Config{DataDir: filepath.Join(GinkgoT().TempDir(), "ava")}
		c.Resolve()

		Expect(c.EnsureDirectories()).To(Succeed())
		Expect(c.Storage.JSONDir).To(BeADirectory())
		Expect(c.Storage.ImagesDir).To(BeADirectory())
		Expect(c.Embedding.CacheDir).To(BeADirectory())

		// Idempotent on an existing tree.
		Expect(c.EnsureDirectories()).To(Succeed())
	})
})
