package config

import (
	"path/filepath"
	"time"
)

// Config represents the avamem configuration, stored as config.toml in the
// data directory. The TOML layout uses sections for logical grouping.
type Config struct {
	DataDir     string            `toml:"data_dir"`
	Storage     StorageConfig     `toml:"storage"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Memory      MemoryConfig      `toml:"memory"`
	API         APIConfig         `toml:"api"`
}

// StorageConfig holds relational and flat-file storage settings.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path,omitempty"`
	JSONDir    string `toml:"json_dir,omitempty"`
	ImagesDir  string `toml:"images_dir,omitempty"`
}

// VectorStoreConfig holds vector index settings.
// Provider is one of "qdrant", "sqlite" or "none".
type VectorStoreConfig struct {
	Provider         string `toml:"provider,omitempty"`
	Host             string `toml:"host,omitempty"`
	Port             int    `toml:"port,omitempty"`
	Path             string `toml:"path,omitempty"`
	CollectionPrefix string `toml:"collection_prefix,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
// Provider is one of "ollama" or "none".
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	CacheDir   string `toml:"cache_dir,omitempty"`
}

// MemoryConfig holds orchestration settings shared by all backends.
type MemoryConfig struct {
	QueryTimeout   time.Duration `toml:"query_timeout,omitempty"`
	RetentionDays  int           `toml:"retention_days,omitempty"`
	ScoreThreshold float64       `toml:"score_threshold,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// Resolve fills empty path fields relative to DataDir so that changing the
// data directory moves the whole tree. Explicitly configured paths win.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(c.DataDir, "memory.db")
	}
	if c.Storage.JSONDir == "" {
		c.Storage.JSONDir = filepath.Join(c.DataDir, "json_memory")
	}
	if c.Storage.ImagesDir == "" {
		c.Storage.ImagesDir = filepath.Join(c.DataDir, "stored_images")
	}
	if c.Embedding.CacheDir == "" {
		c.Embedding.CacheDir = filepath.Join(c.DataDir, "embeddings_cache")
	}
	if c.VectorStore.Path == "" {
		c.VectorStore.Path = filepath.Join(c.DataDir, "vector.db")
	}
}
