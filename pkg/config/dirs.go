package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDirectories creates the full data directory tree. It is idempotent
// and safe to call on every startup.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Storage.JSONDir,
		c.Storage.ImagesDir,
		c.Embedding.CacheDir,
		filepath.Dir(c.Storage.SQLitePath),
		filepath.Dir(c.VectorStore.Path),
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	return nil
}
