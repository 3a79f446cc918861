package embeddings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DiskCache persists embeddings as one JSON file per content hash
// (text_<hash>.json, an ordered array of floats). The cache is purely
// an optimization: deleting the directory at any time is safe.
type DiskCache struct {
	dir    string
	logger *zap.Logger
}

// NewDiskCache creates the cache directory if needed.
func NewDiskCache(dir string, logger *zap.Logger) (*DiskCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	return &DiskCache{
		dir:    dir,
		logger: logger,
	}, nil
}

func (c *DiskCache) path(contentHash string) string {
	return filepath.Join(c.dir, "text_"+contentHash+".json")
}

// Get returns the cached embedding for a content hash, if present.
// Corrupt cache files are treated as misses.
func (c *DiskCache) Get(contentHash string) ([]float32, bool) {
	data, err := os.ReadFile(c.path(contentHash))
	if err != nil {
		return nil, false
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		c.logger.Debug("discarding corrupt embedding cache file",
			zap.String("hash", contentHash),
			zap.Error(err),
		)
		return nil, false
	}
	if len(embedding) == 0 {
		return nil, false
	}

	return embedding, true
}

// Put writes an embedding to the cache.
func (c *DiskCache) Put(contentHash string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("encoding embedding: %w", err)
	}
	if err := os.WriteFile(c.path(contentHash), data, 0o644); err != nil {
		return fmt.Errorf("writing embedding cache: %w", err)
	}
	return nil
}
