// Package config holds the avamem configuration layer: typed defaults,
// an optional config.toml in the data directory, and AVAMEM_-prefixed
// environment variables, merged through viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// from configDir (if present), and binds environment variables with the
// AVAMEM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound by the command layer)
//  2. Environment variables (AVAMEM_STORAGE_SQLITE_PATH, AVAMEM_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Optional config file in the data directory.
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: AVAMEM_VECTOR_STORE_HOST, AVAMEM_EMBEDDING_MODEL, etc.
	v.SetEnvPrefix("AVAMEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a typed Config from a configured viper instance
// and resolves derived paths against the data directory.
func FromViper(v *viper.Viper) *Config {
	c := &Config{
		DataDir: v.GetString("data_dir"),
		Storage: StorageConfig{
			SQLitePath: v.GetString("storage.sqlite_path"),
			JSONDir:    v.GetString("storage.json_dir"),
			ImagesDir:  v.GetString("storage.images_dir"),
		},
		VectorStore: VectorStoreConfig{
			Provider:         v.GetString("vector_store.provider"),
			Host:             v.GetString("vector_store.host"),
			Port:             v.GetInt("vector_store.port"),
			Path:             v.GetString("vector_store.path"),
			CollectionPrefix: v.GetString("vector_store.collection_prefix"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
			CacheDir:   v.GetString("embedding.cache_dir"),
		},
		Memory: MemoryConfig{
			QueryTimeout:   v.GetDuration("memory.query_timeout"),
			RetentionDays:  v.GetInt("memory.retention_days"),
			ScoreThreshold: v.GetFloat64("memory.score_threshold"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
	}
	c.Resolve()
	return c
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("data_dir", d.DataDir)

	// Storage
	v.SetDefault("storage.sqlite_path", "")
	v.SetDefault("storage.json_dir", "")
	v.SetDefault("storage.images_dir", "")

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.host", d.VectorStore.Host)
	v.SetDefault("vector_store.port", d.VectorStore.Port)
	v.SetDefault("vector_store.path", "")
	v.SetDefault("vector_store.collection_prefix", d.VectorStore.CollectionPrefix)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.cache_dir", "")

	// Memory
	v.SetDefault("memory.query_timeout", d.Memory.QueryTimeout)
	v.SetDefault("memory.retention_days", d.Memory.RetentionDays)
	v.SetDefault("memory.score_threshold", d.Memory.ScoreThreshold)

	// API
	v.SetDefault("api.listen", d.API.Listen)
}
