package config

import "time"

const (
	defaultDataDir = "data"

	defaultVectorProvider   = "qdrant"
	defaultVectorHost       = "localhost"
	defaultVectorPort       = 6334
	defaultCollectionPrefix = "ava_bot"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultQueryTimeout   = 5 * time.Second
	defaultRetentionDays  = 30
	defaultScoreThreshold = 0.3

	defaultAPIListen = ":8090"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	c := &Config{
		DataDir: defaultDataDir,
		VectorStore: VectorStoreConfig{
			Provider:         defaultVectorProvider,
			Host:             defaultVectorHost,
			Port:             defaultVectorPort,
			CollectionPrefix: defaultCollectionPrefix,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Memory: MemoryConfig{
			QueryTimeout:   defaultQueryTimeout,
			RetentionDays:  defaultRetentionDays,
			ScoreThreshold: defaultScoreThreshold,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
	c.Resolve()
	return c
}
