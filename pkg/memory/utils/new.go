// Package memoryutils builds the unified memory system from configuration:
// embedder, vector driver and backends in priority order, with explicit
// dependency injection and soft failures per backend.
package memoryutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/config"
	"github.com/llmpagina/avamem/pkg/embeddings"
	embeddingutils "github.com/llmpagina/avamem/pkg/embeddings/utils"
	"github.com/llmpagina/avamem/pkg/eventstream/nop"
	"github.com/llmpagina/avamem/pkg/memory"
	"github.com/llmpagina/avamem/pkg/memory/semantic"
	"github.com/llmpagina/avamem/pkg/multimodal"
	"github.com/llmpagina/avamem/pkg/storage/jsonfile"
	"github.com/llmpagina/avamem/pkg/storage/sqlite"
	"github.com/llmpagina/avamem/pkg/vector"
	vectorutils "github.com/llmpagina/avamem/pkg/vector/utils"
)

// System bundles the manager with the multimodal adapter, which also
// serves the validate and recent-context surfaces.
type System struct {
	Manager    *memory.Manager
	Multimodal *multimodal.Adapter
}

// Close releases the whole system.
func (s *System) Close() error {
	return s.Manager.Close()
}

// NewSystem builds backends in priority order (semantic, multimodal,
// jsonfile). A backend whose dependencies fail to initialize is recorded
// as unavailable and skipped; the system comes up as long as at least
// one backend works. The jsonfile backend has no dependencies, so in
// practice the system always comes up.
func NewSystem(cfg *config.Config, logger *zap.Logger) (*System, error) {
	cfg.Resolve()
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("preparing data directories: %w", err)
	}

	var (
		backends    []memory.Backend
		unavailable []memory.BackendStatus
		options     []memory.ManagerOption
	)

	// Shared embedder, wrapped with the disk cache.
	var embedder embeddings.Embedder
	if cfg.Embedding.Provider != "" && cfg.Embedding.Provider != "none" {
		inner, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: cfg.Embedding.Provider,
			TargetURL:    cfg.Embedding.Target,
			Model:        cfg.Embedding.Model,
		})
		if err != nil {
			logger.Warn("embedder unavailable", zap.Error(err))
		} else {
			cache, err := embeddings.NewDiskCache(cfg.Embedding.CacheDir, logger)
			if err != nil {
				logger.Warn("embedding cache unavailable, embedding without cache", zap.Error(err))
				embedder = inner
			} else {
				embedder = embeddings.NewCached(inner, cache, logger)
			}
			options = append(options, memory.WithResource(embedder.Close))
		}
	}

	// Shared vector driver.
	var vectorDriver vector.Driver
	if cfg.VectorStore.Provider != "" && cfg.VectorStore.Provider != "none" {
		driver, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
			ProviderType:     cfg.VectorStore.Provider,
			Host:             cfg.VectorStore.Host,
			Port:             cfg.VectorStore.Port,
			Path:             cfg.VectorStore.Path,
			CollectionPrefix: cfg.VectorStore.CollectionPrefix,
			Logger:           logger,
		})
		if err != nil {
			logger.Warn("vector driver unavailable", zap.Error(err))
		} else {
			vectorDriver = driver
			options = append(options, memory.WithResource(driver.Close))
		}
	}

	// Semantic backend, highest priority.
	if embedder != nil && vectorDriver != nil {
		backend, err := semantic.New(embedder, vectorDriver, semantic.Config{
			Dimensions:   int(cfg.Embedding.Dimensions),
			QueryTimeout: cfg.Memory.QueryTimeout,
		}, logger)
		if err != nil {
			logger.Warn("semantic backend unavailable", zap.Error(err))
			unavailable = append(unavailable, memory.BackendStatus{
				Name: semantic.BackendName, State: memory.StateUnavailable, Reason: err.Error(),
			})
		} else {
			backends = append(backends, backend)
		}
	} else {
		unavailable = append(unavailable, memory.BackendStatus{
			Name: semantic.BackendName, State: memory.StateUnavailable,
			Reason: "embedder or vector store not configured",
		})
	}

	// Multimodal relational backend.
	var adapter *multimodal.Adapter
	store, err := sqlite.NewStore(sqlite.Config{
		DBPath:    cfg.Storage.SQLitePath,
		ImagesDir: cfg.Storage.ImagesDir,
	}, logger)
	if err != nil {
		logger.Warn("relational store unavailable", zap.Error(err))
		unavailable = append(unavailable, memory.BackendStatus{
			Name: multimodal.BackendName, State: memory.StateUnavailable, Reason: err.Error(),
		})
	} else {
		adapter, err = multimodal.NewAdapter(multimodal.Config{
			Store:        store,
			Embedder:     embedder,
			Vector:       vectorDriver,
			Dimensions:   int(cfg.Embedding.Dimensions),
			QueryTimeout: cfg.Memory.QueryTimeout,
			BaseDir:      cfg.DataDir,
			ImagesDir:    cfg.Storage.ImagesDir,
			CacheDir:     cfg.Embedding.CacheDir,
		}, logger)
		if err != nil {
			store.Close()
			logger.Warn("multimodal backend unavailable", zap.Error(err))
			unavailable = append(unavailable, memory.BackendStatus{
				Name: multimodal.BackendName, State: memory.StateUnavailable, Reason: err.Error(),
			})
			adapter = nil
		} else {
			backends = append(backends, adapter)
		}
	}

	// Flat-file fallback, always last.
	jsonStore, err := jsonfile.NewStore(cfg.Storage.JSONDir, logger)
	if err != nil {
		logger.Warn("jsonfile backend unavailable", zap.Error(err))
		unavailable = append(unavailable, memory.BackendStatus{
			Name: jsonfile.BackendName, State: memory.StateUnavailable, Reason: err.Error(),
		})
	} else {
		backends = append(backends, jsonStore)
	}

	options = append(options,
		memory.WithUnavailable(unavailable...),
		memory.WithPublisher(nop.NewPublisher()),
	)

	manager, err := memory.NewManager(logger, backends, options...)
	if err != nil {
		return nil, err
	}

	logger.Info("memory system initialized",
		zap.Strings("backends", manager.Backends()),
		zap.Int("unavailable", len(unavailable)),
	)

	return &System{
		Manager:    manager,
		Multimodal: adapter,
	}, nil
}
