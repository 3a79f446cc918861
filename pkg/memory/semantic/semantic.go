// Package semantic implements the highest-priority memory backend:
// entries are embedded and upserted into a vector index, searches run
// true similarity queries filtered by session.
package semantic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/embeddings"
	"github.com/llmpagina/avamem/pkg/memory"
	"github.com/llmpagina/avamem/pkg/vector"
)

const (
	// BackendName is the identifier used in result maps and status reports.
	BackendName = "semantic"

	// DefaultCollection indexes session memories.
	DefaultCollection = "text"

	// DefaultQueryTimeout bounds each index query; a slow or down index
	// degrades to zero results instead of stalling the merge.
	DefaultQueryTimeout = 5 * time.Second
)

// Config holds the backend's settings.
type Config struct {
	// Collection names the vector collection. Defaults to DefaultCollection.
	Collection string

	// Dimensions is the embedding size, used to create the collection.
	Dimensions int

	// QueryTimeout bounds searches. Defaults to DefaultQueryTimeout.
	QueryTimeout time.Duration
}

// Backend stores memories as embeddings in a vector index. The embedder
// and driver are shared resources; Close does not release them.
type Backend struct {
	embedder     embeddings.Embedder
	driver       vector.Driver
	collection   string
	queryTimeout time.Duration
	logger       *zap.Logger
}

// New ensures the collection exists and returns the backend.
func New(embedder embeddings.Embedder, driver vector.Driver, c Config, logger *zap.Logger) (*Backend, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", memory.ErrUnavailable)
	}
	if driver == nil {
		return nil, fmt.Errorf("%w: vector driver is required", memory.ErrUnavailable)
	}
	if c.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions are required")
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	queryTimeout := c.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}

	if err := driver.EnsureCollection(context.Background(), collection, c.Dimensions); err != nil {
		return nil, fmt.Errorf("%w: ensuring collection: %v", memory.ErrUnavailable, err)
	}

	return &Backend{
		embedder:     embedder,
		driver:       driver,
		collection:   collection,
		queryTimeout: queryTimeout,
		logger:       logger,
	}, nil
}

// Name implements memory.Backend.
func (b *Backend) Name() string {
	return BackendName
}

// pointID derives a deterministic document ID from session and key, so
// storing the same key again replaces the previous point (last write wins).
func pointID(sessionID, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sessionID+"/"+key)).String()
}

// Store embeds the rendered entry and upserts it into the collection.
func (b *Backend) Store(ctx context.Context, entry memory.Entry) error {
	content := memory.RenderContent(entry.Data)

	embedding, err := b.embedder.Embed(ctx, content)
	if err != nil {
		return memory.StorageError{Backend: BackendName, Op: "store", Err: err}
	}

	metadata := map[string]any{
		"user_id":     entry.SessionID,
		"key":         entry.Key,
		"memory_type": entry.MemoryType,
		"tags":        entry.Tags,
		"importance":  entry.Importance,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range entry.Metadata {
		metadata[k] = v
	}

	doc := vector.Document{
		ID:        pointID(entry.SessionID, entry.Key),
		Embedding: embedding,
		Content:   content,
		Metadata:  metadata,
	}
	if err := b.driver.Upsert(ctx, b.collection, []vector.Document{doc}); err != nil {
		return memory.StorageError{Backend: BackendName, Op: "store", Err: err}
	}

	return nil
}

// Search embeds the query and runs a bounded similarity search filtered
// by session. Timeouts and index errors degrade to zero results.
func (b *Backend) Search(ctx context.Context, req memory.SearchRequest) ([]memory.Record, error) {
	embedding, err := b.embedder.Embed(ctx, req.Query)
	if err != nil {
		b.logger.Warn("embedding query failed", zap.Error(err))
		return nil, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()

	results, err := b.driver.Query(queryCtx, b.collection, embedding, vector.QueryOptions{
		Filter:         map[string]string{"user_id": req.SessionID},
		Limit:          req.Limit,
		ScoreThreshold: float32(req.ScoreThreshold),
	})
	if err != nil {
		b.logger.Warn("vector query failed", zap.Error(err))
		return nil, nil
	}

	records := make([]memory.Record, 0, len(results))
	for _, r := range results {
		rec := memory.Record{
			Backend:    BackendName,
			Content:    r.Content,
			Score:      float64(r.Score),
			SearchType: "semantic",
			SessionID:  req.SessionID,
			Metadata:   r.Metadata,
		}
		if key, ok := r.Metadata["key"].(string); ok {
			rec.Key = key
		}
		if ts, ok := r.Metadata["timestamp"].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				rec.Timestamp = t
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

// Stats implements memory.Backend by counting the session's points.
func (b *Backend) Stats(ctx context.Context, sessionID string) (memory.BackendStats, error) {
	count, err := b.driver.Count(ctx, b.collection, map[string]string{"user_id": sessionID})
	if err != nil {
		return memory.BackendStats{}, memory.StorageError{Backend: BackendName, Op: "stats", Err: err}
	}

	return memory.BackendStats{
		Backend:  BackendName,
		Memories: count,
	}, nil
}

// Clear removes all of the session's points.
func (b *Backend) Clear(ctx context.Context, sessionID string) error {
	if err := b.driver.DeleteByFilter(ctx, b.collection, map[string]string{"user_id": sessionID}); err != nil {
		return memory.StorageError{Backend: BackendName, Op: "clear", Err: err}
	}
	return nil
}

// Close is a no-op: the embedder and driver are owned by the factory.
func (b *Backend) Close() error {
	return nil
}

var _ memory.Backend = (*Backend)(nil)
