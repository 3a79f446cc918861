// Package multimodal composes the relational store with an optional
// embedder and vector index into one backend handling both text and
// image memories, with graceful fallback to substring search when the
// semantic path is down.
package multimodal

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/embeddings"
	"github.com/llmpagina/avamem/pkg/memory"
	"github.com/llmpagina/avamem/pkg/storage/sqlite"
	"github.com/llmpagina/avamem/pkg/vector"
)

const (
	// BackendName is the identifier used in result maps and status reports.
	BackendName = "multimodal"

	// DefaultTextCollection indexes text memory embeddings.
	DefaultTextCollection = "text_memories"

	// DefaultImageCollection indexes image description embeddings,
	// enabling text-to-image semantic lookup.
	DefaultImageCollection = "image_memories"

	// DefaultQueryTimeout bounds each index query; a slow or down index
	// degrades to the relational fallback instead of stalling the search.
	DefaultQueryTimeout = 5 * time.Second

	// Fallback confidences sit below typical similarity scores so
	// substring matches never outrank semantic results in a merge.
	textFallbackScore  = 0.5
	imageFallbackScore = 0.3
)

// Config holds the adapter's collaborators. Embedder and Vector are
// optional; without them searches degrade to relational matching.
type Config struct {
	Store    *sqlite.Store
	Embedder embeddings.Embedder
	Vector   vector.Driver

	TextCollection  string
	ImageCollection string
	Dimensions      int

	// QueryTimeout bounds vector queries. Defaults to DefaultQueryTimeout.
	QueryTimeout time.Duration

	// Paths checked by Validate.
	BaseDir   string
	ImagesDir string
	CacheDir  string
}

// Adapter is the multimodal relational backend.
type Adapter struct {
	store    *sqlite.Store
	embedder embeddings.Embedder
	vector   vector.Driver

	textCollection  string
	imageCollection string
	queryTimeout    time.Duration

	baseDir   string
	imagesDir string
	cacheDir  string

	logger *zap.Logger
}

// NewAdapter wires the adapter and ensures the vector collections exist
// when a driver is configured.
func NewAdapter(c Config, logger *zap.Logger) (*Adapter, error) {
	if c.Store == nil {
		return nil, fmt.Errorf("relational store is required")
	}

	a := &Adapter{
		store:           c.Store,
		embedder:        c.Embedder,
		vector:          c.Vector,
		textCollection:  c.TextCollection,
		imageCollection: c.ImageCollection,
		queryTimeout:    c.QueryTimeout,
		baseDir:         c.BaseDir,
		imagesDir:       c.ImagesDir,
		cacheDir:        c.CacheDir,
		logger:          logger,
	}
	if a.textCollection == "" {
		a.textCollection = DefaultTextCollection
	}
	if a.imageCollection == "" {
		a.imageCollection = DefaultImageCollection
	}
	if a.queryTimeout <= 0 {
		a.queryTimeout = DefaultQueryTimeout
	}

	if a.vector != nil {
		if c.Dimensions <= 0 {
			return nil, fmt.Errorf("embedding dimensions are required with a vector driver")
		}
		ctx := context.Background()
		if err := a.vector.EnsureCollection(ctx, a.textCollection, c.Dimensions); err != nil {
			return nil, fmt.Errorf("ensuring text collection: %w", err)
		}
		if err := a.vector.EnsureCollection(ctx, a.imageCollection, c.Dimensions); err != nil {
			return nil, fmt.Errorf("ensuring image collection: %w", err)
		}
	}

	return a, nil
}

// semanticReady reports whether the embedding similarity path is usable.
func (a *Adapter) semanticReady() bool {
	return a.embedder != nil && a.vector != nil
}

// index embeds content and upserts it into a collection. Failures are
// logged, not returned: the relational write already succeeded and the
// semantic index is an enrichment.
func (a *Adapter) index(ctx context.Context, collection, docID, content string, metadata map[string]any) {
	if !a.semanticReady() {
		return
	}

	embedding, err := a.embedder.Embed(ctx, content)
	if err != nil {
		a.logger.Warn("embedding for index failed",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return
	}

	doc := vector.Document{
		ID:        docID,
		Embedding: embedding,
		Content:   content,
		Metadata:  metadata,
	}
	if err := a.vector.Upsert(ctx, collection, []vector.Document{doc}); err != nil {
		a.logger.Warn("vector upsert failed",
			zap.String("collection", collection),
			zap.Error(err),
		)
	}
}

// StoreTextMemory persists a text memory and indexes it when the
// semantic path is available. Returns the conversation id.
func (a *Adapter) StoreTextMemory(ctx context.Context, userID, sessionID, key, content string) (int64, error) {
	id, err := a.store.StoreText(ctx, userID, sessionID, key, content)
	if err != nil {
		return 0, err
	}

	a.index(ctx, a.textCollection, fmt.Sprintf("text_%d", id), content, map[string]any{
		"user_id":         userID,
		"session_id":      sessionID,
		"key":             key,
		"conversation_id": id,
		"memory_type":     "text",
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
	})

	return id, nil
}

// StoreImageMemory persists an image memory (idempotent by file hash)
// and indexes its description for text-to-image search.
func (a *Adapter) StoreImageMemory(ctx context.Context, userID, sessionID, imagePath, description string) (int64, error) {
	id, existed, err := a.store.StoreImage(ctx, userID, sessionID, imagePath, description)
	if err != nil {
		return 0, err
	}
	if existed {
		a.logger.Debug("image already stored",
			zap.String("user_id", userID),
			zap.Int64("conversation_id", id),
		)
		return id, nil
	}

	if description != "" {
		a.index(ctx, a.imageCollection, fmt.Sprintf("image_%d", id), description, map[string]any{
			"user_id":         userID,
			"session_id":      sessionID,
			"conversation_id": id,
			"memory_type":     "image",
			"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	return id, nil
}

// SearchSemantic searches the requested modalities ("text", "image").
// With a live embedder and vector index it runs true similarity search;
// otherwise it falls back to relational substring matching at fixed
// lower confidences.
func (a *Adapter) SearchSemantic(ctx context.Context, userID, query string, modalities []string, limit int) ([]memory.Record, error) {
	if limit <= 0 {
		limit = memory.DefaultSearchLimit
	}
	if len(modalities) == 0 {
		modalities = []string{"text"}
	}

	var records []memory.Record
	for _, modality := range modalities {
		var (
			found []memory.Record
			err   error
		)
		switch modality {
		case "text":
			found, err = a.searchText(ctx, userID, query, limit)
		case "image":
			found, err = a.searchImages(ctx, userID, query, limit)
		default:
			return nil, memory.ValidationError{Field: "modality", Reason: fmt.Sprintf("unknown modality %q", modality)}
		}
		if err != nil {
			return nil, err
		}
		records = append(records, found...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
	if len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// searchCollection runs similarity search over one collection, filtered
// by user. Query failures degrade to no results.
func (a *Adapter) searchCollection(ctx context.Context, collection, userID, query string, limit int) ([]memory.Record, bool) {
	if !a.semanticReady() {
		return nil, false
	}

	embedding, err := a.embedder.Embed(ctx, query)
	if err != nil {
		a.logger.Warn("embedding query failed, using fallback search", zap.Error(err))
		return nil, false
	}

	queryCtx, cancel := context.WithTimeout(ctx, a.queryTimeout)
	defer cancel()

	results, err := a.vector.Query(queryCtx, collection, embedding, vector.QueryOptions{
		Filter: map[string]string{"user_id": userID},
		Limit:  limit,
	})
	if err != nil {
		a.logger.Warn("vector query failed, using fallback search",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return nil, false
	}

	records := make([]memory.Record, 0, len(results))
	for _, r := range results {
		rec := memory.Record{
			Backend:    BackendName,
			Content:    r.Content,
			Score:      float64(r.Score),
			SearchType: "semantic",
			SessionID:  userID,
			Metadata:   r.Metadata,
		}
		if key, ok := r.Metadata["key"].(string); ok {
			rec.Key = key
		}
		if rec.Key == "" {
			rec.Key = r.ID
		}
		if ts, ok := r.Metadata["timestamp"].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				rec.Timestamp = t
			}
		}
		records = append(records, rec)
	}
	return records, true
}

func (a *Adapter) searchText(ctx context.Context, userID, query string, limit int) ([]memory.Record, error) {
	if records, ok := a.searchCollection(ctx, a.textCollection, userID, query, limit); ok {
		return records, nil
	}

	// Fallback: relational substring match at fixed confidence.
	memories, err := a.store.SearchText(ctx, userID, query, limit)
	if err != nil {
		return nil, err
	}

	records := make([]memory.Record, 0, len(memories))
	for _, m := range memories {
		key := m.Key
		if key == "" {
			key = fmt.Sprintf("conversation_%d", m.ConversationID)
		}
		records = append(records, memory.Record{
			Backend:    BackendName,
			Key:        key,
			Content:    m.Content,
			Score:      textFallbackScore,
			SearchType: "text_match",
			Timestamp:  m.Timestamp,
			SessionID:  m.UserID,
			Tags:       m.Keywords,
			Metadata: map[string]any{
				"conversation_id": m.ConversationID,
				"importance":      m.Importance,
			},
		})
	}
	return records, nil
}

func (a *Adapter) searchImages(ctx context.Context, userID, query string, limit int) ([]memory.Record, error) {
	if records, ok := a.searchCollection(ctx, a.imageCollection, userID, query, limit); ok {
		return records, nil
	}

	memories, err := a.store.SearchImages(ctx, userID, query, limit)
	if err != nil {
		return nil, err
	}

	records := make([]memory.Record, 0, len(memories))
	for _, m := range memories {
		records = append(records, memory.Record{
			Backend:    BackendName,
			Key:        fmt.Sprintf("image_%d", m.ConversationID),
			Content:    m.Description,
			Score:      imageFallbackScore,
			SearchType: "text_match",
			Timestamp:  m.Timestamp,
			SessionID:  m.UserID,
			Metadata: map[string]any{
				"conversation_id": m.ConversationID,
				"image_path":      m.Path,
				"image_hash":      m.Hash,
			},
		})
	}
	return records, nil
}

// RecentContext returns the user's recent memories for priming.
func (a *Adapter) RecentContext(ctx context.Context, userID string, days, limit int) (sqlite.Context, error) {
	return a.store.RecentContext(ctx, userID, days, limit)
}

// FindRelatedImages returns images whose descriptions match the text.
func (a *Adapter) FindRelatedImages(ctx context.Context, userID, text string, limit int) ([]sqlite.ImageMemory, error) {
	return a.store.SearchImages(ctx, userID, text, limit)
}

// CreateSemanticLink records a cross-modal relation between two memories.
func (a *Adapter) CreateSemanticLink(ctx context.Context, link sqlite.SemanticLink) error {
	return a.store.CreateSemanticLink(ctx, link)
}

// CleanupOldMemories applies the retention window across both modalities.
func (a *Adapter) CleanupOldMemories(ctx context.Context, daysToKeep int) (int64, error) {
	return a.store.CleanupOlderThan(ctx, daysToKeep)
}

// UserStats reports stored memory counts for a user.
func (a *Adapter) UserStats(ctx context.Context, userID string) (sqlite.UserStats, error) {
	return a.store.UserStats(ctx, userID)
}
