package multimodal

import (
	"context"

	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/memory"
)

// The adapter doubles as the relational plugin of the unified manager.

// Name implements memory.Backend.
func (a *Adapter) Name() string {
	return BackendName
}

// Store implements memory.Backend by persisting the rendered entry as a
// text memory. Image entries arrive through StoreImageMemory, which
// needs a file path rather than inline data.
func (a *Adapter) Store(ctx context.Context, entry memory.Entry) error {
	content := memory.RenderContent(entry.Data)
	_, err := a.StoreTextMemory(ctx, entry.SessionID, entry.SessionID, entry.Key, content)
	return err
}

// Search implements memory.Backend over the text modality.
func (a *Adapter) Search(ctx context.Context, req memory.SearchRequest) ([]memory.Record, error) {
	records, err := a.SearchSemantic(ctx, req.SessionID, req.Query, []string{"text"}, req.Limit)
	if err != nil {
		return nil, err
	}
	if req.ScoreThreshold > 0 {
		filtered := records[:0]
		for _, r := range records {
			if r.Score >= req.ScoreThreshold {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}
	return records, nil
}

// Stats implements memory.Backend.
func (a *Adapter) Stats(ctx context.Context, sessionID string) (memory.BackendStats, error) {
	stats, err := a.store.UserStats(ctx, sessionID)
	if err != nil {
		return memory.BackendStats{}, err
	}

	return memory.BackendStats{
		Backend:  BackendName,
		Memories: stats.TextMemories + stats.ImageMemories,
		Details: map[string]int{
			"text_memories":       stats.TextMemories,
			"image_memories":      stats.ImageMemories,
			"total_conversations": stats.TotalConversations,
		},
	}, nil
}

// Clear implements memory.Backend, removing the relational rows and any
// indexed vectors for the session.
func (a *Adapter) Clear(ctx context.Context, sessionID string) error {
	if err := a.store.ClearUser(ctx, sessionID); err != nil {
		return err
	}

	if a.vector != nil {
		filter := map[string]string{"user_id": sessionID}
		for _, collection := range []string{a.textCollection, a.imageCollection} {
			if err := a.vector.DeleteByFilter(ctx, collection, filter); err != nil {
				// the relational delete already succeeded
				a.logger.Warn("clearing vector collection failed",
					zap.String("collection", collection),
					zap.Error(err),
				)
			}
		}
	}

	return nil
}

// Close releases the relational store. The embedder and vector driver
// are shared resources owned by the factory.
func (a *Adapter) Close() error {
	return a.store.Close()
}

var _ memory.Backend = (*Adapter)(nil)
