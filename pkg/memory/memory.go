// Package memory provides the unified memory contract and the orchestrator
// that fans user memories out across pluggable storage backends.
package memory

import (
	"context"
	"time"
)

// Entry is a single memory to be persisted for a session.
type Entry struct {
	// SessionID identifies the user/session owning the memory.
	SessionID string

	// Key is the logical name of the memory within the session.
	// Storing the same key again replaces the previous value in
	// backends that index by key.
	Key string

	// Data is the memory payload. Plain strings are stored as-is;
	// structured interaction maps are rendered via RenderContent.
	Data any

	// MemoryType classifies the memory (e.g. "conversation", "fact").
	MemoryType string

	// Tags are free-form labels attached to the memory.
	Tags []string

	// Importance is a relevance weight in [0, 1]. Zero means
	// "let the backend score it".
	Importance float64

	// Metadata carries additional backend-visible attributes.
	Metadata map[string]any
}

// Record is a search result returned by a backend.
type Record struct {
	// Backend names the backend that produced the result.
	Backend string

	// Key is the logical memory key, used for cross-backend deduplication.
	Key string

	// Content is the rendered memory content.
	Content string

	// Score is the relevance score (higher = more relevant).
	Score float64

	// SearchType is "semantic" for embedding similarity results and
	// "text_match" for substring/LIKE fallback results.
	SearchType string

	// Timestamp is when the memory was stored.
	Timestamp time.Time

	// SessionID identifies the owning session.
	SessionID string

	// Tags are the labels stored with the memory.
	Tags []string

	// Metadata carries backend-specific attributes of the result.
	Metadata map[string]any
}

// SearchRequest describes a memory lookup.
type SearchRequest struct {
	SessionID string
	Query     string

	// Limit caps the number of results. Defaults to 5 when zero.
	Limit int

	// ScoreThreshold drops results scoring below it. Zero disables it.
	ScoreThreshold float64
}

// BackendStats reports per-backend memory counts for a session.
type BackendStats struct {
	Backend  string         `json:"backend"`
	Memories int            `json:"memories"`
	Details  map[string]int `json:"details,omitempty"`
}

// Backend is the fixed contract every memory backend implements.
// Backends are registered with the Manager in priority order; all
// methods must be safe for concurrent use.
type Backend interface {
	// Name returns the stable backend identifier used in result maps
	// and status reports.
	Name() string

	// Store persists a single entry.
	Store(ctx context.Context, entry Entry) error

	// Search returns records relevant to the request, best first.
	Search(ctx context.Context, req SearchRequest) ([]Record, error)

	// Stats reports memory counts for a session.
	Stats(ctx context.Context, sessionID string) (BackendStats, error)

	// Clear removes all memories for a session.
	Clear(ctx context.Context, sessionID string) error

	// Close releases resources exclusively owned by the backend.
	Close() error
}
