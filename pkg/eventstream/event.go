// Package eventstream defines transport-neutral events emitted after
// memory operations, for downstream consumers (analytics, replication).
package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryPersisted is emitted after a memory entry has been
	// fanned out to the configured backends.
	EventTypeMemoryPersisted = "avamem.memory.persisted"
)

// MemoryPersistedEvent is a transport-neutral event payload for a
// persisted memory entry.
type MemoryPersistedEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	SessionID     string          `json:"session_id"`
	Key           string          `json:"key"`
	MemoryType    string          `json:"memory_type,omitempty"`
	Backends      map[string]bool `json:"backends"`
}
