package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/eventstream"
)

// DefaultSearchLimit applies when a SearchRequest carries no limit.
const DefaultSearchLimit = 5

// State describes a configured backend's availability.
type State string

const (
	StateActive      State = "active"
	StateUnavailable State = "unavailable"
)

// BackendStatus reports one configured backend in a status report.
type BackendStatus struct {
	Name   string `json:"name"`
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// OpResult records the outcome of a fan-out operation on one backend.
type OpResult struct {
	OK  bool   `json:"ok"`
	Err string `json:"error,omitempty"`
}

// Stats aggregates per-backend memory counts for a session.
type Stats struct {
	SessionID string                  `json:"session_id"`
	Total     int                     `json:"total"`
	Backends  map[string]BackendStats `json:"backends"`
}

// Manager orchestrates memory operations across backends registered in
// priority order. Writes fan out best-effort to every backend; reads walk
// backends in order, stopping once the requested limit is satisfied.
type Manager struct {
	logger      *zap.Logger
	backends    []Backend
	unavailable []BackendStatus
	publisher   eventstream.Publisher
	resources   []func() error
}

// ManagerOption customizes a Manager at construction time.
type ManagerOption func(*Manager)

// WithUnavailable records backends that failed to initialize so they
// still appear in status reports.
func WithUnavailable(statuses ...BackendStatus) ManagerOption {
	return func(m *Manager) {
		m.unavailable = append(m.unavailable, statuses...)
	}
}

// WithPublisher sets the event publisher notified after each store.
func WithPublisher(p eventstream.Publisher) ManagerOption {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithResource registers a shared resource (embedder, vector driver)
// released on Close after the backends.
func WithResource(close func() error) ManagerOption {
	return func(m *Manager) {
		m.resources = append(m.resources, close)
	}
}

// NewManager creates a manager over backends listed in priority order.
// At least one backend is required.
func NewManager(logger *zap.Logger, backends []Backend, opts ...ManagerOption) (*Manager, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}

	m := &Manager{
		logger:   logger,
		backends: backends,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

func validateEntry(entry Entry) error {
	if entry.SessionID == "" {
		return ValidationError{Field: "session_id", Reason: "required"}
	}
	if entry.Key == "" {
		return ValidationError{Field: "key", Reason: "required"}
	}
	if entry.Data == nil {
		return ValidationError{Field: "data", Reason: "required"}
	}
	// Content-class limits (size, control characters) are a per-backend
	// concern: the relational store enforces its own and records a
	// StorageError in the result map, while the other backends accept
	// the entry.
	if RenderContent(entry.Data) == "" {
		return ValidationError{Field: "data", Reason: "renders to empty content"}
	}
	return nil
}

// Store validates the entry and fans it out to every backend. A backend
// failure is recorded in the result map and never blocks the others; the
// returned error is non-nil only for validation failures or when every
// backend rejected the entry.
func (m *Manager) Store(ctx context.Context, entry Entry) (map[string]OpResult, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	results := make(map[string]OpResult, len(m.backends))
	stored := 0
	for _, b := range m.backends {
		if err := b.Store(ctx, entry); err != nil {
			results[b.Name()] = OpResult{Err: err.Error()}
			m.logger.Warn("backend store failed",
				zap.String("backend", b.Name()),
				zap.String("session_id", entry.SessionID),
				zap.String("key", entry.Key),
				zap.Error(err),
			)
			continue
		}
		results[b.Name()] = OpResult{OK: true}
		stored++
	}

	if stored == 0 {
		return results, StorageError{Backend: "all", Op: "store", Err: ErrUnavailable}
	}

	m.publishStored(ctx, entry, results)

	return results, nil
}

func (m *Manager) publishStored(ctx context.Context, entry Entry, results map[string]OpResult) {
	if m.publisher == nil {
		return
	}

	backends := make(map[string]bool, len(results))
	for name, r := range results {
		backends[name] = r.OK
	}

	event := &eventstream.MemoryPersistedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeMemoryPersisted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		SessionID:     entry.SessionID,
		Key:           entry.Key,
		MemoryType:    entry.MemoryType,
		Backends:      backends,
	}
	if err := m.publisher.PublishMemory(ctx, event); err != nil {
		m.logger.Warn("publishing memory event failed", zap.Error(err))
	}
}

// Search queries backends in priority order and merges results. Records
// are deduplicated by key, keeping the higher-priority occurrence, and
// the walk stops early once the limit is reached. The merged set is
// stable-sorted by score descending, so ties keep priority order.
// Backend query errors degrade to zero results from that backend.
func (m *Manager) Search(ctx context.Context, req SearchRequest) ([]Record, error) {
	if req.SessionID == "" {
		return nil, ValidationError{Field: "session_id", Reason: "required"}
	}
	if req.Query == "" {
		return nil, ValidationError{Field: "query", Reason: "required"}
	}
	if req.Limit <= 0 {
		req.Limit = DefaultSearchLimit
	}

	seen := make(map[string]struct{})
	var merged []Record

	for _, b := range m.backends {
		if len(merged) >= req.Limit {
			break
		}

		records, err := b.Search(ctx, req)
		if err != nil {
			m.logger.Warn("backend search failed",
				zap.String("backend", b.Name()),
				zap.Error(err),
			)
			continue
		}

		for _, r := range records {
			if _, dup := seen[r.Key]; dup && r.Key != "" {
				continue
			}
			if req.ScoreThreshold > 0 && r.Score < req.ScoreThreshold {
				continue
			}
			seen[r.Key] = struct{}{}
			merged = append(merged, r)
			if len(merged) >= req.Limit {
				break
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if len(merged) > req.Limit {
		merged = merged[:req.Limit]
	}

	return merged, nil
}

// Stats aggregates per-backend counts for a session. A backend error
// yields a zero count for that backend.
func (m *Manager) Stats(ctx context.Context, sessionID string) (Stats, error) {
	if sessionID == "" {
		return Stats{}, ValidationError{Field: "session_id", Reason: "required"}
	}

	stats := Stats{
		SessionID: sessionID,
		Backends:  make(map[string]BackendStats, len(m.backends)),
	}

	for _, b := range m.backends {
		bs, err := b.Stats(ctx, sessionID)
		if err != nil {
			m.logger.Warn("backend stats failed",
				zap.String("backend", b.Name()),
				zap.Error(err),
			)
			stats.Backends[b.Name()] = BackendStats{Backend: b.Name()}
			continue
		}
		stats.Backends[b.Name()] = bs
		stats.Total += bs.Memories
	}

	return stats, nil
}

// Clear removes a session's memories from every backend, best-effort.
func (m *Manager) Clear(ctx context.Context, sessionID string) (map[string]OpResult, error) {
	if sessionID == "" {
		return nil, ValidationError{Field: "session_id", Reason: "required"}
	}

	results := make(map[string]OpResult, len(m.backends))
	for _, b := range m.backends {
		if err := b.Clear(ctx, sessionID); err != nil {
			results[b.Name()] = OpResult{Err: err.Error()}
			m.logger.Warn("backend clear failed",
				zap.String("backend", b.Name()),
				zap.Error(err),
			)
			continue
		}
		results[b.Name()] = OpResult{OK: true}
	}

	return results, nil
}

// Status reports every configured backend, active ones first. Backends
// that failed to initialize stay unavailable until the manager is rebuilt.
func (m *Manager) Status() []BackendStatus {
	statuses := make([]BackendStatus, 0, len(m.backends)+len(m.unavailable))
	for _, b := range m.backends {
		statuses = append(statuses, BackendStatus{Name: b.Name(), State: StateActive})
	}
	statuses = append(statuses, m.unavailable...)
	return statuses
}

// Backends returns the registered backend names in priority order.
func (m *Manager) Backends() []string {
	names := make([]string, 0, len(m.backends))
	for _, b := range m.backends {
		names = append(names, b.Name())
	}
	return names
}

// Close releases every backend, then shared resources, then the publisher.
// The first error is returned but shutdown continues through all of them.
func (m *Manager) Close() error {
	var firstErr error
	for _, b := range m.backends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, close := range m.resources {
		if err := close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.publisher != nil {
		if err := m.publisher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
