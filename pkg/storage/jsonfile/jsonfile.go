// Package jsonfile implements the flat-file fallback backend: one JSON
// document per session, rewritten atomically on every store. It depends
// on nothing but the filesystem, so it is always available.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/memory"
)

// BackendName is the identifier used in result maps and status reports.
const BackendName = "jsonfile"

// entry is the on-disk shape of a single memory within a session document.
type entry struct {
	Data       any            `json:"data"`
	MemoryType string         `json:"memory_type,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Importance float64        `json:"importance,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type document map[string]entry

// Store holds one JSON document per session id under dir.
type Store struct {
	dir    string
	logger *zap.Logger

	mu sync.Mutex
}

// NewStore creates the storage directory if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &Store{
		dir:    dir,
		logger: logger,
	}, nil
}

var pathUnsafe = strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, pathUnsafe.Replace(sessionID)+".json")
}

func (s *Store) load(sessionID string) (document, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return document{}, nil
		}
		return nil, fmt.Errorf("reading session document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding session document: %w", err)
	}
	return doc, nil
}

// flush rewrites the session document via temp file + rename so readers
// never observe a partial write.
func (s *Store) flush(sessionID string, doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session document: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path(sessionID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing session document: %w", err)
	}
	return nil
}

// Name implements memory.Backend.
func (s *Store) Name() string {
	return BackendName
}

// Store writes the entry under its key, replacing any previous value.
func (s *Store) Store(ctx context.Context, e memory.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(e.SessionID)
	if err != nil {
		return memory.StorageError{Backend: BackendName, Op: "store", Err: err}
	}

	doc[e.Key] = entry{
		Data:       e.Data,
		MemoryType: e.MemoryType,
		Tags:       e.Tags,
		Importance: e.Importance,
		Timestamp:  time.Now().UTC(),
		Metadata:   e.Metadata,
	}

	if err := s.flush(e.SessionID, doc); err != nil {
		return memory.StorageError{Backend: BackendName, Op: "store", Err: err}
	}

	s.logger.Debug("stored json memory",
		zap.String("session_id", e.SessionID),
		zap.String("key", e.Key),
	)

	return nil
}

// Search matches the query as a substring over each entry's serialized
// form. The score is the occurrence count divided by the entry's word
// count, capped at 1.0, so denser matches rank higher.
func (s *Store) Search(ctx context.Context, req memory.SearchRequest) ([]memory.Record, error) {
	s.mu.Lock()
	doc, err := s.load(req.SessionID)
	s.mu.Unlock()
	if err != nil {
		return nil, memory.StorageError{Backend: BackendName, Op: "search", Err: err}
	}

	query := strings.ToLower(req.Query)
	limit := req.Limit
	if limit <= 0 {
		limit = memory.DefaultSearchLimit
	}

	var records []memory.Record
	for key, e := range doc {
		serialized, err := json.Marshal(e)
		if err != nil {
			continue
		}
		haystack := strings.ToLower(string(serialized))

		occurrences := strings.Count(haystack, query)
		if occurrences == 0 {
			continue
		}

		words := len(strings.Fields(haystack))
		if words == 0 {
			words = 1
		}
		score := float64(occurrences) / float64(words)
		if score > 1.0 {
			score = 1.0
		}

		records = append(records, memory.Record{
			Backend:    BackendName,
			Key:        key,
			Content:    memory.RenderContent(e.Data),
			Score:      score,
			SearchType: "text_match",
			Timestamp:  e.Timestamp,
			SessionID:  req.SessionID,
			Tags:       e.Tags,
			Metadata:   e.Metadata,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
	if len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// Stats reports the number of keys in the session document.
func (s *Store) Stats(ctx context.Context, sessionID string) (memory.BackendStats, error) {
	s.mu.Lock()
	doc, err := s.load(sessionID)
	s.mu.Unlock()
	if err != nil {
		return memory.BackendStats{}, memory.StorageError{Backend: BackendName, Op: "stats", Err: err}
	}

	return memory.BackendStats{
		Backend:  BackendName,
		Memories: len(doc),
	}, nil
}

// Clear removes the session document.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return memory.StorageError{Backend: BackendName, Op: "clear", Err: err}
	}
	return nil
}

// Close is a no-op; documents are flushed on every store.
func (s *Store) Close() error {
	return nil
}

var _ memory.Backend = (*Store)(nil)
