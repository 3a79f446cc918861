// Package sqlite implements the relational multimodal memory store on a
// single SQLite database: conversations with text and image memories,
// semantic links between them, and per-user metadata.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/memory"
)

// Config holds configuration for the relational store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// ImagesDir is where stored image files are copied, named by their
	// content hash.
	ImagesDir string

	// Scorer assigns importance to text memories.
	// Defaults to memory.DefaultScorer.
	Scorer memory.Scorer
}

// Store is the relational memory store. Writes share one connection and
// are serialized by a mutex; SQLite tolerates concurrent readers.
type Store struct {
	db        *sql.DB
	imagesDir string
	scorer    memory.Scorer
	logger    *zap.Logger

	mu sync.Mutex
}

// NewStore opens the database, applies the schema and prepares the
// managed images directory.
func NewStore(c Config, logger *zap.Logger) (*Store, error) {
	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	if c.ImagesDir != "" {
		if err := os.MkdirAll(c.ImagesDir, 0o755); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating images directory: %w", err)
		}
	}

	scorer := c.Scorer
	if scorer == nil {
		scorer = memory.DefaultScorer
	}

	logger.Info("sqlite memory store initialized",
		zap.String("db_path", c.DBPath),
		zap.String("images_dir", c.ImagesDir),
	)

	return &Store{
		db:        db,
		imagesDir: c.ImagesDir,
		scorer:    scorer,
		logger:    logger,
	}, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func storageErr(op string, err error) error {
	return memory.StorageError{Backend: "sqlite", Op: op, Err: err}
}

// touchUser upserts user_metadata inside the caller's transaction.
func touchUser(ctx context.Context, tx *sql.Tx, userID string, newConversation bool) error {
	ts := now()
	increment := 0
	if newConversation {
		increment = 1
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_metadata (user_id, first_interaction, last_activity, total_conversations)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			last_activity = excluded.last_activity,
			total_conversations = total_conversations + ?
	`, userID, ts, ts, increment, increment)
	if err != nil {
		return fmt.Errorf("updating user metadata: %w", err)
	}
	return nil
}

// StoreText persists a text memory. Duplicate content for the same user
// (by sha256) short-circuits and returns the existing conversation id.
func (s *Store) StoreText(ctx context.Context, userID, sessionID, key, content string) (int64, error) {
	if userID == "" {
		return 0, memory.ValidationError{Field: "user_id", Reason: "required"}
	}
	if content == "" {
		return 0, memory.ValidationError{Field: "content", Reason: "required"}
	}
	if err := memory.SafeContent(content); err != nil {
		return 0, err
	}

	hash := memory.HashText(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Dedup short-circuit: same content for the same user is a success.
	var existingID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT tm.conversation_id
		FROM text_memories tm
		INNER JOIN conversations c ON c.id = tm.conversation_id
		WHERE c.user_id = ? AND tm.content_hash = ?
		LIMIT 1
	`, userID, hash).Scan(&existingID)
	switch err {
	case nil:
		s.logger.Debug("duplicate text memory",
			zap.String("user_id", userID),
			zap.String("hash", hash),
		)
		return existingID, nil
	case sql.ErrNoRows:
	default:
		return 0, storageErr("store_text", err)
	}

	keywords, err := json.Marshal(memory.ExtractKeywords(content))
	if err != nil {
		return 0, storageErr("store_text", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("store_text", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (user_id, session_id, modality, timestamp)
		VALUES (?, ?, 'text', ?)
	`, userID, sessionID, now())
	if err != nil {
		return 0, storageErr("store_text", err)
	}
	conversationID, err := result.LastInsertId()
	if err != nil {
		return 0, storageErr("store_text", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO text_memories (conversation_id, memory_key, content, content_hash, keywords, importance_score)
		VALUES (?, ?, ?, ?, ?, ?)
	`, conversationID, key, content, hash, string(keywords), s.scorer(content)); err != nil {
		return 0, storageErr("store_text", err)
	}

	if err := touchUser(ctx, tx, userID, true); err != nil {
		return 0, storageErr("store_text", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("store_text", err)
	}

	return conversationID, nil
}

// imageDimensions reads width and height without fully decoding.
// Unsupported formats yield zero dimensions, not an error.
func imageDimensions(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// copyImage places the source file under the managed images directory,
// named by its content hash. An existing copy is left untouched.
func (s *Store) copyImage(srcPath, hash string) (string, error) {
	ext := strings.ToLower(filepath.Ext(srcPath))
	dst := filepath.Join(s.imagesDir, hash+ext)

	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("opening source image: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("creating managed image: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("copying image: %w", err)
	}

	return dst, nil
}

// StoreImage persists an image memory, deduplicating globally by file
// hash. The file is copied into the managed images directory exactly
// once; a duplicate returns the existing conversation id with existed
// set and only refreshes the user's activity.
func (s *Store) StoreImage(ctx context.Context, userID, sessionID, imagePath, description string) (int64, bool, error) {
	if userID == "" {
		return 0, false, memory.ValidationError{Field: "user_id", Reason: "required"}
	}

	hash, err := memory.HashFile(imagePath)
	if err != nil {
		return 0, false, storageErr("store_image", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existingID int64
	err = s.db.QueryRowContext(ctx,
		`SELECT conversation_id FROM image_memories WHERE image_hash = ?`, hash,
	).Scan(&existingID)
	switch err {
	case nil:
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, false, storageErr("store_image", err)
		}
		defer tx.Rollback()
		if err := touchUser(ctx, tx, userID, false); err != nil {
			return 0, false, storageErr("store_image", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, false, storageErr("store_image", err)
		}
		s.logger.Debug("duplicate image memory",
			zap.String("user_id", userID),
			zap.String("hash", hash),
		)
		return existingID, true, nil
	case sql.ErrNoRows:
	default:
		return 0, false, storageErr("store_image", err)
	}

	managedPath, err := s.copyImage(imagePath, hash)
	if err != nil {
		return 0, false, storageErr("store_image", err)
	}

	width, height := imageDimensions(managedPath)
	var fileSize int64
	if info, err := os.Stat(managedPath); err == nil {
		fileSize = info.Size()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, storageErr("store_image", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (user_id, session_id, modality, timestamp)
		VALUES (?, ?, 'image', ?)
	`, userID, sessionID, now())
	if err != nil {
		return 0, false, storageErr("store_image", err)
	}
	conversationID, err := result.LastInsertId()
	if err != nil {
		return 0, false, storageErr("store_image", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO image_memories (conversation_id, image_path, image_hash, description, width, height, file_size)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, conversationID, managedPath, hash, description, width, height, fileSize); err != nil {
		return 0, false, storageErr("store_image", err)
	}

	if err := touchUser(ctx, tx, userID, true); err != nil {
		return 0, false, storageErr("store_image", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, storageErr("store_image", err)
	}

	return conversationID, false, nil
}

func scanTextMemories(rows *sql.Rows) ([]TextMemory, error) {
	var memories []TextMemory
	for rows.Next() {
		var m TextMemory
		var keywordsJSON, ts string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Key, &m.Content,
			&m.ContentHash, &keywordsJSON, &m.Importance, &ts, &m.UserID, &m.SessionID); err != nil {
			return nil, fmt.Errorf("scanning text memory: %w", err)
		}
		if keywordsJSON != "" {
			_ = json.Unmarshal([]byte(keywordsJSON), &m.Keywords)
		}
		m.Timestamp = parseTime(ts)
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

const textMemoryColumns = `
	tm.id, tm.conversation_id, tm.memory_key, tm.content,
	tm.content_hash, tm.keywords, tm.importance_score,
	c.timestamp, c.user_id, c.session_id
`

// SearchText matches every query token against content and keywords,
// most important and most recent first.
func (s *Store) SearchText(ctx context.Context, userID, query string, limit int) ([]TextMemory, error) {
	if limit <= 0 {
		limit = 5
	}

	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil, nil
	}

	var conditions []string
	args := []any{userID}
	for _, tok := range tokens {
		conditions = append(conditions, `(LOWER(tm.content) LIKE ? OR LOWER(tm.keywords) LIKE ?)`)
		pattern := "%" + tok + "%"
		args = append(args, pattern, pattern)
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
		SELECT %s
		FROM text_memories tm
		INNER JOIN conversations c ON c.id = tm.conversation_id
		WHERE c.user_id = ? AND (%s)
		ORDER BY tm.importance_score DESC, c.timestamp DESC
		LIMIT ?
	`, textMemoryColumns, strings.Join(conditions, " OR "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("search_text", err)
	}
	defer rows.Close()

	memories, err := scanTextMemories(rows)
	if err != nil {
		return nil, storageErr("search_text", err)
	}
	return memories, nil
}

func scanImageMemories(rows *sql.Rows) ([]ImageMemory, error) {
	var memories []ImageMemory
	for rows.Next() {
		var m ImageMemory
		var ts string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Path, &m.Hash,
			&m.Description, &m.Width, &m.Height, &m.FileSize, &ts, &m.UserID); err != nil {
			return nil, fmt.Errorf("scanning image memory: %w", err)
		}
		m.Timestamp = parseTime(ts)
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

const imageMemoryColumns = `
	im.id, im.conversation_id, im.image_path, im.image_hash,
	im.description, im.width, im.height, im.file_size,
	c.timestamp, c.user_id
`

// SearchImages matches the query against image descriptions.
func (s *Store) SearchImages(ctx context.Context, userID, query string, limit int) ([]ImageMemory, error) {
	if limit <= 0 {
		limit = 5
	}

	q := fmt.Sprintf(`
		SELECT %s
		FROM image_memories im
		INNER JOIN conversations c ON c.id = im.conversation_id
		WHERE c.user_id = ? AND LOWER(im.description) LIKE ?
		ORDER BY c.timestamp DESC
		LIMIT ?
	`, imageMemoryColumns)

	rows, err := s.db.QueryContext(ctx, q, userID, "%"+strings.ToLower(query)+"%", limit)
	if err != nil {
		return nil, storageErr("search_images", err)
	}
	defer rows.Close()

	memories, err := scanImageMemories(rows)
	if err != nil {
		return nil, storageErr("search_images", err)
	}
	return memories, nil
}

// RecentContext returns the user's memories from the last N days across
// both modalities, newest first, for conversation priming.
func (s *Store) RecentContext(ctx context.Context, userID string, days, limit int) (Context, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 {
		limit = 10
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339Nano)

	var result Context

	textQ := fmt.Sprintf(`
		SELECT %s
		FROM text_memories tm
		INNER JOIN conversations c ON c.id = tm.conversation_id
		WHERE c.user_id = ? AND c.timestamp >= ?
		ORDER BY c.timestamp DESC
		LIMIT ?
	`, textMemoryColumns)
	rows, err := s.db.QueryContext(ctx, textQ, userID, cutoff, limit)
	if err != nil {
		return result, storageErr("recent_context", err)
	}
	result.TextMemories, err = scanTextMemories(rows)
	rows.Close()
	if err != nil {
		return result, storageErr("recent_context", err)
	}

	imageQ := fmt.Sprintf(`
		SELECT %s
		FROM image_memories im
		INNER JOIN conversations c ON c.id = im.conversation_id
		WHERE c.user_id = ? AND c.timestamp >= ?
		ORDER BY c.timestamp DESC
		LIMIT ?
	`, imageMemoryColumns)
	rows, err = s.db.QueryContext(ctx, imageQ, userID, cutoff, limit)
	if err != nil {
		return result, storageErr("recent_context", err)
	}
	result.ImageMemories, err = scanImageMemories(rows)
	rows.Close()
	if err != nil {
		return result, storageErr("recent_context", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE user_id = ? AND timestamp >= ?`,
		userID, cutoff,
	).Scan(&result.TotalConversations)
	if err != nil {
		return result, storageErr("recent_context", err)
	}

	return result, nil
}

// CreateSemanticLink records a cross-modal relation between two memories.
func (s *Store) CreateSemanticLink(ctx context.Context, link SemanticLink) error {
	if link.MemoryID1 == 0 || link.MemoryID2 == 0 {
		return memory.ValidationError{Field: "memory_id", Reason: "both memory ids are required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO semantic_links (memory_id_1, memory_id_2, modality_1, modality_2, similarity_score, link_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, link.MemoryID1, link.MemoryID2, link.Modality1, link.Modality2, link.Similarity, link.LinkType, now())
	if err != nil {
		return storageErr("create_semantic_link", err)
	}
	return nil
}

// UserStats reports stored memory counts and activity bounds for a user.
func (s *Store) UserStats(ctx context.Context, userID string) (UserStats, error) {
	var stats UserStats

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM text_memories tm
				INNER JOIN conversations c ON c.id = tm.conversation_id
				WHERE c.user_id = ?),
			(SELECT COUNT(*) FROM image_memories im
				INNER JOIN conversations c ON c.id = im.conversation_id
				WHERE c.user_id = ?),
			(SELECT COUNT(*) FROM conversations WHERE user_id = ?)
	`, userID, userID, userID).Scan(&stats.TextMemories, &stats.ImageMemories, &stats.TotalConversations)
	if err != nil {
		return stats, storageErr("user_stats", err)
	}

	var first, last string
	err = s.db.QueryRowContext(ctx,
		`SELECT first_interaction, last_activity FROM user_metadata WHERE user_id = ?`, userID,
	).Scan(&first, &last)
	switch err {
	case nil:
		stats.FirstInteraction = parseTime(first)
		stats.LastActivity = parseTime(last)
	case sql.ErrNoRows:
	default:
		return stats, storageErr("user_stats", err)
	}

	return stats, nil
}

// CountMemories returns the total memory rows (text + image) for a user.
func (s *Store) CountMemories(ctx context.Context, userID string) (int, error) {
	stats, err := s.UserStats(ctx, userID)
	if err != nil {
		return 0, err
	}
	return stats.TextMemories + stats.ImageMemories, nil
}

// CleanupOlderThan deletes conversations older than the retention window,
// children before parents. It returns the number of conversations removed.
func (s *Store) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, memory.ValidationError{Field: "days", Reason: "must be positive"}
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339Nano)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("cleanup", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM text_memories WHERE conversation_id IN
			(SELECT id FROM conversations WHERE timestamp < ?)
	`, cutoff); err != nil {
		return 0, storageErr("cleanup", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM image_memories WHERE conversation_id IN
			(SELECT id FROM conversations WHERE timestamp < ?)
	`, cutoff); err != nil {
		return 0, storageErr("cleanup", err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, storageErr("cleanup", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr("cleanup", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("cleanup", err)
	}

	s.logger.Info("cleaned up old conversations",
		zap.Int64("deleted", deleted),
		zap.Int("retention_days", days),
	)

	return deleted, nil
}

// ClearUser deletes all of a user's memories, children before parents.
func (s *Store) ClearUser(ctx context.Context, userID string) error {
	if userID == "" {
		return memory.ValidationError{Field: "user_id", Reason: "required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("clear_user", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM text_memories WHERE conversation_id IN
			(SELECT id FROM conversations WHERE user_id = ?)
	`, userID); err != nil {
		return storageErr("clear_user", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM image_memories WHERE conversation_id IN
			(SELECT id FROM conversations WHERE user_id = ?)
	`, userID); err != nil {
		return storageErr("clear_user", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE user_id = ?`, userID); err != nil {
		return storageErr("clear_user", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_metadata WHERE user_id = ?`, userID); err != nil {
		return storageErr("clear_user", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("clear_user", err)
	}

	return nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
