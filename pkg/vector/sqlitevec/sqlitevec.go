// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec,
// with one vec0 virtual table per collection.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/vector"
)

// filterOverfetch widens KNN queries that carry a metadata filter, since
// filtering happens after the index returns its nearest neighbors.
const filterOverfetch = 4

var collectionName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Driver implements vector.Driver using SQLite with sqlite-vec.
type Driver struct {
	db     *sql.DB
	logger *zap.Logger

	mu          sync.Mutex
	collections map[string]int
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string
}

// NewDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrConnection, err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		zap.String("db_path", c.DBPath),
		zap.String("vec_version", vecVersion),
	)

	return &Driver{
		db:          db,
		logger:      logger,
		collections: make(map[string]int),
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func docsTable(collection string) string {
	return "vec_docs_" + collection
}

func vecTable(collection string) string {
	return "vec_idx_" + collection
}

// EnsureCollection creates the mapping and vec0 tables for a collection.
// Collection names must be lowercase identifiers since they become part
// of table names.
func (d *Driver) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	if !collectionName.MatchString(collection) {
		return fmt.Errorf("invalid collection name %q", collection)
	}
	if dimensions <= 0 {
		return fmt.Errorf("collection %s: dimensions must be positive", collection)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.collections[collection]; ok {
		return nil
	}

	// vec0 virtual tables use integer rowids, so a mapping table carries
	// the string document IDs, content and flattened payload.
	createDocs := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL DEFAULT '{}'
		)
	`, docsTable(collection))
	if _, err := d.db.ExecContext(ctx, createDocs); err != nil {
		return fmt.Errorf("creating documents table for %s: %w", collection, err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d])`,
		vecTable(collection), dimensions,
	)
	if _, err := d.db.ExecContext(ctx, createVec); err != nil {
		return fmt.Errorf("creating vec0 table for %s: %w", collection, err)
	}

	d.collections[collection] = dimensions
	return nil
}

func (d *Driver) checkCollection(collection string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.collections[collection]; !ok {
		return fmt.Errorf("%w: unknown collection %q", vector.ErrNotFound, collection)
	}
	return nil
}

// Upsert stores documents with their embeddings.
// If a document with the same ID already exists, it is replaced.
func (d *Driver) Upsert(ctx context.Context, collection string, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := d.checkCollection(collection); err != nil {
		return err
	}

	docsT, vecT := docsTable(collection), vecTable(collection)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		payload, err := json.Marshal(vector.FlattenMetadata(doc.Metadata))
		if err != nil {
			return fmt.Errorf("encoding payload for doc %s: %w", doc.ID, err)
		}
		embBlob := serializeFloat32(doc.Embedding)

		// Check if document already exists
		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT rowid FROM %s WHERE doc_id = ?`, docsT), doc.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s SET content = ?, payload = ? WHERE rowid = ?`, docsT),
				doc.Content, string(payload), existingRowID,
			); err != nil {
				return fmt.Errorf("updating document %s: %w", doc.ID, err)
			}

			// Update embedding in vec0 table via DELETE + INSERT
			// (vec0 does not support UPDATE)
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, vecT), existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for doc %s: %w", doc.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, vecT),
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for doc %s: %w", doc.ID, err)
			}
		case sql.ErrNoRows:
			// New document: insert into the mapping table first to get the rowid
			result, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(doc_id, content, payload) VALUES (?, ?, ?)`, docsT),
				doc.ID, doc.Content, string(payload),
			)
			if err != nil {
				return fmt.Errorf("inserting document %s: %w", doc.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for doc %s: %w", doc.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, vecT),
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for doc %s: %w", doc.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("upserted documents to sqlite-vec",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)

	return nil
}

// matchesFilter checks decoded payload values against the filter using
// their string form, since flattened payloads hold only primitives.
func matchesFilter(payload map[string]any, filter map[string]string) bool {
	for k, want := range filter {
		v, ok := payload[k]
		if !ok {
			return false
		}
		if fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

// Query finds the most similar documents via KNN, then applies the
// metadata filter and score threshold in process.
func (d *Driver) Query(ctx context.Context, collection string, embedding []float32, opts vector.QueryOptions) ([]vector.QueryResult, error) {
	if err := d.checkCollection(collection); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	k := limit
	if len(opts.Filter) > 0 {
		k = limit * filterOverfetch
	}

	queryBlob := serializeFloat32(embedding)

	// Use KNN query via vec0 MATCH, then JOIN back for the document.
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			doc.doc_id,
			doc.content,
			doc.payload,
			ve.distance
		FROM %s ve
		INNER JOIN %s doc ON doc.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance
	`, vecTable(collection), docsTable(collection)), queryBlob, k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var docID, content, payloadJSON string
		var distance float64
		if err := rows.Scan(&docID, &content, &payloadJSON, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("decoding payload for doc %s: %w", docID, err)
		}

		if !matchesFilter(payload, opts.Filter) {
			continue
		}

		// Convert distance to similarity score: lower distance = higher similarity
		score := float32(1.0 / (1.0 + distance))
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}

		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:       docID,
				Content:  content,
				Metadata: payload,
			},
			Score: score,
		})
		if len(results) >= limit {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec",
		zap.String("collection", collection),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// matchingRowIDs scans the docs table for rows whose payload matches the filter.
func (d *Driver) matchingRowIDs(ctx context.Context, collection string, filter map[string]string) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT rowid, payload FROM %s`, docsTable(collection)),
	)
	if err != nil {
		return nil, fmt.Errorf("scanning documents: %w", err)
	}
	defer rows.Close()

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		var payloadJSON string
		if err := rows.Scan(&rowID, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("decoding payload: %w", err)
		}

		if matchesFilter(payload, filter) {
			rowIDs = append(rowIDs, rowID)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return rowIDs, nil
}

// DeleteByFilter removes all documents matching the metadata filter.
func (d *Driver) DeleteByFilter(ctx context.Context, collection string, filter map[string]string) error {
	if err := d.checkCollection(collection); err != nil {
		return err
	}
	if len(filter) == 0 {
		return fmt.Errorf("delete filter is required")
	}

	rowIDs, err := d.matchingRowIDs(ctx, collection, filter)
	if err != nil {
		return err
	}
	if len(rowIDs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, vecTable(collection)), rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, docsTable(collection)), rowID,
		); err != nil {
			return fmt.Errorf("deleting document rowid %d: %w", rowID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted documents from sqlite-vec",
		zap.String("collection", collection),
		zap.Int("count", len(rowIDs)),
	)

	return nil
}

// Count returns the number of documents matching the filter.
func (d *Driver) Count(ctx context.Context, collection string, filter map[string]string) (int, error) {
	if err := d.checkCollection(collection); err != nil {
		return 0, err
	}

	if len(filter) == 0 {
		var count int
		err := d.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s`, docsTable(collection)),
		).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("counting documents: %w", err)
		}
		return count, nil
	}

	rowIDs, err := d.matchingRowIDs(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	return len(rowIDs), nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

var _ vector.Driver = (*Driver)(nil)
