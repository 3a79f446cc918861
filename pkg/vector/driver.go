// Package vector provides the vector index contract shared by the
// semantic memory backends, with named per-modality collections.
package vector

import "context"

// Document represents a stored item with its embedding and metadata.
type Document struct {
	// ID is a unique identifier for the document. Upserting the same
	// ID replaces the previous document.
	ID string

	// Embedding is the vector representation of the document content.
	Embedding []float32

	// Content is the raw text the embedding was generated from.
	Content string

	// Metadata carries filterable attributes. Composite values are
	// flattened by the driver before storage.
	Metadata map[string]any
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// QueryOptions narrows a similarity query.
type QueryOptions struct {
	// Filter requires exact metadata matches on flattened values.
	Filter map[string]string

	// Limit caps the number of results. Defaults to 10 when zero.
	Limit int

	// ScoreThreshold drops results scoring below it. Zero disables it.
	ScoreThreshold float32
}

// Driver handles storage and retrieval of vector embeddings across
// named collections, one per modality.
type Driver interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, collection string, dimensions int) error

	// Upsert stores documents with their embeddings. Documents with
	// existing IDs are replaced.
	Upsert(ctx context.Context, collection string, docs []Document) error

	// Query finds the most similar documents to the given embedding.
	Query(ctx context.Context, collection string, embedding []float32, opts QueryOptions) ([]QueryResult, error)

	// DeleteByFilter removes all documents matching the metadata filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]string) error

	// Count returns the number of documents matching the filter.
	Count(ctx context.Context, collection string, filter map[string]string) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}
