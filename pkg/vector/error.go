package vector

import "errors"

var (
	// ErrNotFound is returned when a collection or document does not
	// exist in the vector store.
	ErrNotFound = errors.New("not found")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
