package testutils

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/llmpagina/avamem/pkg/vector"
)

// MockVectorDriver is an in-memory vector driver computing real cosine
// similarity, so ordering assertions are meaningful.
type MockVectorDriver struct {
	collections map[string]map[string]vector.Document

	// FailQuery makes every Query return an error
	FailQuery bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		collections: make(map[string]map[string]vector.Document),
	}
}

func (m *MockVectorDriver) EnsureCollection(_ context.Context, collection string, _ int) error {
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = make(map[string]vector.Document)
	}
	return nil
}

func (m *MockVectorDriver) Upsert(_ context.Context, collection string, docs []vector.Document) error {
	coll, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("%w: unknown collection %q", vector.ErrNotFound, collection)
	}
	for _, doc := range docs {
		doc.Metadata = vector.FlattenMetadata(doc.Metadata)
		coll[doc.ID] = doc
	}
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func matches(doc vector.Document, filter map[string]string) bool {
	for k, want := range filter {
		v, ok := doc.Metadata[k]
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

func (m *MockVectorDriver) Query(_ context.Context, collection string, embedding []float32, opts vector.QueryOptions) ([]vector.QueryResult, error) {
	if m.FailQuery {
		return nil, fmt.Errorf("mock query failure")
	}

	coll, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %q", vector.ErrNotFound, collection)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	var results []vector.QueryResult
	for _, doc := range coll {
		if !matches(doc, opts.Filter) {
			continue
		}
		score := cosine(embedding, doc.Embedding)
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		results = append(results, vector.QueryResult{Document: doc, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MockVectorDriver) DeleteByFilter(_ context.Context, collection string, filter map[string]string) error {
	coll, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("%w: unknown collection %q", vector.ErrNotFound, collection)
	}
	for id, doc := range coll {
		if matches(doc, filter) {
			delete(coll, id)
		}
	}
	return nil
}

func (m *MockVectorDriver) Count(_ context.Context, collection string, filter map[string]string) (int, error) {
	coll, ok := m.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: unknown collection %q", vector.ErrNotFound, collection)
	}
	count := 0
	for _, doc := range coll {
		if matches(doc, filter) {
			count++
		}
	}
	return count, nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

var _ vector.Driver = (*MockVectorDriver)(nil)
