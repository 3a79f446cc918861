// Package qdrant implements vector.Driver against a remote Qdrant
// instance over its gRPC API.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/vector"
)

const (
	// docIDField holds the caller's document ID inside the payload.
	// Qdrant point IDs must be UUIDs, so the original ID travels here.
	docIDField = "_doc_id"

	// contentField holds the document content inside the payload.
	contentField = "content"

	healthCheckTimeout = 5 * time.Second
)

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant gRPC host. Defaults to "localhost".
	Host string

	// Port is the Qdrant gRPC port. Defaults to 6334.
	Port int

	// CollectionPrefix namespaces every collection (e.g. "ava_bot"
	// yields "ava_bot_text_memories").
	CollectionPrefix string
}

// Driver implements vector.Driver using the Qdrant gRPC client.
type Driver struct {
	client *qdrant.Client
	prefix string
	logger *zap.Logger
}

// NewDriver connects to Qdrant and verifies the instance is reachable.
// A failed health check returns vector.ErrConnection so callers can
// degrade instead of retrying per call.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: health check: %v", vector.ErrConnection, err)
	}

	logger.Info("qdrant vector driver initialized",
		zap.String("host", host),
		zap.Int("port", port),
		zap.String("prefix", c.CollectionPrefix),
	)

	return &Driver{
		client: client,
		prefix: c.CollectionPrefix,
		logger: logger,
	}, nil
}

func (d *Driver) collectionName(collection string) string {
	if d.prefix == "" {
		return collection
	}
	return d.prefix + "_" + collection
}

// pointID derives a deterministic UUID from the caller's document ID so
// repeated upserts of the same ID replace the same point.
func pointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String()
}

// EnsureCollection creates the collection with cosine distance if missing.
func (d *Driver) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	name := d.collectionName(collection)

	exists, err := d.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: checking collection %s: %v", vector.ErrConnection, name, err)
	}
	if exists {
		return nil
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	d.logger.Info("created qdrant collection",
		zap.String("collection", name),
		zap.Int("dimensions", dimensions),
	)

	return nil
}

// Upsert stores documents, replacing points with the same ID. Metadata
// is flattened before it becomes the payload.
func (d *Driver) Upsert(ctx context.Context, collection string, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		payload := vector.FlattenMetadata(doc.Metadata)
		payload[docIDField] = doc.ID
		payload[contentField] = doc.Content

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(doc.ID)),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collectionName(collection),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points into %s: %w", len(points), collection, err)
	}

	d.logger.Debug("upserted points",
		zap.String("collection", collection),
		zap.Int("count", len(points)),
	)

	return nil
}

func buildFilter(filter map[string]string) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		conditions = append(conditions, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: conditions}
}

// Query runs a cosine similarity search with an optional payload filter
// and score threshold.
func (d *Driver) Query(ctx context.Context, collection string, embedding []float32, opts vector.QueryOptions) ([]vector.QueryResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := &qdrant.QueryPoints{
		CollectionName: d.collectionName(collection),
		Query:          qdrant.NewQuery(embedding...),
		Filter:         buildFilter(opts.Filter),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.ScoreThreshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(opts.ScoreThreshold)
	}

	points, err := d.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		doc := vector.Document{Metadata: make(map[string]any)}
		for k, v := range p.GetPayload() {
			switch k {
			case docIDField:
				doc.ID = v.GetStringValue()
			case contentField:
				doc.Content = v.GetStringValue()
			default:
				doc.Metadata[k] = payloadValue(v)
			}
		}
		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant",
		zap.String("collection", collection),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// payloadValue converts a qdrant payload value back to a plain Go value.
func payloadValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return v.String()
	}
}

// DeleteByFilter removes all points whose payload matches the filter.
func (d *Driver) DeleteByFilter(ctx context.Context, collection string, filter map[string]string) error {
	f := buildFilter(filter)
	if f == nil {
		return fmt.Errorf("delete filter is required")
	}

	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collectionName(collection),
		Points:         qdrant.NewPointsSelectorFilter(f),
	})
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}

	return nil
}

// Count returns the exact number of points matching the filter.
func (d *Driver) Count(ctx context.Context, collection string, filter map[string]string) (int, error) {
	count, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collectionName(collection),
		Filter:         buildFilter(filter),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting in %s: %w", collection, err)
	}

	return int(count), nil
}

// Close releases the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

var _ vector.Driver = (*Driver)(nil)
