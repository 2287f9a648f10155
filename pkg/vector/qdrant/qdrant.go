// Package qdrant provides the production vector driver backed by a Qdrant
// server over gRPC.
package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection for strategy vectors.
	DefaultCollectionName = "playbook_strategies"

	// DefaultHost is the default Qdrant server host.
	DefaultHost = "localhost"

	// DefaultPort is the default Qdrant gRPC port.
	DefaultPort = 6334

	// DefaultDimensions matches the default embedding model output.
	DefaultDimensions = 768
)

// Driver implements vector.Driver against a Qdrant collection with cosine
// distance. Point IDs are UUIDv5 hashes of entry names, so upserts supersede
// prior vectors for the same entry.
type Driver struct {
	client         *qdrant.Client
	collectionName string
	dimensions     uint64
	logger         *zap.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant server host. Defaults to DefaultHost if empty.
	Host string

	// Port is the Qdrant gRPC port. Defaults to DefaultPort if zero.
	Port int

	// CollectionName defaults to DefaultCollectionName if empty.
	CollectionName string

	// Dimensions is the embedding vector size.
	// Defaults to DefaultDimensions if zero.
	Dimensions uint
}

// NewDriver creates a Qdrant vector driver. Construction only dials the
// client; reachability is verified by HealthCheck or the first operation.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}

	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	dimensions := uint64(c.Dimensions)
	if dimensions == 0 {
		dimensions = DefaultDimensions
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating qdrant client: %v", vector.ErrConnection, err)
	}

	logger.Info("qdrant vector driver initialized",
		zap.String("host", host),
		zap.Int("port", port),
		zap.String("collection", collectionName),
		zap.Uint64("dimensions", dimensions),
	)

	return &Driver{
		client:         client,
		collectionName: collectionName,
		dimensions:     dimensions,
		logger:         logger,
	}, nil
}

// HealthCheck verifies the Qdrant service responds.
func (d *Driver) HealthCheck(ctx context.Context) error {
	if _, err := d.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: qdrant health check: %v", vector.ErrConnection, err)
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance if it does
// not already exist.
func (d *Driver) EnsureCollection(ctx context.Context) error {
	exists, err := d.client.CollectionExists(ctx, d.collectionName)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %v", vector.ErrConnection, err)
	}
	if exists {
		return nil
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     d.dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", d.collectionName, err)
	}

	d.logger.Info("created qdrant collection",
		zap.String("collection", d.collectionName),
	)

	return nil
}

// Upsert stores documents with their embeddings, updating documents whose
// IDs already exist.
func (d *Driver) Upsert(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	if err := d.EnsureCollection(ctx); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"name":            doc.Name,
				"text":            doc.Text,
				"score":           int64(doc.Score),
				"status":          doc.Status,
				"source":          doc.Source,
				"atomicity_score": doc.AtomicityScore,
			}),
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collectionName,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}

	d.logger.Debug("upserted documents to qdrant",
		zap.Int("count", len(points)),
	)

	return nil
}

// Query finds the topK most similar documents, filtered server-side.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter *vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collectionName,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, point := range points {
		doc := vector.Document{
			ID: point.GetId().GetUuid(),
		}
		if payload := point.GetPayload(); payload != nil {
			doc.Name = payload["name"].GetStringValue()
			doc.Text = payload["text"].GetStringValue()
			doc.Score = int(payload["score"].GetIntegerValue())
			doc.Status = payload["status"].GetStringValue()
			doc.Source = payload["source"].GetStringValue()
			doc.AtomicityScore = payload["atomicity_score"].GetDoubleValue()
		}

		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    point.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// buildFilter converts the portable filter into Qdrant must-conditions.
func buildFilter(filter *vector.Filter) *qdrant.Filter {
	if filter == nil {
		return nil
	}

	var must []*qdrant.Condition
	if filter.Status != "" {
		must = append(must, qdrant.NewMatch("status", filter.Status))
	}
	if filter.MinScore != nil {
		must = append(must, qdrant.NewRange("score", &qdrant.Range{
			Gte: qdrant.PtrOf(float64(*filter.MinScore)),
		}))
	}
	if len(must) == 0 {
		return nil
	}

	return &qdrant.Filter{Must: must}
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}

	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collectionName,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("deleting %d points: %w", len(ids), err)
	}

	d.logger.Debug("deleted documents from qdrant",
		zap.Int("count", len(ids)),
	)

	return nil
}

// Stats returns collection statistics.
func (d *Driver) Stats(ctx context.Context) (*vector.Stats, error) {
	info, err := d.client.GetCollectionInfo(ctx, d.collectionName)
	if err != nil {
		return nil, fmt.Errorf("getting collection info: %w", err)
	}

	return &vector.Stats{
		PointsCount: info.GetPointsCount(),
		Collection:  d.collectionName,
	}, nil
}

// Close releases the underlying gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

var _ vector.Driver = (*Driver)(nil)
