// Package qdrant adapts the Qdrant gRPC client to the index contract.
package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/cinevec/cinevec/internal/domain"
	"github.com/cinevec/cinevec/internal/index"
)

// Compile-time check: Client implements index.Index.
var _ index.Index = (*Client)(nil)

// Config holds Qdrant connection parameters.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Client is a Qdrant-backed vector index.
type Client struct {
	qc *qdrant.Client
}

// New connects to Qdrant over gRPC.
func New(cfg Config) (*Client, error) {
	qc, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &Client{qc: qc}, nil
}

// Close shuts down the underlying gRPC connection.
func (c *Client) Close() error {
	if err := c.qc.Close(); err != nil {
		return fmt.Errorf("close qdrant client: %w", err)
	}
	return nil
}

// Ping checks Qdrant availability.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.qc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %v: %w", err, domain.ErrIndexUnavailable)
	}
	return nil
}

// Exists reports whether a collection exists.
func (c *Client) Exists(ctx context.Context, collection string) (bool, error) {
	exists, err := c.qc.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("collection exists %s: %v: %w", collection, err, domain.ErrIndexUnavailable)
	}
	return exists, nil
}

// Create creates a collection with the given dimensionality and cosine distance.
func (c *Client) Create(ctx context.Context, collection string, dim int) error {
	err := c.qc.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %v: %w", collection, err, domain.ErrIndexUnavailable)
	}
	return nil
}

// Delete drops a collection and all of its points.
func (c *Client) Delete(ctx context.Context, collection string) error {
	if err := c.qc.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("delete collection %s: %v: %w", collection, err, domain.ErrIndexUnavailable)
	}
	return nil
}

// Upsert writes points in one call.
func (c *Client) Upsert(ctx context.Context, collection string, points []index.Point) error {
	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := make(map[string]*qdrant.Value, len(p.Payload))
		for k, v := range p.Payload {
			val, err := qdrant.NewValue(v)
			if err != nil {
				return fmt.Errorf("convert payload %q for point %d: %w", k, p.ID, err)
			}
			payload[k] = val
		}
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		})
	}

	_, err := c.qc.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points to %s: %v: %w", len(points), collection, err, domain.ErrIndexUnavailable)
	}
	return nil
}

// Query runs a nearest-neighbor search. Qdrant returns hits in descending
// similarity order already.
func (c *Client) Query(ctx context.Context, collection string, vector []float32, topK int) ([]index.ScoredPoint, error) {
	hits, err := c.qc.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %v: %w", collection, err, domain.ErrIndexUnavailable)
	}

	results := make([]index.ScoredPoint, 0, len(hits))
	for _, hit := range hits {
		results = append(results, index.ScoredPoint{
			ID:      hit.GetId().GetNum(),
			Score:   hit.GetScore(),
			Payload: payloadToMap(hit.GetPayload()),
		})
	}
	return results, nil
}

// Dim returns the collection's vector size.
func (c *Client) Dim(ctx context.Context, collection string) (int, error) {
	info, err := c.qc.GetCollectionInfo(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("collection info %s: %v: %w", collection, err, domain.ErrIndexUnavailable)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return 0, fmt.Errorf("collection %s has no vector params: %w", collection, domain.ErrIndexUnavailable)
	}
	return int(params.GetSize()), nil
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		list := make([]any, len(items))
		for i, item := range items {
			list[i] = valueToAny(item)
		}
		return list
	default:
		return nil
	}
}
