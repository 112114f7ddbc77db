// Package index defines the vector index contract the usecases depend on.
// Ranking is owned entirely by the index backend.
package index

import "context"

// Point is one indexed vector with its denormalized payload. The point id is
// assigned sequentially at upload time and is not the domain id: consumers
// resolve through the payload "id" field only.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is one ranked search hit.
type ScoredPoint struct {
	ID      uint64
	Score   float32
	Payload map[string]any
}

// PayloadID extracts the domain id from a hit payload.
func (p ScoredPoint) PayloadID() (int64, bool) {
	switch v := p.Payload["id"].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// Index is the vector database contract: named fixed-dim collections of
// points, queryable by cosine nearest-neighbor similarity.
type Index interface {
	Exists(ctx context.Context, collection string) (bool, error)
	Create(ctx context.Context, collection string, dim int) error
	Upsert(ctx context.Context, collection string, points []Point) error
	// Query returns up to topK hits in descending similarity order.
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]ScoredPoint, error)
	// Dim returns the fixed dimensionality of a collection.
	Dim(ctx context.Context, collection string) (int, error)
}
