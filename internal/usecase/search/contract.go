package search

import (
	"context"

	"github.com/cinevec/cinevec/internal/domain"
	"github.com/cinevec/cinevec/internal/index"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Querier is the slice of the vector index the searcher drives. Ranking is
// owned by the backend; the service never reorders hits.
type Querier interface {
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]index.ScoredPoint, error)
	Dim(ctx context.Context, collection string) (int, error)
}
