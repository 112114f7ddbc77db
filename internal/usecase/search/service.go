// Package search resolves a query to a vector and delegates ranking to the
// vector index.
package search

import (
	"context"
	"fmt"

	"github.com/cinevec/cinevec/internal/domain"
	"github.com/cinevec/cinevec/internal/index"
)

// Service handles similarity search over a single collection.
type Service struct {
	idx   Querier
	embed Embedder
}

// New creates a search service.
func New(idx Querier, embed Embedder) *Service {
	return &Service{idx: idx, embed: embed}
}

// Search resolves the query to a vector and returns up to topK hits in
// descending similarity order. Text queries go through the embedder; vector
// queries are validated against the collection dimensionality.
func (s *Service) Search(
	ctx context.Context, collection string, query domain.Query, topK int,
) ([]index.ScoredPoint, error) {
	vector, err := s.resolve(ctx, collection, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.idx.Query(ctx, collection, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return hits, nil
}

func (s *Service) resolve(
	ctx context.Context, collection string, query domain.Query,
) ([]float32, error) {
	if query.IsText() {
		res, err := s.embed.Embed(ctx, query.Text())
		if err != nil {
			return nil, fmt.Errorf("vectorize query: %w", err)
		}
		return res.Embedding, nil
	}

	vector := query.Vector()
	dim, err := s.idx.Dim(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("collection %s dim: %w", collection, err)
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("query has %d dims, collection %s has %d: %w",
			len(vector), collection, dim, domain.ErrDimMismatch)
	}
	return vector, nil
}
