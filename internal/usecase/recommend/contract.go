package recommend

import (
	"context"

	"github.com/cinevec/cinevec/internal/domain"
	"github.com/cinevec/cinevec/internal/index"
)

// Searcher executes a ranked similarity search over one collection.
type Searcher interface {
	Search(ctx context.Context, collection string, query domain.Query, topK int) ([]index.ScoredPoint, error)
}

// MovieDetails resolves movie detail rows.
type MovieDetails interface {
	Get(id int64) (domain.MovieDetail, bool)
}

// UserProfiles resolves user profile rows.
type UserProfiles interface {
	Get(id int64) (domain.UserProfile, bool)
}

// VectorSource resolves a stored movie embedding by id. The centroid of a
// user's candidate movies is computed from these, not re-embedded.
type VectorSource interface {
	Vector(id int64) ([]float32, bool)
}
