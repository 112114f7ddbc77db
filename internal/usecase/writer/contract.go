package writer

import (
	"context"

	"github.com/cinevec/cinevec/internal/domain"
)

// Store is the durable append-only embedding store contract.
type Store interface {
	// IDs returns the ids already embedded, recomputed from durable state.
	IDs() (map[int64]struct{}, error)
	// Append durably writes one record; the write is atomic w.r.t. crash.
	Append(rec domain.EmbeddingRecord) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
