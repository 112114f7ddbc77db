package initializer

import (
	"context"

	"github.com/cinevec/cinevec/internal/domain"
	"github.com/cinevec/cinevec/internal/embstore"
	"github.com/cinevec/cinevec/internal/index"
)

// SnapshotLoader yields a point-in-time view of an embedding store.
type SnapshotLoader interface {
	Load() (*embstore.Snapshot, error)
}

// Indexer is the slice of the vector index the initializer drives.
type Indexer interface {
	Exists(ctx context.Context, collection string) (bool, error)
	Create(ctx context.Context, collection string, dim int) error
	Upsert(ctx context.Context, collection string, points []index.Point) error
	Delete(ctx context.Context, collection string) error
}

// PayloadSource resolves the denormalized payload for a stored embedding.
type PayloadSource interface {
	Payload(id int64) (map[string]any, bool)
}

// MoviePayloads adapts the movie detail table to a PayloadSource.
type MoviePayloads struct {
	Movies interface {
		Get(id int64) (domain.MovieDetail, bool)
	}
}

func (s MoviePayloads) Payload(id int64) (map[string]any, bool) {
	d, ok := s.Movies.Get(id)
	if !ok {
		return nil, false
	}
	return d.Payload(), true
}

// UserPayloads adapts the user profile table to a PayloadSource.
type UserPayloads struct {
	Users interface {
		Get(id int64) (domain.UserProfile, bool)
	}
}

func (s UserPayloads) Payload(id int64) (map[string]any, bool) {
	p, ok := s.Users.Get(id)
	if !ok {
		return nil, false
	}
	return p.Payload(), true
}
