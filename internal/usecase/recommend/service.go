// Package recommend implements the two-stage hybrid recommendation engine.
// Movie recommendations are a single content search; user recommendations go
// through a collaborative stage (similar users' favourites) before the final
// content search over the favourites' centroid.
package recommend

import (
	"context"
	"fmt"

	"github.com/cinevec/cinevec/internal/domain"
	"github.com/cinevec/cinevec/internal/index"
)

// Config fixes the collection names and fan-out widths of the engine.
type Config struct {
	MovieCollection string
	UserCollection  string
	UserTopK        int
	MovieTopK       int
}

// Service is stateless: every call is a pure function of its inputs and the
// backing services.
type Service struct {
	search  Searcher
	movies  MovieDetails
	users   UserProfiles
	vectors VectorSource
	cfg     Config
}

func New(search Searcher, movies MovieDetails, users UserProfiles, vectors VectorSource, cfg Config) *Service {
	return &Service{search: search, movies: movies, users: users, vectors: vectors, cfg: cfg}
}

// ByMovie returns the ids of the movies most similar to the given one, in
// descending similarity order. The searched movie itself is a valid hit.
func (s *Service) ByMovie(ctx context.Context, movieID int64) ([]int64, error) {
	detail, ok := s.movies.Get(movieID)
	if !ok {
		return nil, fmt.Errorf("movie %d: %w", movieID, domain.ErrNotFound)
	}

	hits, err := s.search.Search(ctx, s.cfg.MovieCollection, domain.Text(detail.Text), s.cfg.MovieTopK)
	if err != nil {
		return nil, fmt.Errorf("movie search: %w", err)
	}
	return payloadIDs(hits), nil
}

// ByUser recommends movies for a user in two stages: find similar users by
// profile text, pool their favourite movies, then search the movie collection
// with the pool's centroid. Movies the user already rated are dropped from the
// final ranking, so fewer than MovieTopK ids may come back.
func (s *Service) ByUser(ctx context.Context, userID int64) ([]int64, error) {
	profile, ok := s.users.Get(userID)
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	rated := profile.RatedIDs()

	neighbours, err := s.search.Search(ctx, s.cfg.UserCollection, domain.Text(profile.Text), s.cfg.UserTopK)
	if err != nil {
		return nil, fmt.Errorf("user search: %w", err)
	}

	// Favourites are concatenated as-is: a movie favoured by several
	// neighbours counts several times toward the centroid.
	var candidates []int64
	for _, hit := range neighbours {
		id, ok := hit.PayloadID()
		if !ok {
			continue
		}
		neighbour, ok := s.users.Get(id)
		if !ok {
			continue
		}
		candidates = append(candidates, neighbour.FavouriteIDs...)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNoSignal)
	}

	centroid, err := s.centroid(candidates)
	if err != nil {
		return nil, err
	}

	hits, err := s.search.Search(ctx, s.cfg.MovieCollection, domain.Vector(centroid), s.cfg.MovieTopK)
	if err != nil {
		return nil, fmt.Errorf("movie search: %w", err)
	}

	recs := make([]int64, 0, len(hits))
	for _, id := range payloadIDs(hits) {
		if _, seen := rated[id]; seen {
			continue
		}
		recs = append(recs, id)
	}
	return recs, nil
}

// centroid is the element-wise arithmetic mean of the stored embeddings of
// the candidate ids. Callers guarantee candidates is non-empty.
func (s *Service) centroid(candidates []int64) ([]float32, error) {
	var sum []float64
	for _, id := range candidates {
		vec, ok := s.vectors.Vector(id)
		if !ok {
			return nil, fmt.Errorf("movie embedding %d: %w", id, domain.ErrNotFound)
		}
		if sum == nil {
			sum = make([]float64, len(vec))
		} else if len(vec) != len(sum) {
			return nil, fmt.Errorf("movie embedding %d: dim %d, want %d: %w",
				id, len(vec), len(sum), domain.ErrDimMismatch)
		}
		for i, v := range vec {
			sum[i] += float64(v)
		}
	}

	mean := make([]float32, len(sum))
	n := float64(len(candidates))
	for i, v := range sum {
		mean[i] = float32(v / n)
	}
	return mean, nil
}

func payloadIDs(hits []index.ScoredPoint) []int64 {
	ids := make([]int64, 0, len(hits))
	for _, hit := range hits {
		if id, ok := hit.PayloadID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
