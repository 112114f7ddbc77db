// Package initializer seeds vector index collections from embedding stores.
// A collection is created and uploaded at most once: if it already exists
// the run is a no-op, so restarts never duplicate points. A failed upload
// deletes the partial collection so the next run starts from scratch.
package initializer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/domain"
	"github.com/cinevec/cinevec/internal/index"
)

const defaultChunkSize = 64

// Result reports what a Run did.
type Result struct {
	Created  bool
	Uploaded int
}

// Service uploads one embedding store into one collection, joining each
// stored vector with its payload row.
type Service struct {
	idx      Indexer
	store    SnapshotLoader
	payloads PayloadSource
	chunk    int
	logger   *zap.Logger
}

func New(idx Indexer, store SnapshotLoader, payloads PayloadSource, logger *zap.Logger) *Service {
	return &Service{
		idx:      idx,
		store:    store,
		payloads: payloads,
		chunk:    defaultChunkSize,
		logger:   logger,
	}
}

// WithChunkSize overrides the upsert batch size.
func (s *Service) WithChunkSize(n int) *Service {
	if n > 0 {
		s.chunk = n
	}
	return s
}

// Run creates the collection and uploads every stored embedding. If the
// collection already exists nothing is uploaded and Created is false.
func (s *Service) Run(ctx context.Context, collection string) (Result, error) {
	exists, err := s.idx.Exists(ctx, collection)
	if err != nil {
		return Result{}, fmt.Errorf("check collection %s: %w", collection, err)
	}
	if exists {
		s.logger.Info("collection already initialized, skipping upload",
			zap.String("collection", collection))
		return Result{}, nil
	}

	snap, err := s.store.Load()
	if err != nil {
		return Result{}, fmt.Errorf("load embedding store: %w", err)
	}
	if snap.Len() == 0 {
		return Result{}, fmt.Errorf("collection %s: %w", collection, domain.ErrEmptyStore)
	}

	points, err := s.buildPoints(snap.Records())
	if err != nil {
		return Result{}, err
	}

	if err := s.idx.Create(ctx, collection, snap.Dim()); err != nil {
		return Result{}, fmt.Errorf("create collection %s: %w", collection, err)
	}

	for start := 0; start < len(points); start += s.chunk {
		end := start + s.chunk
		if end > len(points) {
			end = len(points)
		}
		if err := s.idx.Upsert(ctx, collection, points[start:end]); err != nil {
			// Drop the half-filled collection so the exists check does
			// not mistake it for a finished upload on the next run.
			if delErr := s.idx.Delete(context.WithoutCancel(ctx), collection); delErr != nil {
				s.logger.Warn("rollback of partial collection failed",
					zap.String("collection", collection),
					zap.Error(delErr))
			}
			return Result{Uploaded: start},
				fmt.Errorf("upload chunk starting at %d: %w", start, err)
		}
	}

	s.logger.Info("collection initialized",
		zap.String("collection", collection),
		zap.Int("points", len(points)),
		zap.Int("dim", snap.Dim()))

	return Result{Created: true, Uploaded: len(points)}, nil
}

// buildPoints joins every embedding with its payload before anything is
// uploaded, so a missing detail row aborts the whole run cleanly.
func (s *Service) buildPoints(records []domain.EmbeddingRecord) ([]index.Point, error) {
	points := make([]index.Point, len(records))
	for i, rec := range records {
		payload, ok := s.payloads.Payload(rec.ID)
		if !ok {
			return nil, fmt.Errorf("embedding id %d: %w", rec.ID, domain.ErrMissingDetail)
		}
		points[i] = index.Point{
			ID:      uint64(i),
			Vector:  rec.Vector,
			Payload: payload,
		}
	}
	return points, nil
}
