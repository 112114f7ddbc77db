package domain

import "errors"

var (
	// ErrNotFound signals a missing movie or user lookup.
	ErrNotFound = errors.New("not found")
	// ErrDimMismatch signals a query vector whose length differs from the collection dim.
	ErrDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyStore signals an attempt to initialize a collection from a store with zero records.
	ErrEmptyStore = errors.New("embedding store is empty")
	// ErrMissingDetail signals an embedding record with no matching detail record.
	ErrMissingDetail = errors.New("missing detail record")
	// ErrNoSignal signals that no similar user carries any favourite to aggregate.
	ErrNoSignal = errors.New("no favourite signal among similar users")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrIndexUnavailable signals a vector index failure.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)
