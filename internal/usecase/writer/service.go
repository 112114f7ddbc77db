// Package writer implements the resumable, capacity-bounded batch that turns
// text records into durable embeddings. Each run recomputes its done-set from
// the store, so the batch is idempotent and safe to interrupt and restart.
package writer

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/domain"
	"github.com/cinevec/cinevec/internal/metrics"
)

// Report is the structured outcome of one batch: every skipped record is
// accounted for, not just logged.
type Report struct {
	Written   int
	Failed    int
	FailedIDs []int64
}

// Service is the embedding store writer.
type Service struct {
	store   Store
	embed   Embedder
	name    string // store label for logs and metrics
	workers int
	logger  *zap.Logger
}

// New creates a writer for one store. name labels the store in logs and metrics.
func New(store Store, embed Embedder, name string, logger *zap.Logger) *Service {
	return &Service{store: store, embed: embed, name: name, workers: 1, logger: logger}
}

// WithWorkers enables bounded parallel embedding. The store append order is
// no longer the source order, which is fine: the store is keyed by id.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// Process embeds every source record not yet in the store, up to maxLimit
// total records, and appends the results durably. Records that fail to embed
// are skipped and reported; the batch continues. Running Process again with
// the same source appends nothing.
func (s *Service) Process(ctx context.Context, source []domain.TextRecord, maxLimit int) (Report, error) {
	done, err := s.store.IDs()
	if err != nil {
		return Report{}, fmt.Errorf("load store ids: %w", err)
	}

	if len(done) >= maxLimit {
		s.logger.Info("Store already at capacity, nothing to process",
			zap.String("store", s.name),
			zap.Int("records", len(done)),
			zap.Int("max_limit", maxLimit),
		)
		return Report{}, nil
	}

	existing := len(done)
	pending := make([]domain.TextRecord, 0, len(source))
	for _, rec := range source {
		if _, ok := done[rec.ID]; ok {
			continue
		}
		// Guard against duplicate ids within one source batch.
		done[rec.ID] = struct{}{}
		pending = append(pending, rec)
	}

	if available := maxLimit - existing; len(pending) > available {
		pending = pending[:available]
	}
	if len(pending) == 0 {
		s.logger.Info("Store is up to date", zap.String("store", s.name))
		return Report{}, nil
	}

	s.logger.Info("Starting embedding batch",
		zap.String("store", s.name),
		zap.Int("pending", len(pending)),
		zap.Int("workers", s.workers),
	)

	if s.workers <= 1 {
		return s.processSequential(ctx, pending)
	}
	return s.processParallel(ctx, pending)
}

func (s *Service) processSequential(ctx context.Context, pending []domain.TextRecord) (Report, error) {
	var report Report
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("batch interrupted: %w", err)
		}
		switch outcome := s.embedOne(ctx, rec); {
		case outcome.err != nil:
			return report, outcome.err
		case outcome.written:
			report.Written++
		default:
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, rec.ID)
		}
	}
	return report, nil
}

func (s *Service) processParallel(ctx context.Context, pending []domain.TextRecord) (Report, error) {
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return Report{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	outcomes := make([]outcome, len(pending))
	var wg sync.WaitGroup
	for i := range pending {
		wg.Add(1)
		if submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			outcomes[i] = s.embedOne(ctx, pending[i])
		}); submitErr != nil {
			wg.Done()
			outcomes[i] = outcome{err: fmt.Errorf("submit embed task: %w", submitErr)}
		}
	}
	wg.Wait()

	var report Report
	var fatal error
	for i, o := range outcomes {
		switch {
		case o.written:
			report.Written++
		case o.failed:
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, pending[i].ID)
		case o.err != nil && fatal == nil:
			fatal = o.err
		}
	}
	if fatal == nil && ctx.Err() != nil {
		fatal = fmt.Errorf("batch interrupted: %w", ctx.Err())
	}
	return report, fatal
}

type outcome struct {
	written bool
	failed  bool
	err     error // fatal store error, aborts the batch
}

// embedOne embeds and appends a single record. An embedding failure is a
// per-record skip; an append failure is fatal because durable state is in doubt.
func (s *Service) embedOne(ctx context.Context, rec domain.TextRecord) outcome {
	result, err := s.embed.Embed(ctx, rec.Text)
	if err != nil {
		s.logger.Warn("Skipping record after embedding failure",
			zap.String("store", s.name),
			zap.Int64("id", rec.ID),
			zap.Error(err),
		)
		metrics.WriterRecordsTotal.WithLabelValues(s.name, "failed").Inc()
		return outcome{failed: true}
	}

	if err := s.store.Append(domain.EmbeddingRecord{ID: rec.ID, Vector: result.Embedding}); err != nil {
		return outcome{err: fmt.Errorf("append record %d: %w", rec.ID, err)}
	}
	metrics.WriterRecordsTotal.WithLabelValues(s.name, "written").Inc()
	return outcome{written: true}
}
