package seed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"credentialing/api/internal/store"
)

const (
	DefaultBatchSize = 100
	providerAttempts = 3
	providerDelay    = 2 * time.Second
)

// Store is the slice of the Postgres store the seeders write through.
type Store interface {
	DeleteAll(ctx context.Context, table string) (int64, error)
	ListProviderIDs(ctx context.Context) ([]string, error)
	InsertRecords(ctx context.Context, table string, recs []store.Record) ([]store.Record, error)
}

type Runner struct {
	store     Store
	opts      Options
	logger    *zap.Logger
	batchSize int
	delay     time.Duration
}

func NewRunner(st Store, opts Options, logger *zap.Logger, batchSize int) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 || batchSize > DefaultBatchSize {
		batchSize = DefaultBatchSize
	}
	return &Runner{store: st, opts: opts, logger: logger, batchSize: batchSize, delay: providerDelay}
}

type Result struct {
	Table         string
	Deleted       int64
	Providers     int
	Generated     int
	Inserted      int
	FailedBatches int
}

// Run replaces every row of table with freshly generated ones. A failing batch is logged and
// skipped so the remaining batches still land.
func (r *Runner) Run(ctx context.Context, table string, seed int64) (Result, error) {
	result := Result{Table: table}
	log := r.logger.With(zap.String("table", table))

	deleted, err := r.store.DeleteAll(ctx, table)
	if err != nil {
		return result, fmt.Errorf("clear %s: %w", table, err)
	}
	result.Deleted = deleted
	log.Info("cleared table", zap.Int64("deleted", deleted))

	ids, err := r.providerIDs(ctx, log)
	if err != nil {
		return result, err
	}
	result.Providers = len(ids)
	if len(ids) == 0 {
		log.Warn("no providers found, nothing to seed")
		return result, nil
	}

	rows, err := Generate(table, ids, r.opts, seed)
	if err != nil {
		return result, err
	}
	result.Generated = len(rows)

	for start := 0; start < len(rows); start += r.batchSize {
		end := min(start+r.batchSize, len(rows))
		inserted, err := r.store.InsertRecords(ctx, table, rows[start:end])
		if err != nil {
			result.FailedBatches++
			log.Error("batch insert failed",
				zap.Int("batch", start/r.batchSize+1),
				zap.Int("rows", end-start),
				zap.Error(err),
			)
			continue
		}
		result.Inserted += len(inserted)
	}
	log.Info("seeded table",
		zap.Int("providers", result.Providers),
		zap.Int("inserted", result.Inserted),
		zap.Int("failed_batches", result.FailedBatches),
	)
	return result, nil
}

// providerIDs retries a few times with a fixed delay; a fresh database may still be starting.
func (r *Runner) providerIDs(ctx context.Context, log *zap.Logger) ([]string, error) {
	var lastErr error
	for attempt := 1; attempt <= providerAttempts; attempt++ {
		ids, err := r.store.ListProviderIDs(ctx)
		if err == nil {
			return ids, nil
		}
		lastErr = err
		log.Warn("fetch provider ids failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == providerAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.delay):
		}
	}
	return nil, fmt.Errorf("fetch provider ids after %d attempts: %w", providerAttempts, lastErr)
}
