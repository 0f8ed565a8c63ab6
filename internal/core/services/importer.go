package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driven"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driving"
)

// Ensure ImporterService implements Importer
var _ driving.Importer = (*ImporterService)(nil)

const (
	// defaultImportBatchSize is the store batch size when the caller does
	// not set one.
	defaultImportBatchSize = 1000

	// importLockTTL bounds how long a crashed import can block its
	// catalog before the lock expires.
	importLockTTL = 30 * time.Minute
)

// ImporterService ingests product records into the canonical store.
// It implements the import flow:
//  1. Acquire the catalog's namespace lock (reject, don't wait)
//  2. Stream records, validating each
//  3. Apply per-record change modes (merge) or swap the whole catalog
//     atomically (replace)
//  4. Release the lock
type ImporterService struct {
	store      driven.ProductStore
	lock       driven.DistributedLock
	logger     *slog.Logger
	retryDelay time.Duration
}

// ImporterConfig holds dependencies for ImporterService.
type ImporterConfig struct {
	Store  driven.ProductStore
	Lock   driven.DistributedLock
	Logger *slog.Logger

	// RetryDelay overrides the base backoff between store retries.
	RetryDelay time.Duration
}

// NewImporterService creates a new importer.
func NewImporterService(cfg ImporterConfig) *ImporterService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ImporterService{
		store:      cfg.Store,
		lock:       cfg.Lock,
		logger:     logger,
		retryDelay: cfg.RetryDelay,
	}
}

// importLockName returns the lock protecting one catalog namespace.
// Merge and replace imports contend on the same name.
func importLockName(catalogID string) string {
	return "import:" + catalogID
}

// ImportCatalog streams records from src into the store under catalogID.
func (s *ImporterService) ImportCatalog(ctx context.Context, catalogID string, src domain.RecordSource, opts driving.ImportOptions) (*domain.ImportResult, error) {
	startTime := time.Now()

	if catalogID == "" {
		catalogID = "default"
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultImportBatchSize
	}

	acquired, err := s.lock.Acquire(ctx, importLockName(catalogID), importLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring import lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", domain.ErrImportInProgress, catalogID)
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), importLockName(catalogID)); err != nil {
			s.logger.Warn("failed to release import lock", "catalog_id", catalogID, "error", err)
		}
	}()

	s.logger.Info("starting import", "catalog_id", catalogID, "replace", opts.Replace)

	stats := domain.ImportStats{}
	if opts.Replace {
		err = s.importReplace(ctx, catalogID, src, batchSize, &stats)
	} else {
		err = s.importMerge(ctx, catalogID, src, batchSize, &stats)
	}
	if err != nil {
		s.logger.Error("import failed", "catalog_id", catalogID, "error", err)
		return nil, err
	}

	duration := time.Since(startTime).Seconds()
	s.logger.Info("import completed",
		"catalog_id", catalogID,
		"replace", opts.Replace,
		"imported", stats.Imported,
		"deleted", stats.Deleted,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"duration_seconds", duration,
	)

	return &domain.ImportResult{
		CatalogID: catalogID,
		Replace:   opts.Replace,
		Stats:     stats,
		Duration:  duration,
	}, nil
}

// importReplace swaps the catalog's contents atomically. The store sees a
// pre-validated source: records that fail validation, and delete-mode records
// (meaningless in a full snapshot), never reach it.
func (s *ImporterService) importReplace(ctx context.Context, catalogID string, src domain.RecordSource, batchSize int, stats *domain.ImportStats) error {
	filtered := &validatingSource{
		src:       src,
		catalogID: catalogID,
		logger:    s.logger,
		stats:     stats,
	}
	written, err := s.store.ReplaceCatalog(ctx, catalogID, filtered, batchSize)
	if err != nil {
		return fmt.Errorf("replacing catalog %s: %w", catalogID, err)
	}
	stats.Imported = written
	return nil
}

// importMerge applies per-record change modes in stream order. Pending
// upserts are flushed before a delete so a delete after an upsert of the same
// key removes the row.
func (s *ImporterService) importMerge(ctx context.Context, catalogID string, src domain.RecordSource, batchSize int, stats *domain.ImportStats) error {
	batch := make([]*domain.ProductRecord, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		n := len(batch)
		err := withRetry(ctx, s.logger, "store.upsert_batch", s.retryDelay, func() error {
			return s.store.UpsertBatch(ctx, batch)
		})
		if err != nil {
			s.logger.Error("batch upsert failed", "catalog_id", catalogID, "records", n, "error", err)
			stats.Errors++
		} else {
			stats.Imported += n
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading record stream: %w", err)
		}

		rec.CatalogID = catalogID
		if err := rec.Validate(); err != nil {
			s.logger.Warn("skipping invalid record", "catalog_id", catalogID, "supplier_aid", rec.SupplierAID, "error", err)
			stats.Skipped++
			continue
		}

		switch rec.Mode {
		case domain.ModeDelete:
			flush()
			if err := s.store.DeleteByKey(ctx, catalogID, rec.SupplierAID); err != nil {
				s.logger.Warn("delete failed", "catalog_id", catalogID, "supplier_aid", rec.SupplierAID, "error", err)
				stats.Errors++
				continue
			}
			stats.Deleted++
		default: // new, update and the empty mode all upsert
			batch = append(batch, rec)
			if len(batch) >= batchSize {
				flush()
			}
		}
	}

	flush()
	return nil
}

// validatingSource filters a record stream for replace imports: it stamps the
// catalog namespace, drops invalid and delete-mode records and counts them.
type validatingSource struct {
	src       domain.RecordSource
	catalogID string
	logger    *slog.Logger
	stats     *domain.ImportStats
}

func (v *validatingSource) Next() (*domain.ProductRecord, error) {
	for {
		rec, err := v.src.Next()
		if err != nil {
			return nil, err
		}
		rec.CatalogID = v.catalogID
		if err := rec.Validate(); err != nil {
			v.logger.Warn("skipping invalid record", "catalog_id", v.catalogID, "supplier_aid", rec.SupplierAID, "error", err)
			v.stats.Skipped++
			continue
		}
		if rec.Mode == domain.ModeDelete {
			v.stats.Skipped++
			continue
		}
		return rec, nil
	}
}
