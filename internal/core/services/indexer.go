package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driven"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driving"
)

// Ensure IndexerService implements Indexer
var _ driving.Indexer = (*IndexerService)(nil)

const (
	// defaultIndexPageSize is how many records are read from the store per
	// page during a sync.
	defaultIndexPageSize = 500

	// defaultEmbedBatchSize is how many embedding texts go into one
	// provider call.
	defaultEmbedBatchSize = 100
)

// ClassificationNamer resolves an ECLASS code to a human-readable name.
type ClassificationNamer interface {
	Name(code string) string
}

// IndexerService projects stored records into the search engine.
// The engine is a derived view: every sync regenerates documents from the
// relational source, so the index can always be rebuilt from scratch.
type IndexerService struct {
	store      driven.ProductStore
	engine     driven.SearchEngine
	embedder   driven.EmbeddingService // nil disables the vector branch
	names      ClassificationNamer     // nil disables name enrichment
	logger     *slog.Logger
	pageSize   int
	embedBatch int
	retryDelay time.Duration
}

// IndexerConfig holds dependencies for IndexerService.
type IndexerConfig struct {
	Store    driven.ProductStore
	Engine   driven.SearchEngine
	Embedder driven.EmbeddingService
	Names    ClassificationNamer
	Logger   *slog.Logger

	// PageSize overrides how many records are read per store page.
	PageSize int

	// EmbedBatchSize overrides how many texts go into one embedding call.
	EmbedBatchSize int

	// RetryDelay overrides the base backoff between external retries.
	RetryDelay time.Duration
}

// NewIndexerService creates a new indexer.
func NewIndexerService(cfg IndexerConfig) *IndexerService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultIndexPageSize
	}
	embedBatch := cfg.EmbedBatchSize
	if embedBatch <= 0 {
		embedBatch = defaultEmbedBatchSize
	}
	return &IndexerService{
		store:      cfg.Store,
		engine:     cfg.Engine,
		embedder:   cfg.Embedder,
		names:      cfg.Names,
		logger:     logger,
		pageSize:   pageSize,
		embedBatch: embedBatch,
		retryDelay: cfg.RetryDelay,
	}
}

// SyncCatalog reindexes all stored records of one catalog. The catalog's
// existing documents are removed first so store deletions propagate.
func (s *IndexerService) SyncCatalog(ctx context.Context, catalogID string) (*domain.IndexResult, error) {
	startTime := time.Now()

	if err := s.engine.EnsureIndex(ctx, false); err != nil {
		return nil, fmt.Errorf("ensuring index: %w", err)
	}
	if err := s.engine.DeleteByCatalog(ctx, catalogID); err != nil {
		return nil, fmt.Errorf("clearing catalog documents: %w", err)
	}

	stats := domain.IndexStats{}
	if err := s.indexPages(ctx, &stats, func(offset int) ([]*domain.ProductRecord, error) {
		return s.store.ListByCatalog(ctx, catalogID, s.pageSize, offset)
	}); err != nil {
		return nil, err
	}

	if err := s.engine.Refresh(ctx); err != nil {
		s.logger.Warn("index refresh failed", "catalog_id", catalogID, "error", err)
	}

	duration := time.Since(startTime).Seconds()
	s.logger.Info("catalog sync completed",
		"catalog_id", catalogID,
		"indexed", stats.Indexed,
		"embedding_batches", stats.EmbeddingBatches,
		"embedding_failures", stats.EmbeddingFailures,
		"errors", stats.Errors,
		"duration_seconds", duration,
	)

	return &domain.IndexResult{
		CatalogID: catalogID,
		Stats:     stats,
		Duration:  duration,
	}, nil
}

// RebuildAll drops the document collection and reindexes every stored record.
func (s *IndexerService) RebuildAll(ctx context.Context) (*domain.IndexResult, error) {
	startTime := time.Now()

	if err := s.engine.EnsureIndex(ctx, true); err != nil {
		return nil, fmt.Errorf("recreating index: %w", err)
	}

	stats := domain.IndexStats{}
	if err := s.indexPages(ctx, &stats, func(offset int) ([]*domain.ProductRecord, error) {
		return s.store.ListAll(ctx, s.pageSize, offset)
	}); err != nil {
		return nil, err
	}

	if err := s.engine.Refresh(ctx); err != nil {
		s.logger.Warn("index refresh failed", "error", err)
	}

	duration := time.Since(startTime).Seconds()
	s.logger.Info("index rebuild completed",
		"indexed", stats.Indexed,
		"embedding_batches", stats.EmbeddingBatches,
		"embedding_failures", stats.EmbeddingFailures,
		"errors", stats.Errors,
		"duration_seconds", duration,
	)

	return &domain.IndexResult{
		Rebuild:  true,
		Stats:    stats,
		Duration: duration,
	}, nil
}

// indexPages pulls record pages from list and indexes them until the store
// is exhausted.
func (s *IndexerService) indexPages(ctx context.Context, stats *domain.IndexStats, list func(offset int) ([]*domain.ProductRecord, error)) error {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		recs, err := list(offset)
		if err != nil {
			return fmt.Errorf("listing records at offset %d: %w", offset, err)
		}
		if len(recs) == 0 {
			return nil
		}

		s.indexBatch(ctx, recs, stats)

		if len(recs) < s.pageSize {
			return nil
		}
		offset += len(recs)
	}
}

// indexBatch converts one page of records to documents, embeds them in
// provider-sized sub-batches and bulk-writes the result. Embedding failure
// degrades the batch to vectorless documents instead of failing the sync.
func (s *IndexerService) indexBatch(ctx context.Context, recs []*domain.ProductRecord, stats *domain.IndexStats) {
	docs := make([]*domain.SearchDocument, 0, len(recs))
	for _, rec := range recs {
		doc := domain.NewSearchDocument(rec)
		doc.EmbeddingText = domain.BuildEmbeddingText(rec)
		if s.names != nil && doc.EclassID != "" {
			doc.EclassName = s.names.Name(doc.EclassID)
		}
		docs = append(docs, doc)
	}

	if s.embedder != nil {
		s.embedDocs(ctx, docs, stats)
	}

	err := withRetry(ctx, s.logger, "engine.bulk_upsert", s.retryDelay, func() error {
		n, err := s.engine.BulkUpsert(ctx, docs)
		if err == nil {
			stats.Indexed += n
		}
		return err
	})
	if err != nil {
		s.logger.Error("bulk upsert failed", "documents", len(docs), "error", err)
		stats.Errors++
	}
}

// embedDocs attaches embedding vectors to documents with non-empty embedding
// text, in sub-batches of embedBatch.
func (s *IndexerService) embedDocs(ctx context.Context, docs []*domain.SearchDocument, stats *domain.IndexStats) {
	var pending []*domain.SearchDocument
	for _, doc := range docs {
		if doc.EmbeddingText != "" {
			pending = append(pending, doc)
		}
	}

	for start := 0; start < len(pending); start += s.embedBatch {
		end := start + s.embedBatch
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.EmbeddingText
		}

		var vectors [][]float32
		err := withRetry(ctx, s.logger, "embedder.embed", s.retryDelay, func() error {
			var embedErr error
			vectors, embedErr = s.embedder.Embed(ctx, texts)
			return embedErr
		})
		if err != nil {
			// Degrade: the batch is still indexed, just lexically only.
			s.logger.Warn("embedding batch failed, indexing without vectors", "batch_size", len(batch), "error", err)
			stats.EmbeddingFailures++
			continue
		}

		stats.EmbeddingBatches++
		for i, doc := range batch {
			if i < len(vectors) {
				doc.Embedding = vectors[i]
			}
		}
	}
}
