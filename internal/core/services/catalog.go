package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driven"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driving"
)

// Ensure CatalogService implements driving.CatalogService
var _ driving.CatalogService = (*CatalogService)(nil)

// CatalogService reports on the catalog namespaces currently loaded.
type CatalogService struct {
	store  driven.ProductStore
	engine driven.SearchEngine // nil when no index is configured
	logger *slog.Logger
}

// CatalogConfig holds dependencies for CatalogService.
type CatalogConfig struct {
	Store  driven.ProductStore
	Engine driven.SearchEngine
	Logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(cfg CatalogConfig) *CatalogService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{
		store:  cfg.Store,
		engine: cfg.Engine,
		logger: logger,
	}
}

// ListCatalogs merges the store's per-catalog counts with the engine's
// embedding coverage. An unreachable engine only costs the coverage flags.
func (s *CatalogService) ListCatalogs(ctx context.Context) ([]*domain.CatalogInfo, error) {
	infos, err := s.store.ListCatalogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing catalogs: %w", err)
	}

	if s.engine != nil {
		stats, err := s.engine.CatalogEmbeddingStats(ctx)
		if err != nil {
			s.logger.Warn("embedding stats unavailable", "error", err)
		} else {
			for _, info := range infos {
				info.HasEmbeddings = stats[info.CatalogID]
			}
		}
	}

	return infos, nil
}
