package driving

import (
	"context"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
)

// Indexer projects stored product records into the search engine.
type Indexer interface {
	// SyncCatalog reindexes all stored records for a single catalog.
	// Existing engine documents for the catalog are replaced.
	SyncCatalog(ctx context.Context, catalogID string) (*domain.IndexResult, error)

	// RebuildAll recreates the index from scratch and reindexes every
	// stored record across all catalogs.
	RebuildAll(ctx context.Context) (*domain.IndexResult, error)
}
