package driving

import (
	"context"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
)

// CatalogService exposes catalog-level inspection.
type CatalogService interface {
	// ListCatalogs reports every catalog known to the store together with
	// its record count and whether its indexed documents carry embeddings.
	ListCatalogs(ctx context.Context) ([]*domain.CatalogInfo, error)
}
