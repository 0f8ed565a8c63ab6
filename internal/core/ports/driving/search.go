package driving

import (
	"context"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
)

// SearchService handles product search operations
type SearchService interface {
	// Search executes a single query and returns a ranked, faceted page.
	Search(ctx context.Context, query *domain.SearchQuery) (*domain.SearchResult, error)

	// SearchBatch executes up to domain.MaxBatchQueries queries concurrently.
	// Results are returned in the same order as the input; a failure in one
	// query does not abort the others.
	SearchBatch(ctx context.Context, queries []*domain.SearchQuery) ([]*domain.BatchResult, error)
}
