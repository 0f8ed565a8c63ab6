package driven

import (
	"context"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
)

// SearchEngine handles document indexing and the two retrieval branches
// (OpenSearch). Filters are applied by the engine before ranking, identically
// for both branches.
type SearchEngine interface {
	// EnsureIndex creates the document collection with its mapping if it
	// does not exist. With recreate, any existing collection is dropped
	// first (full-rebuild path).
	EnsureIndex(ctx context.Context, recreate bool) error

	// BulkUpsert writes documents keyed by their deterministic IDs.
	// Returns the number of documents accepted.
	BulkUpsert(ctx context.Context, docs []*domain.SearchDocument) (int, error)

	// DeleteByCatalog removes all documents of one catalog namespace.
	DeleteByCatalog(ctx context.Context, catalogID string) error

	// Lexical runs the BM25 branch: a fuzzy (or exact) multi-field match
	// over description, manufacturer and identifier fields. Hits come back
	// in rank order; total is the full filtered match count.
	Lexical(ctx context.Context, q string, exact bool, filters domain.SearchFilters, size int) ([]*domain.SearchHit, int, error)

	// Nearest runs the vector branch: approximate nearest-neighbor search
	// over document embeddings, k hits in rank order.
	Nearest(ctx context.Context, embedding []float32, filters domain.SearchFilters, k int) ([]*domain.SearchHit, error)

	// Facets aggregates over the entire filtered candidate set,
	// independent of any result window.
	Facets(ctx context.Context, filters domain.SearchFilters) (*domain.Facets, error)

	// CatalogEmbeddingStats reports, per catalog, whether any document
	// carries an embedding vector.
	CatalogEmbeddingStats(ctx context.Context) (map[string]bool, error)

	// Refresh makes recently written documents searchable.
	Refresh(ctx context.Context) error

	// Count returns the number of documents in the collection.
	Count(ctx context.Context) (int, error)

	// HealthCheck verifies the search engine is available.
	HealthCheck(ctx context.Context) error
}
