package driven

import (
	"context"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
)

// ProductStore handles product persistence (PostgreSQL).
// The relational store is the source of truth; the search engine is a
// derived, rebuildable view over it.
type ProductStore interface {
	// UpsertBatch inserts or fully overwrites records by
	// (catalog_id, supplier_aid) in one transaction. When the batch holds
	// the same key more than once, the last occurrence wins.
	UpsertBatch(ctx context.Context, records []*domain.ProductRecord) error

	// DeleteByKey removes the record at the identity key.
	// Missing rows are not an error: a delete-mode article may arrive for
	// a product that was never imported.
	DeleteByKey(ctx context.Context, catalogID, supplierAID string) error

	// ReplaceCatalog atomically swaps all rows under catalogID for the
	// records of src, consumed in batches of batchSize. Readers observe
	// either the complete old catalog or the complete new one, never a
	// mix. Returns the number of records written.
	ReplaceCatalog(ctx context.Context, catalogID string, src domain.RecordSource, batchSize int) (int, error)

	// FindByKey retrieves one record, including prices and media.
	FindByKey(ctx context.Context, catalogID, supplierAID string) (*domain.ProductRecord, error)

	// ListByCatalog retrieves records of one catalog in stable order, for
	// paged index syncs.
	ListByCatalog(ctx context.Context, catalogID string, limit, offset int) ([]*domain.ProductRecord, error)

	// ListAll retrieves records across all catalogs in stable order.
	ListAll(ctx context.Context, limit, offset int) ([]*domain.ProductRecord, error)

	// DeleteCatalog removes all rows under a catalog namespace.
	DeleteCatalog(ctx context.Context, catalogID string) error

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int, error)

	// CountByCatalog returns the number of records in one catalog.
	CountByCatalog(ctx context.Context, catalogID string) (int, error)

	// ListCatalogs returns per-catalog counts and provenance.
	ListCatalogs(ctx context.Context) ([]*domain.CatalogInfo, error)
}
