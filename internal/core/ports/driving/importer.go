package driving

import (
	"context"

	"github.com/custodia-labs/katalog-core/internal/core/domain"
)

// ImportOptions control how a catalog import is applied.
type ImportOptions struct {
	// Replace atomically swaps the catalog's contents for the incoming
	// records instead of merging them in.
	Replace bool

	// BatchSize is the number of records written per store batch.
	// Zero means the service default.
	BatchSize int
}

// Importer ingests product records into the canonical store.
type Importer interface {
	// ImportCatalog streams records from src into the store under catalogID.
	// At most one import per catalog runs at a time; a concurrent attempt
	// fails with domain.ErrImportInProgress.
	ImportCatalog(ctx context.Context, catalogID string, src domain.RecordSource, opts ImportOptions) (*domain.ImportResult, error)
}
