package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidQuery indicates a search query failed validation before any
	// sub-query was executed
	ErrInvalidQuery = errors.New("invalid query")

	// ErrImportInProgress indicates another import holds the catalog's
	// namespace lock
	ErrImportInProgress = errors.New("import already in progress for catalog")

	// ErrEmbeddingUnavailable indicates no embedding provider is configured
	// or it could not be reached
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrServiceUnavailable indicates an external collaborator could not be
	// reached
	ErrServiceUnavailable = errors.New("service unavailable")
)
