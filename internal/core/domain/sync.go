package domain

// ImportStats counts what happened to the records of one import run.
type ImportStats struct {
	// Imported counts records upserted (new and update modes)
	Imported int `json:"imported"`

	// Deleted counts delete-mode records applied
	Deleted int `json:"deleted"`

	// Skipped counts records dropped by the parser or validation
	Skipped int `json:"skipped"`

	// Errors counts batches that failed after retries
	Errors int `json:"errors"`
}

// ImportResult is the outcome of one catalog import.
type ImportResult struct {
	CatalogID string      `json:"catalog_id"`
	Replace   bool        `json:"replace"`
	Stats     ImportStats `json:"stats"`
	Duration  float64     `json:"duration_seconds"`
}

// IndexStats counts the work of one index sync run.
type IndexStats struct {
	// Indexed counts documents successfully upserted
	Indexed int `json:"indexed"`

	// EmbeddingBatches counts embedding provider calls that succeeded
	EmbeddingBatches int `json:"embedding_batches"`

	// EmbeddingFailures counts batches indexed without vectors after the
	// provider exhausted its retries
	EmbeddingFailures int `json:"embedding_failures"`

	// Errors counts bulk writes that failed after retries
	Errors int `json:"errors"`
}

// IndexResult is the outcome of one index sync.
type IndexResult struct {
	CatalogID string     `json:"catalog_id,omitempty"` // Empty for full rebuilds
	Rebuild   bool       `json:"rebuild"`
	Stats     IndexStats `json:"stats"`
	Duration  float64    `json:"duration_seconds"`
}
