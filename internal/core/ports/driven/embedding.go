package driven

import (
	"context"
)

// EmbeddingService generates text embeddings via an external provider.
// Calls are blocking with explicit context timeouts; batching and retry
// policy live in the caller.
type EmbeddingService interface {
	// Embed generates embeddings for a batch of texts, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a search query
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}
