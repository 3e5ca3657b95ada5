package embeddings

import "context"

// Embedder is the embedding-provider interface used for dependency
// injection. Use this to mock the provider in tests.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the embedding model name.
	Model() string

	// Dimensions returns the vector length.
	Dimensions() int
}

// Ensure Client implements Embedder at compile time.
var _ Embedder = (*Client)(nil)
