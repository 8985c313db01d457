package interfaces

import "context"

// Embedder turns text into a fixed-dimension float vector
type Embedder interface {
	// Embed returns the embedding of text. The returned vector has
	// exactly Dimension() elements.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the fixed embedding dimension of this provider
	Dimension() int
}
