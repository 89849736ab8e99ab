package vector

import "context"

// Embedder turns text into dense float32 vectors. The embedding model
// itself is an external collaborator; this interface is the seam
// retrieval code depends on so it never imports a concrete embedding
// runtime.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f EmbedderFunc) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}
