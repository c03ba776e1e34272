// Package embedding turns text into vectors for the semantic index.
package embedding

import (
	"context"
	"errors"
)

var ErrEmptyEmbedding = errors.New("embedder returned no vectors")

// Embedder generates vector embeddings. Implementations must be safe for concurrent use.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// EmbedTexts returns one vector per input, in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
