// Package mock provides a deterministic embedding.Embedder for tests and offline runs.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

const DefaultDimension = 64

// Embedder hashes tokens into a fixed-size bag-of-words vector, so texts
// sharing words end up close under cosine similarity.
type Embedder struct {
	Dimension int
	Err       error

	// EmbedTextsFunc overrides the default behaviour when set.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	mu        sync.Mutex
	callCount int
}

func New() *Embedder {
	return &Embedder{Dimension: DefaultDimension}
}

func (m *Embedder) WithError(err error) *Embedder {
	m.Err = err
	return m
}

func (m *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.callCount++
	fn := m.EmbedTextsFunc
	err := m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, texts)
	}
	if err != nil {
		return nil, err
	}

	dim := m.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t, dim)
	}
	return out, nil
}

func (m *Embedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Vector builds the normalized hashed bag-of-words vector for text.
func Vector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(dim)]++
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
