package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kitbuilder587/rag-search/internal/embedding"
)

type entry struct {
	doc    Document
	vector []float32
}

// Memory - плоский (brute-force) индекс в памяти поверх Embedder.
type Memory struct {
	embedder embedding.Embedder
	logger   *zap.Logger

	mu      sync.RWMutex
	indexes map[Handle][]entry
}

func NewMemory(embedder embedding.Embedder, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		embedder: embedder,
		logger:   logger,
		indexes:  make(map[Handle][]entry),
	}
}

func (m *Memory) Store(ctx context.Context, docs []Document) (Handle, error) {
	if len(docs) == 0 {
		return "", ErrNoDocuments
	}

	seen := make(map[string]bool, len(docs))
	texts := make([]string, len(docs))
	for i, d := range docs {
		if seen[d.ID] {
			return "", fmt.Errorf("%w: %s", ErrDuplicateID, d.ID)
		}
		seen[d.ID] = true
		texts[i] = d.Content
	}

	vectors, err := m.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return "", fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return "", fmt.Errorf("embed documents: got %d vectors for %d documents", len(vectors), len(docs))
	}

	entries := make([]entry, len(docs))
	for i, d := range docs {
		entries[i] = entry{doc: d, vector: vectors[i]}
	}

	h := Handle(uuid.NewString())
	m.mu.Lock()
	m.indexes[h] = entries
	m.mu.Unlock()

	m.logger.Debug("index stored", zap.String("handle", string(h)), zap.Int("documents", len(docs)))
	return h, nil
}

// Query returns matches with score >= threshold, best first, at most maxResults.
// Ties keep insertion order.
func (m *Memory) Query(ctx context.Context, h Handle, text string, threshold float64, maxResults int) ([]Match, error) {
	m.mu.RLock()
	entries, ok := m.indexes[h]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownHandle
	}

	qv, err := m.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		score, err := cosine(qv, e.vector)
		if err != nil {
			return nil, err
		}
		if score < threshold {
			continue
		}
		matches = append(matches, Match{ID: e.doc.ID, Score: score, Content: e.doc.Content})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if maxResults >= 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

func (m *Memory) Release(h Handle) {
	m.mu.Lock()
	delete(m.indexes, h)
	m.mu.Unlock()
}

// Size returns the number of live handles.
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.indexes)
}

func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions must match: %d != %d", len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
