// Package mock provides a scripted index.Index for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/kitbuilder587/rag-search/internal/index"
)

// Index returns fixed scores by document ID instead of computing similarity.
// Query still honours threshold and maxResults, in Store order.
type Index struct {
	Scores   map[string]float64
	StoreErr error
	QueryErr error
	// Matches, если задан, возвращается из Query как есть
	Matches []index.Match

	StoreCalls int
	QueryCalls int
	Stored     [][]index.Document
	LastQuery  string
	LastThresh float64
	LastMax    int
	Released   int

	mu   sync.Mutex
	docs map[index.Handle][]index.Document
	seq  int
}

func New() *Index {
	return &Index{
		Scores: make(map[string]float64),
		docs:   make(map[index.Handle][]index.Document),
	}
}

func (m *Index) WithScores(scores map[string]float64) *Index {
	m.Scores = scores
	return m
}

func (m *Index) WithStoreError(err error) *Index {
	m.StoreErr = err
	return m
}

func (m *Index) WithQueryError(err error) *Index {
	m.QueryErr = err
	return m
}

func (m *Index) WithMatches(matches []index.Match) *Index {
	m.Matches = matches
	return m
}

func (m *Index) Store(ctx context.Context, docs []index.Document) (index.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StoreCalls++
	m.Stored = append(m.Stored, docs)
	if m.StoreErr != nil {
		return "", m.StoreErr
	}
	if len(docs) == 0 {
		return "", index.ErrNoDocuments
	}

	m.seq++
	h := index.Handle(fmt.Sprintf("h%d", m.seq))
	m.docs[h] = docs
	return h, nil
}

func (m *Index) Query(ctx context.Context, h index.Handle, text string, threshold float64, maxResults int) ([]index.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.QueryCalls++
	m.LastQuery = text
	m.LastThresh = threshold
	m.LastMax = maxResults
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if m.Matches != nil {
		return m.Matches, nil
	}

	docs, ok := m.docs[h]
	if !ok {
		return nil, index.ErrUnknownHandle
	}

	var out []index.Match
	for _, d := range docs {
		score, ok := m.Scores[d.ID]
		if !ok || score < threshold {
			continue
		}
		if len(out) >= maxResults {
			break
		}
		out = append(out, index.Match{ID: d.ID, Score: score, Content: d.Content})
	}
	return out, nil
}

func (m *Index) Release(h index.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, h)
	m.Released++
}

func (m *Index) Calls() (store, query int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StoreCalls, m.QueryCalls
}
