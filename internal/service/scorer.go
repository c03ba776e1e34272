package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kitbuilder587/rag-search/internal/domain"
	"github.com/kitbuilder587/rag-search/internal/index"
)

type Reranker interface {
	Rerank(ctx context.Context, results []domain.SearchResult, query string) ([]domain.SearchResult, error)
}

type ContentFilter interface {
	FilterContent(ctx context.Context, results []domain.SearchResult, query string, minScore float64, topK int) ([]domain.SearchResult, error)
}

// Scorer - оценка релевантности через семантический индекс.
// На каждый вызов строится свой индекс и освобождается после запроса.
type Scorer struct {
	index  index.Index
	logger *zap.Logger
}

func NewScorer(idx index.Index, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{index: idx, logger: logger}
}

// Rerank indexes every snippet, queries with floor 0 and cap len(results), writes
// the returned scores back by ID and sorts by score descending (stable).
// Results missing from the match set keep their previous score.
func (s *Scorer) Rerank(ctx context.Context, results []domain.SearchResult, query string) ([]domain.SearchResult, error) {
	if len(results) == 0 {
		return results, nil
	}

	docs := make([]index.Document, len(results))
	for i, r := range results {
		docs[i] = index.Document{ID: r.ID, Content: r.Snippet}
	}

	matches, err := s.storeAndQuery(ctx, docs, query, 0.0, len(results))
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	scores := make(map[string]float64, len(matches))
	for _, m := range matches {
		scores[m.ID] = m.Score
	}

	for i := range results {
		if score, ok := scores[results[i].ID]; ok {
			results[i].Score = score
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	s.logger.Debug("results reranked",
		zap.Int("results", len(results)),
		zap.Int("matches", len(matches)),
	)
	return results, nil
}

// FilterContent re-scores results whose fetched content is longer than the
// snippet. Matched results get the accumulated match content and score; the
// rest pass through untouched. The sequence never shrinks and keeps its order.
func (s *Scorer) FilterContent(ctx context.Context, results []domain.SearchResult, query string, minScore float64, topK int) ([]domain.SearchResult, error) {
	docs := make([]index.Document, 0, len(results))
	for _, r := range results {
		if r.HasContent() {
			docs = append(docs, index.Document{ID: r.ID, Content: r.Content})
		}
	}

	if len(docs) == 0 {
		s.logger.Debug("no content-bearing results to filter")
		return results, nil
	}

	matches, err := s.storeAndQuery(ctx, docs, query, minScore, topK)
	if err != nil {
		return nil, fmt.Errorf("filter content: %w", err)
	}

	// Один документ на ID, так что повторов быть не должно; если индекс всё же
	// вернет ID дважды, контент склеивается в порядке выдачи.
	contents := make(map[string]string, len(matches))
	scores := make(map[string]float64, len(matches))
	for _, m := range matches {
		if _, seen := contents[m.ID]; !seen {
			contents[m.ID] = m.Content
			scores[m.ID] = m.Score
			continue
		}
		contents[m.ID] += m.Content
	}

	for i := range results {
		if content, ok := contents[results[i].ID]; ok {
			results[i].Content = content
			results[i].Score = scores[results[i].ID]
		}
	}

	s.logger.Debug("content filtered",
		zap.Int("eligible", len(docs)),
		zap.Int("matched", len(contents)),
	)
	return results, nil
}

func (s *Scorer) storeAndQuery(ctx context.Context, docs []index.Document, query string, threshold float64, maxResults int) ([]index.Match, error) {
	h, err := s.index.Store(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	defer s.index.Release(h)

	matches, err := s.index.Query(ctx, h, query, threshold, maxResults)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return matches, nil
}
