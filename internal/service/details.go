package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kitbuilder587/rag-search/internal/domain"
	"github.com/kitbuilder587/rag-search/internal/fetch"
)

type PageFetcher interface {
	FetchAll(ctx context.Context, urls []string) ([]fetch.Outcome, error)
}

type DetailStage interface {
	FetchDetails(ctx context.Context, results []domain.SearchResult, minScore float64, topK int) ([]domain.SearchResult, error)
}

type DetailFetcher struct {
	pages  PageFetcher
	logger *zap.Logger
	// legacyBoundary: старое поведение, выбирается topK+1 ссылок
	legacyBoundary bool
}

func NewDetailFetcher(pages PageFetcher, legacyBoundary bool, logger *zap.Logger) *DetailFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailFetcher{pages: pages, legacyBoundary: legacyBoundary, logger: logger}
}

// SelectLinks walks results in order and picks links with score >= minScore,
// up to topK of them (topK+1 with the legacy boundary).
func (d *DetailFetcher) SelectLinks(results []domain.SearchResult, minScore float64, topK int) []string {
	limit := topK
	if d.legacyBoundary {
		limit = topK + 1
	}

	var urls []string
	for _, r := range results {
		if len(urls) >= limit {
			break
		}
		if r.Link == "" {
			continue
		}
		if r.Score >= minScore {
			urls = append(urls, r.Link)
		}
	}
	return urls
}

// FetchDetails attaches fetched page content by link. It never reorders or drops results.
func (d *DetailFetcher) FetchDetails(ctx context.Context, results []domain.SearchResult, minScore float64, topK int) ([]domain.SearchResult, error) {
	urls := d.SelectLinks(results, minScore, topK)
	if len(urls) == 0 {
		d.logger.Debug("no results qualify for detail fetch",
			zap.Float64("min_score", minScore),
			zap.Int("top_k", topK),
		)
		return results, nil
	}

	outcomes, err := d.pages.FetchAll(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("fetch details: %w", err)
	}

	contents := make(map[string]string, len(outcomes))
	for _, o := range outcomes {
		contents[o.URL] = o.Content
	}

	filled := 0
	for i := range results {
		if content, ok := contents[results[i].Link]; ok {
			results[i].Content = content
			if content != "" {
				filled++
			}
		}
	}

	d.logger.Debug("details fetched",
		zap.Int("requested", len(urls)),
		zap.Int("with_content", filled),
	)
	return results, nil
}
