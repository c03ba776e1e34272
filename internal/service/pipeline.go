package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/rag-search/internal/domain"
	"github.com/kitbuilder587/rag-search/internal/metrics"
	"github.com/kitbuilder587/rag-search/internal/search"
)

const (
	StageSearch = "search"
	StageRerank = "rerank"
	StageDetail = "detail"
	StageFilter = "filter"
)

// Searcher routes a search to a named provider (search.Registry).
type Searcher interface {
	Search(ctx context.Context, provider string, req search.SearchRequest) (*search.SearchResponse, error)
}

type PipelineConfig struct {
	SearchTimeout time.Duration
}

// PipelineDeps - зависимости пайплайна. Опциональные стадии могут быть nil,
// тогда стадия считается недоступной и пропускается с предупреждением.
type PipelineDeps struct {
	Search  Searcher
	Rerank  Reranker
	Detail  DetailStage
	Filter  ContentFilter
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Config  PipelineConfig
}

type Pipeline struct {
	search  Searcher
	rerank  Reranker
	detail  DetailStage
	filter  ContentFilter
	logger  *zap.Logger
	metrics *metrics.Metrics
	config  PipelineConfig
}

var errStageUnavailable = errors.New("stage is not configured")

func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config.SearchTimeout == 0 {
		deps.Config.SearchTimeout = 30 * time.Second
	}

	return &Pipeline{
		search:  deps.Search,
		rerank:  deps.Rerank,
		detail:  deps.Detail,
		filter:  deps.Filter,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		config:  deps.Config,
	}
}

type stageFunc func(ctx context.Context, results []domain.SearchResult) ([]domain.SearchResult, error)

// Run executes Search -> Rerank -> Detail-Fetch -> Filter. Only validation and
// search failures are returned; optional stage failures pass the previous
// result set through unchanged.
func (p *Pipeline) Run(ctx context.Context, req domain.RunRequest) ([]domain.SearchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Sanitize()

	start := time.Now()
	opts := req.Options

	p.logger.Info("processing rag search",
		zap.Int("query_length", len(req.Query)),
		zap.String("provider", req.Provider),
		zap.Int("search_n", req.SearchCount),
		zap.Bool("reranking", opts.Reranking),
		zap.Bool("detail", opts.Detail),
		zap.Bool("filter", opts.Filter),
	)

	results, err := p.runSearch(ctx, req)
	if err != nil {
		return nil, err
	}

	if opts.Reranking {
		results = p.guard(ctx, StageRerank, results, func(ctx context.Context, in []domain.SearchResult) ([]domain.SearchResult, error) {
			if p.rerank == nil {
				return nil, errStageUnavailable
			}
			return p.rerank.Rerank(ctx, in, req.Query)
		})
	}

	if opts.Detail {
		results = p.guard(ctx, StageDetail, results, func(ctx context.Context, in []domain.SearchResult) ([]domain.SearchResult, error) {
			if p.detail == nil {
				return nil, errStageUnavailable
			}
			return p.detail.FetchDetails(ctx, in, opts.DetailMinScore, opts.DetailTopK)
		})
	}

	if opts.Filter {
		results = p.guard(ctx, StageFilter, results, func(ctx context.Context, in []domain.SearchResult) ([]domain.SearchResult, error) {
			if p.filter == nil {
				return nil, errStageUnavailable
			}
			return p.filter.FilterContent(ctx, in, req.Query, opts.FilterMinScore, opts.FilterTopK)
		})
	}

	p.logger.Info("rag search processed",
		zap.Int("results", len(results)),
		zap.Duration("took", time.Since(start)),
	)
	return results, nil
}

func (p *Pipeline) runSearch(ctx context.Context, req domain.RunRequest) ([]domain.SearchResult, error) {
	if p.search == nil {
		return nil, fmt.Errorf("%w: no search provider configured", domain.ErrSearchFailed)
	}

	searchCtx, cancel := context.WithTimeout(ctx, p.config.SearchTimeout)
	defer cancel()

	// пустой провайдер выбирает реестр
	label := req.Provider
	if label == "" {
		label = "default"
	}

	start := time.Now()
	resp, err := p.search.Search(searchCtx, req.Provider, search.SearchRequest{
		Query:      req.Query,
		MaxResults: req.SearchCount,
		Locale:     req.Locale,
	})
	if err != nil {
		p.metrics.RecordSearchRequest(label, "error", time.Since(start))
		p.metrics.RecordStage(StageSearch, "error", time.Since(start))
		p.logger.Error("search failed",
			zap.String("provider", label),
			zap.Error(err),
		)
		if errors.Is(err, search.ErrUnknownProvider) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, label)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrSearchFailed, err)
	}
	p.metrics.RecordSearchRequest(label, "success", time.Since(start))
	p.metrics.RecordStage(StageSearch, "success", time.Since(start))

	results := make([]domain.SearchResult, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = domain.NewSearchResult(r.Title, r.Link, r.Snippet)
		results[i].Position = r.Position
	}
	return results, nil
}

// guard runs an optional stage on a copy of the results. On error or panic it
// logs, records the degradation and returns the input unchanged.
func (p *Pipeline) guard(ctx context.Context, stage string, in []domain.SearchResult, fn stageFunc) (out []domain.SearchResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("stage panicked, passing results through",
				zap.String("stage", stage),
				zap.Any("panic", r),
			)
			p.metrics.RecordStage(stage, "panic", time.Since(start))
			out = in
		}
	}()

	res, err := fn(ctx, domain.CloneResults(in))
	if err != nil {
		p.logger.Warn("stage failed, passing results through",
			zap.String("stage", stage),
			zap.Error(err),
		)
		p.metrics.RecordStage(stage, "degraded", time.Since(start))
		return in
	}

	p.metrics.RecordStage(stage, "success", time.Since(start))
	p.logger.Debug("stage completed",
		zap.String("stage", stage),
		zap.Int("results", len(res)),
		zap.Duration("took", time.Since(start)),
	)
	return res
}
