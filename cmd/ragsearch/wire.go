package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kitbuilder587/rag-search/internal/config"
	"github.com/kitbuilder587/rag-search/internal/domain"
	"github.com/kitbuilder587/rag-search/internal/embedding"
	embedmock "github.com/kitbuilder587/rag-search/internal/embedding/mock"
	embedopenai "github.com/kitbuilder587/rag-search/internal/embedding/openai"
	"github.com/kitbuilder587/rag-search/internal/fetch"
	"github.com/kitbuilder587/rag-search/internal/index"
	"github.com/kitbuilder587/rag-search/internal/metrics"
	"github.com/kitbuilder587/rag-search/internal/search"
	"github.com/kitbuilder587/rag-search/internal/search/serper"
	"github.com/kitbuilder587/rag-search/internal/search/tavily"
	"github.com/kitbuilder587/rag-search/internal/service"
)

func buildRegistry(cfg *config.Config, logger *zap.Logger) *search.Registry {
	reg := search.NewRegistry(domain.DefaultSearchProvider)

	if cfg.Serper.APIKey != "" {
		reg.Register("google", serper.New(serper.Config{
			APIKey:  cfg.Serper.APIKey,
			BaseURL: cfg.Serper.BaseURL,
			Timeout: cfg.Search.Timeout,
		}, logger.Named("serper")))
	}
	if cfg.Tavily.APIKey != "" {
		reg.Register("tavily", tavily.New(tavily.Config{
			APIKey:  cfg.Tavily.APIKey,
			BaseURL: cfg.Tavily.BaseURL,
			Timeout: cfg.Search.Timeout,
		}, logger.Named("tavily")))
	}

	logger.Info("search providers registered", zap.Strings("providers", reg.Names()))
	return reg
}

func buildEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error) {
	switch cfg.Provider {
	case config.EmbeddingOpenAI:
		e, err := embedopenai.New(embedopenai.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		}, logger.Named("embedder"))
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		return e, nil
	case config.EmbeddingMock:
		logger.Warn("using mock embedder, relevance scores are not semantic")
		return embedmock.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidEmbedder, cfg.Provider)
	}
}

func buildPipeline(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*service.Pipeline, error) {
	embedder, err := buildEmbedder(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}

	scorer := service.NewScorer(index.NewMemory(embedder, logger.Named("index")), logger.Named("scorer"))

	fetcher := fetch.New(fetch.Config{
		Timeout:      cfg.Fetch.Timeout,
		BatchTimeout: cfg.Fetch.BatchTimeout,
		Concurrency:  cfg.Fetch.Concurrency,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		UserAgent:    cfg.Fetch.UserAgent,
	}, logger.Named("fetch"), m)

	return service.NewPipeline(service.PipelineDeps{
		Search:  buildRegistry(cfg, logger),
		Rerank:  scorer,
		Detail:  service.NewDetailFetcher(fetcher, cfg.Detail.LegacyTopK, logger.Named("detail")),
		Filter:  scorer,
		Logger:  logger.Named("pipeline"),
		Metrics: m,
		Config:  service.PipelineConfig{SearchTimeout: cfg.Search.Timeout},
	}), nil
}
