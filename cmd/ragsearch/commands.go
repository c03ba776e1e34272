package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kitbuilder587/rag-search/internal/api"
	"github.com/kitbuilder587/rag-search/internal/config"
	"github.com/kitbuilder587/rag-search/internal/domain"
	"github.com/kitbuilder587/rag-search/internal/metrics"
	"github.com/kitbuilder587/rag-search/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

var errMissingQuery = errors.New("query argument is required")

func loadWithLogger(c *cli.Context, load configLoader) (*config.Config, *zap.Logger, error) {
	cfg, err := load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

func serveCommand(c *cli.Context, load configLoader) error {
	cfg, logger, err := loadWithLogger(c, load)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if addr := c.String("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}

	m := metrics.New(nil)
	pipeline, err := buildPipeline(cfg, logger, m)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute})
	defer limiter.Close()

	server := api.NewServer(pipeline, limiter, api.Config{
		Addr:           cfg.HTTP.Addr,
		AuthAPIKey:     cfg.HTTP.AuthAPIKey,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}, logger, m)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func searchCommand(c *cli.Context, load configLoader) error {
	query := c.Args().First()
	if query == "" {
		return errMissingQuery
	}

	cfg, logger, err := loadWithLogger(c, load)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pipeline, err := buildPipeline(cfg, logger, nil)
	if err != nil {
		return err
	}

	req := domain.RunRequest{
		Query:       query,
		Locale:      c.String("locale"),
		SearchCount: c.Int("n"),
		Provider:    c.String("provider"),
		Options: domain.Options{
			Reranking:      c.Bool("rerank"),
			Detail:         c.Bool("detail"),
			DetailTopK:     c.Int("detail-top-k"),
			DetailMinScore: c.Float64("detail-min-score"),
			Filter:         c.Bool("filter"),
			FilterTopK:     c.Int("filter-top-k"),
			FilterMinScore: c.Float64("filter-min-score"),
		},
	}

	ctx, cancel := context.WithTimeout(c.Context, cfg.HTTP.RequestTimeout)
	defer cancel()

	results, err := pipeline.Run(ctx, req)
	if err != nil {
		return err
	}
	if results == nil {
		results = []domain.SearchResult{}
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(results)
}
