// Package openai implements embedding.Embedder on top of langchaingo's
// OpenAI-compatible client. Works with api.openai.com and with local
// servers exposing /v1/embeddings (ollama, vllm, text-embeddings-inference).
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/kitbuilder587/rag-search/internal/embedding"
)

var ErrMissingModel = errors.New("embedding model is required")

type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	BatchSize int
}

type Embedder struct {
	embedder embeddings.Embedder
	logger   *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Embedder, error) {
	if cfg.Model == "" {
		return nil, ErrMissingModel
	}
	if cfg.APIKey == "" {
		// локальные openai-совместимые сервисы токен не проверяют
		cfg.APIKey = "none"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	e, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(cfg.BatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &Embedder{
		embedder: e,
		logger:   logger.With(zap.String("component", "openai-embedder")),
	}, nil
}

var _ embedding.Embedder = (*Embedder)(nil)

func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Warn("failed to embed query", zap.Int("length", len(text)), zap.Error(err))
		return nil, err
	}
	if len(vec) == 0 {
		return nil, embedding.ErrEmptyEmbedding
	}
	return vec, nil
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("embedding texts", zap.Int("count", len(texts)))

	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Warn("failed to embed documents", zap.Int("count", len(texts)), zap.Error(err))
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", embedding.ErrEmptyEmbedding, len(vecs), len(texts))
	}
	return vecs, nil
}
