// Package api exposes the search pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kitbuilder587/rag-search/internal/domain"
	"github.com/kitbuilder587/rag-search/internal/metrics"
	"github.com/kitbuilder587/rag-search/internal/ratelimit"
)

// Runner executes one search pipeline run (service.Pipeline).
type Runner interface {
	Run(ctx context.Context, req domain.RunRequest) ([]domain.SearchResult, error)
}

type Config struct {
	Addr           string
	AuthAPIKey     string
	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	// WriteTimeout должен быть больше RequestTimeout, иначе ответ обрежется
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		RequestTimeout: 60 * time.Second,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   75 * time.Second,
		IdleTimeout:    60 * time.Second,
	}
}

type Server struct {
	runner     Runner
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
	metrics    *metrics.Metrics
	config     Config
	router     *mux.Router
	httpServer *http.Server
}

// NewServer wires routes. limiter and m may be nil.
func NewServer(runner Runner, limiter *ratelimit.Limiter, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= cfg.RequestTimeout {
		cfg.WriteTimeout = cfg.RequestTimeout + 15*time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		runner:  runner,
		limiter: limiter,
		logger:  logger,
		metrics: m,
		config:  cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	protected := s.router.PathPrefix("/").Subrouter()
	protected.Use(s.authMiddleware)
	protected.Use(s.rateLimitMiddleware)
	protected.HandleFunc("/rag-search", s.handleRagSearch).Methods(http.MethodPost)
}

// Start blocks until the server stops. http.ErrServerClosed after Shutdown is not an error.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("http server listening", zap.String("addr", s.config.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
