// Package fetch downloads result pages and turns them into normalized plain text.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/rag-search/internal/metrics"
)

var (
	ErrNoHTTPClient       = errors.New("http client is not configured")
	ErrUnexpectedStatus   = errors.New("unexpected status code")
	ErrUnsupportedContent = errors.New("unsupported content type")
)

const defaultUserAgent = "Mozilla/5.0 (compatible; rag-search/1.0)"

type Config struct {
	// Timeout - на один URL
	Timeout time.Duration
	// BatchTimeout - на весь батч; по истечении недокачанные URL получают ""
	BatchTimeout time.Duration
	Concurrency  int
	MaxBodyBytes int64
	UserAgent    string
}

// Outcome pairs a requested URL with its normalized content ("" on failure).
type Outcome struct {
	URL     string
	Content string
}

type Fetcher struct {
	client  *http.Client
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 20 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// WithHTTPClient подменяет транспорт (тесты, прокси).
func (f *Fetcher) WithHTTPClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// FetchOne never fails: any transport, decode or conversion error yields "".
func (f *Fetcher) FetchOne(ctx context.Context, url string) string {
	start := time.Now()

	content, err := f.fetch(ctx, url)
	if err != nil {
		f.logger.Warn("fetch url failed",
			zap.String("url", url),
			zap.Error(err),
		)
		f.metrics.RecordPageFetch("error", time.Since(start))
		return ""
	}

	status := "success"
	if content == "" {
		status = "empty"
	}
	f.metrics.RecordPageFetch(status, time.Since(start))
	return content
}

func (f *Fetcher) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isTextual(contentType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}

	body, err := decodeUTF8(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes), contentType)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	normalize := Normalize
	if isHTML(contentType) {
		normalize = NormalizeHTML
	}
	text, err := normalize(body)
	if err != nil {
		return "", fmt.Errorf("convert markup: %w", err)
	}
	return text, nil
}

// FetchAll fetches every URL concurrently and waits for all of them to settle.
// The result is 1:1 with urls; duplicate URLs are fetched once and share content.
// Only a setup failure is returned as an error, per-URL failures become "".
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) ([]Outcome, error) {
	if f == nil || f.client == nil {
		return nil, ErrNoHTTPClient
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(urls))
	if len(urls) == 0 {
		return outcomes, nil
	}

	unique := make([]string, 0, len(urls))
	slot := make(map[string]int, len(urls))
	for _, u := range urls {
		if _, ok := slot[u]; !ok {
			slot[u] = len(unique)
			unique = append(unique, u)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.BatchTimeout)
	defer cancel()

	// каждая горутина пишет только в свой индекс, мьютекс не нужен
	contents := make([]string, len(unique))

	// errgroup без WithContext: ошибка одного URL не должна отменять соседей
	var g errgroup.Group
	g.SetLimit(f.cfg.Concurrency)
	for i, u := range unique {
		i, u := i, u
		g.Go(func() error {
			contents[i] = f.FetchOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		f.logger.Warn("batch fetch deadline reached, returning partial content",
			zap.Int("urls", len(unique)),
			zap.Duration("timeout", f.cfg.BatchTimeout),
		)
	}

	for i, u := range urls {
		outcomes[i] = Outcome{URL: u, Content: contents[slot[u]]}
	}
	return outcomes, nil
}

func isTextual(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/xhtml+xml", mediaType == "application/xml", mediaType == "application/json":
		return true
	}
	return false
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func decodeUTF8(r io.Reader, contentType string) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	decoded := raw
	if reader, err := charset.NewReader(bytes.NewReader(raw), contentType); err == nil {
		if out, err := io.ReadAll(reader); err == nil {
			decoded = out
		}
	}
	// неизвестная кодировка - оставляем байты как есть

	if !utf8.Valid(decoded) {
		return strings.ToValidUTF8(string(decoded), "\uFFFD"), nil
	}
	return string(decoded), nil
}
