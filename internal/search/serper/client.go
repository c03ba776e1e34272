package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/rag-search/internal/search"
)

// Config for the serper.dev google search API.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client - провайдер "google" через serper.dev
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	backoff []time.Duration
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://google.serper.dev"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		backoff: []time.Duration{500 * time.Millisecond, 1 * time.Second, 2 * time.Second},
	}
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	Hl  string `json:"hl,omitempty"`
}

type serperResponse struct {
	SearchParameters struct {
		Q string `json:"q"`
	} `json:"searchParameters"`
	Organic []serperResult `json:"organic"`
}

type serperResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
	Date     string `json:"date"`
}

func (c *Client) Search(ctx context.Context, req search.SearchRequest) (*search.SearchResponse, error) {
	if req.MaxResults == 0 {
		req.MaxResults = 10
	}

	body, err := json.Marshal(serperRequest{
		Q:   req.Query,
		Num: req.MaxResults,
		Hl:  req.Locale,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= len(c.backoff); attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying serper search",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff[attempt-1]):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-API-KEY", c.apiKey)

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("do request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			var sr serperResponse
			if err := json.Unmarshal(respBody, &sr); err != nil {
				return nil, fmt.Errorf("unmarshal response: %w", err)
			}
			return c.toSearchResponse(req.Query, &sr, time.Since(start)), nil

		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return nil, search.ErrUnauthorized

		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, search.ErrRateLimit

		case resp.StatusCode == http.StatusBadRequest:
			return nil, search.ErrInvalidRequest

		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue

		default:
			return nil, fmt.Errorf("%w: status %d", search.ErrSearchFailed, resp.StatusCode)
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrSearchFailed, lastErr)
	}
	return nil, search.ErrSearchFailed
}

func (c *Client) toSearchResponse(query string, resp *serperResponse, took time.Duration) *search.SearchResponse {
	results := make([]search.SearchResult, 0, len(resp.Organic))
	for _, r := range resp.Organic {
		if r.Link == "" {
			continue
		}
		results = append(results, search.SearchResult{
			Title:         r.Title,
			Link:          r.Link,
			Snippet:       r.Snippet,
			Position:      r.Position,
			PublishedDate: r.Date,
		})
	}

	if resp.SearchParameters.Q != "" {
		query = resp.SearchParameters.Q
	}

	return &search.SearchResponse{
		Query:        query,
		Results:      results,
		ResponseTime: took.Seconds(),
	}
}
