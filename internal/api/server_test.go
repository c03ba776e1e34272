package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitbuilder587/rag-search/internal/domain"
	"github.com/kitbuilder587/rag-search/internal/metrics"
	"github.com/kitbuilder587/rag-search/internal/ratelimit"
	"github.com/kitbuilder587/rag-search/internal/search"
	searchMock "github.com/kitbuilder587/rag-search/internal/search/mock"
	"github.com/kitbuilder587/rag-search/internal/service"
)

const testKey = "test-secret"

type fakeRunner struct {
	results []domain.SearchResult
	err     error
	block   bool

	calls   int
	lastReq domain.RunRequest
}

func (f *fakeRunner) Run(ctx context.Context, req domain.RunRequest) ([]domain.SearchResult, error) {
	f.calls++
	f.lastReq = req
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.results, f.err
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		SearchResults []domain.SearchResult `json:"search_results"`
	} `json:"data"`
}

func newTestServer(t *testing.T, runner Runner, limiter *ratelimit.Limiter) (*Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	cfg := DefaultConfig()
	cfg.AuthAPIKey = testKey
	cfg.RequestTimeout = time.Second
	return NewServer(runner, limiter, cfg, nil, m), m
}

func doSearch(t *testing.T, s *Server, key, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rag-search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", rr.Body.String(), err)
	}
	return rr, env
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, nil)

	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong key", "Bearer nope"},
		{"no bearer prefix", testKey},
		{"empty bearer", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			s, _ := newTestServer(t, runner, nil)

			req := httptest.NewRequest(http.MethodPost, "/rag-search", strings.NewReader(`{"query":"q"}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			s.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.JSONEq(t, `{"code":-1,"message":"Access Denied"}`, rr.Body.String())
			assert.Zero(t, runner.calls)
		})
	}
}

func TestRagSearch_Success(t *testing.T) {
	runner := &fakeRunner{results: []domain.SearchResult{
		{ID: "id-1", Title: "Go", Link: "https://go.dev", Snippet: "The Go language", Score: 0.9, Position: 1},
	}}
	s, _ := newTestServer(t, runner, nil)

	rr, env := doSearch(t, s, testKey, `{"query":"what is go","is_detail":true,"detail_min_score":0.0}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, "ok", env.Message)
	require.Len(t, env.Data.SearchResults, 1)
	assert.Equal(t, "id-1", env.Data.SearchResults[0].ID)
	assert.Contains(t, rr.Body.String(), `"uuid":"id-1"`)

	got := runner.lastReq
	assert.Equal(t, "what is go", got.Query)
	assert.Equal(t, domain.DefaultSearchCount, got.SearchCount)
	assert.Empty(t, got.Provider, "omitted provider is resolved by the registry")
	assert.True(t, got.Options.Detail)
	assert.Equal(t, 0.0, got.Options.DetailMinScore, "explicit zero must not be replaced by default")
	assert.Equal(t, domain.DefaultDetailTopK, got.Options.DetailTopK)
	assert.Equal(t, domain.DefaultFilterMinScore, got.Options.FilterMinScore)
}

func TestRagSearch_EmptyResultsEncodeAsArray(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, nil)

	rr, _ := doSearch(t, s, testKey, `{"query":"q"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"search_results":[]`)
}

func TestRagSearch_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"malformed json", `{"query":`, nil, http.StatusBadRequest, "invalid params"},
		{"empty query", `{"query":""}`, domain.ErrEmptyQuery, http.StatusBadRequest, "invalid params"},
		{"bad search_n", `{"query":"q","search_n":0}`, domain.ErrInvalidSearchCount, http.StatusBadRequest, "invalid params"},
		{"unknown provider", `{"query":"q","search_provider":"bing"}`,
			fmt.Errorf("%w: bing", domain.ErrUnknownProvider), http.StatusBadRequest, "invalid params: unknown search provider: bing"},
		{"search failed", `{"query":"q"}`,
			fmt.Errorf("%w: provider returned 500", domain.ErrSearchFailed), http.StatusBadGateway,
			"get search results failed: search failed: provider returned 500"},
		{"search deadline", `{"query":"q"}`,
			fmt.Errorf("%w: %w", domain.ErrSearchFailed, context.DeadlineExceeded), http.StatusGatewayTimeout,
			"request timeout"},
		{"unexpected", `{"query":"q"}`, errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, &fakeRunner{err: tt.err}, nil)

			rr, env := doSearch(t, s, testKey, tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, -1, env.Code)
			assert.Equal(t, tt.wantMsg, env.Message)
		})
	}
}

func TestRagSearch_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AuthAPIKey = testKey
	cfg.RequestTimeout = 50 * time.Millisecond
	s := NewServer(&fakeRunner{block: true}, nil, cfg, nil, nil)

	rr, env := doSearch(t, s, testKey, `{"query":"slow"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rr.Code)
	assert.Equal(t, "request timeout", env.Message)
}

func TestRagSearch_RateLimit(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: 2})
	defer limiter.Close()

	s, _ := newTestServer(t, &fakeRunner{}, limiter)

	for i := 0; i < 2; i++ {
		rr, _ := doSearch(t, s, testKey, `{"query":"q"}`)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr, env := doSearch(t, s, testKey, `{"query":"q"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, -1, env.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	mrr := httptest.NewRecorder()
	s.ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, mrr.Body.String(), "rag_search_rate_limit_hits_total 1")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, nil)
	doSearch(t, s, testKey, `{"query":"q"}`)

	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `rag_search_requests_total{status="200"} 1`)
}

func TestRagSearch_WithPipeline(t *testing.T) {
	client := searchMock.New().WithResults([]search.SearchResult{
		{Title: "A", Link: "https://a.example", Snippet: "a", Position: 1},
		{Title: "B", Link: "https://b.example", Snippet: "b", Position: 2},
	})
	reg := search.NewRegistry(domain.DefaultSearchProvider)
	reg.Register("google", client)

	pipeline := service.NewPipeline(service.PipelineDeps{Search: reg})
	s, _ := newTestServer(t, pipeline, nil)

	t.Run("search only", func(t *testing.T) {
		rr, env := doSearch(t, s, testKey, `{"query":"Lenvia是谁","search_n":1}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		require.Len(t, env.Data.SearchResults, 1)
		assert.NotEmpty(t, env.Data.SearchResults[0].ID)
		assert.Empty(t, env.Data.SearchResults[0].Content)
	})

	t.Run("empty query never reaches provider", func(t *testing.T) {
		before := client.Calls()
		rr, env := doSearch(t, s, testKey, `{"query":"   ","is_reranking":true,"is_detail":true,"is_filter":true}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid params", env.Message)
		assert.Equal(t, before, client.Calls())
	})
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/rag-search", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "addr:10.0.0.1", clientKey(req))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "key:abc", clientKey(req))
}
