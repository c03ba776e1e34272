package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kitbuilder587/rag-search/internal/config"
	"github.com/kitbuilder587/rag-search/internal/domain"
)

func serperStub(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			var body struct {
				Q   string `json:"q"`
				Num int    `json:"num"`
				Hl  string `json:"hl"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"searchParameters":{"q":%q},"organic":[
				{"title":"One","link":"%s/page/1","snippet":"first about %s","position":1},
				{"title":"Two","link":"%s/page/2","snippet":"second","position":2}
			]}`, body.Q, srv.URL, body.Q, srv.URL)
		default:
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, "<html><body><p>Full text of %s, much longer than any snippet.</p></body></html>", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(serperURL string) *config.Config {
	return &config.Config{
		Serper:    config.SearchProviderConfig{APIKey: "sk", BaseURL: serperURL},
		Search:    config.SearchConfig{Timeout: 5 * time.Second},
		Embedding: config.EmbeddingConfig{Provider: config.EmbeddingMock},
		Fetch:     config.FetchConfig{Timeout: 2 * time.Second},
		Log:       config.LogConfig{Level: "error"},
		HTTP:      config.HTTPConfig{RequestTimeout: 10 * time.Second},
	}
}

func TestSearchCommand(t *testing.T) {
	srv := serperStub(t)
	cfg := testConfig(srv.URL)
	load := func() (*config.Config, error) { return cfg, nil }

	app := newApp(load, load)
	var out bytes.Buffer
	app.Writer = &out

	err := app.Run([]string{"ragsearch", "search", "--detail", "--detail-min-score", "0", "--rerank", "golang"})
	require.NoError(t, err)

	var results []domain.SearchResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &results), out.String())
	require.Len(t, results, 2)

	for _, r := range results {
		assert.NotEmpty(t, r.ID)
		assert.Contains(t, r.Content, "Full text of /page/")
	}
}

func TestSearchCommand_Errors(t *testing.T) {
	boom := errors.New("bad env")

	tests := []struct {
		name    string
		args    []string
		load    configLoader
		wantErr error
	}{
		{
			name:    "missing query",
			args:    []string{"ragsearch", "search"},
			load:    func() (*config.Config, error) { return testConfig("http://unused"), nil },
			wantErr: errMissingQuery,
		},
		{
			name:    "config error",
			args:    []string{"ragsearch", "search", "q"},
			load:    func() (*config.Config, error) { return nil, boom },
			wantErr: boom,
		},
		{
			name:    "empty query",
			args:    []string{"ragsearch", "search", "   "},
			load:    func() (*config.Config, error) { return testConfig("http://unused"), nil },
			wantErr: domain.ErrEmptyQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(tt.load, tt.load)
			app.Writer = &bytes.Buffer{}

			err := app.Run(tt.args)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildEmbedder(t *testing.T) {
	logger := zap.NewNop()

	_, err := buildEmbedder(config.EmbeddingConfig{Provider: "word2vec"}, logger)
	assert.ErrorIs(t, err, config.ErrInvalidEmbedder)

	e, err := buildEmbedder(config.EmbeddingConfig{Provider: config.EmbeddingMock}, logger)
	require.NoError(t, err)
	assert.NotNil(t, e)

	e, err = buildEmbedder(config.EmbeddingConfig{
		Provider: config.EmbeddingOpenAI,
		BaseURL:  "http://localhost:1/v1",
		Model:    "text-embedding-3-small",
	}, logger)
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestBuildRegistry(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.Tavily = config.SearchProviderConfig{APIKey: "tk"}

	reg := buildRegistry(cfg, zap.NewNop())
	assert.Equal(t, []string{"google", "tavily"}, reg.Names())

	c, ok := reg.Get("")
	assert.True(t, ok, "empty provider falls back to google")
	assert.NotNil(t, c)
}

func TestBuildRegistry_TavilyOnly(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.Serper = config.SearchProviderConfig{}
	cfg.Tavily = config.SearchProviderConfig{APIKey: "tk"}

	reg := buildRegistry(cfg, zap.NewNop())
	assert.Equal(t, []string{"tavily"}, reg.Names())

	c, ok := reg.Get("")
	assert.True(t, ok, "empty provider falls back to the only configured one")
	assert.NotNil(t, c)

	_, ok = reg.Get("google")
	assert.False(t, ok)
}
